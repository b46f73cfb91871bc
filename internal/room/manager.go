package room

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pixlverse/office/internal/domain"
)

// PublicRoomID is the always-on lobby registered at startup.
const PublicRoomID = "public"

// Info is the read-only listing view of a room.
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	HasPassword bool   `json:"hasPassword"`
	MemberCount int    `json:"memberCount"`
}

type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*Room
	alloc  *IDAllocator
}

func NewManager(parent context.Context) *Manager {
	ctx, cancel := context.WithCancel(parent)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[domain.RoomID]*Room),
		alloc:  NewIDAllocator(),
	}
}

// Create allocates an id, registers the room, and starts its loop.
func (m *Manager) Create(opts domain.RoomOptions) (*Room, error) {
	id, err := m.alloc.Allocate()
	if err != nil {
		return nil, err
	}
	return m.register(domain.RoomID(id), opts)
}

// EnsurePublic registers the non-disposing public lobby once.
func (m *Manager) EnsurePublic() (*Room, error) {
	m.mu.RLock()
	if r, ok := m.rooms[PublicRoomID]; ok {
		m.mu.RUnlock()
		return r, nil
	}
	m.mu.RUnlock()

	if !m.alloc.Reserve(PublicRoomID) {
		return nil, ErrIDExhausted
	}
	return m.register(PublicRoomID, domain.RoomOptions{
		Name:        "Public Lobby",
		Description: "For making friends and familiarizing yourself with the controls",
		AutoDispose: false,
	})
}

func (m *Manager) register(id domain.RoomID, opts domain.RoomOptions) (*Room, error) {
	r, err := New(id, opts)
	if err != nil {
		m.alloc.Release(string(id))
		return nil, err
	}
	r.onStopped = m.deregister

	m.mu.Lock()
	m.rooms[id] = r
	m.mu.Unlock()

	go r.Run()
	log.Info().Str("module", "room.manager").Str("room", string(id)).Str("name", opts.Name).Msg("room registered")
	return r, nil
}

func (m *Manager) Get(id domain.RoomID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, Info{
			ID:          string(r.ID()),
			Name:        r.Name(),
			Description: r.Description(),
			HasPassword: r.HasPassword(),
			MemberCount: r.MemberCount(),
		})
	}
	return out
}

func (m *Manager) Stop(id domain.RoomID) {
	if r, ok := m.Get(id); ok {
		r.Stop()
	}
}

// Shutdown stops every room and waits for their loops to finish.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	for _, r := range rooms {
		r.Stop()
	}
	for _, r := range rooms {
		<-r.Done()
	}
	m.cancel()
}

func (m *Manager) deregister(id domain.RoomID) {
	m.mu.Lock()
	delete(m.rooms, id)
	m.mu.Unlock()
	m.alloc.Release(string(id))
	log.Info().Str("module", "room.manager").Str("room", string(id)).Msg("room deregistered")
}
