// Package room hosts the authoritative per-room actor. One goroutine
// drains the inbox and processes every inbound message to completion,
// so room state needs no locking; rooms run independently of each
// other.
package room

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/pixlverse/office/internal/domain"
	"github.com/pixlverse/office/internal/protocol"
	"github.com/pixlverse/office/internal/state"
)

// Sender is the transport endpoint of one session. Owned by the
// adapter; the room only closes it on leave or dispose.
type Sender interface {
	TrySend([]byte) error
	Close()
}

// Lifecycle is the room phase: created → active → disposing → disposed.
type Lifecycle int32

const (
	Created Lifecycle = iota
	Active
	Disposing
	Disposed
)

type joinMsg struct {
	sid   domain.SessionID
	conn  Sender
	reply chan error
}

type leaveMsg struct {
	sid domain.SessionID
}

type frameMsg struct {
	sid  domain.SessionID
	data []byte
}

type Room struct {
	id           domain.RoomID
	opts         domain.RoomOptions
	passwordHash []byte

	office   *state.Office
	sessions map[domain.SessionID]Sender

	inbox    chan any
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	phase   atomic.Int32
	members atomic.Int32

	// onStopped lets the manager deregister the room; invoked exactly
	// once, from the room goroutine, after cleanup.
	onStopped func(domain.RoomID)
}

func New(id domain.RoomID, opts domain.RoomOptions) (*Room, error) {
	r := &Room{
		id:       id,
		opts:     opts,
		office:   state.NewOffice(),
		sessions: make(map[domain.SessionID]Sender),
		inbox:    make(chan any, 256),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if opts.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		r.passwordHash = hash
	}
	return r, nil
}

func (r *Room) ID() domain.RoomID    { return r.id }
func (r *Room) Name() string         { return r.opts.Name }
func (r *Room) Description() string  { return r.opts.Description }
func (r *Room) HasPassword() bool    { return r.passwordHash != nil }
func (r *Room) MemberCount() int     { return int(r.members.Load()) }
func (r *Room) Phase() Lifecycle     { return Lifecycle(r.phase.Load()) }
func (r *Room) Done() <-chan struct{} { return r.done }

// Authenticate compares the candidate password against the room's
// bcrypt hash. Safe to call from any goroutine; the hash is immutable
// after creation. Runs before any state is touched for the joiner.
func (r *Room) Authenticate(password string) error {
	if r.passwordHash == nil {
		return nil
	}
	if password == "" {
		return ErrForbidden
	}
	if bcrypt.CompareHashAndPassword(r.passwordHash, []byte(password)) != nil {
		return ErrForbidden
	}
	return nil
}

// Join registers the session and seeds its Player entry. The caller
// must have passed Authenticate first.
func (r *Room) Join(sid domain.SessionID, conn Sender) error {
	reply := make(chan error, 1)
	select {
	case r.inbox <- joinMsg{sid: sid, conn: conn, reply: reply}:
	case <-r.done:
		return ErrDisposed
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		return ErrDisposed
	}
}

// Leave converges graceful leaves and abrupt disconnects onto the same
// cleanup path.
func (r *Room) Leave(sid domain.SessionID) {
	select {
	case r.inbox <- leaveMsg{sid: sid}:
	case <-r.done:
	}
}

// Inbound hands one raw client frame to the room loop.
func (r *Room) Inbound(sid domain.SessionID, data []byte) {
	select {
	case r.inbox <- frameMsg{sid: sid, data: data}:
	case <-r.done:
	}
}

// Stop requests disposal. Idempotent.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

func (r *Room) Run() {
	r.phase.Store(int32(Active))
	log.Info().Str("module", "room").Str("room", string(r.id)).Str("name", r.opts.Name).Msg("room active")
	for {
		select {
		case <-r.quit:
			r.dispose()
			return
		case msg := <-r.inbox:
			switch m := msg.(type) {
			case joinMsg:
				m.reply <- r.handleJoin(m.sid, m.conn)
			case leaveMsg:
				r.handleLeave(m.sid)
			case frameMsg:
				r.handleFrame(m.sid, m.data)
			}
		}
	}
}

func (r *Room) dispose() {
	r.phase.Store(int32(Disposing))
	log.Info().Str("module", "room").Str("room", string(r.id)).Msg("room disposing")
	for sid, conn := range r.sessions {
		conn.Close()
		delete(r.sessions, sid)
	}
	r.members.Store(0)
	if r.onStopped != nil {
		r.onStopped(r.id)
	}
	r.phase.Store(int32(Disposed))
	close(r.done)
}

func (r *Room) handleJoin(sid domain.SessionID, conn Sender) error {
	if _, exists := r.sessions[sid]; exists {
		return nil
	}
	r.office.AddPlayer(sid)

	// Existing members learn about the joiner through the normal diff
	// stream; the joiner itself gets the one-shot room data and a full
	// snapshot instead.
	r.broadcast(r.office.Drain(), sid)

	r.sessions[sid] = conn
	r.members.Add(1)

	r.sendTo(sid, protocol.MsgRoomData, protocol.RoomData{
		ID:          string(r.id),
		Name:        r.opts.Name,
		Description: r.opts.Description,
		SessionID:   string(sid),
	})
	r.sendTo(sid, protocol.MsgSnapshot, r.office.Snapshot())
	log.Info().Str("module", "room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("session joined")
	return nil
}

func (r *Room) handleLeave(sid domain.SessionID) {
	conn, ok := r.sessions[sid]
	if !ok {
		return
	}
	delete(r.sessions, sid)
	r.members.Add(-1)
	conn.Close()

	r.office.RemovePlayer(sid)
	// Scrub the session from every computer so no client keeps showing
	// a stream for a session that no longer exists.
	r.office.DetachUser(sid)
	r.flush()
	log.Info().Str("module", "room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("session left")

	if len(r.sessions) == 0 && r.opts.AutoDispose {
		r.Stop()
	}
}

// flush drains the journal and fans the diff out to every session.
func (r *Room) flush() {
	r.broadcast(r.office.Drain(), "")
}

func (r *Room) broadcast(changes []state.Change, except domain.SessionID) {
	if len(changes) == 0 {
		return
	}
	frame, err := protocol.Encode(protocol.MsgStateDiff, protocol.StateDiff{Changes: changes})
	if err != nil {
		log.Error().Err(err).Str("module", "room").Msg("encode diff")
		return
	}
	var dropped []domain.SessionID
	for sid, conn := range r.sessions {
		if sid == except {
			continue
		}
		if err := conn.TrySend(frame); err != nil {
			dropped = append(dropped, sid)
		}
	}
	// A session that cannot keep up is treated like a disconnect.
	for _, sid := range dropped {
		log.Warn().Str("module", "room").Str("sid", string(sid)).Msg("dropping slow session")
		r.handleLeave(sid)
	}
}

func (r *Room) sendTo(sid domain.SessionID, t string, payload any) {
	conn, ok := r.sessions[sid]
	if !ok {
		return
	}
	frame, err := protocol.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "room").Str("type", t).Msg("encode directed message")
		return
	}
	if err := conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "room").Str("sid", string(sid)).Str("type", t).Msg("directed send failed")
	}
}
