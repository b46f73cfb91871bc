// Package state holds the authoritative, diffable room state. Every
// setter records the mutation in a journal which the room drains once
// per processed message and broadcasts as one diff frame. Setters are
// silent no-ops when the target entity is absent or the value does not
// actually change, so the journal never carries redundant entries.
package state

import (
	"strconv"

	"github.com/pixlverse/office/internal/domain"
)

// Office is owned by a single room goroutine; it is not safe for
// concurrent use and never needs to be.
type Office struct {
	players   map[domain.SessionID]*domain.Player
	computers map[string]*domain.Computer
	chat      []domain.ChatMessage
	journal   []Change
}

func NewOffice() *Office {
	o := &Office{
		players:   make(map[domain.SessionID]*domain.Player),
		computers: make(map[string]*domain.Computer, domain.NumComputers),
		chat:      make([]domain.ChatMessage, 0, domain.ChatLogCapacity),
	}
	for i := 0; i < domain.NumComputers; i++ {
		id := strconv.Itoa(i)
		o.computers[id] = domain.NewComputer(id)
	}
	return o
}

// Drain returns the accumulated changes and clears the journal.
func (o *Office) Drain() []Change {
	if len(o.journal) == 0 {
		return nil
	}
	out := o.journal
	o.journal = nil
	return out
}

func (o *Office) Player(sid domain.SessionID) (*domain.Player, bool) {
	p, ok := o.players[sid]
	return p, ok
}

func (o *Office) Computer(id string) (*domain.Computer, bool) {
	c, ok := o.computers[id]
	return c, ok
}

func (o *Office) PlayerCount() int { return len(o.players) }

func (o *Office) AddPlayer(sid domain.SessionID) *domain.Player {
	if p, ok := o.players[sid]; ok {
		return p
	}
	p := domain.NewPlayer()
	o.players[sid] = p
	snap := *p
	o.journal = append(o.journal, Change{Kind: PlayerAdd, ID: string(sid), Player: &snap})
	return p
}

func (o *Office) RemovePlayer(sid domain.SessionID) {
	if _, ok := o.players[sid]; !ok {
		return
	}
	delete(o.players, sid)
	o.journal = append(o.journal, Change{Kind: PlayerRemove, ID: string(sid)})
}

// SetPlayerPosition journals only the fields that actually changed, so
// a pure x/y move does not re-send the animation tag.
func (o *Office) SetPlayerPosition(sid domain.SessionID, x, y float64, anim string) {
	p, ok := o.players[sid]
	if !ok {
		return
	}
	if p.X != x {
		p.X = x
		o.fieldChange(sid, "x", x)
	}
	if p.Y != y {
		p.Y = y
		o.fieldChange(sid, "y", y)
	}
	if anim != "" && p.Anim != anim {
		p.Anim = anim
		o.fieldChange(sid, "anim", anim)
	}
}

func (o *Office) SetPlayerName(sid domain.SessionID, name string) {
	p, ok := o.players[sid]
	if !ok || p.Name == name {
		return
	}
	p.Name = name
	o.fieldChange(sid, "name", name)
}

// SetPlayerFlag flips one of the boolean player fields. Unknown field
// names are ignored; callers own the allow-list.
func (o *Office) SetPlayerFlag(sid domain.SessionID, field string, value bool) {
	p, ok := o.players[sid]
	if !ok {
		return
	}
	var slot *bool
	switch field {
	case "readyToConnect":
		slot = &p.ReadyToConnect
	case "videoConnected":
		slot = &p.VideoConnected
	case "audioEnabled":
		slot = &p.AudioEnabled
	case "videoEnabled":
		slot = &p.VideoEnabled
	default:
		return
	}
	if *slot == value {
		return
	}
	*slot = value
	o.fieldChange(sid, field, value)
}

func (o *Office) fieldChange(sid domain.SessionID, field string, value any) {
	o.journal = append(o.journal, Change{Kind: PlayerField, ID: string(sid), Field: field, Value: value})
}

func (o *Office) AddComputerUser(id string, sid domain.SessionID) {
	c, ok := o.computers[id]
	if !ok || c.Has(sid) {
		return
	}
	c.Users[sid] = struct{}{}
	o.journal = append(o.journal, Change{Kind: ComputerUserAdd, ID: id, User: sid})
}

func (o *Office) RemoveComputerUser(id string, sid domain.SessionID) {
	c, ok := o.computers[id]
	if !ok || !c.Has(sid) {
		return
	}
	delete(c.Users, sid)
	o.journal = append(o.journal, Change{Kind: ComputerUserRemove, ID: id, User: sid})
}

// DetachUser removes the session from every computer it appears in.
// Used on leave and to enforce single-membership on connect.
func (o *Office) DetachUser(sid domain.SessionID) {
	for id, c := range o.computers {
		if c.Has(sid) {
			delete(c.Users, sid)
			o.journal = append(o.journal, Change{Kind: ComputerUserRemove, ID: id, User: sid})
		}
	}
}

// AppendChat evicts the oldest entry first once the log is at
// capacity.
func (o *Office) AppendChat(msg domain.ChatMessage) {
	if len(o.chat) >= domain.ChatLogCapacity {
		o.chat = o.chat[1:]
	}
	o.chat = append(o.chat, msg)
	m := msg
	o.journal = append(o.journal, Change{Kind: ChatAppend, Message: &m})
}

func (o *Office) ChatLog() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(o.chat))
	copy(out, o.chat)
	return out
}
