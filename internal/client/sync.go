// Package client implements the client-side synchronization layer: it
// mirrors the room's authoritative state from the snapshot and diff
// stream and translates every change into a domain event. Rendering
// and media layers subscribe to the events instead of reading network
// frames themselves.
package client

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/pixlverse/office/internal/domain"
	"github.com/pixlverse/office/internal/protocol"
	"github.com/pixlverse/office/internal/state"
)

// Events are the collaborator-facing callbacks. Nil handlers are
// skipped. All callbacks fire on the goroutine driving Apply, in
// frame-receipt order.
type Events struct {
	OnRoomData         func(protocol.RoomData)
	OnPlayerJoined     func(id string, p domain.Player)
	OnPlayerUpdated    func(field string, value any, id string)
	OnPlayerLeft       func(id string)
	OnItemUserAdded    func(playerID, computerID string)
	OnItemUserRemoved  func(playerID, computerID string)
	OnMyPlayerReady    func()
	OnMyVideoConnected func()
	OnChatMessage      func(domain.ChatMessage)
	OnStopScreenShare  func(senderID string)
	OnDisconnectStream func(senderID string)
	OnWebRTCSignal     func(from string, data json.RawMessage)
}

// Transport sends typed messages back to the room.
type Transport interface {
	Send(t string, payload any) error
}

// Sync holds the read-only mirror for one session. Not safe for
// concurrent use; drive it from a single goroutine, the same
// cooperative model the rest of the client runs on.
type Sync struct {
	Events

	sid string
	out Transport

	players   map[string]*domain.Player
	computers map[string]map[string]struct{}

	// Edge-trigger latches for the local player's readiness flags.
	myReady bool
	myVideo bool
}

// NewSync builds an empty mirror. The session id may be left empty;
// it is filled in by the room-data handshake on join.
func NewSync(sid string, out Transport) *Sync {
	return &Sync{
		sid:       sid,
		out:       out,
		players:   make(map[string]*domain.Player),
		computers: make(map[string]map[string]struct{}),
	}
}

func (s *Sync) MySessionID() string { return s.sid }

func (s *Sync) Player(id string) (domain.Player, bool) {
	p, ok := s.players[id]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

func (s *Sync) ComputerUsers(id string) []string {
	users := s.computers[id]
	out := make([]string, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	return out
}

// ComputerOf returns the computer the given session is currently
// connected to, if any.
func (s *Sync) ComputerOf(playerID string) (string, bool) {
	for cid, users := range s.computers {
		if _, ok := users[playerID]; ok {
			return cid, true
		}
	}
	return "", false
}

// Apply processes one raw frame from the room.
func (s *Sync) Apply(data []byte) error {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		return err
	}

	switch env.T {
	case protocol.MsgRoomData:
		p, err := protocol.DecodePayload[protocol.RoomData](env)
		if err != nil {
			return err
		}
		// The handshake precedes the snapshot, so the local session id
		// is known before any player entry has to be classified as own
		// or foreign.
		if p.SessionID != "" {
			s.sid = p.SessionID
		}
		if s.OnRoomData != nil {
			s.OnRoomData(p)
		}

	case protocol.MsgSnapshot:
		snap, err := protocol.DecodePayload[state.Snapshot](env)
		if err != nil {
			return err
		}
		s.applySnapshot(snap)

	case protocol.MsgStateDiff:
		diff, err := protocol.DecodePayload[protocol.StateDiff](env)
		if err != nil {
			return err
		}
		for _, ch := range diff.Changes {
			s.applyChange(ch)
		}

	case protocol.MsgStopScreenShare:
		p, err := protocol.DecodePayload[protocol.StopScreenShareNotice](env)
		if err != nil {
			return err
		}
		if s.OnStopScreenShare != nil {
			s.OnStopScreenShare(p.SenderID)
		}

	case protocol.MsgDisconnectStream:
		p, err := protocol.DecodePayload[protocol.DisconnectStreamNotice](env)
		if err != nil {
			return err
		}
		if s.OnDisconnectStream != nil {
			s.OnDisconnectStream(p.SenderID)
		}

	case protocol.MsgWebRTCSignal:
		p, err := protocol.DecodePayload[protocol.WebRTCSignalNotice](env)
		if err != nil {
			return err
		}
		if s.OnWebRTCSignal != nil {
			s.OnWebRTCSignal(p.From, p.Data)
		}

	case protocol.MsgError:
		p, err := protocol.DecodePayload[protocol.ErrorNotice](env)
		if err != nil {
			return err
		}
		log.Warn().Str("module", "client").Str("code", p.Code).Str("reason", p.Reason).Msg("server error")

	default:
		return fmt.Errorf("client: unknown message type %q", env.T)
	}
	return nil
}

func (s *Sync) applySnapshot(snap state.Snapshot) {
	for id, p := range snap.Players {
		cp := p
		s.players[id] = &cp
		if id != s.sid && s.OnPlayerJoined != nil {
			s.OnPlayerJoined(id, p)
		}
	}
	for cid, users := range snap.Computers {
		set := make(map[string]struct{}, len(users))
		for _, u := range users {
			set[u] = struct{}{}
			if s.OnItemUserAdded != nil {
				s.OnItemUserAdded(u, cid)
			}
		}
		s.computers[cid] = set
	}
	for _, msg := range snap.Chat {
		if s.OnChatMessage != nil {
			s.OnChatMessage(msg)
		}
	}
}

func (s *Sync) applyChange(ch state.Change) {
	switch ch.Kind {
	case state.PlayerAdd:
		if ch.Player == nil {
			return
		}
		cp := *ch.Player
		s.players[ch.ID] = &cp
		if ch.ID != s.sid && s.OnPlayerJoined != nil {
			s.OnPlayerJoined(ch.ID, cp)
		}

	case state.PlayerRemove:
		if _, ok := s.players[ch.ID]; !ok {
			return
		}
		delete(s.players, ch.ID)
		if ch.ID != s.sid && s.OnPlayerLeft != nil {
			s.OnPlayerLeft(ch.ID)
		}

	case state.PlayerField:
		p, ok := s.players[ch.ID]
		if !ok {
			return
		}
		applyField(p, ch.Field, ch.Value)
		if ch.ID == s.sid {
			s.applyMyField(ch.Field, ch.Value)
			return
		}
		if s.OnPlayerUpdated != nil {
			s.OnPlayerUpdated(ch.Field, ch.Value, ch.ID)
		}

	case state.ComputerUserAdd:
		set, ok := s.computers[ch.ID]
		if !ok {
			set = make(map[string]struct{})
			s.computers[ch.ID] = set
		}
		if _, dup := set[string(ch.User)]; dup {
			return
		}
		set[string(ch.User)] = struct{}{}
		if s.OnItemUserAdded != nil {
			s.OnItemUserAdded(string(ch.User), ch.ID)
		}

	case state.ComputerUserRemove:
		set, ok := s.computers[ch.ID]
		if !ok {
			return
		}
		if _, present := set[string(ch.User)]; !present {
			return
		}
		delete(set, string(ch.User))
		if s.OnItemUserRemoved != nil {
			s.OnItemUserRemoved(string(ch.User), ch.ID)
		}

	case state.ChatAppend:
		if ch.Message != nil && s.OnChatMessage != nil {
			s.OnChatMessage(*ch.Message)
		}
	}
}

// applyMyField fires the local readiness events exactly once per
// false→true transition.
func (s *Sync) applyMyField(field string, value any) {
	on, _ := value.(bool)
	switch field {
	case "readyToConnect":
		if on && !s.myReady {
			s.myReady = true
			if s.OnMyPlayerReady != nil {
				s.OnMyPlayerReady()
			}
		}
	case "videoConnected":
		if on && !s.myVideo {
			s.myVideo = true
			if s.OnMyVideoConnected != nil {
				s.OnMyVideoConnected()
			}
		}
	}
}

func applyField(p *domain.Player, field string, value any) {
	switch field {
	case "name":
		if v, ok := value.(string); ok {
			p.Name = v
		}
	case "x":
		if v, ok := value.(float64); ok {
			p.X = v
		}
	case "y":
		if v, ok := value.(float64); ok {
			p.Y = v
		}
	case "anim":
		if v, ok := value.(string); ok {
			p.Anim = v
		}
	case "readyToConnect":
		if v, ok := value.(bool); ok {
			p.ReadyToConnect = v
		}
	case "videoConnected":
		if v, ok := value.(bool); ok {
			p.VideoConnected = v
		}
	case "audioEnabled":
		if v, ok := value.(bool); ok {
			p.AudioEnabled = v
		}
	case "videoEnabled":
		if v, ok := value.(bool); ok {
			p.VideoEnabled = v
		}
	}
}
