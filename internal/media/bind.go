package media

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/pixlverse/office/internal/client"
)

// Bind subscribes the media layer to the sync layer's domain events:
// computer co-presence drives call setup and teardown, directed room
// notices drive the remote-initiated cleanup paths, and relayed
// signaling payloads are demultiplexed onto the camera orchestrator or
// the screen-share manager. Handlers already registered on the sync
// layer keep firing; Bind chains after them.
func Bind(s *client.Sync, orch *Orchestrator, share *ScreenShare) {
	// The session id is read lazily: when Bind runs right after Dial it
	// is still empty and only the room-data handshake fills it in.

	prevAdded := s.OnItemUserAdded
	s.OnItemUserAdded = func(playerID, computerID string) {
		if prevAdded != nil {
			prevAdded(playerID, computerID)
		}
		if playerID == s.MySessionID() {
			return
		}
		myComputer, ok := s.ComputerOf(s.MySessionID())
		if !ok || myComputer != computerID {
			return
		}
		// Call only once both sides are flagged ready; the other side
		// mirrors this check, so exactly one of the two calls wins the
		// race and the answerer handles the other direction.
		if p, ok := s.Player(playerID); ok && p.ReadyToConnect {
			orch.ConnectToPeer(playerID)
		}
		share.UserJoined(playerID)
	}

	prevUpdated := s.OnPlayerUpdated
	s.OnPlayerUpdated = func(field string, value any, id string) {
		if prevUpdated != nil {
			prevUpdated(field, value, id)
		}
		// A peer seated at my computer before flagging ready produces no
		// co-presence edge later, so the readiness flip itself has to
		// place the call.
		if field != "readyToConnect" {
			return
		}
		if on, _ := value.(bool); !on {
			return
		}
		myComputer, ok := s.ComputerOf(s.MySessionID())
		if !ok {
			return
		}
		if peerComputer, ok := s.ComputerOf(id); !ok || peerComputer != myComputer {
			return
		}
		orch.ConnectToPeer(id)
		share.UserJoined(id)
	}

	prevRemoved := s.OnItemUserRemoved
	s.OnItemUserRemoved = func(playerID, computerID string) {
		if prevRemoved != nil {
			prevRemoved(playerID, computerID)
		}
		if playerID == s.MySessionID() {
			return
		}
		orch.DisconnectPeer(playerID)
		orch.DisconnectAnswered(playerID)
		share.UserLeft(playerID)
	}

	prevLeft := s.OnPlayerLeft
	s.OnPlayerLeft = func(id string) {
		if prevLeft != nil {
			prevLeft(id)
		}
		orch.DisconnectPeer(id)
		orch.DisconnectAnswered(id)
		share.UserLeft(id)
	}

	prevStop := s.OnStopScreenShare
	s.OnStopScreenShare = func(senderID string) {
		if prevStop != nil {
			prevStop(senderID)
		}
		share.PresenterStopped(senderID)
	}

	prevDisc := s.OnDisconnectStream
	s.OnDisconnectStream = func(senderID string) {
		if prevDisc != nil {
			prevDisc(senderID)
		}
		orch.DisconnectAnswered(senderID)
	}

	prevSig := s.OnWebRTCSignal
	s.OnWebRTCSignal = func(from string, data json.RawMessage) {
		if prevSig != nil {
			prevSig(from, data)
		}
		payload, err := ParseSignal(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "media").Str("from", from).Msg("bad signal payload")
			return
		}
		if payload.Screen {
			share.HandleSignal(from, payload)
		} else {
			orch.HandleSignal(from, payload)
		}
	}
}

// SyncSignaler routes signal payloads through the room transport's
// relay. It is the default Signaler outside tests.
func SyncSignaler(s *client.Sync) Signaler {
	return SignalerFunc(func(to string, payload SignalPayload) error {
		return s.SendWebRTCSignal(to, payload)
	})
}
