// Package protocol defines the wire surface between office clients and
// the room server: message type constants, the JSON envelope, and the
// validated payload shapes.
package protocol

import (
	"encoding/json"

	"github.com/pixlverse/office/internal/state"
)

// Inbound message types (client → room).
const (
	MsgConnectToComputer      = "connect_to_computer"
	MsgDisconnectFromComputer = "disconnect_from_computer"
	MsgStopScreenShare        = "stop_screen_share"
	MsgUpdatePlayer           = "update_player"
	MsgUpdatePlayerName       = "update_player_name"
	MsgUpdatePlayerProps      = "update_player_props"
	MsgReadyToConnect         = "ready_to_connect"
	MsgVideoConnected         = "video_connected"
	MsgDisconnectStream       = "disconnect_stream"
	MsgAddChatMessage         = "add_chat_message"
	MsgWebRTCSignal           = "webrtc_signal"
)

// Outbound message types (room → client). StopScreenShare,
// DisconnectStream and WebRTCSignal reuse the inbound names; direction
// disambiguates them.
const (
	MsgRoomData  = "send_room_data"
	MsgSnapshot  = "snapshot"
	MsgStateDiff = "state_diff"
	MsgError     = "error"
)

// Error codes carried by MsgError. Forbidden is the authorization
// rejection and is kept distinct from generic failures.
const (
	CodeForbidden = "forbidden"
	CodeError     = "error"
)

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p,omitempty"`
}

// Inbound payloads.

type ConnectToComputer struct {
	ComputerID string `json:"computerId" validate:"required"`
}

type DisconnectFromComputer struct {
	ComputerID string `json:"computerId" validate:"required"`
}

type StopScreenShare struct {
	ComputerID string `json:"computerId" validate:"required"`
}

type UpdatePlayer struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Anim string  `json:"anim"`
}

type UpdatePlayerName struct {
	Name string `json:"name" validate:"required,max=36"`
}

type UpdatePlayerProps struct {
	Props map[string]bool `json:"props" validate:"required"`
}

type DisconnectStream struct {
	ClientID string `json:"clientId" validate:"required"`
}

type AddChatMessage struct {
	Content string `json:"content" validate:"required,max=500"`
}

type WebRTCSignal struct {
	To   string          `json:"to" validate:"required"`
	Data json.RawMessage `json:"data" validate:"required"`
}

// Outbound payloads.

// RoomData is the one-shot join handshake. SessionID tells the joiner
// which snapshot entry is its own; the id is minted server-side after
// the upgrade, so the handshake is the only way the client learns it.
type RoomData struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SessionID   string `json:"sessionId"`
}

type StateDiff struct {
	Changes []state.Change `json:"changes"`
}

// StopScreenShareNotice and DisconnectStreamNotice carry the id of the
// session that triggered them, so the receiver knows which peer
// session to tear down.
type StopScreenShareNotice struct {
	SenderID string `json:"senderId"`
}

type DisconnectStreamNotice struct {
	SenderID string `json:"senderId"`
}

type WebRTCSignalNotice struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

type ErrorNotice struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}
