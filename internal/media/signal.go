package media

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

type SignalKind string

const (
	SignalOffer     SignalKind = "offer"
	SignalAnswer    SignalKind = "answer"
	SignalCandidate SignalKind = "candidate"
)

// SignalPayload is the call-negotiation message relayed between two
// sessions through the room transport. Screen marks the screen-share
// session so the receiver routes it past the camera orchestrator.
type SignalPayload struct {
	Kind      SignalKind               `json:"kind"`
	Screen    bool                     `json:"screen,omitempty"`
	SDP       string                   `json:"sdp,omitempty"`
	SDPType   string                   `json:"sdpType,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

// ParseSignal decodes a relayed payload; the host routes it to the
// camera orchestrator or the screen-share manager on Screen.
func ParseSignal(data json.RawMessage) (SignalPayload, error) {
	var p SignalPayload
	err := json.Unmarshal(data, &p)
	return p, err
}

// Signaler delivers a SignalPayload to another session. The default
// implementation sends through the room's relay; tests wire pairs of
// orchestrators directly.
type Signaler interface {
	SendSignal(toSessionID string, payload SignalPayload) error
}

// SignalerFunc adapts a function to Signaler.
type SignalerFunc func(toSessionID string, payload SignalPayload) error

func (f SignalerFunc) SendSignal(to string, payload SignalPayload) error {
	return f(to, payload)
}

func offerPayload(sdp webrtc.SessionDescription, screen bool) SignalPayload {
	return SignalPayload{Kind: SignalOffer, Screen: screen, SDP: sdp.SDP, SDPType: sdp.Type.String()}
}

func answerPayload(sdp webrtc.SessionDescription, screen bool) SignalPayload {
	return SignalPayload{Kind: SignalAnswer, Screen: screen, SDP: sdp.SDP, SDPType: sdp.Type.String()}
}

func (p SignalPayload) description() webrtc.SessionDescription {
	t := webrtc.NewSDPType(p.SDPType)
	return webrtc.SessionDescription{Type: t, SDP: p.SDP}
}
