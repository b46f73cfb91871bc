package media

// SessionState is the per-peer relationship state.
//
// Outgoing: idle → calling → connected → idle.
// Incoming: idle → ringing → connected → idle.
type SessionState int

const (
	StateIdle SessionState = iota
	StateCalling
	StateRinging
	StateConnected
)

func (s SessionState) String() string {
	switch s {
	case StateCalling:
		return "calling"
	case StateRinging:
		return "ringing"
	case StateConnected:
		return "connected"
	default:
		return "idle"
	}
}

// session is one pairwise peer relationship. Guarded by the owning
// orchestrator's mutex.
type session struct {
	peerID    string // sanitized, map key
	sessionID string // raw room session id, signaling address
	state     SessionState
	pc        PeerConn
	retried   bool
	// stream is the shared local stream this session holds a
	// reference on; released exactly once at teardown.
	stream *LocalStream
}
