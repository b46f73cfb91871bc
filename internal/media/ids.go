// Package media maintains the peer-to-peer call sessions for one
// office client: a camera/mic session per co-present peer, and a
// separate one-to-many screen-share session. Peer identifiers derive
// deterministically from room session ids; the room transport relays
// the SDP/ICE exchange between them.
package media

// ScreenSuffix distinguishes a participant's screen-share peer from
// its camera peer, so both can exist at once without colliding.
const ScreenSuffix = "-ss"

// SanitizePeerID maps a room session id onto the restricted charset
// the signaling layer accepts: every character outside [0-9a-zA-Z] is
// replaced by 'G'. The transform is deterministic, so both sides of a
// call derive the same peer id independently.
func SanitizePeerID(sessionID string) string {
	b := []byte(sessionID)
	for i, c := range b {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		default:
			b[i] = 'G'
		}
	}
	return string(b)
}

// ScreenPeerID derives the screen-share peer id for a session.
func ScreenPeerID(sessionID string) string {
	return SanitizePeerID(sessionID) + ScreenSuffix
}
