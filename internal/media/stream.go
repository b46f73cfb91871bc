package media

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
)

// CaptureSource is supplied by the hosting application. It owns the
// actual devices; this package only manages stream lifecycle and
// sharing across sessions.
type CaptureSource interface {
	CaptureUserMedia(ctx context.Context) (*LocalStream, error)
	CaptureDisplay(ctx context.Context) (*LocalStream, error)
}

// LocalStream is a shared local capture. Multiple peer sessions hold
// references to the same stream; the underlying tracks are released
// only after the owner stops it and the last session lets go.
type LocalStream struct {
	mu           sync.Mutex
	tracks       []webrtc.TrackLocal
	audioEnabled bool
	videoEnabled bool
	refs         int
	ownerStopped bool
	released     bool

	// onRelease frees the capture device; set by the CaptureSource.
	onRelease func()
	// onToggle lets the capture adapter pause/resume sample delivery
	// when a track kind is muted locally.
	onToggle func(kind webrtc.RTPCodecType, enabled bool)
}

// NewLocalStream wraps capture tracks. Both kinds start enabled.
func NewLocalStream(tracks []webrtc.TrackLocal, onRelease func(), onToggle func(webrtc.RTPCodecType, bool)) *LocalStream {
	return &LocalStream{
		tracks:       tracks,
		audioEnabled: true,
		videoEnabled: true,
		onRelease:    onRelease,
		onToggle:     onToggle,
	}
}

func (ls *LocalStream) Tracks() []webrtc.TrackLocal {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]webrtc.TrackLocal, len(ls.tracks))
	copy(out, ls.tracks)
	return out
}

func (ls *LocalStream) acquire() {
	ls.mu.Lock()
	ls.refs++
	ls.mu.Unlock()
}

func (ls *LocalStream) release() {
	ls.mu.Lock()
	ls.refs--
	drop := ls.refs <= 0 && ls.ownerStopped && !ls.released
	if drop {
		ls.released = true
	}
	ls.mu.Unlock()
	if drop && ls.onRelease != nil {
		ls.onRelease()
	}
}

// Stop marks the stream as finished by its owner. The device is freed
// immediately if no session still references the tracks, otherwise
// when the last one releases.
func (ls *LocalStream) Stop() {
	ls.mu.Lock()
	ls.ownerStopped = true
	drop := ls.refs <= 0 && !ls.released
	if drop {
		ls.released = true
	}
	ls.mu.Unlock()
	if drop && ls.onRelease != nil {
		ls.onRelease()
	}
}

// SetAudioEnabled toggles the local audio capture. Local-only: remote
// peers learn about mute through the player-props broadcast, because a
// disabled track is not a reliable remote-side signal.
func (ls *LocalStream) SetAudioEnabled(enabled bool) {
	ls.mu.Lock()
	changed := ls.audioEnabled != enabled
	ls.audioEnabled = enabled
	ls.mu.Unlock()
	if changed && ls.onToggle != nil {
		ls.onToggle(webrtc.RTPCodecTypeAudio, enabled)
	}
}

func (ls *LocalStream) SetVideoEnabled(enabled bool) {
	ls.mu.Lock()
	changed := ls.videoEnabled != enabled
	ls.videoEnabled = enabled
	ls.mu.Unlock()
	if changed && ls.onToggle != nil {
		ls.onToggle(webrtc.RTPCodecTypeVideo, enabled)
	}
}

func (ls *LocalStream) AudioEnabled() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.audioEnabled
}

func (ls *LocalStream) VideoEnabled() bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.videoEnabled
}
