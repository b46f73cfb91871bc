package media

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestStreamReleasesOnlyAfterOwnerStopAndLastRef(t *testing.T) {
	released := 0
	ls := NewLocalStream(nil, func() { released++ }, nil)

	ls.acquire()
	ls.acquire()
	ls.release()
	assert.Zero(t, released, "owner has not stopped yet")

	ls.Stop()
	assert.Zero(t, released, "one session still holds the stream")

	ls.release()
	assert.Equal(t, 1, released)
}

func TestStreamStopWithNoRefsReleasesImmediately(t *testing.T) {
	released := 0
	ls := NewLocalStream(nil, func() { released++ }, nil)
	ls.Stop()
	assert.Equal(t, 1, released)

	// Repeated stops must not double-free the device.
	ls.Stop()
	assert.Equal(t, 1, released)
}

func TestStreamToggleFiresOnChangeOnly(t *testing.T) {
	var toggles []string
	ls := NewLocalStream(nil, nil, func(kind webrtc.RTPCodecType, enabled bool) {
		toggles = append(toggles, kind.String())
	})

	assert.True(t, ls.AudioEnabled())
	ls.SetAudioEnabled(true) // no change
	ls.SetAudioEnabled(false)
	ls.SetVideoEnabled(false)
	ls.SetVideoEnabled(false) // no change

	assert.Equal(t, []string{"audio", "video"}, toggles)
	assert.False(t, ls.AudioEnabled())
	assert.False(t, ls.VideoEnabled())
}
