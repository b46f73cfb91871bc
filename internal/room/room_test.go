package room

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixlverse/office/internal/domain"
	"github.com/pixlverse/office/internal/protocol"
	"github.com/pixlverse/office/internal/state"
)

type fakeConn struct {
	ch     chan []byte
	closed atomic.Bool
}

func newFakeConn(buf int) *fakeConn { return &fakeConn{ch: make(chan []byte, buf)} }

func (f *fakeConn) TrySend(b []byte) error {
	select {
	case f.ch <- b:
		return nil
	default:
		return errors.New("backpressure")
	}
}

func (f *fakeConn) Close() { f.closed.Store(true) }

// nextOf reads frames until one of the wanted type arrives.
func (f *fakeConn) nextOf(t *testing.T, typ string) protocol.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case b := <-f.ch:
			env, err := protocol.DecodeEnvelope(b)
			require.NoError(t, err)
			if env.T == typ {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", typ)
		}
	}
}

func (f *fakeConn) expectNoFrame(t *testing.T, typ string) {
	t.Helper()
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case b := <-f.ch:
			env, err := protocol.DecodeEnvelope(b)
			require.NoError(t, err)
			require.NotEqual(t, typ, env.T)
		case <-timeout:
			return
		}
	}
}

func startRoom(t *testing.T, opts domain.RoomOptions) *Room {
	t.Helper()
	r, err := New("test-room", opts)
	require.NoError(t, err)
	go r.Run()
	t.Cleanup(func() {
		r.Stop()
		select {
		case <-r.Done():
		case <-time.After(2 * time.Second):
			t.Error("room did not dispose on cleanup")
		}
	})
	return r
}

func sendFrame(t *testing.T, r *Room, sid domain.SessionID, typ string, payload any) {
	t.Helper()
	raw, err := protocol.Encode(typ, payload)
	require.NoError(t, err)
	r.Inbound(sid, raw)
}

func decodeDiff(t *testing.T, env protocol.Envelope) []state.Change {
	t.Helper()
	p, err := protocol.DecodePayload[protocol.StateDiff](env)
	require.NoError(t, err)
	return p.Changes
}

func TestJoinSendsRoomDataThenSnapshot(t *testing.T) {
	r := startRoom(t, domain.RoomOptions{Name: "HQ", Description: "main floor"})
	conn := newFakeConn(16)
	require.NoError(t, r.Join("s1", conn))

	env := conn.nextOf(t, protocol.MsgRoomData)
	rd, err := protocol.DecodePayload[protocol.RoomData](env)
	require.NoError(t, err)
	assert.Equal(t, "test-room", rd.ID)
	assert.Equal(t, "HQ", rd.Name)
	assert.Equal(t, "s1", rd.SessionID, "handshake discloses the joiner's own session id")

	env = conn.nextOf(t, protocol.MsgSnapshot)
	snap, err := protocol.DecodePayload[state.Snapshot](env)
	require.NoError(t, err)
	assert.Contains(t, snap.Players, "s1")
	assert.Len(t, snap.Computers, domain.NumComputers)
	assert.Equal(t, 1, r.MemberCount())
}

func TestJoinBroadcastsPlayerAddToExistingMembers(t *testing.T) {
	r := startRoom(t, domain.RoomOptions{})
	c1 := newFakeConn(16)
	require.NoError(t, r.Join("s1", c1))
	c1.nextOf(t, protocol.MsgSnapshot)

	c2 := newFakeConn(16)
	require.NoError(t, r.Join("s2", c2))

	changes := decodeDiff(t, c1.nextOf(t, protocol.MsgStateDiff))
	require.Len(t, changes, 1)
	assert.Equal(t, state.PlayerAdd, changes[0].Kind)
	assert.Equal(t, "s2", changes[0].ID)

	// The joiner sees itself through the snapshot, not a diff.
	snap, err := protocol.DecodePayload[state.Snapshot](c2.nextOf(t, protocol.MsgSnapshot))
	require.NoError(t, err)
	assert.Len(t, snap.Players, 2)
	c2.expectNoFrame(t, protocol.MsgStateDiff)
}

func TestAuthenticate(t *testing.T) {
	r := startRoom(t, domain.RoomOptions{Password: "hunter2"})

	assert.NoError(t, r.Authenticate("hunter2"))
	assert.ErrorIs(t, r.Authenticate("wrong"), ErrForbidden)
	assert.ErrorIs(t, r.Authenticate(""), ErrForbidden)
	// Rejection happens before Join, so no member state exists.
	assert.Equal(t, 0, r.MemberCount())

	open := startRoom(t, domain.RoomOptions{})
	assert.NoError(t, open.Authenticate(""))
	assert.NoError(t, open.Authenticate("ignored"))
}

func TestLeaveClearsPlayerAndComputerMembership(t *testing.T) {
	r := startRoom(t, domain.RoomOptions{})
	c1 := newFakeConn(16)
	c2 := newFakeConn(16)
	require.NoError(t, r.Join("s1", c1))
	require.NoError(t, r.Join("s2", c2))
	c1.nextOf(t, protocol.MsgStateDiff) // s2's player_add
	c2.nextOf(t, protocol.MsgSnapshot)

	sendFrame(t, r, "s2", protocol.MsgConnectToComputer, protocol.ConnectToComputer{ComputerID: "1"})
	changes := decodeDiff(t, c1.nextOf(t, protocol.MsgStateDiff))
	require.Len(t, changes, 1)
	assert.Equal(t, state.ComputerUserAdd, changes[0].Kind)

	r.Leave("s2")
	kinds := map[state.ChangeKind]bool{}
	for _, ch := range decodeDiff(t, c1.nextOf(t, protocol.MsgStateDiff)) {
		kinds[ch.Kind] = true
	}
	assert.True(t, kinds[state.PlayerRemove], "player entry removed")
	assert.True(t, kinds[state.ComputerUserRemove], "computer membership scrubbed")
	assert.True(t, c2.closed.Load())
	assert.Equal(t, 1, r.MemberCount())
}

func TestSwitchingComputerDetachesFromPrevious(t *testing.T) {
	r := startRoom(t, domain.RoomOptions{})
	c1 := newFakeConn(16)
	c2 := newFakeConn(16)
	require.NoError(t, r.Join("s1", c1))
	require.NoError(t, r.Join("s2", c2))
	c1.nextOf(t, protocol.MsgStateDiff) // s2's player_add

	sendFrame(t, r, "s2", protocol.MsgConnectToComputer, protocol.ConnectToComputer{ComputerID: "0"})
	c1.nextOf(t, protocol.MsgStateDiff)

	sendFrame(t, r, "s2", protocol.MsgConnectToComputer, protocol.ConnectToComputer{ComputerID: "2"})
	changes := decodeDiff(t, c1.nextOf(t, protocol.MsgStateDiff))
	require.Len(t, changes, 2)
	assert.Equal(t, state.ComputerUserRemove, changes[0].Kind)
	assert.Equal(t, "0", changes[0].ID)
	assert.Equal(t, state.ComputerUserAdd, changes[1].Kind)
	assert.Equal(t, "2", changes[1].ID)
}

func TestStopScreenShareFansOutToComputerUsersOnly(t *testing.T) {
	r := startRoom(t, domain.RoomOptions{})
	conns := map[domain.SessionID]*fakeConn{}
	for _, sid := range []domain.SessionID{"s1", "s2", "s3"} {
		c := newFakeConn(16)
		conns[sid] = c
		require.NoError(t, r.Join(sid, c))
		c.nextOf(t, protocol.MsgSnapshot)
	}

	// s1 and s2 share computer 0, s3 is elsewhere.
	sendFrame(t, r, "s1", protocol.MsgConnectToComputer, protocol.ConnectToComputer{ComputerID: "0"})
	sendFrame(t, r, "s2", protocol.MsgConnectToComputer, protocol.ConnectToComputer{ComputerID: "0"})
	sendFrame(t, r, "s3", protocol.MsgConnectToComputer, protocol.ConnectToComputer{ComputerID: "4"})

	sendFrame(t, r, "s1", protocol.MsgStopScreenShare, protocol.StopScreenShare{ComputerID: "0"})

	env := conns["s2"].nextOf(t, protocol.MsgStopScreenShare)
	notice, err := protocol.DecodePayload[protocol.StopScreenShareNotice](env)
	require.NoError(t, err)
	assert.Equal(t, "s1", notice.SenderID)

	conns["s1"].expectNoFrame(t, protocol.MsgStopScreenShare)
	conns["s3"].expectNoFrame(t, protocol.MsgStopScreenShare)
}

func TestWebRTCSignalIsRelayedToTarget(t *testing.T) {
	r := startRoom(t, domain.RoomOptions{})
	c1 := newFakeConn(16)
	c2 := newFakeConn(16)
	require.NoError(t, r.Join("s1", c1))
	require.NoError(t, r.Join("s2", c2))

	sendFrame(t, r, "s1", protocol.MsgWebRTCSignal, protocol.WebRTCSignal{
		To:   "s2",
		Data: []byte(`{"kind":"offer","sdp":"v=0"}`),
	})

	env := c2.nextOf(t, protocol.MsgWebRTCSignal)
	sig, err := protocol.DecodePayload[protocol.WebRTCSignalNotice](env)
	require.NoError(t, err)
	assert.Equal(t, "s1", sig.From)
	assert.JSONEq(t, `{"kind":"offer","sdp":"v=0"}`, string(sig.Data))
	c1.expectNoFrame(t, protocol.MsgWebRTCSignal)
}

func TestChatBroadcastIncludesSender(t *testing.T) {
	r := startRoom(t, domain.RoomOptions{})
	c1 := newFakeConn(16)
	require.NoError(t, r.Join("s1", c1))
	c1.nextOf(t, protocol.MsgSnapshot)

	sendFrame(t, r, "s1", protocol.MsgUpdatePlayerName, protocol.UpdatePlayerName{Name: "alice"})
	c1.nextOf(t, protocol.MsgStateDiff)

	sendFrame(t, r, "s1", protocol.MsgAddChatMessage, protocol.AddChatMessage{Content: "hello"})
	changes := decodeDiff(t, c1.nextOf(t, protocol.MsgStateDiff))
	require.Len(t, changes, 1)
	assert.Equal(t, state.ChatAppend, changes[0].Kind)
	require.NotNil(t, changes[0].Message)
	assert.Equal(t, "alice", changes[0].Message.Author)
	assert.Equal(t, "hello", changes[0].Message.Content)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	r := startRoom(t, domain.RoomOptions{})
	c1 := newFakeConn(16)
	require.NoError(t, r.Join("s1", c1))
	c1.nextOf(t, protocol.MsgSnapshot)

	r.Inbound("s1", []byte("{broken"))
	sendFrame(t, r, "s1", "no_such_type", nil)
	sendFrame(t, r, "s1", protocol.MsgUpdatePlayerName, protocol.UpdatePlayerName{Name: ""})

	c1.expectNoFrame(t, protocol.MsgStateDiff)
	assert.Equal(t, 1, r.MemberCount())
}

func TestSlowSessionIsDropped(t *testing.T) {
	r := startRoom(t, domain.RoomOptions{})
	fast := newFakeConn(16)
	slow := newFakeConn(0)
	require.NoError(t, r.Join("s1", fast))
	require.NoError(t, r.Join("slow", slow))
	fast.nextOf(t, protocol.MsgSnapshot)

	sendFrame(t, r, "s1", protocol.MsgUpdatePlayer, protocol.UpdatePlayer{X: 1, Y: 2, Anim: "adam_run_left"})

	require.Eventually(t, func() bool { return r.MemberCount() == 1 },
		2*time.Second, 10*time.Millisecond, "unresponsive session should be evicted")
	assert.True(t, slow.closed.Load())
}

func TestAutoDisposeWhenLastMemberLeaves(t *testing.T) {
	r, err := New("ephemeral", domain.RoomOptions{AutoDispose: true})
	require.NoError(t, err)
	go r.Run()

	conn := newFakeConn(16)
	require.NoError(t, r.Join("s1", conn))
	r.Leave("s1")

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("room did not auto-dispose")
	}
	assert.Equal(t, Disposed, r.Phase())
	assert.ErrorIs(t, r.Join("s2", newFakeConn(1)), ErrDisposed)
}

func TestStopIsIdempotentAndClosesSessions(t *testing.T) {
	r, err := New("stopped-twice", domain.RoomOptions{})
	require.NoError(t, err)
	go r.Run()

	conn := newFakeConn(16)
	require.NoError(t, r.Join("s1", conn))

	r.Stop()
	r.Stop()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("room did not dispose")
	}
	assert.True(t, conn.closed.Load())
	assert.Equal(t, 0, r.MemberCount())
}
