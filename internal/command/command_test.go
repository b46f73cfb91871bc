package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixlverse/office/internal/domain"
	"github.com/pixlverse/office/internal/state"
)

func newOfficeWith(t *testing.T, sids ...string) *state.Office {
	t.Helper()
	o := state.NewOffice()
	for _, sid := range sids {
		o.AddPlayer(domain.SessionID(sid))
	}
	o.Drain()
	return o
}

func TestPlayerUpdate(t *testing.T) {
	o := newOfficeWith(t, "s1")
	Apply(o, PlayerUpdate{Session: "s1", X: 10, Y: 20, Anim: "adam_run_right"})

	p, ok := o.Player("s1")
	require.True(t, ok)
	assert.Equal(t, 10.0, p.X)
	assert.Equal(t, 20.0, p.Y)
	assert.Equal(t, "adam_run_right", p.Anim)
}

func TestPlayerUpdatePropsAllowList(t *testing.T) {
	o := newOfficeWith(t, "s1")
	Apply(o, PlayerUpdateProps{Session: "s1", Props: map[string]bool{
		"audioEnabled":   false,
		"videoEnabled":   false,
		"readyToConnect": false, // not settable through props
		"bogus":          true,
	}})

	p, _ := o.Player("s1")
	assert.False(t, p.AudioEnabled)
	assert.False(t, p.VideoEnabled)
	assert.False(t, p.ReadyToConnect, "readyToConnect is not settable through props")

	kinds := map[string]int{}
	for _, ch := range o.Drain() {
		kinds[ch.Field]++
	}
	assert.Equal(t, map[string]int{"audioEnabled": 1, "videoEnabled": 1}, kinds)
}

func TestPlayerUpdateNameEnforcesDomainLimits(t *testing.T) {
	o := newOfficeWith(t, "s1")
	Apply(o, PlayerUpdateName{Session: "s1", Name: "alice"})

	p, _ := o.Player("s1")
	require.Equal(t, "alice", p.Name)
	o.Drain()

	Apply(o, PlayerUpdateName{Session: "s1", Name: ""})
	Apply(o, PlayerUpdateName{Session: "s1", Name: strings.Repeat("x", domain.MaxNameLen+1)})

	p, _ = o.Player("s1")
	assert.Equal(t, "alice", p.Name, "invalid names are dropped")
	assert.Nil(t, o.Drain())
}

func TestComputerAddUserEnforcesSingleMembership(t *testing.T) {
	o := newOfficeWith(t, "s1")
	Apply(o, ComputerAddUser{Session: "s1", ComputerID: "0"})
	Apply(o, ComputerAddUser{Session: "s1", ComputerID: "3"})

	c0, _ := o.Computer("0")
	c3, _ := o.Computer("3")
	assert.False(t, c0.Has("s1"))
	assert.True(t, c3.Has("s1"))
}

func TestComputerAddUserIdempotent(t *testing.T) {
	o := newOfficeWith(t, "s1")
	Apply(o, ComputerAddUser{Session: "s1", ComputerID: "0"})
	o.Drain()
	Apply(o, ComputerAddUser{Session: "s1", ComputerID: "0"})
	assert.Nil(t, o.Drain(), "re-adding to the same computer journals nothing")
}

func TestComputerCommandsIgnoreUnknownComputer(t *testing.T) {
	o := newOfficeWith(t, "s1")
	Apply(o, ComputerAddUser{Session: "s1", ComputerID: "99"})
	Apply(o, ComputerRemoveUser{Session: "s1", ComputerID: "99"})
	assert.Nil(t, o.Drain())
}

func TestChatMessageSnapshotsAuthorName(t *testing.T) {
	o := newOfficeWith(t, "s1")
	o.SetPlayerName("s1", "alice")
	o.Drain()

	Apply(o, ChatMessageUpdate{Session: "s1", Content: "hello"})
	o.SetPlayerName("s1", "renamed")

	log := o.ChatLog()
	require.Len(t, log, 1)
	assert.Equal(t, "alice", log[0].Author)
	assert.Equal(t, "hello", log[0].Content)
	assert.False(t, log[0].CreatedAt.IsZero())
}

func TestChatMessageIgnoredForUnknownSession(t *testing.T) {
	o := newOfficeWith(t)
	Apply(o, ChatMessageUpdate{Session: "ghost", Content: "boo"})
	assert.Empty(t, o.ChatLog())
}
