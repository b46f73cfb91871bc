package state

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixlverse/office/internal/domain"
)

func TestOfficeSeedsFixedComputers(t *testing.T) {
	o := NewOffice()
	for i := 0; i < domain.NumComputers; i++ {
		_, ok := o.Computer(fmt.Sprintf("%d", i))
		assert.True(t, ok, "computer %d should exist", i)
	}
	_, ok := o.Computer("5")
	assert.False(t, ok)
}

func TestAddPlayerJournalsSnapshot(t *testing.T) {
	o := NewOffice()
	p := o.AddPlayer("s1")

	require.NotNil(t, p)
	assert.Equal(t, float64(domain.SpawnX), p.X)
	assert.Equal(t, float64(domain.SpawnY), p.Y)
	assert.Equal(t, domain.DefaultAnim, p.Anim)

	changes := o.Drain()
	require.Len(t, changes, 1)
	assert.Equal(t, PlayerAdd, changes[0].Kind)
	assert.Equal(t, "s1", changes[0].ID)
	require.NotNil(t, changes[0].Player)

	// Drain clears the journal.
	assert.Nil(t, o.Drain())
}

func TestSetPlayerPositionJournalsOnlyChangedFields(t *testing.T) {
	o := NewOffice()
	o.AddPlayer("s1")
	o.Drain()

	o.SetPlayerPosition("s1", 100, domain.SpawnY, domain.DefaultAnim)
	changes := o.Drain()
	require.Len(t, changes, 1)
	assert.Equal(t, PlayerField, changes[0].Kind)
	assert.Equal(t, "x", changes[0].Field)
	assert.Equal(t, 100.0, changes[0].Value)
}

func TestSettersNoOpOnMissingPlayer(t *testing.T) {
	o := NewOffice()
	o.SetPlayerPosition("ghost", 1, 2, "walk")
	o.SetPlayerName("ghost", "nobody")
	o.SetPlayerFlag("ghost", "readyToConnect", true)
	assert.Nil(t, o.Drain())
}

func TestSetPlayerFlagIgnoresUnknownField(t *testing.T) {
	o := NewOffice()
	o.AddPlayer("s1")
	o.Drain()

	o.SetPlayerFlag("s1", "name", true)
	assert.Nil(t, o.Drain())
}

func TestSetPlayerFlagNoOpWhenUnchanged(t *testing.T) {
	o := NewOffice()
	o.AddPlayer("s1")
	o.Drain()

	o.SetPlayerFlag("s1", "readyToConnect", true)
	require.Len(t, o.Drain(), 1)
	o.SetPlayerFlag("s1", "readyToConnect", true)
	assert.Nil(t, o.Drain())
}

func TestComputerUserAddRemove(t *testing.T) {
	o := NewOffice()
	o.AddComputerUser("0", "s1")
	o.AddComputerUser("0", "s1") // duplicate add is silent
	o.RemoveComputerUser("0", "s1")
	o.RemoveComputerUser("0", "s1") // duplicate remove is silent
	o.RemoveComputerUser("missing", "s1")

	changes := o.Drain()
	require.Len(t, changes, 2)
	assert.Equal(t, ComputerUserAdd, changes[0].Kind)
	assert.Equal(t, ComputerUserRemove, changes[1].Kind)
	assert.Equal(t, domain.SessionID("s1"), changes[0].User)
}

func TestDetachUserScansAllComputers(t *testing.T) {
	o := NewOffice()
	o.AddComputerUser("1", "s1")
	o.AddComputerUser("3", "s1")
	o.Drain()

	o.DetachUser("s1")
	changes := o.Drain()
	require.Len(t, changes, 2)
	for _, ch := range changes {
		assert.Equal(t, ComputerUserRemove, ch.Kind)
	}
	for i := 0; i < domain.NumComputers; i++ {
		c, _ := o.Computer(fmt.Sprintf("%d", i))
		assert.False(t, c.Has("s1"))
	}
}

func TestChatLogEvictsOldestAtCapacity(t *testing.T) {
	o := NewOffice()
	for i := 0; i < domain.ChatLogCapacity; i++ {
		o.AppendChat(domain.ChatMessage{Author: "a", Content: fmt.Sprintf("m%d", i)})
	}
	require.Len(t, o.ChatLog(), domain.ChatLogCapacity)

	o.AppendChat(domain.ChatMessage{Author: "a", Content: "newest"})
	chat := o.ChatLog()
	require.Len(t, chat, domain.ChatLogCapacity)
	assert.Equal(t, "m1", chat[0].Content, "oldest message evicted")
	assert.Equal(t, "newest", chat[len(chat)-1].Content)
}

func TestSnapshotReflectsCurrentState(t *testing.T) {
	o := NewOffice()
	o.AddPlayer("s1")
	o.SetPlayerName("s1", "alice")
	o.AddComputerUser("2", "s1")
	o.AppendChat(domain.ChatMessage{Author: "alice", Content: "hi"})

	snap := o.Snapshot()
	require.Contains(t, snap.Players, "s1")
	assert.Equal(t, "alice", snap.Players["s1"].Name)
	assert.Equal(t, []string{"s1"}, snap.Computers["2"])
	require.Len(t, snap.Chat, 1)
}
