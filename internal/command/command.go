// Package command defines the closed set of room state transitions.
// Each variant applies exactly one semantic mutation to the office
// state; missing entities are guard-and-return no-ops so a stale or
// malicious payload can never crash the room loop.
package command

import (
	"time"

	"github.com/pixlverse/office/internal/domain"
	"github.com/pixlverse/office/internal/state"
)

// Command is a sealed sum: only the variants below implement it.
type Command interface{ isCommand() }

type PlayerUpdate struct {
	Session domain.SessionID
	X, Y    float64
	Anim    string
}

type PlayerUpdateName struct {
	Session domain.SessionID
	Name    string
}

type PlayerUpdateProps struct {
	Session domain.SessionID
	Props   map[string]bool
}

type ComputerAddUser struct {
	Session    domain.SessionID
	ComputerID string
}

type ComputerRemoveUser struct {
	Session    domain.SessionID
	ComputerID string
}

type ChatMessageUpdate struct {
	Session domain.SessionID
	Content string
}

func (PlayerUpdate) isCommand()       {}
func (PlayerUpdateName) isCommand()   {}
func (PlayerUpdateProps) isCommand()  {}
func (ComputerAddUser) isCommand()    {}
func (ComputerRemoveUser) isCommand() {}
func (ChatMessageUpdate) isCommand()  {}

// propAllowList restricts client-writable player fields. Anything else
// in an update-props payload is silently dropped.
var propAllowList = map[string]struct{}{
	"audioEnabled": {},
	"videoEnabled": {},
}

// Apply executes one command against the office. Synchronous and
// atomic with respect to the calling room loop.
func Apply(o *state.Office, cmd Command) {
	switch c := cmd.(type) {
	case PlayerUpdate:
		o.SetPlayerPosition(c.Session, c.X, c.Y, c.Anim)

	case PlayerUpdateName:
		// The transport validates decoded payloads too, but commands can
		// be constructed directly, so the domain limit holds here.
		if domain.ValidateName(c.Name) != nil {
			return
		}
		o.SetPlayerName(c.Session, c.Name)

	case PlayerUpdateProps:
		if _, ok := o.Player(c.Session); !ok {
			return
		}
		for key, val := range c.Props {
			if _, allowed := propAllowList[key]; allowed {
				o.SetPlayerFlag(c.Session, key, val)
			}
		}

	case ComputerAddUser:
		comp, ok := o.Computer(c.ComputerID)
		if !ok || comp.Has(c.Session) {
			return
		}
		// A session sits at one computer at a time; connecting to a new
		// one detaches it from the previous one first.
		o.DetachUser(c.Session)
		o.AddComputerUser(c.ComputerID, c.Session)

	case ComputerRemoveUser:
		o.RemoveComputerUser(c.ComputerID, c.Session)

	case ChatMessageUpdate:
		player, ok := o.Player(c.Session)
		if !ok {
			return
		}
		o.AppendChat(domain.ChatMessage{
			Author:    player.Name,
			Content:   c.Content,
			CreatedAt: time.Now(),
		})
	}
}
