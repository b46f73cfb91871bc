package state

import "github.com/pixlverse/office/internal/domain"

// ChangeKind discriminates journal entries. The set is closed: every
// mutation the office can undergo maps to exactly one kind.
type ChangeKind string

const (
	PlayerAdd          ChangeKind = "player_add"
	PlayerRemove       ChangeKind = "player_remove"
	PlayerField        ChangeKind = "player_field"
	ComputerUserAdd    ChangeKind = "computer_user_add"
	ComputerUserRemove ChangeKind = "computer_user_remove"
	ChatAppend         ChangeKind = "chat_append"
)

// Change is one recorded mutation, carrying enough to replay it on a
// client mirror without a full resync.
//
//   - PlayerAdd: ID = session id, Player = initial snapshot
//   - PlayerRemove: ID = session id
//   - PlayerField: ID = session id, Field + Value = the single field
//   - ComputerUserAdd/Remove: ID = computer id, User = session id
//   - ChatAppend: Message set
type Change struct {
	Kind    ChangeKind          `json:"kind"`
	ID      string              `json:"id,omitempty"`
	Field   string              `json:"field,omitempty"`
	Value   any                 `json:"value,omitempty"`
	User    domain.SessionID    `json:"user,omitempty"`
	Player  *domain.Player      `json:"player,omitempty"`
	Message *domain.ChatMessage `json:"message,omitempty"`
}
