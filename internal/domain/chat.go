package domain

import "time"

// ChatLogCapacity bounds the per-room chat log. Inserting past the cap
// evicts the oldest message first.
const ChatLogCapacity = 100

// ChatMessage stores the author's name as a snapshot taken when the
// message was sent, not a live reference to the player.
type ChatMessage struct {
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
