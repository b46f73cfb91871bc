package state

import "github.com/pixlverse/office/internal/domain"

// Snapshot is the full-state payload sent once to a new joiner.
// Subsequent updates arrive only as diffs.
type Snapshot struct {
	Players   map[string]domain.Player `json:"players"`
	Computers map[string][]string      `json:"computers"`
	Chat      []domain.ChatMessage     `json:"chat"`
}

func (o *Office) Snapshot() Snapshot {
	s := Snapshot{
		Players:   make(map[string]domain.Player, len(o.players)),
		Computers: make(map[string][]string, len(o.computers)),
		Chat:      o.ChatLog(),
	}
	for sid, p := range o.players {
		s.Players[string(sid)] = *p
	}
	for id, c := range o.computers {
		users := make([]string, 0, len(c.Users))
		for sid := range c.Users {
			users = append(users, string(sid))
		}
		s.Computers[id] = users
	}
	return s
}
