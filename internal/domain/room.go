package domain

type RoomID string

// RoomOptions is everything the creator supplies. Immutable after
// creation; the password is hashed by the room and never stored raw.
type RoomOptions struct {
	Name        string
	Description string
	Password    string
	AutoDispose bool
}
