package domain

import "errors"

const (
	MaxNameLen = 36

	// Default spawn point and idle animation for a freshly joined player.
	SpawnX      = 705
	SpawnY      = 500
	DefaultAnim = "adam_idle_down"
)

var (
	ErrNameTooLong = errors.New("player name too long")
	ErrNameEmpty   = errors.New("player name empty")
)

// SessionID is the opaque per-connection identifier assigned by the
// transport. It is stable for the lifetime of one connection.
type SessionID string

// Player is the authoritative record for one connected session.
type Player struct {
	Name           string  `json:"name"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Anim           string  `json:"anim"`
	ReadyToConnect bool    `json:"readyToConnect"`
	VideoConnected bool    `json:"videoConnected"`
	AudioEnabled   bool    `json:"audioEnabled"`
	VideoEnabled   bool    `json:"videoEnabled"`
}

// NewPlayer avoids ad-hoc struct literals and keeps spawn defaults in
// one place.
func NewPlayer() *Player {
	return &Player{
		X:            SpawnX,
		Y:            SpawnY,
		Anim:         DefaultAnim,
		AudioEnabled: true,
		VideoEnabled: true,
	}
}

func ValidateName(name string) error {
	if len(name) == 0 {
		return ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return ErrNameTooLong
	}
	return nil
}
