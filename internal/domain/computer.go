package domain

// NumComputers is the fixed number of shared computers created per
// room. Computer ids are "0".."4".
const NumComputers = 5

// Computer is a shared device. Its connected-user set models who is
// currently sitting at it, which drives screen-share and video
// grouping on the client.
type Computer struct {
	ID    string
	Users map[SessionID]struct{}
}

func NewComputer(id string) *Computer {
	return &Computer{ID: id, Users: make(map[SessionID]struct{})}
}

func (c *Computer) Has(sid SessionID) bool {
	_, ok := c.Users[sid]
	return ok
}
