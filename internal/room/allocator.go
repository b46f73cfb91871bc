package room

import (
	"math/rand/v2"
	"sync"
)

const (
	idCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	idLength  = 12
	idRetries = 8
)

// IDAllocator hands out unique room ids for the server's lifetime.
// Collision retries are bounded; running out means the id space is
// effectively saturated and the caller should fail the creation.
type IDAllocator struct {
	mu   sync.Mutex
	used map[string]struct{}
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{used: make(map[string]struct{})}
}

func (a *IDAllocator) Allocate() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for range idRetries {
		id := randomID()
		if _, taken := a.used[id]; !taken {
			a.used[id] = struct{}{}
			return id, nil
		}
	}
	return "", ErrIDExhausted
}

// Reserve claims a caller-chosen id, such as the public lobby's.
func (a *IDAllocator) Reserve(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, taken := a.used[id]; taken {
		return false
	}
	a.used[id] = struct{}{}
	return true
}

func (a *IDAllocator) Release(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.used, id)
}

func randomID() string {
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idCharset[rand.IntN(len(idCharset))]
	}
	return string(b)
}
