package game

import (
	"errors"
	"sync"
)

// ErrEngineBusy is returned when a player already has a round in flight
var ErrEngineBusy = errors.New("a round is already in progress for this player")

// roundGuard admits one round per player at a time
type roundGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newRoundGuard() *roundGuard {
	return &roundGuard{inFlight: make(map[string]struct{})}
}

// acquire marks playerID busy and returns the func that clears it
func (g *roundGuard) acquire(playerID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[playerID]; busy {
		return nil, ErrEngineBusy
	}
	g.inFlight[playerID] = struct{}{}

	return func() {
		g.mu.Lock()
		delete(g.inFlight, playerID)
		g.mu.Unlock()
	}, nil
}

// busy reports whether playerID has a round in flight
func (g *roundGuard) busy(playerID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inFlight[playerID]
	return ok
}
