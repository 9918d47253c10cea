package memory

import (
	"context"
	"sort"
	"sync"
)

// Presence tracks which users have a live connection to a game. A user may
// hold several connections; they count once.
type Presence struct {
	mu    sync.Mutex
	games map[int64]map[string]int64
}

func NewPresence() *Presence {
	return &Presence{games: make(map[int64]map[string]int64)}
}

// Join registers connID and reports whether it is the user's first
// connection to the game.
func (p *Presence) Join(_ context.Context, gameID, userID int64, connID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns, ok := p.games[gameID]
	if !ok {
		conns = make(map[string]int64)
		p.games[gameID] = conns
	}
	first := countUser(conns, userID) == 0
	conns[connID] = userID
	return first, nil
}

// Leave drops connID and reports whether the user has no connection left.
func (p *Presence) Leave(_ context.Context, gameID, userID int64, connID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	conns := p.games[gameID]
	delete(conns, connID)
	last := countUser(conns, userID) == 0
	if len(conns) == 0 {
		delete(p.games, gameID)
	}
	return last, nil
}

func (p *Presence) Viewers(_ context.Context, gameID int64) ([]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[int64]bool)
	var out []int64
	for _, u := range p.games[gameID] {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func countUser(conns map[string]int64, userID int64) int {
	n := 0
	for _, u := range conns {
		if u == userID {
			n++
		}
	}
	return n
}
