package quiz

import (
	"sort"
	"sync"
	"time"

	"lanquiz/api"
)

// Roster tracks the set of session players in join order together with
// their per-question answer status.
//
// Multiple goroutines may invoke methods on a Roster simultaneously.
type Roster struct {
	players []*Player
	byID    map[string]*Player
	joined  int
	mu      sync.RWMutex
}

func NewRoster() *Roster {
	return &Roster{byID: map[string]*Player{}}
}

// Add creates a player and appends it to the roster. The join order is
// assigned from a monotonic counter so it survives removals.
func (r *Roster) Add(id, name, avatar string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := &Player{
		id:        id,
		name:      name,
		avatar:    avatar,
		joinOrder: r.joined,
		connected: true,
	}
	r.joined++
	r.players = append(r.players, p)
	r.byID[id] = p

	return p
}

// Remove deletes a player from the roster entirely.
// It returns false if the player does not exist.
func (r *Roster) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	for i, q := range r.players {
		if q == p {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	return true
}

// Get finds a player by id. A second return value specifies if the
// player exists.
func (r *Roster) Get(id string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// MarkAnswered records a first answer submission for a player.
// It returns false if the player does not exist or already answered.
func (r *Roster) MarkAnswered(id string, elapsed time.Duration) bool {
	r.mu.RLock()
	p, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return p.MarkAnswered(elapsed)
}

// AllAnswered reports whether every connected player has answered the
// current question. Disconnected players do not block it. An empty or
// fully-disconnected roster reports false so a deadline still applies.
func (r *Roster) AllAnswered() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connected := 0
	for _, p := range r.players {
		if !p.Connected() {
			continue
		}
		connected++
		if !p.Answered() {
			return false
		}
	}
	return connected > 0
}

// ResetForNewQuestion clears every player's per-question fields.
func (r *Roster) ResetForNewQuestion() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		p.ResetQuestion()
	}
}

// ResetScores zeroes every player's score and per-question fields.
func (r *Roster) ResetScores() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		p.ResetScore()
		p.ResetQuestion()
	}
}

// Len returns the number of players in the roster, connected or not.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// NumConnected returns the number of connected players.
func (r *Roster) NumConnected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.players {
		if p.Connected() {
			n++
		}
	}
	return n
}

// Players returns the roster in join order.
func (r *Roster) Players() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Player(nil), r.players...)
}

// SortedByScoreDescending returns the roster sorted by score, ties
// broken by original join order.
func (r *Roster) SortedByScoreDescending() []*Player {
	sorted := r.Players()
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].Score(), sorted[j].Score()
		if si != sj {
			return si > sj
		}
		return sorted[i].JoinOrder() < sorted[j].JoinOrder()
	})
	return sorted
}

// Standings converts the sorted roster to its wire representation.
func (r *Roster) Standings() []api.Standing {
	sorted := r.SortedByScoreDescending()
	standings := make([]api.Standing, 0, len(sorted))
	for _, p := range sorted {
		standings = append(standings, api.Standing{
			PlayerID: p.ID(),
			Name:     p.Name(),
			Avatar:   p.Avatar(),
			Score:    p.Score(),
		})
	}
	return standings
}
