package quiz

import (
	"sync"
	"time"
)

// Player represents a session-scoped player identity with its mutable
// per-session fields.
//
// Multiple goroutines may invoke methods on a Player simultaneously.
type Player struct {
	id        string
	name      string
	avatar    string
	joinOrder int

	score     int
	connected bool
	ready     bool
	answered  bool
	elapsed   time.Duration
	mu        sync.RWMutex
}

func (p *Player) ID() string {
	return p.id
}

func (p *Player) Name() string {
	return p.name
}

func (p *Player) Avatar() string {
	return p.avatar
}

// JoinOrder returns the player's position in the original join sequence.
// It is the tie-break key for final standings.
func (p *Player) JoinOrder() int {
	return p.joinOrder
}

func (p *Player) Score() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.score
}

// AddScore adds a non-negative delta to the player's score.
func (p *Player) AddScore(delta int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if delta > 0 {
		p.score += delta
	}
	return p.score
}

func (p *Player) ResetScore() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.score = 0
}

func (p *Player) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *Player) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
}

func (p *Player) Reconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
}

func (p *Player) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

func (p *Player) SetReady(ready bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = ready
}

func (p *Player) Answered() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.answered
}

// MarkAnswered sets the answered flag and records the time to answer.
// It returns false if the player already answered the current question,
// in which case nothing changes.
func (p *Player) MarkAnswered(elapsed time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.answered {
		return false
	}
	p.answered = true
	p.elapsed = elapsed
	return true
}

// Elapsed returns the recorded time to answer for the current question.
func (p *Player) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.elapsed
}

// ResetQuestion clears the per-question fields.
func (p *Player) ResetQuestion() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answered = false
	p.elapsed = 0
}
