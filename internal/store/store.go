// Package store persists completed session results. Saving is
// fire-and-forget from the session's point of view: a failure is
// logged by the caller and never affects game state.
package store

import (
	"context"
	"sync"
	"time"
)

// PlayerResult is one player's final line in a completed session.
type PlayerResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Score  int    `json:"score"`
}

// Record captures a completed session, players sorted by final rank.
type Record struct {
	SessionID     string         `json:"sessionId"`
	Players       []PlayerResult `json:"players"`
	QuestionCount int            `json:"questionCount"`
	FinishedAt    time.Time      `json:"finishedAt"`
}

// Store saves completed sessions. Called exactly once per game.
type Store interface {
	SaveCompletedSession(ctx context.Context, rec Record) error
}

// Memory is an in-process store, the default when no backend is
// configured.
//
// Multiple goroutines may invoke methods on a Memory simultaneously.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) SaveCompletedSession(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of everything saved so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}
