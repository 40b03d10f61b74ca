package quiz_test

import (
	"testing"
	"time"

	"lanquiz/internal/quiz"

	"github.com/google/go-cmp/cmp"
)

func TestRosterJoinOrder(t *testing.T) {
	r := quiz.NewRoster()
	r.Add("a", "alice", "")
	r.Add("b", "bob", "")
	r.Add("c", "carol", "")

	if !r.Remove("b") {
		t.Fatal("remove existing player failed")
	}
	if r.Remove("b") {
		t.Fatal("second remove reported success")
	}

	// Join order counters survive removals: a later join never reuses
	// a departed player's slot.
	p := r.Add("d", "dave", "")
	if got := p.JoinOrder(); got != 3 {
		t.Errorf("join order = %d, want 3", got)
	}

	names := []string{}
	for _, p := range r.Players() {
		names = append(names, p.Name())
	}
	want := []string{"alice", "carol", "dave"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("roster order mismatch (-want +got):\n%s", diff)
	}
}

func TestRosterAllAnswered(t *testing.T) {
	r := quiz.NewRoster()
	if r.AllAnswered() {
		t.Error("empty roster reported all answered")
	}

	a := r.Add("a", "alice", "")
	b := r.Add("b", "bob", "")

	if got := r.NumConnected(); got != 2 {
		t.Errorf("connected = %d, want 2", got)
	}
	if r.AllAnswered() {
		t.Error("all answered with no answers")
	}
	r.MarkAnswered("a", time.Second)
	if r.AllAnswered() {
		t.Error("all answered with one pending player")
	}

	// A disconnected player does not block completion.
	b.Disconnect()
	if got := r.NumConnected(); got != 1 {
		t.Errorf("connected = %d after disconnect, want 1", got)
	}
	if !r.AllAnswered() {
		t.Error("disconnected player blocked completion")
	}

	// A fully-disconnected roster never completes: the deadline is the
	// only way forward.
	a.Disconnect()
	if r.AllAnswered() {
		t.Error("fully-disconnected roster reported all answered")
	}

	b.Reconnect()
	if r.AllAnswered() {
		t.Error("reconnected unanswered player did not block completion")
	}
}

func TestRosterMarkAnsweredOnce(t *testing.T) {
	r := quiz.NewRoster()
	r.Add("a", "alice", "")

	if !r.MarkAnswered("a", 2*time.Second) {
		t.Fatal("first answer rejected")
	}
	if r.MarkAnswered("a", 5*time.Second) {
		t.Error("second answer accepted")
	}
	if r.MarkAnswered("ghost", time.Second) {
		t.Error("answer for unknown player accepted")
	}

	p, _ := r.Get("a")
	if got := p.Elapsed(); got != 2*time.Second {
		t.Errorf("recorded elapsed = %v, want 2s", got)
	}

	r.ResetForNewQuestion()
	if p.Answered() {
		t.Error("answered flag survived question reset")
	}
	if got := p.Elapsed(); got != 0 {
		t.Errorf("elapsed survived question reset: %v", got)
	}
}

func TestRosterStandings(t *testing.T) {
	r := quiz.NewRoster()
	a := r.Add("a", "alice", "")
	b := r.Add("b", "bob", "")
	c := r.Add("c", "carol", "")

	a.AddScore(100)
	b.AddScore(250)
	c.AddScore(100)

	ids := []string{}
	for _, st := range r.Standings() {
		ids = append(ids, st.PlayerID)
	}

	// Descending by score, the 100-point tie broken by join order.
	want := []string{"b", "a", "c"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("standings mismatch (-want +got):\n%s", diff)
	}
}

func TestRosterResetScores(t *testing.T) {
	r := quiz.NewRoster()
	a := r.Add("a", "alice", "")
	a.AddScore(120)
	r.MarkAnswered("a", time.Second)

	r.ResetScores()
	if got := a.Score(); got != 0 {
		t.Errorf("score after reset = %d, want 0", got)
	}
	if a.Answered() {
		t.Error("answered flag survived score reset")
	}
}

func TestPlayerAddScoreIgnoresNonPositive(t *testing.T) {
	r := quiz.NewRoster()
	p := r.Add("a", "alice", "")

	p.AddScore(100)
	if got := p.AddScore(0); got != 100 {
		t.Errorf("score after zero delta = %d, want 100", got)
	}
	if got := p.AddScore(-50); got != 100 {
		t.Errorf("score after negative delta = %d, want 100", got)
	}
}
