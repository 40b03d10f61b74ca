package quiz

import (
	"time"

	"lanquiz/api"
)

// PlayerView is a read-only projection of a roster entry.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Avatar    string `json:"avatar,omitempty"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
	Ready     bool   `json:"ready"`
	Answered  bool   `json:"answered"`
}

// Snapshot is a read-only copy of session state handed to the
// presentation collaborator. It never feeds back into the machine.
type Snapshot struct {
	SessionID      string        `json:"sessionId"`
	Phase          Phase         `json:"phase"`
	Countdown      int           `json:"countdown,omitempty"`
	QuestionNumber int           `json:"questionNumber,omitempty"`
	TotalQuestions int           `json:"totalQuestions,omitempty"`
	Question       *api.Question `json:"question,omitempty"`
	TimeRemaining  time.Duration `json:"timeRemaining,omitempty"`
	Reveal         bool          `json:"reveal"`
	Players        []PlayerView  `json:"players"`
}

// snapshot builds a Snapshot. Only the Run goroutine may call it.
func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		Phase:     s.phase,
		Reveal:    s.reveal,
		Players:   make([]PlayerView, 0, s.roster.Len()),
	}

	if s.phase == PhaseCountdown {
		snap.Countdown = s.countdown
	}
	if s.phase == PhasePlaying || s.phase == PhaseQuestionResult {
		q := s.questions[s.qIndex]
		if !s.reveal {
			// Snapshots feed the info endpoint; the answer stays
			// host-only until the reveal.
			q.CorrectIndex = -1
			q.Explanation = nil
		}
		snap.Question = &q
		snap.QuestionNumber = s.qIndex + 1
		snap.TotalQuestions = len(s.questions)
	}
	if s.phase == PhasePlaying {
		if remaining := s.deadline.Sub(s.clock.Now()); remaining > 0 {
			snap.TimeRemaining = remaining
		}
	}

	for _, p := range s.roster.Players() {
		snap.Players = append(snap.Players, PlayerView{
			ID:        p.ID(),
			Name:      p.Name(),
			Avatar:    p.Avatar(),
			Score:     p.Score(),
			Connected: p.Connected(),
			Ready:     p.Ready(),
			Answered:  p.Answered(),
		})
	}

	return snap
}
