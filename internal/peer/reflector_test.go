package peer_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"lanquiz/api"
	"lanquiz/internal/peer"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []api.PlayerMessage[json.RawMessage]
}

func (s *fakeSender) Send(_ context.Context, b []byte) error {
	msg, err := api.DecodePlayerMessage(b)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) messages() []api.PlayerMessage[json.RawMessage] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.PlayerMessage[json.RawMessage](nil), s.sent...)
}

func apply[T any](t *testing.T, r *peer.Reflector, msgType api.GameMessageType, data T) {
	t.Helper()
	b, err := api.EncodeGameMessage(msgType, data)
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	msg, err := api.DecodeGameMessage(b)
	if err != nil {
		t.Fatalf("decode %s: %v", msgType, err)
	}
	r.Apply(msg)
}

func newReflector(t *testing.T) (*peer.Reflector, *fakeSender, *clock.Mock) {
	t.Helper()
	sender := &fakeSender{}
	mock := clock.NewMock()
	r := peer.NewReflector(peer.ReflectorOptions{Sender: sender, Clock: mock})
	return r, sender, mock
}

func joinReflector(t *testing.T, r *peer.Reflector) {
	t.Helper()
	apply(t, r, api.GameMessageJoined, api.JoinedData{PlayerID: "p1", RejoinToken: "tok"})
	apply(t, r, api.GameMessagePlayerJoined, api.PlayerJoinedData{PlayerID: "p1", Name: "alice"})
	apply(t, r, api.GameMessagePlayerJoined, api.PlayerJoinedData{PlayerID: "p2", Name: "bob"})
}

func TestReflectorProjectsSession(t *testing.T) {
	r, _, _ := newReflector(t)
	joinReflector(t, r)

	v := r.View()
	if v.PlayerID != "p1" || v.RejoinToken != "tok" {
		t.Errorf("identity not recorded: %+v", v)
	}
	if len(v.Players) != 2 {
		t.Fatalf("got %d players, want 2", len(v.Players))
	}

	// A duplicate playerJoined is idempotent.
	apply(t, r, api.GameMessagePlayerJoined, api.PlayerJoinedData{PlayerID: "p2", Name: "bob"})
	if got := len(r.View().Players); got != 2 {
		t.Errorf("duplicate join grew roster to %d", got)
	}

	apply(t, r, api.GameMessagePlayerUpdate, api.PlayerUpdateData{PlayerID: "p2", Action: "disconnect"})
	if r.View().Players[1].Connected {
		t.Error("disconnect update not applied")
	}
	apply(t, r, api.GameMessagePlayerUpdate, api.PlayerUpdateData{PlayerID: "p2", Action: "leave"})
	if got := len(r.View().Players); got != 1 {
		t.Errorf("leave update kept roster at %d", got)
	}
}

func TestReflectorQuestionFlow(t *testing.T) {
	r, sender, mock := newReflector(t)
	joinReflector(t, r)

	apply(t, r, api.GameMessageGameStarting, api.GameStartingData{Countdown: 3})
	apply(t, r, api.GameMessageNewQuestion, api.NewQuestionData{
		Text: "first", Options: []string{"a", "b", "c", "d"},
		QuestionNumber: 1, TotalQuestions: 2, TimeLimit: 15,
	})

	v := r.View()
	if v.Question == nil || v.Question.QuestionNumber != 1 {
		t.Fatalf("question not projected: %+v", v.Question)
	}
	if v.Selected != -1 || v.Answered {
		t.Errorf("answer state not reset: %+v", v)
	}

	// Local selection is once-only and carries the locally measured
	// elapsed time.
	mock.Add(2 * time.Second)
	if err := r.SelectAnswer(context.Background(), 1); err != nil {
		t.Fatalf("select answer: %v", err)
	}
	if err := r.SelectAnswer(context.Background(), 2); err != peer.ErrAlreadyAnswered {
		t.Fatalf("got %v, want ErrAlreadyAnswered", err)
	}

	sent := sender.messages()
	if len(sent) != 1 || sent[0].Type != api.PlayerMessageAnswer {
		t.Fatalf("sent = %+v, want one answer", sent)
	}
	answer, err := api.DecodeJSON[api.AnswerData](sent[0].Data)
	if err != nil {
		t.Fatalf("decode answer: %v", err)
	}
	want := api.AnswerData{PlayerID: "p1", QuestionNumber: 1, AnswerIndex: 1, ElapsedTime: 2}
	if diff := cmp.Diff(want, answer); diff != "" {
		t.Errorf("answer mismatch (-want +got):\n%s", diff)
	}

	// The host's verdict lands on the local player only.
	apply(t, r, api.GameMessageAnswerResult, api.AnswerResultData{
		PlayerID: "p1", Correct: true, NewScore: 143,
	})
	v = r.View()
	if v.LastCorrect == nil || !*v.LastCorrect {
		t.Error("verdict not recorded")
	}
	if v.Players[0].Score != 143 {
		t.Errorf("score = %d, want 143", v.Players[0].Score)
	}
}

func TestReflectorRevealAndGameEnd(t *testing.T) {
	r, _, _ := newReflector(t)
	joinReflector(t, r)

	apply(t, r, api.GameMessageGameStarting, api.GameStartingData{Countdown: 3})
	apply(t, r, api.GameMessageNewQuestion, api.NewQuestionData{
		Text: "first", Options: []string{"a", "b", "c", "d"},
		QuestionNumber: 1, TotalQuestions: 1, TimeLimit: 15,
	})

	explanation := "because"
	apply(t, r, api.GameMessageQuestionResult, api.QuestionResultData{
		QuestionNumber: 1, CorrectIndex: 2, Explanation: &explanation,
		Standings: []api.Standing{
			{PlayerID: "p2", Name: "bob", Score: 150},
			{PlayerID: "p1", Name: "alice", Score: 0},
		},
	})

	v := r.View()
	if !v.Reveal || v.CorrectIndex != 2 {
		t.Errorf("reveal not projected: %+v", v)
	}
	if v.Explanation == nil || *v.Explanation != explanation {
		t.Error("explanation not projected")
	}
	if v.Players[1].Score != 150 {
		t.Errorf("standings score not applied: %+v", v.Players)
	}

	// No selection is possible during the reveal.
	if err := r.SelectAnswer(context.Background(), 0); err != peer.ErrNoActiveQuestion {
		t.Errorf("got %v, want ErrNoActiveQuestion", err)
	}

	final := []api.Standing{
		{PlayerID: "p2", Name: "bob", Score: 150},
		{PlayerID: "p1", Name: "alice", Score: 0},
	}
	apply(t, r, api.GameMessageGameEnded, api.GameEndedData{FinalScores: final})

	v = r.View()
	if !v.Ended {
		t.Fatal("game end not projected")
	}
	if diff := cmp.Diff(final, v.FinalScores); diff != "" {
		t.Errorf("final scores mismatch (-want +got):\n%s", diff)
	}

	// The view freezes after the end: further messages are dropped.
	apply(t, r, api.GameMessagePlayerJoined, api.PlayerJoinedData{PlayerID: "p3", Name: "carol"})
	if got := len(r.View().Players); got != 2 {
		t.Errorf("post-game message mutated the view, %d players", got)
	}
}

func TestReflectorFollowsRestart(t *testing.T) {
	r, _, _ := newReflector(t)
	joinReflector(t, r)

	apply(t, r, api.GameMessageGameStarting, api.GameStartingData{Countdown: 3})
	apply(t, r, api.GameMessageNewQuestion, api.NewQuestionData{
		Text: "first", Options: []string{"a", "b", "c", "d"},
		QuestionNumber: 1, TotalQuestions: 1, TimeLimit: 15,
	})
	apply(t, r, api.GameMessageGameEnded, api.GameEndedData{FinalScores: []api.Standing{
		{PlayerID: "p1", Name: "alice", Score: 150},
		{PlayerID: "p2", Name: "bob", Score: 0},
	}})

	// The frozen view still drops roster noise.
	apply(t, r, api.GameMessagePlayerJoined, api.PlayerJoinedData{PlayerID: "p3", Name: "carol"})
	if got := len(r.View().Players); got != 2 {
		t.Fatalf("frozen view grew to %d players", got)
	}

	// The host keeps the roster and restarts: gameStarting thaws the
	// view and the next question flows through again.
	apply(t, r, api.GameMessageGameStarting, api.GameStartingData{Countdown: 3})
	v := r.View()
	if v.Ended {
		t.Fatal("view still ended after restart")
	}
	if v.FinalScores != nil {
		t.Errorf("final scores kept across restart: %+v", v.FinalScores)
	}
	for _, p := range v.Players {
		if p.Score != 0 {
			t.Errorf("player %s score = %d after restart, want 0", p.Name, p.Score)
		}
	}

	apply(t, r, api.GameMessageNewQuestion, api.NewQuestionData{
		Text: "again", Options: []string{"a", "b", "c", "d"},
		QuestionNumber: 1, TotalQuestions: 1, TimeLimit: 15,
	})
	v = r.View()
	if v.Question == nil || v.Question.Text != "again" {
		t.Fatalf("restarted question not projected: %+v", v.Question)
	}
}

func TestReflectorDisplayTickNeverTransitions(t *testing.T) {
	r, _, mock := newReflector(t)
	joinReflector(t, r)

	apply(t, r, api.GameMessageGameStarting, api.GameStartingData{Countdown: 3})
	apply(t, r, api.GameMessageNewQuestion, api.NewQuestionData{
		Text: "first", Options: []string{"a", "b", "c", "d"},
		QuestionNumber: 1, TotalQuestions: 1, TimeLimit: 3,
	})

	for i := 0; i < 3; i++ {
		mock.Add(time.Second)
	}

	// The local countdown ran out but only the host ends a question.
	v := r.View()
	if v.TimeRemaining != 0 {
		t.Errorf("time remaining = %v, want 0", v.TimeRemaining)
	}
	if v.Question == nil || v.Reveal {
		t.Error("display tick transitioned local state")
	}
}

func TestReflectorRequiresJoin(t *testing.T) {
	r, _, _ := newReflector(t)

	if err := r.SelectAnswer(context.Background(), 0); err != peer.ErrNotJoined {
		t.Errorf("SelectAnswer: got %v, want ErrNotJoined", err)
	}
	if err := r.Ready(context.Background()); err != peer.ErrNotJoined {
		t.Errorf("Ready: got %v, want ErrNotJoined", err)
	}
	if err := r.Leave(context.Background()); err != peer.ErrNotJoined {
		t.Errorf("Leave: got %v, want ErrNotJoined", err)
	}
}
