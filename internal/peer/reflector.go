// Package peer implements the non-host side of a quiz session: a
// websocket client plus a reflector that projects received GameMessages
// onto a read-only local view and forwards local input to the host.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"lanquiz/api"

	"github.com/benbjohnson/clock"
)

var (
	ErrNoActiveQuestion = errors.New("no active question")
	ErrAlreadyAnswered  = errors.New("already answered this question")
	ErrNotJoined        = errors.New("not joined yet")
)

// Sender delivers one encoded PlayerMessage to the host.
type Sender interface {
	Send(ctx context.Context, b []byte) error
}

// PlayerView is the peer-local projection of another player.
type PlayerView struct {
	ID        string
	Name      string
	Avatar    string
	Score     int
	Connected bool
}

// QuestionView is the peer-local projection of the current question.
// The correct index only becomes known at reveal time.
type QuestionView struct {
	Text           string
	Options        []string
	QuestionNumber int
	TotalQuestions int
	TimeLimit      time.Duration
}

// View is a copy of the reflector's state for presentation. It is
// reconstructed solely from received GameMessages.
type View struct {
	PlayerID    string
	RejoinToken string
	Players     []PlayerView

	Started   bool
	Countdown int

	Question      *QuestionView
	TimeRemaining time.Duration
	Answered      bool
	Selected      int
	LastCorrect   *bool

	Reveal       bool
	CorrectIndex int
	Explanation  *string

	Ended       bool
	FinalScores []api.Standing

	LastError string
}

// Reflector applies received GameMessages to a local view with no
// independent decision-making; its timer is purely presentational and
// never triggers a state transition.
//
// Multiple goroutines may invoke methods on a Reflector simultaneously.
type Reflector struct {
	sender   Sender
	clock    clock.Clock
	onChange func(View)

	mu         sync.Mutex
	view       View
	questionAt time.Time
	ticker     *clock.Timer
}

// ReflectorOptions configures a Reflector.
type ReflectorOptions struct {
	Sender Sender
	Clock  clock.Clock
	// OnChange is invoked with a fresh view copy after every applied
	// message. Optional.
	OnChange func(View)
}

func NewReflector(opts ReflectorOptions) *Reflector {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Reflector{
		sender:   opts.Sender,
		clock:    opts.Clock,
		onChange: opts.OnChange,
		view:     View{Selected: -1},
	}
}

// View returns a copy of the current local state.
func (r *Reflector) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyViewLocked()
}

func (r *Reflector) copyViewLocked() View {
	v := r.view
	v.Players = append([]PlayerView(nil), r.view.Players...)
	v.FinalScores = append([]api.Standing(nil), r.view.FinalScores...)
	return v
}

// Apply projects one received GameMessage onto the local view.
// After gameEnded the view is frozen, except that a gameStarting thaws
// it: the host keeps the roster across a restart and the peer follows.
func (r *Reflector) Apply(msg api.GameMessage[json.RawMessage]) {
	r.mu.Lock()

	if r.view.Ended && msg.Type != api.GameMessageGameStarting {
		r.mu.Unlock()
		return
	}

	switch msg.Type {
	case api.GameMessageJoined:
		r.applyJoined(msg.Data)
	case api.GameMessagePlayerJoined:
		r.applyPlayerJoined(msg.Data)
	case api.GameMessagePlayerUpdate:
		r.applyPlayerUpdate(msg.Data)
	case api.GameMessageGameStarting:
		r.applyGameStarting(msg.Data)
	case api.GameMessageNewQuestion:
		r.applyNewQuestion(msg.Data)
	case api.GameMessageAnswerResult:
		r.applyAnswerResult(msg.Data)
	case api.GameMessageQuestionResult:
		r.applyQuestionResult(msg.Data)
	case api.GameMessageGameEnded:
		r.applyGameEnded(msg.Data)
	case api.GameMessageError:
		r.applyError(msg.Data)
	default:
		slog.Debug("ignore unknown game message", slog.String("type", string(msg.Type)))
	}

	r.notifyLocked()
	r.mu.Unlock()
}

func (r *Reflector) notifyLocked() {
	if r.onChange != nil {
		r.onChange(r.copyViewLocked())
	}
}

func (r *Reflector) applyJoined(data json.RawMessage) {
	d, err := api.DecodeJSON[api.JoinedData](data)
	if err != nil {
		return
	}
	r.view.PlayerID = d.PlayerID
	r.view.RejoinToken = d.RejoinToken
}

func (r *Reflector) applyPlayerJoined(data json.RawMessage) {
	d, err := api.DecodeJSON[api.PlayerJoinedData](data)
	if err != nil {
		return
	}
	for _, p := range r.view.Players {
		if p.ID == d.PlayerID {
			return
		}
	}
	r.view.Players = append(r.view.Players, PlayerView{
		ID:        d.PlayerID,
		Name:      d.Name,
		Avatar:    d.Avatar,
		Connected: true,
	})
}

func (r *Reflector) applyPlayerUpdate(data json.RawMessage) {
	d, err := api.DecodeJSON[api.PlayerUpdateData](data)
	if err != nil {
		return
	}
	for i, p := range r.view.Players {
		if p.ID != d.PlayerID {
			continue
		}
		switch d.Action {
		case "disconnect":
			r.view.Players[i].Connected = false
		case "reconnect":
			r.view.Players[i].Connected = true
		case "leave":
			r.view.Players = append(r.view.Players[:i], r.view.Players[i+1:]...)
		}
		return
	}
}

func (r *Reflector) applyGameStarting(data json.RawMessage) {
	d, err := api.DecodeJSON[api.GameStartingData](data)
	if err != nil {
		return
	}
	r.view.Started = true
	r.view.Countdown = d.Countdown
	r.view.Ended = false
	r.view.FinalScores = nil
	r.view.Question = nil
	r.view.Reveal = false
	for i := range r.view.Players {
		r.view.Players[i].Score = 0
	}
}

func (r *Reflector) applyNewQuestion(data json.RawMessage) {
	d, err := api.DecodeJSON[api.NewQuestionData](data)
	if err != nil {
		return
	}

	limit := time.Duration(d.TimeLimit * float64(time.Second))
	r.view.Countdown = 0
	r.view.Question = &QuestionView{
		Text:           d.Text,
		Options:        d.Options,
		QuestionNumber: d.QuestionNumber,
		TotalQuestions: d.TotalQuestions,
		TimeLimit:      limit,
	}
	r.view.TimeRemaining = limit
	r.view.Answered = false
	r.view.Selected = -1
	r.view.LastCorrect = nil
	r.view.Reveal = false
	r.view.Explanation = nil
	r.questionAt = r.clock.Now()

	r.armDisplayTickLocked()
}

// armDisplayTickLocked drives the presentational countdown. It only
// redraws the remaining time; the host decides when the question ends.
func (r *Reflector) armDisplayTickLocked() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
	r.ticker = r.clock.AfterFunc(time.Second, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.view.Question == nil || r.view.Reveal || r.view.Ended {
			return
		}
		remaining := r.view.Question.TimeLimit - r.clock.Now().Sub(r.questionAt)
		if remaining < 0 {
			remaining = 0
		}
		r.view.TimeRemaining = remaining
		r.notifyLocked()
		if remaining > 0 {
			r.armDisplayTickLocked()
		}
	})
}

func (r *Reflector) applyAnswerResult(data json.RawMessage) {
	d, err := api.DecodeJSON[api.AnswerResultData](data)
	if err != nil {
		return
	}
	if d.PlayerID == r.view.PlayerID {
		r.view.LastCorrect = &d.Correct
	}
	for i, p := range r.view.Players {
		if p.ID == d.PlayerID {
			r.view.Players[i].Score = d.NewScore
			return
		}
	}
}

func (r *Reflector) applyQuestionResult(data json.RawMessage) {
	d, err := api.DecodeJSON[api.QuestionResultData](data)
	if err != nil {
		return
	}
	r.view.Reveal = true
	r.view.CorrectIndex = d.CorrectIndex
	r.view.Explanation = d.Explanation
	for _, st := range d.Standings {
		for i, p := range r.view.Players {
			if p.ID == st.PlayerID {
				r.view.Players[i].Score = st.Score
				break
			}
		}
	}
}

func (r *Reflector) applyGameEnded(data json.RawMessage) {
	d, err := api.DecodeJSON[api.GameEndedData](data)
	if err != nil {
		return
	}
	r.view.Ended = true
	r.view.FinalScores = d.FinalScores
	r.view.Question = nil
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

func (r *Reflector) applyError(data json.RawMessage) {
	d, err := api.DecodeJSON[api.ErrorData](data)
	if err != nil {
		return
	}
	r.view.LastError = d.Message
}

// SelectAnswer forwards a local answer selection to the host exactly
// once per question. Repeated selection is rejected locally without
// sending a duplicate message.
func (r *Reflector) SelectAnswer(ctx context.Context, answerIndex int) error {
	r.mu.Lock()
	if r.view.PlayerID == "" {
		r.mu.Unlock()
		return ErrNotJoined
	}
	if r.view.Question == nil || r.view.Reveal || r.view.Ended {
		r.mu.Unlock()
		return ErrNoActiveQuestion
	}
	if r.view.Answered {
		r.mu.Unlock()
		return ErrAlreadyAnswered
	}

	r.view.Answered = true
	r.view.Selected = answerIndex
	playerID := r.view.PlayerID
	questionNumber := r.view.Question.QuestionNumber
	elapsed := r.clock.Now().Sub(r.questionAt)
	r.notifyLocked()
	r.mu.Unlock()

	b, err := api.EncodePlayerMessage(api.PlayerMessageAnswer, api.AnswerData{
		PlayerID:       playerID,
		QuestionNumber: questionNumber,
		AnswerIndex:    answerIndex,
		ElapsedTime:    elapsed.Seconds(),
	})
	if err != nil {
		return err
	}
	return r.sender.Send(ctx, b)
}

// Join announces this peer to the host. A rejoin token from an earlier
// connection re-binds the peer to its existing player.
func (r *Reflector) Join(ctx context.Context, name, avatar, rejoinToken string) error {
	b, err := api.EncodePlayerMessage(api.PlayerMessageJoin, api.JoinData{
		Name:        name,
		Avatar:      avatar,
		RejoinToken: rejoinToken,
	})
	if err != nil {
		return err
	}
	return r.sender.Send(ctx, b)
}

// Ready signals lobby readiness.
func (r *Reflector) Ready(ctx context.Context) error {
	r.mu.Lock()
	playerID := r.view.PlayerID
	r.mu.Unlock()
	if playerID == "" {
		return ErrNotJoined
	}

	b, err := api.EncodePlayerMessage(api.PlayerMessageReady, api.ReadyData{PlayerID: playerID})
	if err != nil {
		return err
	}
	return r.sender.Send(ctx, b)
}

// Leave announces an explicit departure.
func (r *Reflector) Leave(ctx context.Context) error {
	r.mu.Lock()
	playerID := r.view.PlayerID
	r.mu.Unlock()
	if playerID == "" {
		return ErrNotJoined
	}

	b, err := api.EncodePlayerMessage(api.PlayerMessageLeave, api.LeaveData{PlayerID: playerID})
	if err != nil {
		return err
	}
	return r.sender.Send(ctx, b)
}
