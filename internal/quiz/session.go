package quiz

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"lanquiz/api"
	"lanquiz/internal/store"
	"lanquiz/internal/transport"

	"github.com/benbjohnson/clock"
	"github.com/lithammer/shortuuid/v3"
)

type Phase int

const (
	PhaseMenu Phase = iota
	PhaseLobby
	PhaseCountdown
	PhasePlaying
	PhaseQuestionResult
	PhaseGameOver
)

var phaseToString = map[Phase]string{
	PhaseMenu:           "menu",
	PhaseLobby:          "lobby",
	PhaseCountdown:      "countdown",
	PhasePlaying:        "playing",
	PhaseQuestionResult: "questionResult",
	PhaseGameOver:       "gameOver",
}

func (p Phase) String() string {
	if s, ok := phaseToString[p]; ok {
		return s
	}
	return "unknown"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Config is the immutable configuration of a single game run.
type Config struct {
	NumQuestions     int
	TimePerQuestion  time.Duration
	PointsForCorrect int
	BonusForSpeed    bool
	Categories       []string
}

func (c Config) withDefaults() Config {
	if c.NumQuestions <= 0 {
		c.NumQuestions = 5
	}
	if c.TimePerQuestion <= 0 {
		c.TimePerQuestion = 15 * time.Second
	}
	if c.PointsForCorrect <= 0 {
		c.PointsForCorrect = 100
	}
	return c
}

// Transport is the session's view of the peer transport. Delivery is
// reliable-ordered per peer; no ordering is assumed across peers.
type Transport interface {
	StartAdvertising(ctx context.Context) error
	StopAdvertising()
	Broadcast(ctx context.Context, b []byte) map[string]error
	Send(ctx context.Context, b []byte, peer string) error
	DisconnectPeers()
	Events() <-chan transport.Event
}

const (
	countdownTicks    = 3
	countdownInterval = time.Second
	revealWindow      = 3 * time.Second
	sendTimeout       = 5 * time.Second
	persistTimeout    = 5 * time.Second
)

// Options configures a Session.
type Options struct {
	// ID identifies the session. Default is a generated short id.
	ID string

	// MaxPlayers limits the roster size. Default is 8, negative means
	// no limit.
	MaxPlayers int

	Transport Transport
	Bank      *Bank

	// Store receives the final roster once per completed game.
	// Optional.
	Store store.Store

	// TokenSecret salts the rejoin token key.
	TokenSecret []byte

	// Clock drives every timer. Default is the wall clock.
	Clock clock.Clock

	// Rand shuffles the question sequence. Default is a time-seeded
	// source.
	Rand *rand.Rand

	// OnChange is invoked with a fresh state snapshot after every
	// mutation, on the session's processing goroutine. It must not
	// block. Optional.
	OnChange func(Snapshot)
}

// Session is the host-authoritative state machine driving a quiz run.
// All state transitions execute on a single processing goroutine owned
// by Run; public operations post onto it and are therefore serialized.
type Session struct {
	id          string
	maxPlayers  int
	transport   Transport
	bank        *Bank
	store       store.Store
	clock       clock.Clock
	rng         *rand.Rand
	onChange    func(Snapshot)
	tokenKey    []byte
	logger      *slog.Logger

	inbox  chan func()
	outbox chan func()
	done   chan struct{}

	// Owned by the Run goroutine.
	ctx           context.Context
	phase         Phase
	cfg           Config
	roster        *Roster
	questions     []api.Question
	qIndex        int
	countdown     int
	reveal        bool
	questionStart time.Time
	deadline      time.Time
	deadlineTimer *clock.Timer

	// epoch invalidates armed timers: every transition that makes
	// outstanding timers stale bumps it, and a timer fire for an old
	// epoch is dropped.
	epoch int

	// peers maps transport peer ids to player ids and back. Player
	// identity lives in the protocol, never in transport peer naming.
	peers       map[string]string
	playerPeers map[string]string
}

// NewSession builds a session in the menu phase. Call Run to start its
// processing loop before invoking any operation.
func NewSession(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = shortuuid.New()[:5]
	}
	if opts.MaxPlayers == 0 {
		opts.MaxPlayers = 8
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(opts.Clock.Now().UnixNano()))
	}

	return &Session{
		id:          opts.ID,
		maxPlayers:  opts.MaxPlayers,
		transport:   opts.Transport,
		bank:        opts.Bank,
		store:       opts.Store,
		clock:       opts.Clock,
		rng:         opts.Rand,
		onChange:    opts.OnChange,
		tokenKey:    newTokenKey(opts.TokenSecret, opts.ID, opts.Clock.Now()),
		logger:      slog.With(slog.String("session_id", opts.ID)),
		inbox:       make(chan func(), 32),
		outbox:      make(chan func(), 256),
		done:        make(chan struct{}),
		phase:       PhaseMenu,
		roster:      NewRoster(),
		peers:       map[string]string{},
		playerPeers: map[string]string{},
	}
}

// ID returns the session unique id.
func (s *Session) ID() string {
	return s.id
}

// Run consumes the command inbox and transport events until ctx is
// cancelled. It is the only goroutine that mutates session state.
func (s *Session) Run(ctx context.Context) {
	s.ctx = ctx
	defer close(s.done)

	go s.sendLoop(ctx)

	events := s.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.inbox:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handleEvent(ev)
		}
	}
}

// post schedules fn on the processing goroutine. It reports false if
// the session has shut down.
func (s *Session) post(fn func()) bool {
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) call(fn func() error) error {
	errc := make(chan error, 1)
	if !s.post(func() { errc <- fn() }) {
		return ErrNotHosting
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return ErrNotHosting
	}
}

// StartHosting transitions menu -> lobby, clears the roster and begins
// advertising for joins. A transport failure leaves the session in the
// menu phase.
func (s *Session) StartHosting() error {
	return s.call(s.startHosting)
}

// StartGame draws the question sequence and transitions lobby ->
// countdown. It fails with ErrNoPlayers on an empty roster.
func (s *Session) StartGame(cfg Config) error {
	return s.call(func() error { return s.startGame(cfg) })
}

// SubmitAnswer records an answer submission for a player. It is
// idempotent per player per question, and a submission outside an
// active question, or for a question that is no longer the current
// one, is silently discarded.
func (s *Session) SubmitAnswer(playerID string, questionNumber, answerIndex int, elapsed time.Duration) {
	s.post(func() { s.submitAnswer(playerID, questionNumber, answerIndex, elapsed) })
}

// Restart transitions gameOver -> lobby keeping the roster.
func (s *Session) Restart() error {
	return s.call(s.restartGame)
}

// ReturnToMenu aborts the session: cancels all timers, disconnects
// peers and clears all state.
func (s *Session) ReturnToMenu() {
	s.call(func() error { s.returnToMenu(); return nil })
}

// Snapshot returns a copy of the current state, serialized behind any
// in-flight transitions.
func (s *Session) Snapshot() Snapshot {
	snapc := make(chan Snapshot, 1)
	if !s.post(func() { snapc <- s.snapshot() }) {
		return Snapshot{Phase: PhaseMenu, SessionID: s.id}
	}
	select {
	case snap := <-snapc:
		return snap
	case <-s.done:
		return Snapshot{Phase: PhaseMenu, SessionID: s.id}
	}
}

func (s *Session) startHosting() error {
	if s.phase != PhaseMenu {
		return ErrAlreadyHosting
	}
	if err := s.transport.StartAdvertising(s.ctx); err != nil {
		return err
	}

	s.roster = NewRoster()
	s.peers = map[string]string{}
	s.playerPeers = map[string]string{}
	s.phase = PhaseLobby
	s.notify()

	return nil
}

func (s *Session) startGame(cfg Config) error {
	switch s.phase {
	case PhaseLobby:
	case PhaseMenu:
		return ErrNotHosting
	default:
		return ErrGameInProgress
	}
	if s.roster.Len() == 0 {
		return ErrNoPlayers
	}

	cfg = cfg.withDefaults()
	questions := s.bank.Select(cfg.NumQuestions, cfg.Categories, s.rng)
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	if len(questions) < cfg.NumQuestions {
		s.logger.Warn("fewer questions available than requested",
			slog.Int("requested", cfg.NumQuestions),
			slog.Int("available", len(questions)))
	}

	s.cfg = cfg
	s.questions = questions
	s.qIndex = 0
	s.roster.ResetScores()
	for _, p := range s.roster.Players() {
		p.SetReady(false)
	}

	s.epoch++
	s.phase = PhaseCountdown
	s.countdown = countdownTicks
	s.broadcast(api.GameMessageGameStarting, api.GameStartingData{Countdown: countdownTicks})
	s.armTimer(countdownInterval, s.countdownTick)
	s.notify()

	return nil
}

func (s *Session) countdownTick() {
	s.countdown--
	if s.countdown <= 0 {
		s.presentNextQuestion()
		return
	}
	s.armTimer(countdownInterval, s.countdownTick)
	s.notify()
}

func (s *Session) presentNextQuestion() {
	if s.qIndex >= len(s.questions) {
		s.gameOver()
		return
	}

	s.epoch++
	s.roster.ResetForNewQuestion()
	s.reveal = false
	s.phase = PhasePlaying
	s.questionStart = s.clock.Now()
	s.deadline = s.questionStart.Add(s.cfg.TimePerQuestion)

	q := s.questions[s.qIndex]
	s.broadcast(api.GameMessageNewQuestion, api.NewQuestionData{
		Text:           q.Prompt,
		Options:        q.Options,
		QuestionNumber: s.qIndex + 1,
		TotalQuestions: len(s.questions),
		TimeLimit:      s.cfg.TimePerQuestion.Seconds(),
	})

	s.deadlineTimer = s.armTimer(s.cfg.TimePerQuestion, s.deadlineExpired)
	s.notify()
}

func (s *Session) submitAnswer(playerID string, questionNumber, answerIndex int, elapsed time.Duration) {
	if s.phase != PhasePlaying {
		// Late answer for a question that already advanced. Normal
		// network jitter, not an error.
		return
	}
	if questionNumber != s.qIndex+1 {
		// Answer for an earlier question delivered after the next one
		// was presented. Same jitter case, never scored.
		return
	}
	p, ok := s.roster.Get(playerID)
	if !ok {
		return
	}

	elapsed = clampElapsed(elapsed, s.cfg.TimePerQuestion)
	if !p.MarkAnswered(elapsed) {
		// Second submission for the same question is a no-op.
		return
	}

	q := s.questions[s.qIndex]
	correct := answerIndex == q.CorrectIndex
	newScore := p.AddScore(scoreDelta(s.cfg, correct, elapsed))

	s.sendTo(playerID, api.GameMessageAnswerResult, api.AnswerResultData{
		PlayerID: playerID,
		Correct:  correct,
		NewScore: newScore,
	})

	// Everyone answered early: cancel the deadline and advance now.
	if s.roster.AllAnswered() {
		s.stopDeadline()
		s.advanceToResult()
		return
	}
	s.notify()
}

func (s *Session) deadlineExpired() {
	if s.phase != PhasePlaying {
		return
	}
	s.advanceToResult()
}

func (s *Session) advanceToResult() {
	s.epoch++
	s.phase = PhaseQuestionResult
	s.reveal = true

	q := s.questions[s.qIndex]
	s.broadcast(api.GameMessageQuestionResult, api.QuestionResultData{
		QuestionNumber: s.qIndex + 1,
		CorrectIndex:   q.CorrectIndex,
		Explanation:    q.Explanation,
		Standings:      s.roster.Standings(),
	})

	s.armTimer(revealWindow, func() {
		s.qIndex++
		s.presentNextQuestion()
	})
	s.notify()
}

func (s *Session) gameOver() {
	s.epoch++
	s.phase = PhaseGameOver
	s.reveal = false

	standings := s.roster.Standings()
	s.broadcast(api.GameMessageGameEnded, api.GameEndedData{FinalScores: standings})
	s.persist(standings)
	s.notify()
}

// persist hands the final roster to the persistence collaborator,
// fire-and-forget: a failure never affects the game-over state.
func (s *Session) persist(standings []api.Standing) {
	if s.store == nil {
		return
	}

	rec := store.Record{
		SessionID:     s.id,
		QuestionCount: len(s.questions),
		FinishedAt:    s.clock.Now(),
	}
	for _, st := range standings {
		rec.Players = append(rec.Players, store.PlayerResult{
			ID:     st.PlayerID,
			Name:   st.Name,
			Avatar: st.Avatar,
			Score:  st.Score,
		})
	}

	logger := s.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.SaveCompletedSession(ctx, rec); err != nil {
			logger.Error("save completed session", slog.Any("error", err))
		}
	}()
}

func (s *Session) restartGame() error {
	if s.phase != PhaseGameOver {
		return ErrGameInProgress
	}
	s.epoch++
	s.phase = PhaseLobby
	s.questions = nil
	s.qIndex = 0
	s.reveal = false
	s.notify()
	return nil
}

func (s *Session) returnToMenu() {
	s.epoch++
	s.stopDeadline()
	s.transport.StopAdvertising()
	s.transport.DisconnectPeers()

	s.roster = NewRoster()
	s.peers = map[string]string{}
	s.playerPeers = map[string]string{}
	s.questions = nil
	s.qIndex = 0
	s.reveal = false
	s.phase = PhaseMenu
	s.notify()
}

// armTimer schedules fn on the processing goroutine after d. The fire
// is dropped if the session epoch has moved on by then.
func (s *Session) armTimer(d time.Duration, fn func()) *clock.Timer {
	epoch := s.epoch
	return s.clock.AfterFunc(d, func() {
		s.post(func() {
			if s.epoch != epoch {
				return
			}
			fn()
		})
	})
}

func (s *Session) stopDeadline() {
	if s.deadlineTimer != nil {
		s.deadlineTimer.Stop()
		s.deadlineTimer = nil
	}
}

// sendLoop drains the outbound queue one message at a time, so every
// peer observes messages in the order the session produced them.
func (s *Session) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.outbox:
			fn()
		}
	}
}

// enqueue hands a send to the outbound queue without blocking the
// processing path. A full queue drops the message.
func (s *Session) enqueue(fn func()) {
	select {
	case s.outbox <- fn:
	default:
		s.logger.Warn("outbound queue full, dropping message")
	}
}

func (s *Session) broadcast(msgType api.GameMessageType, data any) {
	b, err := api.EncodeGameMessage(msgType, data)
	if err != nil {
		s.logger.Error("encode game message", slog.Any("error", err))
		return
	}

	logger := s.logger
	t := s.transport
	s.enqueue(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		for peer, err := range t.Broadcast(ctx, b) {
			if err != nil {
				logger.Warn("broadcast send failed",
					slog.String("peer", peer), slog.Any("error", err))
			}
		}
	})
}

func (s *Session) sendTo(playerID string, msgType api.GameMessageType, data any) {
	peer, ok := s.playerPeers[playerID]
	if !ok {
		// Host-local player or a disconnected peer, nothing to send.
		return
	}
	s.sendToPeer(peer, msgType, data)
}

func (s *Session) sendToPeer(peer string, msgType api.GameMessageType, data any) {
	b, err := api.EncodeGameMessage(msgType, data)
	if err != nil {
		s.logger.Error("encode game message", slog.Any("error", err))
		return
	}

	logger := s.logger
	t := s.transport
	s.enqueue(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := t.Send(ctx, b, peer); err != nil {
			logger.Warn("send failed",
				slog.String("peer", peer), slog.Any("error", err))
		}
	})
}

func (s *Session) sendError(peer string, code api.ErrorCode, msg string) {
	s.sendToPeer(peer, api.GameMessageError, api.ErrorData{Code: code, Message: msg})
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange(s.snapshot())
	}
}
