package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"lanquiz/internal/config"
	"lanquiz/internal/handlers"
	"lanquiz/internal/quiz"
	"lanquiz/internal/rate"
	"lanquiz/internal/store"
	"lanquiz/internal/transport"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type hostFlags struct {
	numQuestions int
	timePer      time.Duration
	points       int
	bonus        bool
	categories   []string
	autoStart    int
}

func newHostCmd() *cobra.Command {
	flags := hostFlags{}

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a quiz session on the local network",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHost(cmd.Context(), flags)
		},
	}

	cmd.Flags().IntVar(&flags.numQuestions, "questions", 5, "number of questions per game")
	cmd.Flags().DurationVar(&flags.timePer, "time", 15*time.Second, "time limit per question")
	cmd.Flags().IntVar(&flags.points, "points", 100, "base points for a correct answer")
	cmd.Flags().BoolVar(&flags.bonus, "bonus", true, "grant a speed bonus for fast answers")
	cmd.Flags().StringSliceVar(&flags.categories, "categories", nil, "restrict questions to these categories")
	cmd.Flags().IntVar(&flags.autoStart, "auto-start", 0, "start automatically once this many players joined (0 disables)")

	return cmd
}

func runHost(ctx context.Context, flags hostFlags) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fsys, err := questionsFS(cfg.QuestionsDir)
	if err != nil {
		return err
	}
	bank, err := quiz.LoadBank(fsys)
	if err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}

	var resultStore store.Store = store.NewMemory()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		resultStore = store.NewRedis(client, 0)
	}

	var session *quiz.Session
	ws := transport.NewWS(transport.WSOptions{
		ReadLimit:  cfg.WebsocketReadLimit,
		BeaconPort: cfg.BeaconPort,
		Announce: func() transport.Announcement {
			ann := transport.Announcement{Addr: advertisedAddr(cfg.ListenAddr)}
			if session != nil {
				snap := session.Snapshot()
				ann.SessionID = snap.SessionID
				for _, p := range snap.Players {
					if p.Connected {
						ann.Players++
					}
				}
			}
			return ann
		},
	})

	gameCfg := quiz.Config{
		NumQuestions:     flags.numQuestions,
		TimePerQuestion:  flags.timePer,
		PointsForCorrect: flags.points,
		BonusForSpeed:    flags.bonus,
		Categories:       flags.categories,
	}

	session = quiz.NewSession(quiz.Options{
		MaxPlayers:  cfg.MaxPlayers,
		Transport:   ws,
		Bank:        bank,
		Store:       resultStore,
		TokenSecret: []byte(cfg.TokenSecret),
		OnChange: func(snap quiz.Snapshot) {
			printHostSnapshot(snap)
			if flags.autoStart > 0 && snap.Phase == quiz.PhaseLobby && len(snap.Players) >= flags.autoStart {
				go session.StartGame(gameCfg) //nolint:errcheck // precondition failures already reported
			}
		},
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go session.Run(ctx)

	if err := session.StartHosting(); err != nil {
		return fmt.Errorf("start hosting: %w", err)
	}
	defer ws.Close()

	srv := http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handlers.NewMux(session, ws, rate.NewJoinLimiter(cfg.JoinRateWindow, cfg.JoinRateLimit)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	fmt.Printf("hosting session %s on %s\n", session.ID(), cfg.ListenAddr)
	fmt.Println(`commands: "start", "restart", "menu", "quit"`)

	go hostCommandLoop(ctx, session, gameCfg)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// hostCommandLoop is the thinnest possible presentation surface: it
// only invokes the session's public operations.
func hostCommandLoop(ctx context.Context, session *quiz.Session, gameCfg quiz.Config) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "start":
			if err := session.StartGame(gameCfg); err != nil {
				fmt.Printf("cannot start: %v\n", err)
			}
		case "restart":
			if err := session.Restart(); err != nil {
				fmt.Printf("cannot restart: %v\n", err)
			}
		case "menu":
			session.ReturnToMenu()
		case "quit":
			session.ReturnToMenu()
			return
		case "":
		default:
			fmt.Println(`commands: "start", "restart", "menu", "quit"`)
		}
	}
}

func printHostSnapshot(snap quiz.Snapshot) {
	switch snap.Phase {
	case quiz.PhaseLobby:
		names := make([]string, 0, len(snap.Players))
		for _, p := range snap.Players {
			names = append(names, p.Name)
		}
		fmt.Printf("lobby: %d player(s) %v\n", len(snap.Players), names)
	case quiz.PhaseCountdown:
		fmt.Printf("starting in %d...\n", snap.Countdown)
	case quiz.PhasePlaying:
		fmt.Printf("question %d/%d: %s\n", snap.QuestionNumber, snap.TotalQuestions, snap.Question.Prompt)
	case quiz.PhaseQuestionResult:
		fmt.Printf("question %d answer: %s\n",
			snap.QuestionNumber, snap.Question.Options[snap.Question.CorrectIndex])
	case quiz.PhaseGameOver:
		standings := append([]quiz.PlayerView(nil), snap.Players...)
		sort.SliceStable(standings, func(i, j int) bool {
			return standings[i].Score > standings[j].Score
		})
		fmt.Println("final standings:")
		for i, p := range standings {
			fmt.Printf("  %d. %s  %d pts\n", i+1, p.Name, p.Score)
		}
	}
}

// advertisedAddr rewrites a wildcard listen address into something a
// peer on another machine can dial.
func advertisedAddr(listenAddr string) string {
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return listenAddr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		if ip := outboundIP(); ip != "" {
			host = ip
		} else {
			host = "localhost"
		}
	}
	return net.JoinHostPort(host, port)
}

// outboundIP finds the local address the OS would use to reach the
// LAN. No packet is actually sent.
func outboundIP() string {
	conn, err := net.Dial("udp4", "255.255.255.255:9")
	if err != nil {
		return ""
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
