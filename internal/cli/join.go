package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lanquiz/internal/config"
	"lanquiz/internal/peer"
	"lanquiz/internal/transport"

	"github.com/spf13/cobra"
)

type joinFlags struct {
	addr   string
	name   string
	avatar string
}

func newJoinCmd() *cobra.Command {
	flags := joinFlags{}

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a quiz session as a peer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJoin(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", "", "host address (host:port); discovered on the LAN when empty")
	cmd.Flags().StringVar(&flags.name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&flags.avatar, "avatar", "", "avatar token")
	cmd.MarkFlagRequired("name") //nolint:errcheck // flag exists

	return cmd
}

func runJoin(ctx context.Context, flags joinFlags) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := flags.addr
	if addr == "" {
		fmt.Println("discovering host on the local network...")
		discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		ann, err := transport.Discover(discoverCtx, cfg.BeaconPort)
		cancel()
		if err != nil {
			return fmt.Errorf("no host found: %w", err)
		}
		addr = ann.Addr
		fmt.Printf("found session %s at %s\n", ann.SessionID, addr)
	}

	client, err := peer.Dial(ctx, addr, peer.ClientOptions{OnChange: printPeerView})
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Reflector.Join(ctx, flags.name, flags.avatar, ""); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- client.Run(ctx) }()
	go peerInputLoop(ctx, client)

	select {
	case err := <-errc:
		if ctx.Err() != nil {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}

// peerInputLoop translates stdin into PlayerMessages: a digit answers
// the current question, "ready" and "leave" do what they say.
func peerInputLoop(ctx context.Context, client *peer.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "ready":
			if err := client.Reflector.Ready(ctx); err != nil {
				fmt.Printf("cannot ready: %v\n", err)
			}
		case "leave":
			client.Reflector.Leave(ctx) //nolint:errcheck // leaving anyway
			return
		default:
			n, err := strconv.Atoi(line)
			if err != nil || n < 1 || n > 4 {
				fmt.Println(`type 1-4 to answer, "ready" or "leave"`)
				continue
			}
			switch err := client.Reflector.SelectAnswer(ctx, n-1); {
			case errors.Is(err, peer.ErrAlreadyAnswered):
				fmt.Println("already answered this question")
			case errors.Is(err, peer.ErrNoActiveQuestion):
				fmt.Println("no question to answer right now")
			case err != nil:
				fmt.Printf("cannot answer: %v\n", err)
			}
		}
	}
}

func printPeerView(v peer.View) {
	switch {
	case v.LastError != "":
		fmt.Printf("host error: %s\n", v.LastError)
	case v.Ended:
		fmt.Println("game over, final standings:")
		for i, st := range v.FinalScores {
			fmt.Printf("  %d. %s  %d pts\n", i+1, st.Name, st.Score)
		}
	case v.Reveal && v.Question != nil:
		fmt.Printf("correct answer: %s\n", v.Question.Options[v.CorrectIndex])
		if v.Explanation != nil {
			fmt.Printf("  %s\n", *v.Explanation)
		}
	case v.Question != nil && !v.Answered:
		fmt.Printf("question %d/%d (%ds): %s\n",
			v.Question.QuestionNumber, v.Question.TotalQuestions,
			int(v.TimeRemaining.Seconds()), v.Question.Text)
		for i, opt := range v.Question.Options {
			fmt.Printf("  %d) %s\n", i+1, opt)
		}
	case v.Countdown > 0:
		fmt.Printf("starting in %d...\n", v.Countdown)
	}
}
