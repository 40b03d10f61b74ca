// Package cli wires the lanquiz binary: a host command that runs the
// authoritative session, and a join command for peers.
package cli

import (
	"embed"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
)

//go:embed questions
var embeddedQuestions embed.FS

var configPath string

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lanquiz",
		Short: "LAN multiplayer quiz over websockets",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to .env config file")
	cmd.AddCommand(newHostCmd())
	cmd.AddCommand(newJoinCmd())
	return cmd
}

// questionsFS returns the question set: an explicit directory when
// configured, the embedded sample set otherwise.
func questionsFS(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	return fs.Sub(embeddedQuestions, "questions")
}
