package main

import (
	"log/slog"
	"os"

	"lanquiz/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		slog.Error("lanquiz exited", slog.Any("error", err))
		os.Exit(1)
	}
}
