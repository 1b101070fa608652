package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/vtx/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		err_ := errors.Unwrap(err)
		switch {
		case errors.Is(err_, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		case isExpired(err):
			logger.Fatalf("not signed in: %v", err)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}

// newApp builds the root command around runner.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "vtx",
		Usage:   "Terminal client for the VideoTube API",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "ephemeral",
				Usage: "Keep the session and cookies in memory only",
			},
		},
		Before:   runner.Bootstrap,
		After:    runner.Close,
		Commands: runner.register(),
	}
}
