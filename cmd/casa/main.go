// Command casa analyzes cell detection files: it links detections into
// tracks, computes CASA kinematics, classifies motility and writes a
// report. Runs can be stored in SQLite and served over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"

	"github.com/you112ef/Sky-CASA/internal/version"
)

const (
	flagDebug = "debug"
	flagDB    = "db"

	defaultDBPath = "casa.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("casa failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "casa",
		Usage:   "computer-assisted sperm analysis from detection files",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool(flagDebug) {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(c.App.ErrWriter, &tint.Options{
				Level:      level,
				TimeFormat: time.TimeOnly,
			})))
			return nil
		},
		Commands: []*cli.Command{
			analyzeCommand(),
			runsCommand(),
			migrateCommand(),
			serveCommand(),
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.String())
					return nil
				},
			},
		},
	}
}
