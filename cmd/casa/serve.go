package main

import (
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/you112ef/Sky-CASA/internal/api"
	"github.com/you112ef/Sky-CASA/internal/casa/pipeline"
	"github.com/you112ef/Sky-CASA/internal/casa/storage/sqlite"
)

const (
	flagListen  = "listen"
	flagNoStore = "no-store"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the HTTP API",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: flagListen, Value: ":8080", Usage: "HTTP listen address"},
			dbFlag(),
			&cli.BoolFlag{Name: flagNoStore, Usage: "analyze without storing runs"},
		}, tuningFlags()...),
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) (err error) {
	params, err := paramsFromFlags(c)
	if err != nil {
		return err
	}

	var store *sqlite.Store
	if !c.Bool(flagNoStore) {
		if store, err = openStore(c); err != nil {
			return err
		}
		defer closeInto(&err, store)
	}

	engine := pipeline.NewEngine(params, pipeline.WithLogger(slog.Default()))
	return api.NewServer(engine, store, slog.Default()).ListenAndServe(c.Context, c.String(flagListen))
}
