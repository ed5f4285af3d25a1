package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/you112ef/Sky-CASA/internal/casa/storage/sqlite"
)

// dbFlag is the --db flag of the commands that always need a database.
func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    flagDB,
		Value:   defaultDBPath,
		EnvVars: []string{"CASA_DB"},
		Usage:   "run database `FILE`",
	}
}

// openStore opens the --db database and brings its schema up to date.
func openStore(c *cli.Context) (*sqlite.Store, error) {
	path := c.String(flagDB)
	store, err := sqlite.Open(path, slog.Default())
	if err != nil {
		return nil, err
	}
	if err := store.MigrateUp(); err != nil {
		return nil, multierr.Append(fmt.Errorf("migrate %s: %w", path, err), store.Close())
	}
	return store, nil
}

// closeInto closes store and appends any error to *errp.
func closeInto(errp *error, store *sqlite.Store) {
	*errp = multierr.Append(*errp, store.Close())
}
