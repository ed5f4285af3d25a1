package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/you112ef/Sky-CASA/internal/casa/storage/sqlite"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the run database schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Flags: []cli.Flag{dbFlag()},
				Action: withRawStore(func(c *cli.Context, s *sqlite.Store) error {
					return s.MigrateUp()
				}),
			},
			{
				Name:  "down",
				Usage: "roll back every migration",
				Flags: []cli.Flag{dbFlag()},
				Action: withRawStore(func(c *cli.Context, s *sqlite.Store) error {
					return s.MigrateDown()
				}),
			},
			{
				Name:  "version",
				Usage: "print the schema version",
				Flags: []cli.Flag{dbFlag()},
				Action: withRawStore(func(c *cli.Context, s *sqlite.Store) error {
					v, dirty, err := s.MigrateVersion()
					if err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "version %d (dirty: %t)\n", v, dirty)
					return nil
				}),
			},
		},
	}
}

// withRawStore opens --db without migrating it and closes it afterwards.
func withRawStore(fn func(*cli.Context, *sqlite.Store) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		store, err := sqlite.Open(c.String(flagDB), slog.Default())
		if err != nil {
			return err
		}
		defer closeInto(&err, store)
		return fn(c, store)
	}
}
