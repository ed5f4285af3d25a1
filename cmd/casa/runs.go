package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/you112ef/Sky-CASA/internal/casa/pipeline"
	"github.com/you112ef/Sky-CASA/internal/casa/storage/sqlite"
	"github.com/you112ef/Sky-CASA/internal/units"
)

const flagLimit = "limit"

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "work with stored analysis runs",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "list the newest runs",
				Flags:  []cli.Flag{dbFlag(), &cli.IntFlag{Name: flagLimit, Value: 20, Usage: "maximum number of runs"}},
				Action: runsListAction,
			},
			{
				Name:      "show",
				Usage:     "print the report of a run",
				ArgsUsage: "<run-id>",
				Flags: []cli.Flag{
					dbFlag(),
					&cli.StringFlag{Name: flagUnits, Value: units.UMPS, Usage: "report velocity units: " + units.GetValidUnitsString()},
				},
				Action: runsShowAction,
			},
			{
				Name:      "delete",
				Usage:     "delete a run and its tracks",
				ArgsUsage: "<run-id>",
				Flags:     []cli.Flag{dbFlag()},
				Action:    runsDeleteAction,
			},
		},
	}
}

func runIDArg(c *cli.Context) (string, error) {
	if c.Args().Len() != 1 {
		return "", errors.New("expected exactly one run id")
	}
	return c.Args().First(), nil
}

func runsListAction(c *cli.Context) (err error) {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeInto(&err, store)

	runs, err := store.ListRuns(c.Int(flagLimit))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSAMPLE\tANALYZED AT\tSTATUS\tTRACKS\tPROG\tNON-PROG\tIMMOTILE")
	for _, r := range runs {
		status := "ok"
		if !r.Success {
			status = "failed:" + r.FailureKind
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.RunID, r.SampleID, r.AnalyzedAt.Format(pipeline.TimestampLayout), status,
			r.TotalTracks, r.Progressive, r.NonProgressive, r.Immotile)
	}
	return tw.Flush()
}

func runsShowAction(c *cli.Context) (err error) {
	id, err := runIDArg(c)
	if err != nil {
		return err
	}
	unit := c.String(flagUnits)
	if !units.IsValid(unit) {
		return fmt.Errorf("invalid units %q; must be one of: %s", unit, units.GetValidUnitsString())
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeInto(&err, store)

	res, err := store.GetRun(id)
	if err != nil {
		return err
	}
	report, err := pipeline.RenderReport(res, units.Normalize(unit))
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, report)
	return nil
}

func runsDeleteAction(c *cli.Context) (err error) {
	id, err := runIDArg(c)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeInto(&err, store)

	if err := store.DeleteRun(id); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return cli.Exit(err.Error(), 1)
		}
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted run %s\n", id)
	return nil
}
