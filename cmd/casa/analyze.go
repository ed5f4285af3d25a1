package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/you112ef/Sky-CASA/internal/casa"
	"github.com/you112ef/Sky-CASA/internal/casa/l1detections"
	"github.com/you112ef/Sky-CASA/internal/casa/pipeline"
	"github.com/you112ef/Sky-CASA/internal/casa/render"
	"github.com/you112ef/Sky-CASA/internal/config"
	"github.com/you112ef/Sky-CASA/internal/fsutil"
	"github.com/you112ef/Sky-CASA/internal/units"
)

const (
	flagInput       = "input"
	flagFormat      = "format"
	flagSample      = "sample"
	flagFPS         = "fps"
	flagMPP         = "mpp"
	flagConfig      = "config"
	flagReport      = "report"
	flagJSON        = "json"
	flagPlot        = "plot"
	flagHTML        = "html"
	flagAssociation = "association"
	flagGate        = "gate"
	flagMinLength   = "min-length"
	flagUnits       = "units"
	flagWorkers     = "workers"
)

// exitAnalysisFailed is the exit code of a run that completed with a
// failed result.
const exitAnalysisFailed = 2

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "analyze a detection file",
		UsageText: "casa analyze --input detections.csv --fps 30 --mpp 0.5 [options]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: flagInput, Aliases: []string{"i"}, Required: true, Usage: "detection `FILE` (json or csv)"},
			&cli.StringFlag{Name: flagFormat, Usage: "input format: json or csv (default from extension)"},
			&cli.StringFlag{Name: flagSample, Usage: "sample identifier"},
			&cli.Float64Flag{Name: flagFPS, Usage: "frame rate in Hz"},
			&cli.Float64Flag{Name: flagMPP, Usage: "calibration in microns per pixel"},
			&cli.StringFlag{Name: flagDB, EnvVars: []string{"CASA_DB"}, Usage: "store the run in database `FILE`"},
			&cli.StringFlag{Name: flagReport, Usage: "write the text report to `FILE` instead of stdout"},
			&cli.StringFlag{Name: flagJSON, Usage: "write the full result as JSON to `FILE`"},
			&cli.StringFlag{Name: flagPlot, Usage: "write a trajectory plot to `FILE` (.png)"},
			&cli.StringFlag{Name: flagHTML, Usage: "write an interactive trajectory page to `FILE`"},
		}, tuningFlags()...),
		Action: analyzeAction,
	}
}

// tuningFlags are shared by analyze and serve.
func tuningFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagConfig, Aliases: []string{"c"}, Usage: "tuning `FILE` (json)"},
		&cli.StringFlag{Name: flagAssociation, Usage: "association mode: greedy, nearest or hungarian"},
		&cli.Float64Flag{Name: flagGate, Usage: "gating distance in pixels"},
		&cli.IntFlag{Name: flagMinLength, Usage: "minimum track length in points"},
		&cli.StringFlag{Name: flagUnits, Value: units.UMPS, Usage: "report velocity units: " + units.GetValidUnitsString()},
		&cli.IntFlag{Name: flagWorkers, Usage: "kinematics workers (0 uses the config value)"},
	}
}

// paramsFromFlags loads the tuning file (or built-in defaults) and applies
// command-line overrides.
func paramsFromFlags(c *cli.Context) (pipeline.Params, error) {
	cfg := config.DefaultTuningConfig()
	if path := c.String(flagConfig); path != "" {
		loaded, err := config.LoadTuningConfig(path)
		if err != nil {
			return pipeline.Params{}, err
		}
		cfg = loaded
	}
	cfg = cfg.WithOverrides(config.Overrides{
		GatingDistancePx: c.Float64(flagGate),
		MinTrackLength:   c.Int(flagMinLength),
		AssociationMode:  c.String(flagAssociation),
		Workers:          c.Int(flagWorkers),
	})
	if err := cfg.Validate(); err != nil {
		return pipeline.Params{}, fmt.Errorf("invalid tuning: %w", err)
	}

	unit := c.String(flagUnits)
	if !units.IsValid(unit) {
		return pipeline.Params{}, fmt.Errorf("invalid units %q; must be one of: %s", unit, units.GetValidUnitsString())
	}
	params := pipeline.ParamsFromTuning(cfg)
	params.ReportUnits = units.Normalize(unit)
	return params, nil
}

func analyzeAction(c *cli.Context) error {
	params, err := paramsFromFlags(c)
	if err != nil {
		return err
	}

	path := c.String(flagInput)
	format := l1detections.FormatFromPath(path)
	if f := c.String(flagFormat); f != "" {
		if format, err = l1detections.ParseFormat(f); err != nil {
			return err
		}
	}

	engine := pipeline.NewEngine(params, pipeline.WithLogger(slog.Default()))
	res := engine.AnalyzeFile(c.Context, path, format, func(in *pipeline.Input) {
		if c.IsSet(flagSample) {
			in.SampleID = c.String(flagSample)
		}
		if c.IsSet(flagFPS) {
			in.Calibration.FrameRateHz = casa.Float64(c.Float64(flagFPS))
		}
		if c.IsSet(flagMPP) {
			in.Calibration.MicronsPerPixel = casa.Float64(c.Float64(flagMPP))
		}
	})

	if err := writeOutputs(c, res); err != nil {
		return err
	}

	if c.String(flagDB) != "" {
		if err := storeResult(c, res); err != nil {
			return err
		}
	}

	if !res.Success {
		return cli.Exit(fmt.Sprintf("analysis failed: %s", res.ErrorMessage), exitAnalysisFailed)
	}
	return nil
}

func storeResult(c *cli.Context, res *pipeline.AnalysisResult) (err error) {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeInto(&err, store)
	if err := store.InsertResult(res); err != nil {
		return err
	}
	slog.Info("[CLI] run stored", "run_id", res.RunID, "db", c.String(flagDB))
	return nil
}

// outputFS receives report, result and plot files.
var outputFS fsutil.FileSystem = fsutil.OSFileSystem{}

func writeOutputs(c *cli.Context, res *pipeline.AnalysisResult) error {
	if path := c.String(flagReport); path != "" {
		if err := fsutil.WriteFileAll(outputFS, path, []byte(res.Report)); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	} else {
		fmt.Fprint(c.App.Writer, res.Report)
	}

	if path := c.String(flagJSON); path != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		if err := fsutil.WriteFileAll(outputFS, path, data); err != nil {
			return fmt.Errorf("result: %w", err)
		}
	}

	if !res.Success {
		return nil
	}
	if path := c.String(flagPlot); path != "" {
		var buf bytes.Buffer
		if err := render.WriteTrajectoryPNG(&buf, res); err != nil {
			return err
		}
		if err := fsutil.WriteFileAll(outputFS, path, buf.Bytes()); err != nil {
			return fmt.Errorf("plot: %w", err)
		}
	}
	if path := c.String(flagHTML); path != "" {
		var buf bytes.Buffer
		if err := render.RenderTrajectoryHTML(&buf, res); err != nil {
			return err
		}
		if err := fsutil.WriteFileAll(outputFS, path, buf.Bytes()); err != nil {
			return fmt.Errorf("chart: %w", err)
		}
	}
	return nil
}
