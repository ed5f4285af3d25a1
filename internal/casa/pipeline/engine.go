package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/you112ef/Sky-CASA/internal/casa"
	"github.com/you112ef/Sky-CASA/internal/casa/l1detections"
	"github.com/you112ef/Sky-CASA/internal/casa/l2tracks"
	"github.com/you112ef/Sky-CASA/internal/casa/l3kinematics"
	"github.com/you112ef/Sky-CASA/internal/casa/l4motility"
	"github.com/you112ef/Sky-CASA/internal/timeutil"
)

// Engine runs analyses with a fixed parameter set.
type Engine struct {
	params Params
	clock  timeutil.Clock
	newID  func() string
	logger *slog.Logger
}

// EngineOption customises an Engine at construction time.
type EngineOption func(*Engine)

// WithClock sets the clock used to stamp results.
func WithClock(c timeutil.Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithIDFunc sets the run ID generator. The default is a random UUID.
func WithIDFunc(f func() string) EngineOption {
	return func(e *Engine) { e.newID = f }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an Engine. Params are validated on every run so an
// invalid configuration surfaces as a failed result.
func NewEngine(params Params, opts ...EngineOption) *Engine {
	e := &Engine{
		params: params,
		clock:  timeutil.RealClock{},
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the engine's configuration.
func (e *Engine) Params() Params { return e.params }

// Analyze runs a full analysis of in. It always returns a non-nil result;
// failures are reported through Success, Failure and ErrorMessage.
func (e *Engine) Analyze(ctx context.Context, in *Input) (result *AnalysisResult) {
	start := e.clock.Now()
	result = &AnalysisResult{
		RunID:      e.newID(),
		AnalyzedAt: start.UTC(),
		Params:     e.params,
	}
	stage := casa.StageIngest

	defer func() {
		if r := recover(); r != nil {
			e.fail(result, casa.Errorf(stage, casa.KindInternal, "panic: %v", r))
		}
		result.Duration = e.clock.Since(start)
	}()

	if in == nil {
		e.fail(result, casa.Errorf(stage, casa.KindInputNotFound, "no input supplied"))
		return result
	}
	result.SampleID = in.SampleID
	result.Source = in.Source
	result.Sample = in.Sample

	if err := e.params.Validate(); err != nil {
		e.fail(result, casa.NewError(stage, casa.KindValidationFailure, err))
		return result
	}
	calib, err := in.Calibration.Resolve(e.params.DefaultCalibration)
	if err != nil {
		e.fail(result, err)
		return result
	}
	result.Calibration = calib

	if err := l1detections.Validate(in.Frames); err != nil {
		e.fail(result, err)
		return result
	}
	result.TotalFrames = len(in.Frames)
	result.TotalDetections = l1detections.DetectionCount(in.Frames)

	stage = casa.StageTracking
	tracks, stats, err := l2tracks.Associate(ctx, in.Frames, e.params.Tracker, e.logger)
	if err != nil {
		e.fail(result, casa.AsAnalysisError(err, stage))
		return result
	}
	result.TracksCreated = stats.Created
	result.TracksDiscarded = stats.Discarded

	stage = casa.StageKinematics
	kins, err := l3kinematics.ComputeAll(ctx, tracks, calib, e.params.Kinematics, e.params.Workers)
	if err != nil {
		e.fail(result, casa.AsAnalysisError(err, stage))
		return result
	}

	stage = casa.StageClassification
	result.Tracks = make([]TrackResult, len(tracks))
	classified := make([]l4motility.Classified, len(tracks))
	for i, track := range tracks {
		tr := TrackResult{Track: track, Kinematics: kins[i]}
		if kins[i] != nil {
			tr.Class = e.params.Thresholds.Classify(*kins[i])
		}
		result.Tracks[i] = tr
		classified[i] = l4motility.Classified{Kinematics: tr.Kinematics, Class: tr.Class}
	}
	result.Aggregate = l4motility.Aggregate(classified)

	stage = casa.StageReport
	result.Success = true
	report, err := RenderReport(result, e.params.ReportUnits)
	if err != nil {
		e.fail(result, casa.NewError(stage, casa.KindInternal, err))
		return result
	}
	result.Report = report

	e.logger.Info("[Pipeline] analysis complete",
		"run_id", result.RunID,
		"sample", result.SampleID,
		"frames", result.TotalFrames,
		"tracks", result.Aggregate.TotalTracks,
		"progressive", result.Aggregate.Progressive,
		"non_progressive", result.Aggregate.NonProgressive,
		"immotile", result.Aggregate.Immotile)
	return result
}

// AnalyzeFile loads a detection file and analyzes it. Load errors are
// reported as a failed result like any other ingest failure.
func (e *Engine) AnalyzeFile(ctx context.Context, path string, format l1detections.Format, override func(*Input)) *AnalysisResult {
	in, err := l1detections.Load(path, format)
	if err != nil {
		start := e.clock.Now()
		result := &AnalysisResult{
			RunID:      e.newID(),
			AnalyzedAt: start.UTC(),
			Params:     e.params,
			Source:     path,
		}
		e.fail(result, err)
		result.Duration = e.clock.Since(start)
		return result
	}
	if override != nil {
		override(in)
	}
	return e.Analyze(ctx, in)
}

// fail turns result into a failure result for err. Metrics are dropped.
func (e *Engine) fail(result *AnalysisResult, err error) {
	ae := casa.AsAnalysisError(err, casa.StageIngest)
	result.Success = false
	result.Tracks = nil
	result.Aggregate = l4motility.AggregateMetrics{}
	result.Failure = &Failure{Stage: ae.Stage, Kind: ae.Kind, Message: causeOf(ae)}
	result.ErrorMessage = ae.Error()

	report, rerr := RenderReport(result, e.params.ReportUnits)
	if rerr != nil {
		report = fmt.Sprintf("CASA Analysis Report\nAnalysis FAILED\n  Stage: %s\n  Cause: %s\n", ae.Stage, result.Failure.Message)
	}
	result.Report = report

	e.logger.Warn("[Pipeline] analysis failed",
		"run_id", result.RunID,
		"stage", ae.Stage,
		"kind", ae.Kind,
		"error", ae.Err)
}

func causeOf(ae *casa.AnalysisError) string {
	if ae.Err == nil {
		return string(ae.Kind)
	}
	return ae.Err.Error()
}
