package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/you112ef/Sky-CASA/internal/casa/pipeline"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// RunSummary is one row of casa_analysis_runs without the full result.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	SampleID        string    `json:"sample_id"`
	Source          string    `json:"source"`
	ChamberType     string    `json:"chamber_type,omitempty"`
	Magnification   string    `json:"magnification,omitempty"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
	Success         bool      `json:"success"`
	FailureStage    string    `json:"failure_stage,omitempty"`
	FailureKind     string    `json:"failure_kind,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	MicronsPerPixel float64   `json:"microns_per_pixel"`
	FrameRateHz     float64   `json:"frame_rate_hz"`
	TotalFrames     int       `json:"total_frames"`
	TotalTracks     int       `json:"total_tracks"`
	Progressive     int       `json:"progressive"`
	NonProgressive  int       `json:"non_progressive"`
	Immotile        int       `json:"immotile"`
	MeanVCL         float64   `json:"mean_vcl"`
	MeanVSL         float64   `json:"mean_vsl"`
	MeanVAP         float64   `json:"mean_vap"`
	MeanALH         float64   `json:"mean_alh"`
	MeanBCF         float64   `json:"mean_bcf"`
	MeanLIN         float64   `json:"mean_lin"`
	MeanSTR         float64   `json:"mean_str"`
	MeanWOB         float64   `json:"mean_wob"`
	CreatedAt       int64     `json:"created_at"`
}

// TrackRow is one row of casa_run_tracks. Kinematic columns are nil when
// the track had no defined kinematics.
type TrackRow struct {
	RunID      string   `json:"run_id"`
	TrackID    int      `json:"track_id"`
	StartFrame int      `json:"start_frame"`
	EndFrame   int      `json:"end_frame"`
	PointCount int      `json:"point_count"`
	Class      string   `json:"class,omitempty"`
	VCL        *float64 `json:"vcl,omitempty"`
	VSL        *float64 `json:"vsl,omitempty"`
	VAP        *float64 `json:"vap,omitempty"`
	ALH        *float64 `json:"alh,omitempty"`
	BCF        *float64 `json:"bcf,omitempty"`
	LIN        *float64 `json:"lin,omitempty"`
	STR        *float64 `json:"str,omitempty"`
	WOB        *float64 `json:"wob,omitempty"`
	MAD        *float64 `json:"mad,omitempty"`
}

// InsertResult persists a result and its tracks in one transaction. An
// empty RunID is replaced with a new UUID before insertion.
func (s *Store) InsertResult(res *pipeline.AnalysisResult) error {
	if res == nil {
		return errors.New("insert result: nil result")
	}
	if res.RunID == "" {
		res.RunID = uuid.New().String()
	}

	resultJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	paramsJSON, err := json.Marshal(res.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	var stage, kind, errMsg interface{}
	if res.Failure != nil {
		stage, kind = string(res.Failure.Stage), string(res.Failure.Kind)
		errMsg = res.ErrorMessage
	}
	createdAt := s.clock.Now().UnixNano()
	agg := res.Aggregate

	err = retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO casa_analysis_runs (
				run_id, sample_id, source, chamber_type, magnification,
				analyzed_at, success, failure_stage, failure_kind, error_message,
				microns_per_pixel, frame_rate_hz, total_frames, total_tracks,
				progressive, non_progressive, immotile,
				mean_vcl, mean_vsl, mean_vap, mean_alh, mean_bcf, mean_lin, mean_str, mean_wob,
				params_json, result_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, res.SampleID, res.Source, res.Sample.ChamberType, res.Sample.Magnification,
			res.AnalyzedAt.UnixNano(), res.Success, stage, kind, errMsg,
			res.Calibration.MicronsPerPixel, res.Calibration.FrameRateHz, res.TotalFrames, agg.TotalTracks,
			agg.Progressive, agg.NonProgressive, agg.Immotile,
			agg.MeanVCL, agg.MeanVSL, agg.MeanVAP, agg.MeanALH, agg.MeanBCF, agg.MeanLIN, agg.MeanSTR, agg.MeanWOB,
			string(paramsJSON), string(resultJSON), createdAt,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO casa_run_tracks (
				run_id, track_id, start_frame, end_frame, point_count, class,
				vcl, vsl, vap, alh, bcf, lin, str, wob, mad
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare track insert: %w", err)
		}
		defer stmt.Close()

		for _, tr := range res.Tracks {
			args := []interface{}{
				res.RunID, tr.Track.TrackID, tr.Track.StartFrame, tr.Track.EndFrame, tr.Track.Len(), nullString(string(tr.Class)),
			}
			if k := tr.Kinematics; k != nil {
				args = append(args, k.VCL, k.VSL, k.VAP, k.ALH, k.BCF, k.LIN, k.STR, k.WOB, k.MAD)
			} else {
				args = append(args, nil, nil, nil, nil, nil, nil, nil, nil, nil)
			}
			if _, err := stmt.Exec(args...); err != nil {
				return fmt.Errorf("insert track %d: %w", tr.Track.TrackID, err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}
	s.logger.Debug("[Store] inserted run", "run_id", res.RunID, "tracks", len(res.Tracks))
	return nil
}

// GetRun returns the full stored result of a run.
func (s *Store) GetRun(runID string) (*pipeline.AnalysisResult, error) {
	var resultJSON string
	err := s.db.QueryRow(`SELECT result_json FROM casa_analysis_runs WHERE run_id = ?`, runID).Scan(&resultJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s %w", runID, ErrNotFound)
		}
		return nil, fmt.Errorf("query run: %w", err)
	}
	var res pipeline.AnalysisResult
	if err := json.Unmarshal([]byte(resultJSON), &res); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &res, nil
}

const summaryColumns = `
	run_id, sample_id, source, chamber_type, magnification,
	analyzed_at, success, failure_stage, failure_kind, error_message,
	microns_per_pixel, frame_rate_hz, total_frames, total_tracks,
	progressive, non_progressive, immotile,
	mean_vcl, mean_vsl, mean_vap, mean_alh, mean_bcf, mean_lin, mean_str, mean_wob,
	created_at`

// GetSummary returns the summary row of a run.
func (s *Store) GetSummary(runID string) (*RunSummary, error) {
	rows, err := s.db.Query(`SELECT `+summaryColumns+` FROM casa_analysis_runs WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("run %s %w", runID, ErrNotFound)
	}
	return scanSummary(rows)
}

// ListRuns returns the most recently stored runs first. limit <= 0 returns
// every run.
func (s *Store) ListRuns(limit int) ([]*RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+summaryColumns+`
		FROM casa_analysis_runs
		ORDER BY created_at DESC, run_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunSummary
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListRunTracks returns the stored tracks of a run in TrackID order.
func (s *Store) ListRunTracks(runID string) ([]*TrackRow, error) {
	rows, err := s.db.Query(`
		SELECT run_id, track_id, start_frame, end_frame, point_count, class,
		       vcl, vsl, vap, alh, bcf, lin, str, wob, mad
		FROM casa_run_tracks
		WHERE run_id = ?
		ORDER BY track_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*TrackRow
	for rows.Next() {
		var tr TrackRow
		var class sql.NullString
		var k [9]sql.NullFloat64
		if err := rows.Scan(
			&tr.RunID, &tr.TrackID, &tr.StartFrame, &tr.EndFrame, &tr.PointCount, &class,
			&k[0], &k[1], &k[2], &k[3], &k[4], &k[5], &k[6], &k[7], &k[8],
		); err != nil {
			return nil, fmt.Errorf("scan track row: %w", err)
		}
		tr.Class = class.String
		dst := []**float64{&tr.VCL, &tr.VSL, &tr.VAP, &tr.ALH, &tr.BCF, &tr.LIN, &tr.STR, &tr.WOB, &tr.MAD}
		for i, v := range k {
			if v.Valid {
				f := v.Float64
				*dst[i] = &f
			}
		}
		tracks = append(tracks, &tr)
	}
	return tracks, rows.Err()
}

// DeleteRun removes a run and, through the foreign key cascade, its tracks.
func (s *Store) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM casa_analysis_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("run %s %w", runID, ErrNotFound)
		}
		return nil
	})
}

// scanSummary scans a summary row from a sql.Rows cursor.
func scanSummary(rows *sql.Rows) (*RunSummary, error) {
	var r RunSummary
	var analyzedAt int64
	var stage, kind, errMsg sql.NullString
	err := rows.Scan(
		&r.RunID, &r.SampleID, &r.Source, &r.ChamberType, &r.Magnification,
		&analyzedAt, &r.Success, &stage, &kind, &errMsg,
		&r.MicronsPerPixel, &r.FrameRateHz, &r.TotalFrames, &r.TotalTracks,
		&r.Progressive, &r.NonProgressive, &r.Immotile,
		&r.MeanVCL, &r.MeanVSL, &r.MeanVAP, &r.MeanALH, &r.MeanBCF, &r.MeanLIN, &r.MeanSTR, &r.MeanWOB,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	r.AnalyzedAt = time.Unix(0, analyzedAt).UTC()
	r.FailureStage, r.FailureKind, r.ErrorMessage = stage.String, kind.String, errMsg.String
	return &r, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
