package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you112ef/Sky-CASA/internal/casa"
	"github.com/you112ef/Sky-CASA/internal/casa/l1detections"
	"github.com/you112ef/Sky-CASA/internal/casa/pipeline"
	"github.com/you112ef/Sky-CASA/internal/casa/storage/sqlite"
	"github.com/you112ef/Sky-CASA/internal/httputil"
	"github.com/you112ef/Sky-CASA/internal/testutil"
	"github.com/you112ef/Sky-CASA/internal/timeutil"
)

var testTime = time.Date(2025, 6, 2, 14, 30, 5, 0, time.UTC)

func newEngine() *pipeline.Engine {
	var n atomic.Int64
	return pipeline.NewEngine(pipeline.DefaultParams(),
		pipeline.WithClock(timeutil.NewMockClock(testTime)),
		pipeline.WithIDFunc(func() string { return fmt.Sprintf("run-%04d", n.Add(1)) }),
	)
}

func setupServer(t *testing.T, withStore bool) http.Handler {
	t.Helper()
	var store *sqlite.Store
	if withStore {
		var err error
		store, err = sqlite.Open(filepath.Join(t.TempDir(), "casa.db"), nil)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		require.NoError(t, store.MigrateUp())
		store.SetClock(timeutil.NewMockClock(testTime))
	}
	h, err := NewServer(newEngine(), store, nil).Handler()
	require.NoError(t, err)
	return h
}

func sampleInput() *pipeline.Input {
	return &pipeline.Input{
		SampleID:    "S-9",
		Source:      "s9.avi",
		Calibration: casa.CalibrationInput{MicronsPerPixel: casa.Float64(0.5), FrameRateHz: casa.Float64(30)},
		Frames: testutil.Merge(
			testutil.Path(0, testutil.StraightLine(10, 10, 10, 10, 0)...),
			testutil.Path(0, testutil.Stationary(10, 500, 40)...),
		),
	}
}

func post(t *testing.T, h http.Handler, in interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(in)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", bytes.NewReader(body))
	rec := testutil.NewTestRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := testutil.NewTestRecorder()
	h.ServeHTTP(rec, testutil.NewTestRequest(method, path))
	return rec
}

func TestCreateAndFetchAnalysis(t *testing.T) {
	h := setupServer(t, true)

	rec := post(t, h, sampleInput())
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)

	var created pipeline.AnalysisResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.True(t, created.Success, created.ErrorMessage)
	assert.Equal(t, "run-0001", created.RunID)
	assert.Len(t, created.Tracks, 2)

	rec = get(h, http.MethodGet, "/api/analyses/run-0001")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var fetched pipeline.AnalysisResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&fetched))
	assert.Equal(t, created.Aggregate, fetched.Aggregate)
	assert.Equal(t, created.Report, fetched.Report)

	rec = get(h, http.MethodGet, "/api/analyses")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var runs []*sqlite.RunSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "S-9", runs[0].SampleID)

	rec = get(h, http.MethodGet, "/api/analyses/run-0001/tracks")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var tracks []*sqlite.TrackRow
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tracks))
	assert.Len(t, tracks, 2)
}

func TestReportEndpoint(t *testing.T) {
	h := setupServer(t, true)
	testutil.AssertStatusCode(t, post(t, h, sampleInput()).Code, http.StatusCreated)

	rec := get(h, http.MethodGet, "/api/analyses/run-0001/report")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Sample:        S-9")
	assert.Contains(t, rec.Body.String(), "VCL: 75.00 µm/s")

	rec = get(h, http.MethodGet, "/api/analyses/run-0001/report?units=mm/s")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "LIN: ")
	assert.Contains(t, rec.Body.String(), " mm/s")
	assert.NotContains(t, rec.Body.String(), "µm/s")

	rec = get(h, http.MethodGet, "/api/analyses/run-0001/report?units=furlongs")
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestChartAndPlotEndpoints(t *testing.T) {
	h := setupServer(t, true)
	testutil.AssertStatusCode(t, post(t, h, sampleInput()).Code, http.StatusCreated)

	rec := get(h, http.MethodGet, "/api/analyses/run-0001/chart")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Trajectories")

	rec = get(h, http.MethodGet, "/api/analyses/run-0001/plot.png")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestFailedAnalysisIsStored(t *testing.T) {
	h := setupServer(t, true)

	in := sampleInput()
	in.Frames = []l1detections.Frame{{Index: 2}, {Index: 1}}
	rec := post(t, h, in)
	testutil.AssertStatusCode(t, rec.Code, http.StatusUnprocessableEntity)

	var res pipeline.AnalysisResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.False(t, res.Success)
	require.NotNil(t, res.Failure)
	assert.Equal(t, casa.KindMalformedInput, res.Failure.Kind)

	rec = get(h, http.MethodGet, "/api/analyses/"+res.RunID)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
}

func TestDeleteAnalysis(t *testing.T) {
	h := setupServer(t, true)
	testutil.AssertStatusCode(t, post(t, h, sampleInput()).Code, http.StatusCreated)

	testutil.AssertStatusCode(t, get(h, http.MethodDelete, "/api/analyses/run-0001").Code, http.StatusNoContent)
	testutil.AssertStatusCode(t, get(h, http.MethodGet, "/api/analyses/run-0001").Code, http.StatusNotFound)
	testutil.AssertStatusCode(t, get(h, http.MethodDelete, "/api/analyses/run-0001").Code, http.StatusNotFound)
}

func TestBadRequests(t *testing.T) {
	h := setupServer(t, true)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/analyses", `{"frames":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/analyses", `{"frames":[],"colour":"red"}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/analyses?limit=0", "", http.StatusBadRequest},
		{"missing run", http.MethodGet, "/api/analyses/nope", "", http.StatusNotFound},
		{"missing report", http.MethodGet, "/api/analyses/nope/report", "", http.StatusNotFound},
		{"missing tracks", http.MethodGet, "/api/analyses/nope/tracks", "", http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/analyses", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			rec := testutil.NewTestRecorder()
			h.ServeHTTP(rec, req)
			testutil.AssertStatusCode(t, rec.Code, tt.want)
		})
	}
}

func TestServerWithoutStore(t *testing.T) {
	h := setupServer(t, false)

	testutil.AssertStatusCode(t, post(t, h, sampleInput()).Code, http.StatusCreated)
	testutil.AssertStatusCode(t, get(h, http.MethodGet, "/api/analyses").Code, http.StatusServiceUnavailable)
	testutil.AssertStatusCode(t, get(h, http.MethodGet, "/api/analyses/run-0001").Code, http.StatusServiceUnavailable)
	testutil.AssertStatusCode(t, get(h, http.MethodGet, "/debug/").Code, http.StatusNotFound)
}

func TestShowConfig(t *testing.T) {
	h := setupServer(t, false)

	rec := get(h, http.MethodGet, "/api/config")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var cfg struct {
		Params pipeline.Params `json:"params"`
		Units  string          `json:"units"`
		Store  bool            `json:"store"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cfg))
	assert.Equal(t, pipeline.DefaultParams(), cfg.Params)
	assert.Equal(t, "um/s", cfg.Units)
	assert.False(t, cfg.Store)
}

func TestStatusLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, statusLevel(http.StatusOK))
	assert.Equal(t, slog.LevelInfo, statusLevel(http.StatusFound))
	assert.Equal(t, slog.LevelWarn, statusLevel(http.StatusNotFound))
	assert.Equal(t, slog.LevelError, statusLevel(http.StatusBadGateway))
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := LoggingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := get(h, http.MethodGet, "/brew?pot=1")
	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "uri=\"/brew?pot=1\"")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestListenAndServeShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(newEngine(), nil, nil)

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestClientRoundTrip(t *testing.T) {
	ts := httptest.NewServer(setupServer(t, true))
	defer ts.Close()
	ctx := context.Background()
	c := NewClient(ts.URL+"/", nil)

	res, err := c.Analyze(ctx, sampleInput())
	require.NoError(t, err)
	assert.Equal(t, "run-0001", res.RunID)

	got, err := c.GetAnalysis(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Aggregate, got.Aggregate)

	runs, err := c.ListAnalyses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	report, err := c.Report(ctx, res.RunID, "mm/s")
	require.NoError(t, err)
	assert.Contains(t, report, "mm/s")

	require.NoError(t, c.DeleteAnalysis(ctx, res.RunID))

	_, err = c.GetAnalysis(ctx, res.RunID)
	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestClientFailedAnalysis(t *testing.T) {
	ts := httptest.NewServer(setupServer(t, false))
	defer ts.Close()

	in := sampleInput()
	in.Calibration.FrameRateHz = casa.Float64(-1)
	res, err := NewClient(ts.URL, nil).Analyze(context.Background(), in)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.True(t, errors.Is(err, casa.ErrValidationFailure))
}
