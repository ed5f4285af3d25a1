package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/you112ef/Sky-CASA/internal/casa/pipeline"
	"github.com/you112ef/Sky-CASA/internal/casa/render"
	"github.com/you112ef/Sky-CASA/internal/casa/storage/sqlite"
	"github.com/you112ef/Sky-CASA/internal/httputil"
	"github.com/you112ef/Sky-CASA/internal/units"
	"github.com/you112ef/Sky-CASA/internal/version"
)

// MaxInputBytes bounds the size of a POSTed analysis input.
const MaxInputBytes = 64 << 20

const defaultListLimit = 50

// Server serves analyses. The store is optional; without one, POST still
// analyzes but nothing can be fetched back.
type Server struct {
	engine *pipeline.Engine
	store  *sqlite.Store
	units  string
	logger *slog.Logger
}

// NewServer builds a server around engine. store may be nil.
func NewServer(engine *pipeline.Engine, store *sqlite.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine: engine,
		store:  store,
		units:  engine.Params().ReportUnits,
		logger: logger,
	}
}

// ServeMux returns the API routes, plus admin routes when a store is set.
func (s *Server) ServeMux() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyses", s.createAnalysis)
	mux.HandleFunc("GET /api/analyses", s.listAnalyses)
	mux.HandleFunc("GET /api/analyses/{id}", s.getAnalysis)
	mux.HandleFunc("DELETE /api/analyses/{id}", s.deleteAnalysis)
	mux.HandleFunc("GET /api/analyses/{id}/report", s.getReport)
	mux.HandleFunc("GET /api/analyses/{id}/tracks", s.listTracks)
	mux.HandleFunc("GET /api/analyses/{id}/chart", s.getChart)
	mux.HandleFunc("GET /api/analyses/{id}/plot.png", s.getPlot)
	mux.HandleFunc("GET /api/config", s.showConfig)
	if s.store != nil {
		if err := s.store.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// Handler returns the full handler with request logging.
func (s *Server) Handler() (http.Handler, error) {
	mux, err := s.ServeMux()
	if err != nil {
		return nil, err
	}
	return LoggingMiddleware(s.logger, mux), nil
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// with a five second grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	h, err := s.Handler()
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("[API] listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("[API] shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxInputBytes)
	var in pipeline.Input
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid analysis input: %v", err))
		return
	}

	res := s.engine.Analyze(r.Context(), &in)
	if s.store != nil {
		if err := s.store.InsertResult(res); err != nil {
			s.logger.Error("[API] failed to store run", "run_id", res.RunID, "error", err)
			httputil.InternalServerError(w, fmt.Sprintf("failed to store run: %v", err))
			return
		}
	}

	status := http.StatusCreated
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	httputil.WriteJSON(w, status, res)
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	limit := defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*sqlite.RunSummary{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, res)
}

func (s *Server) deleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	if err := s.store.DeleteRun(id); err != nil {
		s.writeStoreError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	unit := s.units
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			httputil.BadRequest(w, fmt.Sprintf("invalid 'units' parameter; must be one of: %s", units.GetValidUnitsString()))
			return
		}
		unit = units.Normalize(u)
	}
	report, err := pipeline.RenderReport(res, unit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render report: %v", err))
		return
	}
	httputil.WriteText(w, http.StatusOK, report)
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	id := r.PathValue("id")
	if _, err := s.store.GetSummary(id); err != nil {
		s.writeStoreError(w, id, err)
		return
	}
	tracks, err := s.store.ListRunTracks(id)
	if err != nil {
		s.writeStoreError(w, id, err)
		return
	}
	if tracks == nil {
		tracks = []*sqlite.TrackRow{}
	}
	httputil.WriteJSONOK(w, tracks)
}

func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.RenderTrajectoryHTML(w, res); err != nil {
		s.logger.Error("[API] chart render failed", "run_id", res.RunID, "error", err)
	}
}

func (s *Server) getPlot(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := render.WriteTrajectoryPNG(w, res); err != nil {
		s.logger.Error("[API] plot render failed", "run_id", res.RunID, "error", err)
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"version": version.Version,
		"params":  s.engine.Params(),
		"units":   s.units,
		"store":   s.store != nil,
	})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		httputil.ServiceUnavailable(w, "no run store configured")
		return false
	}
	return true
}

func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*pipeline.AnalysisResult, bool) {
	if !s.requireStore(w) {
		return nil, false
	}
	id := r.PathValue("id")
	res, err := s.store.GetRun(id)
	if err != nil {
		s.writeStoreError(w, id, err)
		return nil, false
	}
	return res, true
}

func (s *Server) writeStoreError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, sqlite.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("run %s not found", id))
		return
	}
	s.logger.Error("[API] store error", "run_id", id, "error", err)
	httputil.InternalServerError(w, err.Error())
}
