package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tradedash/internal/chart"
	"tradedash/internal/chart/render"
	"tradedash/internal/config"
	"tradedash/internal/dashboard"
)

//go:embed templates/index.html
var templates embed.FS

const (
	defaultFetchLimit = 50
	maxFetchLimit     = 500
	maxImageSide      = 4096
)

// Server serves the dashboard page, its JSON API and the live websocket.
type Server struct {
	app      *dashboard.App
	log      *zap.Logger
	mux      *http.ServeMux
	server   *http.Server
	page     *template.Template
	upgrader websocket.Upgrader

	mu       sync.Mutex
	closing  bool
	sessions map[*session]struct{}
	wg       sync.WaitGroup
}

type chartsResponse struct {
	dashboard.Figures
	Plotly chart.PlotlyFigures `json:"plotly"`
}

func newChartsResponse(figs dashboard.Figures) chartsResponse {
	return chartsResponse{Figures: figs, Plotly: figs.Charts.Plotly()}
}

func NewServer(addr string, app *dashboard.App, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		app:      app,
		log:      log.Named("server"),
		mux:      mux,
		page:     template.Must(template.ParseFS(templates, "templates/index.html")),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		sessions: make(map[*session]struct{}),
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/options", s.handleOptions)
	s.mux.HandleFunc("GET /api/charts", s.handleCharts)
	s.mux.HandleFunc("GET /api/charts/{file}", s.handleChartImage)
	s.mux.HandleFunc("GET /api/fetches", s.handleFetches)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, closes live websocket sessions and
// waits for them to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	err := s.server.Shutdown(ctx)

	s.mu.Lock()
	for sess := range s.sessions {
		sess.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Options  config.Options
		Defaults dashboard.Inputs
	}{
		Options:  s.app.Options(),
		Defaults: s.app.DefaultInputs(),
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.log.Error("failed to render page", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.log)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Options(), s.log)
}

// handleCharts always answers 200: unavailable data is empty charts.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	figs := s.app.Refresh(r.Context(), s.inputsFromRequest(r))
	writeJSON(w, http.StatusOK, newChartsResponse(figs), s.log)
}

func (s *Server) handleChartImage(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	name, ok := strings.CutSuffix(file, ".png")
	if !ok {
		writeError(w, http.StatusNotFound, "unknown chart file "+file, s.log)
		return
	}
	kind, ok := chart.ParseKind(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown chart kind "+name, s.log)
		return
	}
	if kind == chart.KindFlow {
		writeError(w, http.StatusBadRequest, render.ErrUnsupported.Error(), s.log)
		return
	}

	opts := render.Options{
		Width:  intParam(r, "width", 0, maxImageSide),
		Height: intParam(r, "height", 0, maxImageSide),
	}
	figs := s.app.Refresh(r.Context(), s.inputsFromRequest(r))

	var buf bytes.Buffer
	if err := render.Figures(&buf, figs.Charts, kind, opts); err != nil {
		s.log.Error("failed to render chart", zap.String("kind", string(kind)), zap.String("id", figs.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render chart", s.log)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Refresh-Id", figs.ID)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleFetches(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", defaultFetchLimit, maxFetchLimit)
	events, err := s.app.Journal().ListFetches(r.Context(), limit)
	if err != nil {
		s.log.Error("failed to list fetches", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list fetches", s.log)
		return
	}
	writeJSON(w, http.StatusOK, events, s.log)
}

// inputsFromRequest reads the control values from the query string. A
// parameter that is absent takes the dashboard default; one that is present
// is passed through as given, even when empty.
func (s *Server) inputsFromRequest(r *http.Request) dashboard.Inputs {
	in := s.app.DefaultInputs()
	q := r.URL.Query()
	if q.Has("reporter") {
		in.Reporter = q.Get("reporter")
	}
	if q.Has("partner") {
		in.Partner = q.Get("partner")
	}
	if q.Has("year") {
		in.Year = q.Get("year")
	}
	if q.Has("commodity") {
		in.Classification = q.Get("commodity")
	} else if q.Has("classification") {
		in.Classification = q.Get("classification")
	}
	return in
}

func intParam(r *http.Request, key string, fallback, max int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, value any, log *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string, log *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": message}, log)
}
