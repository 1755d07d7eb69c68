package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kaizen/internal/api"
	"kaizen/internal/catalog"
	"kaizen/internal/config"
	"kaizen/internal/logging"
	"kaizen/internal/media"
	"kaizen/internal/playback"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
	// done closes when the server stops; hijacked streams watch it because
	// Shutdown does not track them.
	done      chan struct{}
	closeOnce sync.Once
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
		done:   make(chan struct{}),
	}
	srv.server = &http.Server{
		Handler:           srv.handler(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) handler(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/projects", s.handleProjects)
	mux.HandleFunc("GET /api/projects/{id}/stages", s.handleStages)
	mux.HandleFunc("GET /api/stages/{id}", s.handleStage)
	mux.HandleFunc("GET /api/logs", s.handleLogs)

	mux.HandleFunc("GET /api/player", s.handlePlayer)
	mux.HandleFunc("GET /api/player/stream", s.handlePlayerStream)
	mux.HandleFunc("GET /api/player/markers", s.handleMarkers)
	mux.HandleFunc("POST /api/player/stage", s.handleLoadStage)
	mux.HandleFunc("POST /api/player/select", s.handleSelect)
	mux.HandleFunc("POST /api/player/play", s.command(func(ctx context.Context, c *playback.Controller) error { return c.Play(ctx) }))
	mux.HandleFunc("POST /api/player/pause", s.command(func(_ context.Context, c *playback.Controller) error { c.Pause(); return nil }))
	mux.HandleFunc("POST /api/player/restart", s.command(func(ctx context.Context, c *playback.Controller) error { return c.Restart(ctx) }))
	mux.HandleFunc("POST /api/player/next", s.command(func(ctx context.Context, c *playback.Controller) error { return c.NextProcess(ctx) }))
	mux.HandleFunc("POST /api/player/prev", s.command(func(ctx context.Context, c *playback.Controller) error { return c.PrevProcess(ctx) }))
	mux.HandleFunc("POST /api/player/narration/regenerate", s.command(func(_ context.Context, c *playback.Controller) error { return c.RegenerateNarration() }))
	mux.HandleFunc("POST /api/player/seek", s.handleSeek)
	mux.HandleFunc("POST /api/player/rate", s.handleRate)
	mux.HandleFunc("POST /api/player/muted", s.toggle((*playback.Controller).SetMuted))
	mux.HandleFunc("POST /api/player/looping", s.toggle((*playback.Controller).SetLooping))
	mux.HandleFunc("POST /api/player/global", s.toggle((*playback.Controller).SetGlobalMode))
	mux.HandleFunc("POST /api/player/narrator", s.toggle((*playback.Controller).SetNarratorActive))

	mux.HandleFunc("POST /api/annotations", s.handleAddAnnotation)

	if s.daemon.preview != nil {
		mux.HandleFunc("GET /api/preview", s.writePreview)
		mux.HandleFunc("POST /api/preview/load", s.handleLoadPreview)
		mux.HandleFunc("POST /api/preview/play", s.preview(func(ctx context.Context, p *playback.SinglePlayer) error { return p.Play(ctx) }))
		mux.HandleFunc("POST /api/preview/pause", s.preview(func(_ context.Context, p *playback.SinglePlayer) error { p.Pause(); return nil }))
		mux.HandleFunc("POST /api/preview/view", s.handlePreviewView)
		mux.HandleFunc("POST /api/preview/looping", s.handlePreviewLooping)
	}

	mux.HandleFunc("GET /api/subtitle", s.handleSubtitle)
	mux.HandleFunc("GET /api/subtitle/style", s.handleStyle)
	mux.HandleFunc("PUT /api/subtitle/style", s.handlePutStyle)

	mux.HandleFunc("GET /media", s.handleMedia)
	if s.daemon.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.daemon.registry, promhttp.HandlerOpts{}))
	}
	return requestIDMiddleware(authMiddleware(token, mux))
}

func (s *apiServer) start() error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() { close(s.done) })
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.catalog.Projects(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.daemon.catalog.Stages(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	resp, err := s.daemon.catalog.Stage(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handlePlayer(w http.ResponseWriter, r *http.Request) {
	s.writePlayer(w, r)
}

func (s *apiServer) handleMarkers(w http.ResponseWriter, r *http.Request) {
	leg := playback.LegBefore
	if value := strings.TrimSpace(r.URL.Query().Get("leg")); value != "" {
		parsed, err := playback.ParseLeg(value)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		leg = parsed
	}
	markers := s.daemon.controller.Markers(leg)
	if markers == nil {
		markers = []playback.Marker{}
	}
	s.writeJSON(w, http.StatusOK, api.MarkerResponse{Leg: leg, Markers: markers})
}

func (s *apiServer) handleLoadStage(w http.ResponseWriter, r *http.Request) {
	var req api.LoadStageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if _, err := s.daemon.LoadStage(r.Context(), req.StageID); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writePlayer(w, r)
}

func (s *apiServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req api.SelectRequest
	if !s.decode(w, r, &req) {
		return
	}
	c := s.daemon.controller
	var err error
	if req.Index != nil {
		err = c.PlayProcess(r.Context(), *req.Index)
	} else {
		err = c.SelectProcess(req.ProcessID)
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writePlayer(w, r)
}

func (s *apiServer) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req api.SeekRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.daemon.controller.Seek(req.Leg, req.Time); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.writePlayer(w, r)
}

func (s *apiServer) handleRate(w http.ResponseWriter, r *http.Request) {
	var req api.RateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.daemon.controller.SetPlaybackRate(req.Rate); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.writePlayer(w, r)
}

// command adapts a controller call without a request body.
func (s *apiServer) command(fn func(context.Context, *playback.Controller) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), s.daemon.controller); err != nil {
			s.writeFailure(w, r, err)
			return
		}
		s.writePlayer(w, r)
	}
}

func (s *apiServer) toggle(fn func(*playback.Controller, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.ToggleRequest
		if !s.decode(w, r, &req) {
			return
		}
		fn(s.daemon.controller, req.Enabled)
		s.writePlayer(w, r)
	}
}

func (s *apiServer) handleAddAnnotation(w http.ResponseWriter, r *http.Request) {
	var req api.AnnotationRequest
	if !s.decode(w, r, &req) {
		return
	}
	created, err := s.daemon.AddAnnotation(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *apiServer) handleLoadPreview(w http.ResponseWriter, r *http.Request) {
	var req api.PreviewLoadRequest
	if !s.decode(w, r, &req) {
		return
	}
	view := req.View
	if view != "" {
		parsed, err := playback.ParseLeg(string(view))
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		view = parsed
	}
	if err := s.daemon.LoadPreview(r.Context(), req.ProcessID, view); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writePreview(w, r)
}

func (s *apiServer) handlePreviewView(w http.ResponseWriter, r *http.Request) {
	var req api.ViewRequest
	if !s.decode(w, r, &req) {
		return
	}
	view, err := playback.ParseLeg(string(req.View))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.daemon.preview.SetView(view); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writePreview(w, r)
}

func (s *apiServer) handlePreviewLooping(w http.ResponseWriter, r *http.Request) {
	var req api.ToggleRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.daemon.preview.SetLooping(req.Enabled)
	s.writePreview(w, r)
}

// preview adapts a preview player call without a request body.
func (s *apiServer) preview(fn func(context.Context, *playback.SinglePlayer) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), s.daemon.preview); err != nil {
			s.writeFailure(w, r, err)
			return
		}
		s.writePreview(w, r)
	}
}

func (s *apiServer) writePreview(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.Preview(r.Context(), viewport(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleSubtitle(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.Player(r.Context(), api.Viewport{})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp.Subtitle)
}

func (s *apiServer) handleStyle(w http.ResponseWriter, r *http.Request) {
	style, err := s.daemon.catalog.Style(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StyleResponse{Style: style, BackgroundRGBA: style.BackgroundRGBA()})
}

func (s *apiServer) handlePutStyle(w http.ResponseWriter, r *http.Request) {
	current, err := s.daemon.catalog.Style(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	// Fields missing from the body keep their current values.
	if !s.decode(w, r, &current) {
		return
	}
	saved, err := s.daemon.catalog.SaveStyle(r.Context(), current)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.StyleResponse{Style: saved, BackgroundRGBA: saved.BackgroundRGBA()})
}

func (s *apiServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if strings.TrimSpace(src) == "" {
		s.writeError(w, r, http.StatusBadRequest, "src is required")
		return
	}
	path, err := media.ResolveLocator(src)
	if err != nil || !filepath.IsAbs(path) {
		s.writeError(w, r, http.StatusBadRequest, "src must be an absolute local-video locator")
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.writeError(w, r, http.StatusNotFound, "media not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.logHub
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: nil, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")

	var filterProcess int64
	if value := strings.TrimSpace(query.Get("process")); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			filterProcess = parsed
		}
	}
	component := strings.TrimSpace(query.Get("component"))
	session := strings.TrimSpace(query.Get("session"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = hub.Tail(limit)
	} else {
		fetched, cursor, err := hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		events, next = fetched, cursor
	}

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if filterProcess != 0 && evt.ProcessID != filterProcess {
			continue
		}
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if session != "" && evt.SessionID != session {
			continue
		}
		filtered = append(filtered, evt)
	}

	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{
		Events: filtered,
		Next:   next,
	})
}

func (s *apiServer) writePlayer(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.Player(r.Context(), viewport(r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// viewport reads the optional width and height query parameters. Anything
// unparsable counts as no viewport.
func viewport(r *http.Request) api.Viewport {
	q := r.URL.Query()
	width, errW := strconv.ParseFloat(q.Get("width"), 64)
	height, errH := strconv.ParseFloat(q.Get("height"), 64)
	if errW != nil || errH != nil {
		return api.Viewport{}
	}
	return api.Viewport{Width: width, Height: height}
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(dest); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// writeFailure maps domain errors onto status codes.
func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, playback.ErrUnknownProcess):
		s.writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, playback.ErrNoProcesses), errors.Is(err, api.ErrFrameUnknown), errors.Is(err, ErrPreviewUnavailable):
		s.writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, catalog.ErrInvalidProcess), errors.Is(err, api.ErrInvalidAnnotation):
		s.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		s.log().Error("api request failed",
			logging.String(logging.FieldCorrelationID, requestID(r.Context())),
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
		s.writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, RequestID: requestID(r.Context())})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
