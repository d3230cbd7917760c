package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/raysh454/medtriage/internal/analyzer"
	"github.com/raysh454/medtriage/internal/app"
	"github.com/raysh454/medtriage/internal/auth"
	"github.com/raysh454/medtriage/internal/history"
	"github.com/raysh454/medtriage/internal/logging"
	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/report"
	"github.com/raysh454/medtriage/internal/scanjob"
	"github.com/raysh454/medtriage/internal/settings"
)

// Server is the HTTP + WebSocket bridge a UI talks to.
type Server struct {
	cfg      Config
	app      *app.Application
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer creates a Server over an already wired Application.
func NewServer(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: nil application provided")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = cfg.App.Logger
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 << 20
	}

	s := &Server{
		cfg:    cfg,
		app:    cfg.App,
		router: chi.NewRouter(),
		logger: logger.With(logging.Field{Key: "component", Value: "server"}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// The bridge listens on loopback; CORS governs browser access.
				return true
			},
		},
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))

	// Gate
	r.Get("/auth", s.handleAuthStatus)
	r.Post("/auth/unlock", s.handleUnlock)
	r.Post("/auth/lock", s.handleLock)

	// Settings are readable before unlock so the lock screen can be themed.
	r.Get("/settings/theme", s.handleGetTheme)
	r.Put("/settings/theme", s.handlePutTheme)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUnlocked)

		// Scan job
		r.Get("/scan", s.handleGetScan)
		r.Post("/scan/select", s.handleSelect)
		r.Delete("/scan/select", s.handleCancelSelect)
		r.Post("/scan/submit", s.handleSubmit)
		r.Post("/scan/reset", s.handleReset)

		// History
		r.Get("/history", s.handleListHistory)
		r.Get("/history/{id}", s.handleGetEntry)
		r.Get("/history/{id}/report", s.handleReportHTML)
		r.Get("/history/{id}/report.txt", s.handleReportText)
		r.Get("/history/{id}/diff/{other}", s.handleDiff)
		r.Post("/history/{id}/export", s.handleExport)

		// WebSocket for job progress
		r.Get("/ws/scan", s.handleScanWS)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}
	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}
	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // allow streaming
	}
}

func (s *Server) requireUnlocked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.app.Gate.Unlocked() {
			writeError(w, http.StatusUnauthorized, auth.ErrLocked.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeTransitionError maps scan controller errors to status codes.
func (s *Server) writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scanjob.ErrJobInFlight), errors.Is(err, scanjob.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Warn("scan transition failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- HTTP handlers ---

// Gate

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UnlockResponse{Unlocked: s.app.Gate.Unlocked()})
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.app.Gate.Lock()
	writeJSON(w, http.StatusOK, UnlockResponse{Unlocked: false})
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var body UnlockRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	ok, err := s.app.Gate.UnlockWithInput(r.Context(), auth.Static(body.Passphrase))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, UnlockResponse{Unlocked: false})
		return
	}
	writeJSON(w, http.StatusOK, UnlockResponse{Unlocked: true})
}

// Settings

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: string(s.app.Preferences.Theme(r.Context()))})
}

func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var body ThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	theme, err := settings.ParseTheme(body.Theme)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.app.Preferences.SetTheme(r.Context(), theme); err != nil {
		s.logger.Warn("saving theme", logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: string(theme)})
}

// Scan job

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Scans.Current())
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	job, err := s.app.Scans.SelectFile()
	if err != nil {
		s.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelSelect(w http.ResponseWriter, r *http.Request) {
	job, err := s.app.Scans.CancelSelection()
	if err != nil {
		s.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	job, err := s.app.Scans.Reset()
	if err != nil {
		s.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleSubmit streams the "file" part of a multipart body to the scan
// controller. The response is the finished job; a failed scan is still 200.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart/form-data body")
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "No file uploaded")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if part.FormName() != analyzer.DefaultFieldName || part.FileName() == "" {
			part.Close()
			continue
		}

		up := analyzer.Upload{FileName: part.FileName(), Content: part}
		if ct := part.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
			if mt, _, err := mime.ParseMediaType(ct); err == nil {
				up.ContentType = mt
			}
		}
		job, err := s.app.Scans.Submit(r.Context(), up)
		part.Close()
		if err != nil {
			s.writeTransitionError(w, err)
			return
		}
		s.logger.Info("scan finished", logging.Field{Key: "job_id", Value: job.ID}, logging.Field{Key: "status", Value: string(job.Status)})
		writeJSON(w, http.StatusOK, job)
		return
	}
}

// History

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	entries := s.app.History.Load(r.Context())
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v >= 0 && v < len(entries) {
			entries = entries[:v]
		}
	}
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryResponse{HistoryEntry: e, Risk: model.ClassifyRisk(e.AnalysisResult)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request, param string) (model.HistoryEntry, bool) {
	id := chi.URLParam(r, param)
	entry, err := s.app.History.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return model.HistoryEntry{}, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return model.HistoryEntry{}, false
	}
	return entry, true
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r, "id")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, EntryResponse{HistoryEntry: entry, Risk: model.ClassifyRisk(entry.AnalysisResult)})
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r, "id")
	if !ok {
		return
	}
	html, err := report.Render(entry.AnalysisResult).HTML()
	if err != nil {
		s.logger.Warn("rendering report", logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}

func (s *Server) handleReportText(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(w, r, "id")
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report.Render(entry.AnalysisResult).Text())
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	base, ok := s.lookup(w, r, "id")
	if !ok {
		return
	}
	head, ok := s.lookup(w, r, "other")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, DiffResponse{
		BaseID:  base.ID,
		HeadID:  head.ID,
		Changes: report.Diff(report.Render(base.AnalysisResult), report.Render(head.AnalysisResult)),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var body ExportRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	id := chi.URLParam(r, "id")
	art, err := s.app.ExportEntry(r.Context(), id, report.Format(body.Format))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		// Render failures are a notice to the user; the entry is untouched.
		writeError(w, http.StatusUnprocessableEntity, model.AsScanError(err, model.KindRender).Message)
		return
	}
	resp := ExportResponse{Artifact: art}
	if body.Share {
		link, err := s.app.Share(r.Context(), art)
		if err != nil {
			writeError(w, http.StatusBadGateway, model.AsScanError(err, model.KindRender).Message)
			return
		}
		resp.Link = link
	}
	writeJSON(w, http.StatusCreated, resp)
}

// WebSockets

// handleScanWS sends the current job, then every job event until the client
// disconnects.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := s.app.Scans.Subscribe()
	defer unsubscribe()

	if err := conn.WriteJSON(s.app.Scans.Current()); err != nil {
		return
	}

	// Reads only detect the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

