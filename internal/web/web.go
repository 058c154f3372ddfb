package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"courseics/internal/config"
	"courseics/internal/convert"
	"courseics/internal/ics"
	appLog "courseics/internal/log"
	"courseics/internal/model"
	"courseics/internal/schedule"
	"courseics/internal/sheet"
)

const cacheTTL = 30 * time.Second

// Server exposes the converted calendars over HTTP.
type Server struct {
	cfg  *config.Config
	conv *convert.Converter
	mux  *http.ServeMux

	// now is used for cache expiry and the /api/events window.
	now func() time.Time

	// The converted workbook is cached so repeated requests do not re-read
	// the spreadsheet.
	mu    sync.RWMutex
	cache *renderCache
}

// renderCache holds one conversion result and its timestamp.
type renderCache struct {
	events    []model.EventRecord
	skipped   []schedule.Skipped
	docs      []convert.Document
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, conv *convert.Converter) *Server {
	s := &Server{
		cfg:  cfg,
		conv: conv,
		mux:  http.NewServeMux(),
		now:  time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials mean auth is off.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="courseics", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func Serve(ctx context.Context, cfg *config.Config, conv *convert.Converter) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, conv).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/calendars", s.handleCalendars)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /calendars/{name}", s.handleCalendarFile)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// load returns the cached conversion, refreshing it once cacheTTL has
// passed.
func (s *Server) load(ctx context.Context) (*renderCache, error) {
	now := s.now()

	s.mu.RLock()
	rc := s.cache
	s.mu.RUnlock()
	if rc != nil && now.Sub(rc.updatedAt) < cacheTTL {
		return rc, nil
	}

	res, err := s.conv.Events(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.conv.Render(res.Events)
	if err != nil {
		return nil, err
	}

	rc = &renderCache{
		events:    res.Events,
		skipped:   res.Skipped,
		docs:      docs,
		updatedAt: now,
	}
	s.mu.Lock()
	s.cache = rc
	s.mu.Unlock()
	return rc, nil
}

func (s *Server) loadOrFail(w http.ResponseWriter, r *http.Request) (*renderCache, bool) {
	rc, err := s.load(r.Context())
	if err != nil {
		appLog.Error("conversion failed", err, "path", r.URL.Path)
		if errors.Is(err, sheet.ErrMissingInputFile) {
			writeError(w, http.StatusServiceUnavailable, "input workbook not found")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to convert workbook")
		}
		return nil, false
	}
	return rc, true
}

// calendarDTO describes one generated calendar.
type calendarDTO struct {
	Name     string `json:"name"`
	FileName string `json:"file_name"`
	URL      string `json:"url"`
	Events   int    `json:"events"`
}

// skippedDTO is a JSON-friendly view of a skipped schedule item.
type skippedDTO struct {
	Row    int    `json:"row"`
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

type calendarsResponse struct {
	Calendars []calendarDTO `json:"calendars"`
	Skipped   []skippedDTO  `json:"skipped,omitempty"`
	Timezone  string        `json:"timezone"`
}

// handleCalendars lists the categories found in the workbook.
//
// GET /api/calendars
func (s *Server) handleCalendars(w http.ResponseWriter, r *http.Request) {
	rc, ok := s.loadOrFail(w, r)
	if !ok {
		return
	}

	resp := calendarsResponse{
		Calendars: make([]calendarDTO, 0, len(rc.docs)),
		Timezone:  s.cfg.Timezone,
	}
	for _, doc := range rc.docs {
		resp.Calendars = append(resp.Calendars, calendarDTO{
			Name:     doc.Name,
			FileName: doc.FileName,
			URL:      "/calendars/" + doc.FileName,
			Events:   doc.Events,
		})
	}
	for _, sk := range rc.skipped {
		resp.Skipped = append(resp.Skipped, skippedDTO{Row: sk.Row, Item: sk.Item, Reason: sk.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCalendarFile serves one generated calendar. The name may be given
// with or without the .ics extension.
//
// GET /calendars/{name}
func (s *Server) handleCalendarFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	want := name
	if !strings.HasSuffix(strings.ToLower(want), ".ics") {
		want = ics.FileName(name)
	}

	rc, ok := s.loadOrFail(w, r)
	if !ok {
		return
	}

	for _, doc := range rc.docs {
		if doc.FileName == want {
			w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
			w.Header().Set("Content-Disposition", `inline; filename="`+doc.FileName+`"`)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(doc.Body)
			return
		}
	}
	writeError(w, http.StatusNotFound, "calendar not found")
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Occurrences   []occurrenceDTO `json:"occurrences"`
	TruncatedUIDs []string        `json:"truncated_uids,omitempty"`
	RangeStart    time.Time       `json:"range_start"`
	RangeEnd      time.Time       `json:"range_end"`
	Timezone      string          `json:"timezone"`
}

// occurrenceDTO is a JSON-friendly view of occurrences.
type occurrenceDTO struct {
	Category    string    `json:"category"`
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// handleEvents returns expanded occurrences within a requested window.
//
// GET /api/events?days=7&backfill=0
//   - days:     how many days ahead to include (default 7)
//   - backfill: how many past days to include (default 0)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), 7)
	if days <= 0 {
		days = 7
	}
	backfill := parseIntDefault(q.Get("backfill"), 0)
	if backfill < 0 {
		backfill = 0
	}

	rc, ok := s.loadOrFail(w, r)
	if !ok {
		return
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	now := s.now().In(loc)
	rangeStart := now.AddDate(0, 0, -backfill)
	rangeEnd := now.AddDate(0, 0, days)

	appLog.Debug("api events request",
		"days", days,
		"backfill", backfill,
		"range_start", rangeStart.Format(time.RFC3339),
		"range_end", rangeEnd.Format(time.RFC3339),
	)

	result, err := ics.Expand(rc.events, ics.ExpandConfig{
		DefaultZone: s.cfg.Timezone,
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
	})
	if err != nil {
		appLog.Error("api events: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand events")
		return
	}

	dtos := make([]occurrenceDTO, 0, len(result.Occurrences))
	for _, occ := range result.Occurrences {
		dtos = append(dtos, occurrenceDTO{
			Category:    occ.Category,
			UID:         occ.UID,
			InstanceKey: occ.InstanceKey,
			Summary:     occ.Summary,
			Description: occ.Description,
			Location:    occ.Location,
			Start:       occ.Start,
			End:         occ.End,
		})
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Occurrences:   dtos,
		TruncatedUIDs: result.TruncatedEvents,
		RangeStart:    rangeStart,
		RangeEnd:      rangeEnd,
		Timezone:      loc.String(),
	})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
