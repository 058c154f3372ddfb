package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"courseics/internal/config"
	"courseics/internal/convert"
)

func newTestServer(t *testing.T, values map[string]string) (*Server, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Input = filepath.Join(dir, "courses.xlsx")
	cfg.CacheDir = filepath.Join(dir, "cache")

	if values != nil {
		f := excelize.NewFile()
		sheet := f.GetSheetName(0)
		for coord, v := range values {
			require.NoError(t, f.SetCellValue(sheet, coord, v))
		}
		require.NoError(t, f.SaveAs(cfg.Input))
		require.NoError(t, f.Close())
	}

	conv := convert.New(cfg)
	conv.Now = func() time.Time { return time.Date(2024, 8, 20, 12, 0, 0, 0, time.UTC) }

	s := NewServer(cfg, conv)
	s.now = func() time.Time { return time.Date(2024, 9, 9, 12, 0, 0, 0, time.UTC) }
	return s, cfg
}

var workbook = map[string]string{
	"A1": "Fall 2024",
	"G4": "CS 101",
	"K4": "09/03/2024 - 12/06/2024|Mon Wed|10:00 AM - 11:20 AM|Building A 101\n" +
		"09/05/2024 - 12/06/2024|Thu|2:00 PM - 3:50 PM|Lab 2",
	"G5": "CS 102",
	"K5": "not a schedule",
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCalendarsListing(t *testing.T) {
	s, _ := newTestServer(t, workbook)
	rec := do(t, s.Handler(), "/api/calendars")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp calendarsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Calendars, 1)
	assert.Equal(t, "Fall 2024", resp.Calendars[0].Name)
	assert.Equal(t, "Fall 2024.ics", resp.Calendars[0].FileName)
	assert.Equal(t, 2, resp.Calendars[0].Events)
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, 5, resp.Skipped[0].Row)
	assert.Equal(t, "America/Vancouver", resp.Timezone)
}

func TestCalendarFile(t *testing.T) {
	s, _ := newTestServer(t, workbook)
	h := s.Handler()

	for _, path := range []string{"/calendars/Fall%202024.ics", "/calendars/Fall%202024"} {
		rec := do(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
		body := rec.Body.String()
		assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n"))
		assert.Contains(t, body, "DTSTART;TZID=America/Vancouver:20240904T100000\r\n")
	}

	rec := do(t, h, "/calendars/Spring.ics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsWindow(t *testing.T) {
	s, _ := newTestServer(t, workbook)
	rec := do(t, s.Handler(), "/api/events?days=7")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp eventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "America/Vancouver", resp.Timezone)

	// Mon 9th and Wed 11th lectures plus Thu 12th lab.
	require.Len(t, resp.Occurrences, 3)
	days := map[int]bool{}
	for _, occ := range resp.Occurrences {
		days[occ.Start.Day()] = true
		assert.Equal(t, "Fall 2024", occ.Category)
	}
	assert.Equal(t, map[int]bool{9: true, 11: true, 12: true}, days)
}

func TestMissingWorkbook(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), "/api/calendars")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCacheServesStaleWorkbookWithinTTL(t *testing.T) {
	s, cfg := newTestServer(t, workbook)
	h := s.Handler()

	require.Equal(t, http.StatusOK, do(t, h, "/api/calendars").Code)
	require.NoError(t, os.Remove(cfg.Input))

	assert.Equal(t, http.StatusOK, do(t, h, "/api/calendars").Code)

	later := s.now().Add(cacheTTL)
	s.now = func() time.Time { return later }
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "/api/calendars").Code)
}

func TestBasicAuth(t *testing.T) {
	s, cfg := newTestServer(t, workbook)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, "/health").Code)

	rec := do(t, h, "/api/calendars")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/calendars", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/calendars", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
