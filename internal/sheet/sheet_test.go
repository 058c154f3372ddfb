package sheet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeWorkbook creates a workbook whose first sheet holds values.
func writeWorkbook(t *testing.T, values map[string]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for coord, v := range values {
		require.NoError(t, f.SetCellValue(sheet, coord, v))
	}
	path := filepath.Join(t.TempDir(), "View_My_Courses.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestOpenReadsFirstSheet(t *testing.T) {
	path := writeWorkbook(t, map[string]string{
		"A1": "Fall 2024",
		"G4": "CS 101",
		"K4": "09/03/2024 - 12/06/2024|Mon Wed|10:00 AM - 11:20 AM|Building A 101\n09/05/2024 - 12/06/2024|Thu|2:00 PM - 3:50 PM|Lab 2",
	})

	cells, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, "Fall 2024", cells["A1"])
	assert.Equal(t, "CS 101", cells["G4"])
	assert.Contains(t, cells["K4"], "\n09/05/2024")
	_, ok := cells["B2"]
	assert.False(t, ok, "empty cells must be absent")
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingInputFile))
}

func TestOpenNotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingInputFile))
}

func TestFetcherCachesWithETag(t *testing.T) {
	workbook, err := os.ReadFile(writeWorkbook(t, map[string]string{"A1": "Remote"}))
	require.NoError(t, err)

	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(workbook)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	ctx := context.Background()

	path, err := f.Resolve(ctx, srv.URL+"/export.xlsx?token=secret")
	require.NoError(t, err)
	cells, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "Remote", cells["A1"])

	again, err := f.Resolve(ctx, srv.URL+"/export.xlsx?token=secret")
	require.NoError(t, err)
	assert.Equal(t, path, again)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(1), notModified.Load())
}

func TestFetcherFallsBackToCache(t *testing.T) {
	workbook, err := os.ReadFile(writeWorkbook(t, map[string]string{"A1": "Cached"}))
	require.NoError(t, err)

	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(workbook)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	first, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	fail.Store(true)
	second, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = NewFetcher(t.TempDir()).Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestResolveLocalPath(t *testing.T) {
	path, err := NewFetcher(t.TempDir()).Resolve(context.Background(), "courses.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "courses.xlsx", path)
	assert.False(t, IsRemote(path))
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/a/b?token=x"))
}
