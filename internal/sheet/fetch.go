package sheet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "courseics/internal/log"
)

// cacheEntry holds HTTP cache metadata for a single workbook URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads remote workbooks with HTTP caching
// (ETag / Last-Modified) into a disk-backed cache.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher that stores downloads under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/xlsx-cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// IsRemote reports whether input names an http(s) URL.
func IsRemote(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// Resolve returns a local path for input. Local paths are returned as-is;
// URLs are downloaded (or served from cache) first.
func (f *Fetcher) Resolve(ctx context.Context, input string) (string, error) {
	if !IsRemote(input) {
		return input, nil
	}
	return f.Fetch(ctx, input)
}

// Fetch downloads rawURL into the cache, honoring ETag and Last-Modified,
// and returns the path of the cached workbook. When the server cannot be
// reached or answers with an error, a previously cached copy is used.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("workbook URL is empty")
	}

	cachePath := f.cachePathForURL(rawURL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return "", err
	}
	bodyFile := filepath.Join(cachePath, "workbook.xlsx")

	meta, _ := f.loadCacheMeta(cachePath)
	_, statErr := os.Stat(bodyFile)
	haveCached := statErr == nil

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	if haveCached {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("workbook fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if haveCached {
			appLog.Error("workbook fetch network error, using cached copy", err, "url", redactURL(rawURL))
			return bodyFile, nil
		}
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		newMeta := cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			return "", fmt.Errorf("cache workbook: %w", err)
		}
		appLog.Info("workbook fetch success", "url", redactURL(rawURL), "bytes", len(body))
		return bodyFile, nil

	case http.StatusNotModified:
		if !haveCached {
			return "", errors.New("received 304 Not Modified but no cached workbook available")
		}
		appLog.Info("workbook not modified; using cache", "url", redactURL(rawURL))
		return bodyFile, nil

	default:
		if haveCached {
			appLog.Error("workbook fetch non-OK, using cached copy", errors.New(resp.Status), "url", redactURL(rawURL), "status", resp.StatusCode)
			return bodyFile, nil
		}
		return "", errors.New(resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing workbook.
	if err := os.WriteFile(filepath.Join(cachePath, "workbook.xlsx"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; export links often embed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
