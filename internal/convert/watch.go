package convert

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/robfig/cron/v3"

	appLog "courseics/internal/log"
	"courseics/internal/sheet"
)

// Watcher re-runs the conversion on a cron schedule whenever the input
// workbook's content changes.
type Watcher struct {
	conv *Converter

	mu       sync.Mutex
	lastHash string
	ran      bool
}

// NewWatcher wraps conv. The first conversion honours the configured
// overwrite setting; later ones replace the files written before.
func NewWatcher(conv *Converter) *Watcher {
	return &Watcher{conv: conv}
}

// Check converts once if the input changed since the last successful run.
// It reports whether a conversion happened.
func (w *Watcher) Check(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path, err := w.conv.fetcher.Resolve(ctx, w.conv.cfg.Input)
	if err != nil {
		return false, err
	}
	hash, err := fileHash(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("%w: %s", sheet.ErrMissingInputFile, path)
	}
	if err != nil {
		return false, err
	}
	if w.ran && hash == w.lastHash {
		appLog.Debug("watch: input unchanged", "input", path)
		return false, nil
	}

	report, err := w.conv.Run(ctx)
	if err != nil {
		return false, err
	}
	if !w.ran {
		w.conv.cfg.Overwrite = true
	}
	w.ran = true
	w.lastHash = hash
	appLog.Info("watch: converted", "events", report.Events, "skipped", len(report.Skipped), "files", len(report.Files))
	return true, nil
}

// Run checks immediately, then on every tick of the cron expression expr until ctx is done.
func (w *Watcher) Run(ctx context.Context, expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return err
	}

	if _, err := w.Check(ctx); err != nil {
		if errors.Is(err, ErrOutputExists) {
			return err
		}
		appLog.Error("watch: initial conversion failed", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(expr, func() {
		if _, err := w.Check(ctx); err != nil {
			appLog.Error("watch: conversion failed", err)
		}
	}); err != nil {
		return err
	}

	appLog.Info("watch: started", "schedule", expr, "input", w.conv.cfg.Input)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("watch: stopped")
	return nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
