// Package convert runs the spreadsheet to iCalendar pipeline:
// workbook → event records → staging table → calendar files.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"courseics/internal/config"
	"courseics/internal/ics"
	appLog "courseics/internal/log"
	"courseics/internal/model"
	"courseics/internal/schedule"
	"courseics/internal/sheet"
	"courseics/internal/staging"
)

// ErrOutputExists is returned when a file would be replaced while
// overwriting is disabled.
var ErrOutputExists = errors.New("output file exists")

// Document is one rendered calendar ready to be written.
type Document struct {
	Name     string
	FileName string
	Events   int
	Body     []byte
}

// Report summarizes a conversion run.
type Report struct {
	Events  int
	Skipped []schedule.Skipped
	Files   []string
}

// Converter holds the collaborators of a run. The zero value is not usable;
// use New.
type Converter struct {
	cfg     *config.Config
	fetcher *sheet.Fetcher

	// Now stamps DTSTAMP; time.Now when nil.
	Now func() time.Time
}

// New returns a Converter for cfg.
func New(cfg *config.Config) *Converter {
	return &Converter{
		cfg:     cfg,
		fetcher: sheet.NewFetcher(cfg.CacheDir),
	}
}

// Layout maps the configured columns onto a schedule.Layout.
func Layout(cfg *config.Config) schedule.Layout {
	return schedule.Layout{
		SummaryColumn:    cfg.Columns.Section,
		DateColumn:       cfg.Columns.Date,
		FormatColumn:     cfg.Columns.Format,
		DeliveryColumn:   cfg.Columns.Delivery,
		InstructorColumn: cfg.Columns.Instructor,
		CategoryCell:     cfg.CategoryCell,
		DefaultCategory:  cfg.DefaultCategory,
		FirstDataRow:     cfg.FirstDataRow,
		Color:            cfg.Color,
	}
}

// Events reads the workbook and expands it into event records. Skipped
// schedule strings are logged and returned in the result.
func (c *Converter) Events(ctx context.Context) (schedule.Result, error) {
	path, err := c.fetcher.Resolve(ctx, c.cfg.Input)
	if err != nil {
		return schedule.Result{}, fmt.Errorf("resolve input: %w", err)
	}

	cells, err := sheet.Open(path)
	if err != nil {
		return schedule.Result{}, err
	}

	res := schedule.BuildEvents(cells, Layout(c.cfg))
	for _, sk := range res.Skipped {
		appLog.Warn("skipping malformed schedule item", "row", sk.Row, "item", sk.Item, "reason", sk.Err)
	}
	appLog.Info("events built", "events", len(res.Events), "skipped", len(res.Skipped))
	return res, nil
}

// Render groups events by category and serializes each group.
func (c *Converter) Render(events []model.EventRecord) ([]Document, error) {
	s := ics.NewSerializer(c.cfg.Timezone)
	s.ProductID = c.cfg.ProductID
	s.Now = c.Now

	docs := ics.Group(events)
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		body := s.Calendar(doc)
		sum, err := ics.Verify(body)
		if err != nil {
			return nil, fmt.Errorf("calendar %q failed verification: %w", doc.Name, err)
		}
		if sum.Events != len(doc.Events) {
			return nil, fmt.Errorf("calendar %q: wrote %d events, read back %d", doc.Name, len(doc.Events), sum.Events)
		}
		out = append(out, Document{
			Name:     doc.Name,
			FileName: ics.FileName(doc.Name),
			Events:   len(doc.Events),
			Body:     body,
		})
	}
	return out, nil
}

// Run performs a full conversion and writes one .ics file per category.
func (c *Converter) Run(ctx context.Context) (Report, error) {
	var report Report

	if err := c.checkWritable(c.cfg.StagingFile); err != nil {
		return report, err
	}

	res, err := c.Events(ctx)
	if err != nil {
		return report, err
	}
	report.Skipped = res.Skipped

	if err := staging.WriteFile(c.cfg.StagingFile, res.Events); err != nil {
		return report, fmt.Errorf("write staging table: %w", err)
	}
	appLog.Info("staging table written", "path", c.cfg.StagingFile, "events", len(res.Events))
	if !c.cfg.KeepStaging {
		defer func() {
			if err := os.Remove(c.cfg.StagingFile); err != nil {
				appLog.Error("failed to remove staging table", err, "path", c.cfg.StagingFile)
				return
			}
			appLog.Info("removed staging table", "path", c.cfg.StagingFile)
		}()
	}

	events, err := staging.ReadFile(c.cfg.StagingFile)
	if err != nil {
		return report, fmt.Errorf("read staging table: %w", err)
	}
	report.Events = len(events)

	docs, err := c.Render(events)
	if err != nil {
		return report, err
	}

	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return report, err
	}
	targets := make([]string, len(docs))
	for i, doc := range docs {
		targets[i] = filepath.Join(c.cfg.OutputDir, doc.FileName)
		if err := c.checkWritable(targets[i]); err != nil {
			return report, err
		}
	}

	for i, doc := range docs {
		if err := os.WriteFile(targets[i], doc.Body, 0o644); err != nil {
			return report, fmt.Errorf("write %s: %w", targets[i], err)
		}
		appLog.Info("calendar written", "path", targets[i], "events", doc.Events, "bytes", len(doc.Body))
		report.Files = append(report.Files, targets[i])
	}

	return report, nil
}

// checkWritable enforces the overwrite setting for path.
func (c *Converter) checkWritable(path string) error {
	if c.cfg.Overwrite {
		return nil
	}
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s (enable overwrite to replace it)", ErrOutputExists, path)
	case errors.Is(err, fs.ErrNotExist):
		return nil
	default:
		return err
	}
}
