// Package staging reads and writes the intermediate CSV table that sits
// between spreadsheet extraction and calendar serialization.
package staging

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"courseics/internal/model"
)

// Columns is the fixed header written by Write.
var Columns = []string{"category", "start", "end", "summary", "description", "location", "rrule", "color"}

const defaultCategory = "Default"

// Write emits the header and one row per event. Every field is quoted.
func Write(w io.Writer, events []model.EventRecord) error {
	bw := bufio.NewWriter(w)
	if err := writeRow(bw, Columns); err != nil {
		return err
	}
	for _, ev := range events {
		row := []string{
			ev.Category,
			ev.Start.Format(model.DateTimeLayout),
			ev.End.Format(model.DateTimeLayout),
			ev.Summary,
			ev.Description,
			ev.Location,
			ev.RRule,
			ev.Color,
		}
		if err := writeRow(bw, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, fields []string) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := w.WriteString(`"` + strings.ReplaceAll(f, `"`, `""`) + `"`); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}

// WriteFile writes the staging table to path, replacing any existing file.
func WriteFile(path string, events []model.EventRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, events); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read parses a staging table. Columns are matched by header name, so the
// optional "zone" and "uid" columns may appear anywhere. Start and end are
// read as wall-clock times.
func Read(r io.Reader) ([]model.EventRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("staging: empty table")
		}
		return nil, fmt.Errorf("staging: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"start", "end"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("staging: missing %q column", required)
		}
	}

	var events []model.EventRecord
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("staging: %w", err)
		}
		line, _ := cr.FieldPos(0)

		get := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		start, err := parseLocal(get("start"))
		if err != nil {
			return nil, fmt.Errorf("staging: line %d: start: %w", line, err)
		}
		end, err := parseLocal(get("end"))
		if err != nil {
			return nil, fmt.Errorf("staging: line %d: end: %w", line, err)
		}

		category := get("category")
		if _, ok := index["category"]; !ok {
			category = defaultCategory
		}

		events = append(events, model.EventRecord{
			Category:    category,
			Start:       start,
			End:         end,
			Summary:     get("summary"),
			Description: get("description"),
			Location:    get("location"),
			RRule:       get("rrule"),
			Color:       get("color"),
			Zone:        get("zone"),
			UID:         get("uid"),
		})
	}
	return events, nil
}

// ReadFile reads the staging table at path.
func ReadFile(path string) ([]model.EventRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// parseLocal accepts "2024-09-03T10:00", with seconds, or with slashes as
// date separators.
func parseLocal(s string) (time.Time, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
	for _, layout := range []string{model.DateTimeLayout, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q", s)
}
