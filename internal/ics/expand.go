package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "courseics/internal/log"
	"courseics/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DefaultZone is used for events without their own Zone.
	DefaultZone string

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// Expand turns event records into concrete occurrences inside the
// configured range. Events are anchored exactly as the serializer anchors
// them, so the first occurrence matches the written DTSTART.
func Expand(events []model.EventRecord, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	zones := make(map[string]*time.Location)

	for _, ev := range events {
		zone := ev.Zone
		if zone == "" {
			zone = cfg.DefaultZone
		}
		loc, ok := zones[zone]
		if !ok {
			loc = resolveLocation(zone)
			zones[zone] = loc
		}

		start, end := Anchor(ev.Start, ev.End, ev.RRule)
		start, end = inLocation(start, loc), inLocation(end, loc)

		uid := ev.UID
		if uid == "" {
			uid = EventUID(start, ev.Summary, ev.Location)
		}

		if ev.RRule == "" {
			if !timeRangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
				continue
			}
			result.Occurrences = append(result.Occurrences, makeOccurrence(ev, uid, start, end))
			continue
		}

		r, err := rrule.StrToRRule(ev.RRule)
		if err != nil {
			appLog.Error("expand: failed to parse RRULE", err, "uid", uid, "rrule", ev.RRule)
			continue
		}
		r.DTStart(start)

		times := r.Between(cfg.RangeStart, cfg.RangeEnd, true)
		if len(times) > cfg.MaxOccurrencesPerEvent {
			times = times[:cfg.MaxOccurrencesPerEvent]
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}

		dur := end.Sub(start)
		for _, occStart := range times {
			result.Occurrences = append(result.Occurrences, makeOccurrence(ev, uid, occStart, occStart.Add(dur)))
		}
	}

	return result, nil
}

func makeOccurrence(ev model.EventRecord, uid string, start, end time.Time) model.Occurrence {
	return model.Occurrence{
		Category:    ev.Category,
		UID:         uid,
		InstanceKey: uid + "/" + start.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       start,
		End:         end,
	}
}

// inLocation reinterprets a wall-clock time in loc without shifting it.
func inLocation(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
}

func resolveLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", name)
		return time.UTC
	}
	return loc
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
