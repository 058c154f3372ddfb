package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedSchedule is matched (via errors.Is) by every parse failure.
var ErrMalformedSchedule = errors.New("malformed schedule string")

// MalformedScheduleError reports why a single schedule string was rejected.
type MalformedScheduleError struct {
	Input  string
	Reason string
}

func (e *MalformedScheduleError) Error() string {
	return fmt.Sprintf("malformed schedule %q: %s", e.Input, e.Reason)
}

func (e *MalformedScheduleError) Is(target error) bool {
	return target == ErrMalformedSchedule
}

const (
	dateLayout  = "1/2/2006"
	clockLayout = "3:04 PM"
	untilLayout = "20060102"
	rangeSep    = " - "
)

// weekdayCodes maps the export's three-letter day names (lower-cased) to
// RFC 5545 BYDAY codes. Read-only after init.
var weekdayCodes = map[string]string{
	"mon": "MO",
	"tue": "TU",
	"wed": "WE",
	"thu": "TH",
	"fri": "FR",
	"sat": "SA",
	"sun": "SU",
}

// Meeting is the normalized result of parsing one schedule string.
// Start and End share the first date of the range; the end date of the
// range only bounds the recurrence.
type Meeting struct {
	Start    time.Time
	End      time.Time
	Location string
	RRule    string
}

// Parse turns a schedule string such as
//
//	09/03/2024 - 12/06/2024|Mon Wed|10:00 AM - 11:20 AM|Building A 101
//
// into a Meeting. Segments past the fourth are rejoined into the location.
// All returned times are wall-clock values in UTC.
func Parse(s string) (Meeting, error) {
	fail := func(format string, args ...any) (Meeting, error) {
		return Meeting{}, &MalformedScheduleError{Input: s, Reason: fmt.Sprintf(format, args...)}
	}

	parts := strings.Split(s, "|")
	if len(parts) < 4 {
		return fail("expected 4 pipe-separated segments, got %d", len(parts))
	}
	datePart, daysPart, timePart := parts[0], parts[1], parts[2]
	location := strings.TrimSpace(strings.Join(parts[3:], " "))

	startDate, endDate, err := splitRange(datePart)
	if err != nil {
		return fail("date range: %v", err)
	}
	first, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return fail("start date %q: %v", startDate, err)
	}
	last, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return fail("end date %q: %v", endDate, err)
	}

	startClock, endClock, err := splitRange(timePart)
	if err != nil {
		return fail("time range: %v", err)
	}
	startTOD, err := parseClock(startClock)
	if err != nil {
		return fail("start time %q: %v", startClock, err)
	}
	endTOD, err := parseClock(endClock)
	if err != nil {
		return fail("end time %q: %v", endClock, err)
	}
	if endTOD <= startTOD {
		return fail("end time %q is not after start time %q", endClock, startClock)
	}

	days, err := dayCodes(daysPart)
	if err != nil {
		return fail("%v", err)
	}

	return Meeting{
		Start:    first.Add(startTOD),
		End:      first.Add(endTOD),
		Location: location,
		RRule:    WeeklyRule(last, days),
	}, nil
}

// WeeklyRule renders FREQ=WEEKLY;UNTIL=<until>T235959Z;BYDAY=<days>.
func WeeklyRule(until time.Time, days []string) string {
	return fmt.Sprintf("FREQ=WEEKLY;UNTIL=%sT235959Z;BYDAY=%s", until.Format(untilLayout), strings.Join(days, ","))
}

func splitRange(s string) (string, string, error) {
	bounds := strings.Split(s, rangeSep)
	if len(bounds) != 2 {
		return "", "", fmt.Errorf("expected %q between two values in %q", rangeSep, s)
	}
	return strings.TrimSpace(bounds[0]), strings.TrimSpace(bounds[1]), nil
}

// parseClock parses "10:00 AM", "1:30p.m.", "9:05  am" and similar into a
// duration since midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, normalizeClock(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func normalizeClock(s string) string {
	s = strings.ToUpper(strings.ReplaceAll(s, ".", ""))
	s = strings.Join(strings.Fields(s), " ")
	for _, suffix := range []string{"AM", "PM"} {
		if strings.HasSuffix(s, suffix) && !strings.HasSuffix(s, " "+suffix) {
			s = strings.TrimSuffix(s, suffix) + " " + suffix
		}
	}
	return s
}

func dayCodes(s string) ([]string, error) {
	names := strings.Fields(s)
	if len(names) == 0 {
		return nil, errors.New("no meeting days")
	}
	codes := make([]string, 0, len(names))
	for _, name := range names {
		code, ok := weekdayCodes[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("unknown day %q", name)
		}
		codes = append(codes, code)
	}
	return codes, nil
}
