package ics

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"courseics/internal/model"
)

const (
	DefaultProductID = "-//courseics//Course Schedule//EN"

	// ColorProperty is the vendor extension carrying an event color.
	ColorProperty = "X-APPLE-CALENDAR-COLOR"

	uidDomain   = "@courseics"
	localLayout = "20060102T150405"
	utcLayout   = "20060102T150405Z"
	crlf        = "\r\n"
)

// uidNamespace seeds name-based UIDs so the same event gets the same UID on
// every run.
var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://courseics/vevent"))

// byDayWeekday maps BYDAY codes to their time.Weekday.
var byDayWeekday = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// Serializer renders event records as RFC 5545 text.
type Serializer struct {
	ProductID string
	// DefaultZone is the TZID used for events without their own zone, and the
	// X-WR-TIMEZONE announced by every calendar.
	DefaultZone string
	FoldWidth   int
	// Now stamps DTSTAMP; time.Now when nil.
	Now func() time.Time
}

// NewSerializer returns a Serializer with the default product ID and fold
// width.
func NewSerializer(defaultZone string) *Serializer {
	return &Serializer{
		ProductID:   DefaultProductID,
		DefaultZone: defaultZone,
		FoldWidth:   DefaultFoldWidth,
	}
}

func (s *Serializer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// VEvent renders one event as folded physical lines, BEGIN:VEVENT through
// END:VEVENT.
func (s *Serializer) VEvent(ev model.EventRecord) []string {
	start, end := Anchor(ev.Start, ev.End, ev.RRule)

	zone := ev.Zone
	if zone == "" {
		zone = s.DefaultZone
	}
	uid := ev.UID
	if uid == "" {
		uid = EventUID(start, ev.Summary, ev.Location)
	}

	lines := []string{
		"BEGIN:VEVENT",
		"UID:" + uid,
		"DTSTAMP:" + s.now().UTC().Format(utcLayout),
		"DTSTART;TZID=" + zone + ":" + start.Format(localLayout),
		"DTEND;TZID=" + zone + ":" + end.Format(localLayout),
		"SUMMARY:" + Escape(ev.Summary),
	}
	if ev.Description != "" {
		lines = append(lines, "DESCRIPTION:"+Escape(ev.Description))
	}
	if ev.Location != "" {
		lines = append(lines, "LOCATION:"+Escape(ev.Location))
	}
	if ev.RRule != "" {
		lines = append(lines, "RRULE:"+ev.RRule)
	}
	if ev.Color != "" {
		lines = append(lines, ColorProperty+":"+ev.Color)
	}
	lines = append(lines, "END:VEVENT")

	return s.fold(lines)
}

// Calendar renders a whole VCALENDAR document with CRLF line endings.
func (s *Serializer) Calendar(doc model.CalendarDocument) []byte {
	productID := s.ProductID
	if productID == "" {
		productID = DefaultProductID
	}
	lines := s.fold([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"CALSCALE:GREGORIAN",
		"PRODID:" + productID,
		"X-WR-CALNAME:" + Escape(doc.Name),
		"X-WR-TIMEZONE:" + s.DefaultZone,
	})
	for _, ev := range doc.Events {
		lines = append(lines, s.VEvent(ev)...)
	}
	lines = append(lines, "END:VCALENDAR")

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString(crlf)
	}
	return []byte(b.String())
}

func (s *Serializer) fold(lines []string) []string {
	width := s.FoldWidth
	if width <= 0 {
		width = DefaultFoldWidth
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, Fold(l, width)...)
	}
	return out
}

// Anchor moves start and end forward by the smallest number of days (0-6)
// that lands start on one of the rule's BYDAY weekdays. Without a BYDAY
// list the times are returned unchanged.
func Anchor(start, end time.Time, rrule string) (time.Time, time.Time) {
	days := byDays(rrule)
	if len(days) == 0 {
		return start, end
	}
	shift := 7
	for _, wd := range days {
		if d := (int(wd) - int(start.Weekday()) + 7) % 7; d < shift {
			shift = d
		}
	}
	return start.AddDate(0, 0, shift), end.AddDate(0, 0, shift)
}

// byDays extracts the weekdays of a BYDAY part, ignoring ordinal prefixes
// such as "1MO" and unknown codes.
func byDays(rrule string) []time.Weekday {
	var out []time.Weekday
	for _, part := range strings.Split(rrule, ";") {
		key, value, ok := strings.Cut(part, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "BYDAY") {
			continue
		}
		for _, code := range strings.Split(value, ",") {
			code = strings.ToUpper(strings.TrimSpace(code))
			if len(code) < 2 {
				continue
			}
			if wd, ok := byDayWeekday[code[len(code)-2:]]; ok {
				out = append(out, wd)
			}
		}
	}
	return out
}

// EventUID derives a stable UID from the anchored start, summary and
// location.
func EventUID(start time.Time, summary, location string) string {
	name := start.Format(localLayout) + "\x00" + summary + "\x00" + location
	return uuid.NewSHA1(uidNamespace, []byte(name)).String() + uidDomain
}
