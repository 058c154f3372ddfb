package ics

import (
	"bytes"
	"errors"
	"fmt"

	ical "github.com/arran4/golang-ical"
)

// Summary describes a calendar document read back from its serialized form.
type Summary struct {
	Name   string
	Events int
	UIDs   []string
}

// Verify parses a serialized calendar with an independent RFC 5545 reader and
// checks that every VEVENT carries a UID, a TZID-qualified DTSTART and a
// DTEND.
func Verify(body []byte) (Summary, error) {
	var out Summary
	if len(body) == 0 {
		return out, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("parse calendar: %w", err)
	}

	for _, p := range cal.CalendarProperties {
		if p.IANAToken == "X-WR-CALNAME" {
			out.Name = Unescape(p.Value)
		}
	}

	for i, ve := range cal.Events() {
		uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
		if uidProp == nil || uidProp.Value == "" {
			return out, fmt.Errorf("vevent %d: missing UID", i)
		}

		dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
		if dtStart == nil {
			return out, fmt.Errorf("vevent %s: missing DTSTART", uidProp.Value)
		}
		if tzs, ok := dtStart.ICalParameters["TZID"]; !ok || len(tzs) == 0 || tzs[0] == "" {
			return out, fmt.Errorf("vevent %s: DTSTART without TZID", uidProp.Value)
		}
		if ve.GetProperty(ical.ComponentPropertyDtEnd) == nil {
			return out, fmt.Errorf("vevent %s: missing DTEND", uidProp.Value)
		}

		out.UIDs = append(out.UIDs, uidProp.Value)
		out.Events++
	}

	return out, nil
}
