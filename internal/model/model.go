package model

import "time"

// DateTimeLayout is the ISO-like local date-time form used when events are
// staged as text ("2024-09-03T10:00").
const DateTimeLayout = "2006-01-02T15:04"

// EventRecord is one normalized meeting pattern produced from a schedule
// string. Start and End are wall-clock values; the zone they belong to is
// Zone, or the calendar default when Zone is empty.
type EventRecord struct {
	Category string

	Start time.Time
	End   time.Time

	Summary     string
	Description string
	Location    string

	// RRule is the raw recurrence rule value without the "RRULE:" prefix.
	RRule string
	Color string
	Zone  string

	// UID overrides the generated identifier when set.
	UID string
}

// CalendarDocument groups the events that share a category. One document
// becomes one .ics file.
type CalendarDocument struct {
	Name   string
	Events []EventRecord
}

// Occurrence represents a single concrete instance of an event
// (after recurrence expansion).
type Occurrence struct {
	Category string
	UID      string

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary     string
	Description string
	Location    string

	// Start / End are in the event's zone.
	Start time.Time
	End   time.Time
}
