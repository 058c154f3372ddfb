package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"
)

func TestParseExample(t *testing.T) {
	m, err := Parse("09/03/2024 - 12/06/2024|Mon Wed|10:00 AM - 11:20 AM|Building A 101")
	require.NoError(t, err)

	assert.Equal(t, "2024-09-03T10:00", m.Start.Format("2006-01-02T15:04"))
	assert.Equal(t, "2024-09-03T11:20", m.End.Format("2006-01-02T15:04"))
	assert.Equal(t, "Building A 101", m.Location)
	assert.Equal(t, "FREQ=WEEKLY;UNTIL=20241206T235959Z;BYDAY=MO,WE", m.RRule)

	_, err = rrule.StrToRRule(m.RRule)
	assert.NoError(t, err, "generated rule must be a valid RRULE")
}

func TestParseDeterministic(t *testing.T) {
	in := "01/08/2025 - 04/11/2025|Tue Thu|2:30 PM - 3:50 PM|Hall 2"
	a, err := Parse(in)
	require.NoError(t, err)
	b, err := Parse(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParsePreservesDayOrder(t *testing.T) {
	m, err := Parse("01/06/2025 - 04/11/2025|Fri Mon Wed|9:00 AM - 9:50 AM|Room 1")
	require.NoError(t, err)
	assert.Equal(t, "FREQ=WEEKLY;UNTIL=20250411T235959Z;BYDAY=FR,MO,WE", m.RRule)
}

func TestParseIrregularTimes(t *testing.T) {
	cases := map[string][2]string{
		"9:05  a.m. - 10:20 a.m.": {"09:05", "10:20"},
		"1:30p.m. - 2:45pm":       {"13:30", "14:45"},
		"12:00 PM - 12:50 PM":     {"12:00", "12:50"},
		"11:30 am - 12:20 pm":     {"11:30", "12:20"},
	}
	for clock, want := range cases {
		t.Run(clock, func(t *testing.T) {
			m, err := Parse("9/3/2024 - 12/6/2024|Mon|" + clock + "|X")
			require.NoError(t, err)
			assert.Equal(t, want[0], m.Start.Format("15:04"))
			assert.Equal(t, want[1], m.End.Format("15:04"))
			assert.Equal(t, time.Date(2024, 9, 3, 0, 0, 0, 0, time.UTC), m.Start.Truncate(24*time.Hour))
		})
	}
}

func TestParseLocationKeepsExtraSegments(t *testing.T) {
	m, err := Parse("09/03/2024 - 12/06/2024|Mon|10:00 AM - 11:00 AM|Building A|Room 101")
	require.NoError(t, err)
	assert.Equal(t, "Building A Room 101", m.Location)
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]string{
		"too few segments":  "09/03/2024 - 12/06/2024|Mon|10:00 AM - 11:00 AM",
		"bad date":          "13/45/2024 - 12/06/2024|Mon|10:00 AM - 11:00 AM|X",
		"single date":       "09/03/2024|Mon|10:00 AM - 11:00 AM|X",
		"bad time":          "09/03/2024 - 12/06/2024|Mon|25:00 AM - 11:00 AM|X",
		"unknown day":       "09/03/2024 - 12/06/2024|Mon Funday|10:00 AM - 11:00 AM|X",
		"no days":           "09/03/2024 - 12/06/2024| |10:00 AM - 11:00 AM|X",
		"end before start":  "09/03/2024 - 12/06/2024|Mon|11:00 AM - 10:00 AM|X",
		"missing time sep":  "09/03/2024 - 12/06/2024|Mon|10:00 AM to 11:00 AM|X",
		"empty":             "",
		"time without AMPM": "09/03/2024 - 12/06/2024|Mon|10:00 - 11:00|X",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedSchedule))

			var mse *MalformedScheduleError
			require.True(t, errors.As(err, &mse))
			assert.Equal(t, in, mse.Input)
			assert.NotEmpty(t, mse.Reason)
		})
	}
}
