package staging

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courseics/internal/model"
)

func sampleEvents() []model.EventRecord {
	return []model.EventRecord{
		{
			Category:    "Fall 2024",
			Start:       time.Date(2024, 9, 3, 10, 0, 0, 0, time.UTC),
			End:         time.Date(2024, 9, 3, 11, 20, 0, 0, time.UTC),
			Summary:     `CS 101 "Intro"`,
			Description: "Lecture In Person",
			Location:    "Building A, Room 101",
			RRule:       "FREQ=WEEKLY;UNTIL=20241206T235959Z;BYDAY=MO,WE",
		},
		{
			Category: "Fall 2024",
			Start:    time.Date(2024, 9, 5, 14, 0, 0, 0, time.UTC),
			End:      time.Date(2024, 9, 5, 15, 50, 0, 0, time.UTC),
			Summary:  "CS 101 Lab",
			Color:    "#FF9500",
		},
	}
}

func TestWriteQuotesEveryField(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleEvents()[:1]))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"category","start","end","summary","description","location","rrule","color"`, lines[0])
	assert.Equal(t,
		`"Fall 2024","2024-09-03T10:00","2024-09-03T11:20","CS 101 ""Intro""","Lecture In Person","Building A, Room 101","FREQ=WEEKLY;UNTIL=20241206T235959Z;BYDAY=MO,WE",""`,
		lines[1])
}

func TestWriteThenReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp_calendar.csv")
	want := sampleEvents()

	require.NoError(t, WriteFile(path, want))
	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadOptionalColumns(t *testing.T) {
	in := "start,end,summary,zone,uid\n" +
		"2024/09/03T10:00,2024-09-03T11:00:00,Seminar,Europe/Berlin,abc@x\n"

	got, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "Default", got[0].Category)
	assert.Equal(t, "Europe/Berlin", got[0].Zone)
	assert.Equal(t, "abc@x", got[0].UID)
	assert.Equal(t, time.Date(2024, 9, 3, 11, 0, 0, 0, time.UTC), got[0].End)
}

func TestReadErrors(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.Error(t, err)

	_, err = Read(strings.NewReader("category,summary\nA,B\n"))
	assert.ErrorContains(t, err, `"start"`)

	_, err = Read(strings.NewReader("start,end\nsoon,later\n"))
	assert.ErrorContains(t, err, "line 2")
}
