package ics

import (
	"strings"

	"courseics/internal/model"
)

// Group splits events into one document per category. Documents are
// ordered by the first appearance of their category and keep the input
// order of their events.
func Group(events []model.EventRecord) []model.CalendarDocument {
	index := make(map[string]int)
	var docs []model.CalendarDocument
	for _, ev := range events {
		i, ok := index[ev.Category]
		if !ok {
			i = len(docs)
			index[ev.Category] = i
			docs = append(docs, model.CalendarDocument{Name: ev.Category})
		}
		docs[i].Events = append(docs[i].Events, ev)
	}
	return docs
}

var fileNameReplacer = strings.NewReplacer("/", "_", `\`, "_", "\x00", "")

// FileName returns the output file name for a category, e.g. "Fall.ics".
func FileName(category string) string {
	name := strings.TrimSpace(fileNameReplacer.Replace(category))
	if name == "" || name == "." || name == ".." {
		name = "calendar"
	}
	return name + ".ics"
}
