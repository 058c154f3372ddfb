package schedule

import (
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"courseics/internal/model"
)

// Layout says where each event field lives in the worksheet.
type Layout struct {
	SummaryColumn    string
	DateColumn       string
	FormatColumn     string
	DeliveryColumn   string
	InstructorColumn string

	// CategoryCell is a single cell whose value names the category for
	// every row; DefaultCategory is used when it is empty.
	CategoryCell    string
	DefaultCategory string

	// FirstDataRow is the 1-based row index where data starts.
	FirstDataRow int

	Color string
}

// Skipped records one schedule string that could not be parsed.
type Skipped struct {
	Row  int
	Item string
	Err  error
}

// Result is the outcome of expanding a worksheet into events.
type Result struct {
	Events  []model.EventRecord
	Skipped []Skipped
}

// BuildEvents expands worksheet cells into event records, one per schedule
// string in each row's date cell. A malformed schedule string is collected in
// Result.Skipped and never stops its siblings or later rows.
func BuildEvents(cells map[string]string, layout Layout) Result {
	var res Result

	category := strings.TrimSpace(cells[layout.CategoryCell])
	if category == "" {
		category = layout.DefaultCategory
	}

	for _, row := range dataRows(cells, layout.FirstDataRow) {
		raw := strings.TrimSpace(cellAt(cells, layout.DateColumn, row))
		if raw == "" {
			continue
		}

		summary := cellAt(cells, layout.SummaryColumn, row)
		description := joinNonEmpty(
			cellAt(cells, layout.FormatColumn, row),
			cellAt(cells, layout.DeliveryColumn, row),
			cellAt(cells, layout.InstructorColumn, row),
		)

		for _, item := range strings.Split(raw, "\n") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			m, err := Parse(item)
			if err != nil {
				res.Skipped = append(res.Skipped, Skipped{Row: row, Item: item, Err: err})
				continue
			}
			res.Events = append(res.Events, model.EventRecord{
				Category:    category,
				Start:       m.Start,
				End:         m.End,
				Summary:     summary,
				Description: description,
				Location:    m.Location,
				RRule:       m.RRule,
				Color:       layout.Color,
			})
		}
	}

	return res
}

// dataRows returns the distinct row numbers >= first, ascending.
func dataRows(cells map[string]string, first int) []int {
	seen := make(map[int]struct{})
	for coord := range cells {
		_, row, err := excelize.SplitCellName(coord)
		if err != nil || row < first {
			continue
		}
		seen[row] = struct{}{}
	}
	rows := make([]int, 0, len(seen))
	for row := range seen {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	return rows
}

func cellAt(cells map[string]string, column string, row int) string {
	if column == "" {
		return ""
	}
	coord, err := excelize.JoinCellName(column, row)
	if err != nil {
		return ""
	}
	return cells[coord]
}

func joinNonEmpty(values ...string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, " ")
}
