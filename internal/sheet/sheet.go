// Package sheet flattens the first worksheet of an .xlsx workbook into a
// cell-coordinate to value mapping.
package sheet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/xuri/excelize/v2"

	appLog "courseics/internal/log"
)

// ErrMissingInputFile is returned when the workbook does not exist.
var ErrMissingInputFile = errors.New("input file not found")

// Cells maps coordinates such as "K4" to the cell's text. Empty cells are
// absent.
type Cells map[string]string

// Open reads the first worksheet of the workbook at path.
func Open(path string) (Cells, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInputFile, path)
		}
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no worksheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", sheets[0], err)
	}

	cells := make(Cells)
	for r, row := range rows {
		for c, value := range row {
			if value == "" {
				continue
			}
			coord, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				// Out-of-range coordinates are treated as absent.
				appLog.Debug("sheet: skipping cell", "row", r+1, "col", c+1, "err", err)
				continue
			}
			cells[coord] = value
		}
	}

	appLog.Info("sheet loaded", "path", path, "worksheet", sheets[0], "cells", len(cells))
	return cells, nil
}
