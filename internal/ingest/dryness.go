package ingest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/banshee-data/labrun/internal/series"
)

// DrynessDelimiter separates dryness fields.
const DrynessDelimiter = ';'

// DroppedDrynessColumns are raw weighing columns that are not carried into
// the dryness table.
var DroppedDrynessColumns = []string{"m_before", "m_after", "m_diff", "n_set"}

// ReadDryness reads the dryness measurements of folder. Rows with any empty
// field are dropped before the weighing columns are removed.
func (r *Reader) ReadDryness(folder string) (series.DrynessTable, error) {
	files, err := CSVFiles(r.fs, folder)
	if err != nil {
		return series.DrynessTable{}, fmt.Errorf("dryness: %w", err)
	}

	var table series.DrynessTable
	for i, path := range files {
		header, rows, err := r.readCSV(path, DrynessDelimiter, false)
		if err != nil {
			return series.DrynessTable{}, err
		}

		var keep []int
		var cols []string
		for j, h := range header {
			if slices.ContainsFunc(DroppedDrynessColumns, func(d string) bool { return strings.EqualFold(d, h) }) {
				continue
			}
			keep = append(keep, j)
			cols = append(cols, h)
		}
		if i == 0 {
			table.Columns = cols
		} else if !slices.Equal(cols, table.Columns) {
			return series.DrynessTable{}, &ParseError{File: path, Line: 1,
				Err: fmt.Errorf("header %v does not match %v", cols, table.Columns)}
		}

	next:
		for _, rec := range rows {
			for j := range header {
				if rec.cell(j) == "" {
					continue next
				}
			}
			row := make([]string, len(keep))
			for k, j := range keep {
				row[k] = rec.cell(j)
			}
			table.Rows = append(table.Rows, row)
		}
	}
	return table, nil
}
