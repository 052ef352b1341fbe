package ingest

import (
	"fmt"
	"slices"

	"github.com/banshee-data/labrun/internal/series"
)

// ReadRecorder reads and concatenates every datarecorder file in folder, in
// name order. Later files may order their columns differently; cells are
// aligned to the first file's header by name. Sample order is file order.
func (r *Reader) ReadRecorder(folder string) (series.RecorderTable, error) {
	files, err := CSVFiles(r.fs, folder)
	if err != nil {
		return series.RecorderTable{}, fmt.Errorf("datarecorder: %w", err)
	}

	var table series.RecorderTable
	for i, path := range files {
		header, rows, err := r.readCSV(path, r.opts.RecorderDelimiter, false)
		if err != nil {
			return series.RecorderTable{}, err
		}
		tcol := columnIndex(header, r.opts.RecorderTimeColumn)
		if tcol < 0 {
			return series.RecorderTable{}, fmt.Errorf("%w: %s has no %q column", ErrMissingSource, path, r.opts.RecorderTimeColumn)
		}

		rest := slices.Delete(slices.Clone(header), tcol, tcol+1)
		if i == 0 {
			table.TimeColumn = header[tcol]
			table.Columns = rest
		}
		// src[k] is the position in this file of table column k.
		src := make([]int, len(table.Columns))
		for k, name := range table.Columns {
			src[k] = columnIndex(header, name)
			if src[k] < 0 {
				return series.RecorderTable{}, fmt.Errorf("%w: %s has no %q column", ErrMissingSource, path, name)
			}
		}

		for _, rec := range rows {
			raw := rec.cell(tcol)
			ts, err := ParseTimestamp(raw, r.opts.Location)
			if err != nil {
				return series.RecorderTable{}, &ParseError{File: path, Line: rec.line, Column: header[tcol], Value: raw, Err: err}
			}
			fields := make([]string, len(src))
			for k, j := range src {
				fields[k] = rec.cell(j)
			}
			table.Samples = append(table.Samples, series.Sample{Time: ts, Fields: fields})
		}
	}
	return table, nil
}
