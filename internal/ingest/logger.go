package ingest

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/labrun/internal/series"
)

// LoggerDelimiter separates logger export fields.
const LoggerDelimiter = ';'

// Logger export columns after the leading index column is dropped. The raw
// headers carry encoded unit symbols, so columns are taken by position.
const (
	loggerTimeCol   = 0
	loggerValueCol  = 1
	loggerSerialCol = 2
)

// ReadLogger reads every logger export in folder. Each file yields one
// source slice, in name order, so the normaliser can decide how far serial
// numbers are forward-filled. Files are ISO-8859-1 encoded and use decimal
// commas.
func (r *Reader) ReadLogger(folder string) ([][]series.Reading, error) {
	files, err := CSVFiles(r.fs, folder)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	sources := make([][]series.Reading, 0, len(files))
	for _, path := range files {
		header, rows, err := r.readCSV(path, LoggerDelimiter, true)
		if err != nil {
			return nil, err
		}
		if len(header) < 4 {
			return nil, &ParseError{File: path, Line: 1,
				Err: fmt.Errorf("expected index, time, temperature and serial columns, got %d columns", len(header))}
		}

		name := filepath.Base(path)
		readings := make([]series.Reading, 0, len(rows))
		for _, rec := range rows {
			fields := record{line: rec.line, fields: rec.fields[1:]}

			rawTime := fields.cell(loggerTimeCol)
			ts, err := ParseTimestamp(rawTime, r.opts.Location)
			if err != nil {
				return nil, &ParseError{File: path, Line: rec.line, Column: "Time", Value: rawTime, Err: err}
			}
			rawValue := fields.cell(loggerValueCol)
			v, err := ParseDecimal(rawValue)
			if err != nil {
				return nil, &ParseError{File: path, Line: rec.line, Column: "Temperature_C", Value: rawValue, Err: err}
			}
			readings = append(readings, series.Reading{
				Time:     ts,
				SerialID: fields.cell(loggerSerialCol),
				Value:    v,
				Source:   name,
			})
		}
		sources = append(sources, readings)
	}
	return sources, nil
}
