package ingest

import (
	"fmt"

	"github.com/banshee-data/labrun/internal/protocol"
)

// Protocol column names.
const (
	StartColumn = "start_time"
	EndColumn   = "end_time"
)

// ProtocolDelimiter separates protocol fields.
const ProtocolDelimiter = ';'

// ReadProtocol reads the protocol intervals of folder in file then row order.
// The machine selects which payload columns are read. Rows without start and
// end are skipped; a row with only one of them is a parse error.
func (r *Reader) ReadProtocol(folder string, machine protocol.Machine) ([]protocol.Interval, error) {
	files, err := CSVFiles(r.fs, folder)
	if err != nil {
		return nil, fmt.Errorf("protocol: %w", err)
	}

	var ivs []protocol.Interval
	for _, path := range files {
		header, rows, err := r.readCSV(path, ProtocolDelimiter, false)
		if err != nil {
			return nil, err
		}

		startCol, endCol := columnIndex(header, StartColumn), columnIndex(header, EndColumn)
		if startCol < 0 || endCol < 0 {
			return nil, fmt.Errorf("%w: %s needs %s and %s columns", ErrMissingSource, path, StartColumn, EndColumn)
		}
		payloadCols := machine.PayloadSource()
		payloadIdx := make([]int, len(payloadCols))
		for k, name := range payloadCols {
			payloadIdx[k] = columnIndex(header, name)
			if payloadIdx[k] < 0 {
				return nil, fmt.Errorf("%w: %s has no %q column required for %s", ErrMissingSource, path, name, machine)
			}
		}

		for _, rec := range rows {
			rawStart, rawEnd := rec.cell(startCol), rec.cell(endCol)
			if rawStart == "" && rawEnd == "" {
				continue
			}
			start, err := ParseTimestamp(rawStart, r.opts.Location)
			if err != nil {
				return nil, &ParseError{File: path, Line: rec.line, Column: StartColumn, Value: rawStart, Err: err}
			}
			end, err := ParseTimestamp(rawEnd, r.opts.Location)
			if err != nil {
				return nil, &ParseError{File: path, Line: rec.line, Column: EndColumn, Value: rawEnd, Err: err}
			}

			values := make([]float64, len(payloadIdx))
			for k, j := range payloadIdx {
				raw := rec.cell(j)
				if values[k], err = ParseDecimal(raw); err != nil {
					return nil, &ParseError{File: path, Line: rec.line, Column: payloadCols[k], Value: raw, Err: err}
				}
			}
			payload, err := machine.NewPayload(values)
			if err != nil {
				return nil, err
			}
			ivs = append(ivs, protocol.Interval{Start: start, End: end, Payload: payload})
		}
	}
	return ivs, nil
}
