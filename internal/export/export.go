// Package export renders run results as CSV. Tables are written without an
// index column, timestamps as "2006-01-02 15:04:05" in the run location and
// numbers in their shortest form with missing values left blank.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/banshee-data/labrun/internal/fsutil"
	"github.com/banshee-data/labrun/internal/protocol"
	"github.com/banshee-data/labrun/internal/series"
	"github.com/banshee-data/labrun/internal/summary"
)

// TimeLayout formats every timestamp cell.
const TimeLayout = time.DateTime

// RecorderFile names the filtered datarecorder output of a machine.
func RecorderFile(machine string) string {
	return machine + "_data_timestamps_filtered_datarecorder.csv"
}

// LoggerFile names the pivoted logger output of a machine.
func LoggerFile(machine string) string { return machine + "_data_usb_logger.csv" }

// SummaryFile names the per-interval summary output of a machine.
func SummaryFile(machine string) string { return machine + "_interval_summary.csv" }

// formatTime renders t as wall-clock time in loc, UTC when loc is nil. The
// layout carries no offset, so every cell of a file must share one location.
func formatTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimeLayout)
}

// WriteRecorder writes the filtered datarecorder table with times in loc.
func WriteRecorder(w io.Writer, tbl series.RecorderTable, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tbl.Header()); err != nil {
		return err
	}
	row := make([]string, 0, len(tbl.Columns)+1)
	for _, s := range tbl.Samples {
		row = append(row[:0], formatTime(s.Time, loc))
		row = append(row, s.Fields...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWide writes the pivoted logger table with times in loc.
func WriteWide(w io.Writer, wide series.WideTable, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(wide.Header()); err != nil {
		return err
	}
	row := make([]string, 0, len(wide.SensorIDs)+1)
	for i, ts := range wide.Times {
		row = append(row[:0], formatTime(ts, loc))
		for _, v := range wide.Values[i] {
			row = append(row, protocol.FormatFloat(v))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SummaryHeader returns the interval summary columns: the interval, its row
// counts, then all sensor means followed by all sensor standard deviations.
func SummaryHeader(sensorIDs []int) []string {
	header := []string{"interval", "start_time", "end_time", "recorder_rows", "logger_rows"}
	for _, id := range sensorIDs {
		header = append(header, series.SensorColumn(id)+"_mean")
	}
	for _, id := range sensorIDs {
		header = append(header, series.SensorColumn(id)+"_stddev")
	}
	return header
}

// WriteSummary writes the interval summary table with times in loc.
func WriteSummary(w io.Writer, tbl summary.Table, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader(tbl.SensorIDs)); err != nil {
		return err
	}
	for _, r := range tbl.Rows {
		row := []string{
			strconv.Itoa(r.Index),
			formatTime(r.Interval.Start, loc),
			formatTime(r.Interval.End, loc),
			strconv.Itoa(r.RecorderRows),
			strconv.Itoa(r.LoggerRows),
		}
		for _, s := range r.Sensors {
			row = append(row, protocol.FormatFloat(s.Mean))
		}
		for _, s := range r.Sensors {
			row = append(row, protocol.FormatFloat(s.StdDev))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Result is everything one run writes.
type Result struct {
	Recorder series.RecorderTable
	Logger   series.WideTable
	// Summary is written only when non-nil.
	Summary *summary.Table
}

// Sink writes run results below a directory.
type Sink struct {
	fs  fsutil.FileSystem
	dir string
	loc *time.Location
}

// NewSink returns a Sink writing into dir on fsys. Timestamps are written as
// wall-clock time in loc; nil means UTC.
func NewSink(fsys fsutil.FileSystem, dir string, loc *time.Location) *Sink {
	return &Sink{fs: fsys, dir: dir, loc: loc}
}

// Write renders every file of res before creating any of them, so an
// encoding failure leaves the output directory untouched. It returns the
// written paths.
func (s *Sink) Write(machine string, res Result) ([]string, error) {
	type file struct {
		name string
		data []byte
	}
	var files []file
	render := func(name string, fn func(io.Writer) error) error {
		var buf bytes.Buffer
		if err := fn(&buf); err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		files = append(files, file{name: name, data: buf.Bytes()})
		return nil
	}

	if err := render(RecorderFile(machine), func(w io.Writer) error { return WriteRecorder(w, res.Recorder, s.loc) }); err != nil {
		return nil, err
	}
	if err := render(LoggerFile(machine), func(w io.Writer) error { return WriteWide(w, res.Logger, s.loc) }); err != nil {
		return nil, err
	}
	if res.Summary != nil {
		if err := render(SummaryFile(machine), func(w io.Writer) error { return WriteSummary(w, *res.Summary, s.loc) }); err != nil {
			return nil, err
		}
	}

	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(s.dir, f.name)
		if err := s.fs.WriteFile(path, f.data, 0644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
