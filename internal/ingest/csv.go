// Package ingest reads the raw machine exports of one run: datarecorder,
// protocol, logger and dryness CSV files. It is the only package that knows
// about folder layout, delimiters, decimal commas and text encodings; every
// other stage works on the typed tables it returns.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/banshee-data/labrun/internal/fsutil"
)

// Options configures a Reader.
type Options struct {
	// Location interprets timestamps without an explicit offset.
	// Defaults to UTC.
	Location *time.Location
	// RecorderDelimiter separates datarecorder fields. Defaults to ','.
	RecorderDelimiter rune
	// RecorderTimeColumn names the datarecorder timestamp column.
	// Defaults to "Timestamp".
	RecorderTimeColumn string
}

// Reader reads run sources from a filesystem.
type Reader struct {
	fs   fsutil.FileSystem
	opts Options
}

// NewReader returns a Reader over fsys with defaults filled in.
func NewReader(fsys fsutil.FileSystem, opts Options) *Reader {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.RecorderDelimiter == 0 {
		opts.RecorderDelimiter = ','
	}
	if opts.RecorderTimeColumn == "" {
		opts.RecorderTimeColumn = "Timestamp"
	}
	return &Reader{fs: fsys, opts: opts}
}

// record is one CSV row with its 1-based line number.
type record struct {
	line   int
	fields []string
}

// readCSV reads a whole file. The first row is the header; a UTF-8 byte
// order mark on it is dropped. Rows whose cells are all blank are skipped.
func (r *Reader) readCSV(path string, delim rune, latin1 bool) ([]string, []record, error) {
	data, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	var src io.Reader = bytes.NewReader(data)
	if latin1 {
		src = charmap.ISO8859_1.NewDecoder().Reader(src)
	}
	cr := csv.NewReader(src)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, &ParseError{File: path, Line: 1, Err: errors.New("file is empty")}
	}
	if err != nil {
		return nil, nil, &ParseError{File: path, Line: 1, Err: err}
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			return nil, nil, &ParseError{File: path, Line: line, Err: err}
		}
		line, _ := cr.FieldPos(0)
		if blankRow(fields) {
			continue
		}
		rows = append(rows, record{line: line, fields: fields})
	}
	return header, rows, nil
}

func blankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// cell returns the trimmed field at i, or "" past the end of a short row.
func (rec record) cell(i int) string {
	if i < 0 || i >= len(rec.fields) {
		return ""
	}
	return strings.TrimSpace(rec.fields[i])
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(h, name) {
			return i
		}
	}
	return -1
}

// ParseDecimal parses a number written with either a decimal point or a
// decimal comma. When both separators appear, the last one is the decimal
// separator and the other groups thousands. A blank cell is NaN.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

// TimeLayouts are tried in order by ParseTimestamp.
var TimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
}

// ParseTimestamp parses s with the first matching layout of TimeLayouts.
// Values without an offset are interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range TimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognised timestamp format")
}
