// Package widen turns the long-format logger export, one row per
// (time, serial number, value), into a wide table with one column per sensor.
package widen

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/labrun/internal/monitoring"
	"github.com/banshee-data/labrun/internal/series"
)

var (
	// ErrAmbiguousPivot is returned when one sensor has two readings at the
	// same timestamp. The pivot refuses to choose between them.
	ErrAmbiguousPivot = errors.New("ambiguous pivot")

	// ErrInvalidSerial is returned for a serial id that is not an integer.
	ErrInvalidSerial = errors.New("invalid sensor serial id")
)

// FillScope selects how far a blank serial id may look back for a value.
type FillScope int

const (
	// FillConcatenated fills across the concatenation of all source files,
	// so a file starting with blank ids inherits the previous file's last id.
	FillConcatenated FillScope = iota
	// FillPerSource restarts the fill at every source file.
	FillPerSource
)

func (s FillScope) String() string {
	switch s {
	case FillConcatenated:
		return "concatenated"
	case FillPerSource:
		return "per_source"
	default:
		return fmt.Sprintf("FillScope(%d)", int(s))
	}
}

// ParseFillScope parses the config spelling of a fill scope. Empty selects
// FillConcatenated.
func ParseFillScope(s string) (FillScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "concatenated":
		return FillConcatenated, nil
	case "per_source", "per-source":
		return FillPerSource, nil
	default:
		return 0, fmt.Errorf("unknown fill scope %q (want concatenated or per_source)", s)
	}
}

// Options configures Normalize.
type Options struct {
	Scope FillScope
	// TimeColumn names the time column of the result; defaults to "Time".
	TimeColumn string
}

// Report summarises what the fill step did.
type Report struct {
	Readings int
	Filled   int
	// Dropped counts readings whose id stayed blank because nothing
	// preceded them to inherit from.
	Dropped int
	// Inherited lists sources whose leading blank ids were filled from an
	// earlier source. Only FillConcatenated produces entries.
	Inherited []string
}

// Normalize concatenates the sources in order, forward-fills blank serial
// ids and pivots the result to one Sensor_<id> column per sensor.
func Normalize(sources [][]series.Reading, opts Options) (series.WideTable, Report, error) {
	filled, rep := ForwardFill(sources, opts.Scope)
	for _, src := range rep.Inherited {
		monitoring.Logf("logger source %s starts without a serial number; inherited id from previous file", src)
	}
	if rep.Dropped > 0 {
		monitoring.Logf("dropped %d logger readings with no serial number to inherit", rep.Dropped)
	}

	w, err := Pivot(filled, opts.TimeColumn)
	if err != nil {
		return series.WideTable{}, rep, err
	}
	return w, rep, nil
}

// ForwardFill returns the concatenated readings with every blank serial id
// replaced by the nearest preceding non-blank id. Readings with nothing to
// inherit are dropped. The input is not modified.
func ForwardFill(sources [][]series.Reading, scope FillScope) ([]series.Reading, Report) {
	var rep Report
	out := make([]series.Reading, 0)
	last := ""
	for si, src := range sources {
		if scope == FillPerSource {
			last = ""
		}
		leading := true
		for _, r := range src {
			rep.Readings++
			id := strings.TrimSpace(r.SerialID)
			if id == "" {
				if last == "" {
					rep.Dropped++
					continue
				}
				if leading && si > 0 {
					rep.Inherited = appendOnce(rep.Inherited, sourceName(src, si))
				}
				id = last
				rep.Filled++
			}
			leading = false
			last = id
			r.SerialID = id
			out = append(out, r)
		}
	}
	return out, rep
}

func appendOnce(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

func sourceName(src []series.Reading, idx int) string {
	if len(src) > 0 && src[0].Source != "" {
		return src[0].Source
	}
	return fmt.Sprintf("#%d", idx)
}

// ParseSerial coerces a serial id to an integer. Exported loggers sometimes
// write ids as floats ("5.0"); integral floats are accepted.
func ParseSerial(id string) (int, error) {
	s := strings.TrimSpace(id)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	// -math.MinInt is the first integral float that overflows int.
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) || f < math.MinInt || f >= -math.MinInt {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSerial, id)
	}
	return int(f), nil
}

// Pivot spreads filled readings into one row per distinct timestamp and one
// column per sensor, both ascending. Cells without a reading are NaN.
func Pivot(readings []series.Reading, timeColumn string) (series.WideTable, error) {
	if timeColumn == "" {
		timeColumn = series.DefaultLoggerTimeColumn
	}

	type cell struct {
		at  int64
		sid int
	}
	ids := make([]int, len(readings))
	seen := make(map[cell]struct{}, len(readings))
	rowOf := make(map[int64]time.Time)
	colSet := make(map[int]struct{})

	for i, r := range readings {
		id, err := ParseSerial(r.SerialID)
		if err != nil {
			return series.WideTable{}, err
		}
		k := cell{r.Time.UnixNano(), id}
		if _, dup := seen[k]; dup {
			return series.WideTable{}, fmt.Errorf("%w: sensor %d has more than one reading at %s",
				ErrAmbiguousPivot, id, r.Time.Format(time.DateTime))
		}
		seen[k] = struct{}{}
		ids[i] = id
		if _, ok := rowOf[k.at]; !ok {
			rowOf[k.at] = r.Time
		}
		colSet[id] = struct{}{}
	}

	w := series.WideTable{TimeColumn: timeColumn}
	for _, ts := range rowOf {
		w.Times = append(w.Times, ts)
	}
	slices.SortFunc(w.Times, func(a, b time.Time) int { return a.Compare(b) })
	for id := range colSet {
		w.SensorIDs = append(w.SensorIDs, id)
	}
	slices.Sort(w.SensorIDs)

	rowIdx := make(map[int64]int, len(w.Times))
	for i, ts := range w.Times {
		rowIdx[ts.UnixNano()] = i
	}
	colIdx := make(map[int]int, len(w.SensorIDs))
	for j, id := range w.SensorIDs {
		colIdx[id] = j
	}

	w.Values = make([][]float64, len(w.Times))
	for i := range w.Values {
		row := make([]float64, len(w.SensorIDs))
		for j := range row {
			row[j] = math.NaN()
		}
		w.Values[i] = row
	}
	for i, r := range readings {
		w.Values[rowIdx[r.Time.UnixNano()]][colIdx[ids[i]]] = r.Value
	}
	return w, nil
}

// Melt is the inverse of Pivot: one reading per present cell, in row then
// column order.
func Melt(w series.WideTable) []series.Reading {
	var out []series.Reading
	for i, ts := range w.Times {
		for j, id := range w.SensorIDs {
			v := w.Values[i][j]
			if series.Missing(v) {
				continue
			}
			out = append(out, series.Reading{Time: ts, SerialID: strconv.Itoa(id), Value: v})
		}
	}
	return out
}
