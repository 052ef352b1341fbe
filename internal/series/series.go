// Package series holds the in-memory tables exchanged between the ingest,
// matching and export stages.
//
// Tables are plain values. Every transform in this module returns a new table
// and leaves its input untouched, so a table handed to one stage can still be
// read by another.
package series

import (
	"math"
	"slices"
	"strconv"
	"time"
)

// DefaultLoggerTimeColumn is the time column name of logger tables.
const DefaultLoggerTimeColumn = "Time"

// SensorColumnPrefix prefixes every pivoted logger column.
const SensorColumnPrefix = "Sensor_"

// Sample is one datarecorder row: a timestamp plus the remaining cells in the
// order of RecorderTable.Columns.
type Sample struct {
	Time   time.Time
	Fields []string
}

// RecorderTable is the wide datarecorder stream. The timestamp column is held
// separately from the other columns.
type RecorderTable struct {
	TimeColumn string
	Columns    []string
	Samples    []Sample
}

// Len returns the number of samples.
func (t RecorderTable) Len() int { return len(t.Samples) }

// Header returns the time column followed by the data columns.
func (t RecorderTable) Header() []string {
	h := make([]string, 0, len(t.Columns)+1)
	h = append(h, t.TimeColumn)
	return append(h, t.Columns...)
}

// ColumnIndex returns the index of name within Columns, or -1.
func (t RecorderTable) ColumnIndex(name string) int {
	return slices.Index(t.Columns, name)
}

// Clone returns a deep copy of the table.
func (t RecorderTable) Clone() RecorderTable {
	out := RecorderTable{
		TimeColumn: t.TimeColumn,
		Columns:    slices.Clone(t.Columns),
		Samples:    make([]Sample, len(t.Samples)),
	}
	for i, s := range t.Samples {
		out.Samples[i] = Sample{Time: s.Time, Fields: slices.Clone(s.Fields)}
	}
	return out
}

// Times returns the sample timestamps in row order.
func (t RecorderTable) Times() []time.Time {
	out := make([]time.Time, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.Time
	}
	return out
}

// Reading is one long-format logger row. SerialID may be blank in the raw
// export; the normaliser fills it from the preceding row.
type Reading struct {
	Time     time.Time
	SerialID string
	Value    float64
	// Source names the file the reading came from. It is informational only.
	Source string
}

// WideTable is the pivoted logger stream: one row per distinct timestamp and
// one column per sensor. Missing cells hold NaN.
type WideTable struct {
	TimeColumn string
	SensorIDs  []int
	Times      []time.Time
	Values     [][]float64
}

// SensorColumn returns the column name used for a sensor id.
func SensorColumn(id int) string {
	return SensorColumnPrefix + strconv.Itoa(id)
}

// Len returns the number of rows.
func (w WideTable) Len() int { return len(w.Times) }

// Header returns the time column followed by one Sensor_<id> column per sensor.
func (w WideTable) Header() []string {
	tc := w.TimeColumn
	if tc == "" {
		tc = DefaultLoggerTimeColumn
	}
	h := make([]string, 0, len(w.SensorIDs)+1)
	h = append(h, tc)
	for _, id := range w.SensorIDs {
		h = append(h, SensorColumn(id))
	}
	return h
}

// Column returns the values of the sensor at column index j.
func (w WideTable) Column(j int) []float64 {
	out := make([]float64, len(w.Values))
	for i, row := range w.Values {
		out[i] = row[j]
	}
	return out
}

// Clone returns a deep copy of the table.
func (w WideTable) Clone() WideTable {
	out := WideTable{
		TimeColumn: w.TimeColumn,
		SensorIDs:  slices.Clone(w.SensorIDs),
		Times:      slices.Clone(w.Times),
		Values:     make([][]float64, len(w.Values)),
	}
	for i, row := range w.Values {
		out.Values[i] = slices.Clone(row)
	}
	return out
}

// Missing reports whether v marks an absent cell.
func Missing(v float64) bool { return math.IsNaN(v) }

// DrynessTable is the auxiliary per-run dryness measurement set.
type DrynessTable struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of rows.
func (d DrynessTable) Len() int { return len(d.Rows) }
