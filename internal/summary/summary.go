// Package summary computes per-interval statistics over the matched streams:
// how many recorder and logger rows each protocol interval kept, and the
// mean and standard deviation of every logger sensor inside it.
package summary

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/labrun/internal/match"
	"github.com/banshee-data/labrun/internal/protocol"
	"github.com/banshee-data/labrun/internal/series"
)

// SensorStat summarises one sensor column within one interval. Mean is NaN
// without samples; StdDev is NaN with fewer than two.
type SensorStat struct {
	N      int
	Mean   float64
	StdDev float64
}

// Row is the summary of one protocol interval.
type Row struct {
	// Index is the interval's position in start order.
	Index        int
	Interval     protocol.Interval
	RecorderRows int
	LoggerRows   int
	// Sensors is aligned with Table.SensorIDs.
	Sensors []SensorStat
}

// Table holds one row per interval in start order.
type Table struct {
	SensorIDs []int
	Rows      []Row
}

// Compute summarises rec and wide against ivs. Recorder rows are counted in
// every interval that contains them, so overlapping intervals may share
// samples. Logger rows are attributed with the backward match used by
// match.Asof and therefore belong to at most one interval.
func Compute(rec series.RecorderTable, wide series.WideTable, ivs []protocol.Interval) Table {
	sorted := protocol.SortedByStart(ivs)
	out := Table{
		SensorIDs: slices.Clone(wide.SensorIDs),
		Rows:      make([]Row, len(sorted)),
	}

	for k, iv := range sorted {
		out.Rows[k] = Row{Index: k, Interval: iv}
		for _, s := range rec.Samples {
			if iv.Contains(s.Time) {
				out.Rows[k].RecorderRows++
			}
		}
	}

	// members[k] lists the wide rows attributed to interval k.
	members := make([][]int, len(sorted))
	for r, k := range match.AsofIndex(wide.Times, sorted) {
		if k < 0 || wide.Times[r].After(sorted[k].End) {
			continue
		}
		members[k] = append(members[k], r)
	}

	vals := make([]float64, 0, wide.Len())
	for k := range out.Rows {
		out.Rows[k].LoggerRows = len(members[k])
		out.Rows[k].Sensors = make([]SensorStat, len(wide.SensorIDs))
		for j := range wide.SensorIDs {
			vals = vals[:0]
			for _, r := range members[k] {
				if v := wide.Values[r][j]; !series.Missing(v) {
					vals = append(vals, v)
				}
			}
			out.Rows[k].Sensors[j] = describe(vals)
		}
	}
	return out
}

func describe(vals []float64) SensorStat {
	switch len(vals) {
	case 0:
		return SensorStat{Mean: math.NaN(), StdDev: math.NaN()}
	case 1:
		return SensorStat{N: 1, Mean: vals[0], StdDev: math.NaN()}
	}
	mean, std := stat.MeanStdDev(vals, nil)
	return SensorStat{N: len(vals), Mean: mean, StdDev: std}
}
