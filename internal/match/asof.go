package match

import (
	"slices"
	"time"

	"github.com/banshee-data/labrun/internal/protocol"
	"github.com/banshee-data/labrun/internal/series"
)

// Asof returns the rows of wide that fall inside the interval with the
// greatest start at or before the row's timestamp. Rows before the first
// interval, or after the end of their matched interval, are dropped.
//
// Only one candidate interval is considered per row. When intervals overlap,
// a row inside an earlier interval that has been superseded by a later start
// is dropped if the later interval has already ended. The output is sorted by
// time and carries only the sensor columns of wide.
func Asof(wide series.WideTable, ivs []protocol.Interval) series.WideTable {
	out := series.WideTable{
		TimeColumn: wide.TimeColumn,
		SensorIDs:  slices.Clone(wide.SensorIDs),
		Times:      make([]time.Time, 0, wide.Len()),
		Values:     make([][]float64, 0, wide.Len()),
	}
	for _, r := range asofRows(wide.Times, protocol.SortedByStart(ivs)) {
		out.Times = append(out.Times, wide.Times[r])
		out.Values = append(out.Values, slices.Clone(wide.Values[r]))
	}
	return out
}

// AsofIndex returns, for each timestamp, the position in ivs of the interval
// a backward match picks, or -1. ivs must already be sorted by start.
// Timestamps need not be sorted.
func AsofIndex(times []time.Time, ivs []protocol.Interval) []int {
	out := make([]int, len(times))
	for i, t := range times {
		// Last interval whose start is not after t.
		n, _ := slices.BinarySearchFunc(ivs, t, func(iv protocol.Interval, t time.Time) int {
			if iv.Start.After(t) {
				return 1
			}
			return -1
		})
		out[i] = n - 1
	}
	return out
}

// asofRows is the merge join behind Asof: a single pass over the rows in
// time order with a cursor over the sorted intervals. It returns the kept
// row indices in time order.
func asofRows(times []time.Time, sorted []protocol.Interval) []int {
	order := make([]int, len(times))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return times[a].Compare(times[b]) })

	kept := make([]int, 0, len(times))
	cur := -1
	for _, r := range order {
		t := times[r]
		for cur+1 < len(sorted) && !sorted[cur+1].Start.After(t) {
			cur++
		}
		if cur < 0 || t.After(sorted[cur].End) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
