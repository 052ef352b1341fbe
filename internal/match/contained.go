// Package match joins sensor streams against protocol intervals.
//
// Two join rules live here and they are deliberately different:
//
//   - Contained keeps a datarecorder sample when any interval contains it and
//     attaches the payload of the last containing interval in start order.
//   - Asof pairs each logger row with the single interval that started most
//     recently and keeps the row only if that interval has not yet ended.
//
// With overlapping intervals the two rules disagree, and that is expected.
package match

import (
	"slices"
	"time"

	"github.com/banshee-data/labrun/internal/protocol"
	"github.com/banshee-data/labrun/internal/series"
)

// membership is the fold state of Contained: which samples lie inside some
// interval seen so far, and the payload cells each of them carries.
type membership struct {
	in      []bool
	payload [][]string
}

func newMembership(n int) membership {
	return membership{in: make([]bool, n), payload: make([][]string, n)}
}

// with returns the state after folding in iv. The receiver is not modified.
// Every sample iv contains takes iv's payload, overwriting what an earlier
// interval attached.
func (m membership) with(iv protocol.Interval, times []time.Time, att protocol.PayloadAttacher) membership {
	next := membership{in: slices.Clone(m.in), payload: slices.Clone(m.payload)}
	var cells []string
	for i, t := range times {
		if !iv.Contains(t) {
			continue
		}
		if cells == nil {
			cells = att.Attach(iv)
		}
		next.in[i] = true
		next.payload[i] = cells
	}
	return next
}

// Contained returns the samples of rec whose timestamp falls inside at least
// one interval, both ends inclusive, in their original order. Each kept
// sample is extended with att's payload columns, taken from the last
// containing interval once intervals are ordered by start.
//
// When rec already carries att's columns they are overwritten in place, so
// filtering an already filtered table returns it unchanged. A nil attacher
// filters without attaching anything.
func Contained(rec series.RecorderTable, ivs []protocol.Interval, att protocol.PayloadAttacher) series.RecorderTable {
	if att == nil {
		att = protocol.Generic.Attacher()
	}
	times := rec.Times()

	state := newMembership(len(times))
	for _, iv := range protocol.SortedByStart(ivs) {
		state = state.with(iv, times, att)
	}
	return project(rec, state, att.Columns())
}

// project materialises the members of rec with their payload cells.
func project(rec series.RecorderTable, state membership, payloadCols []string) series.RecorderTable {
	out := series.RecorderTable{
		TimeColumn: rec.TimeColumn,
		Columns:    slices.Clone(rec.Columns),
		Samples:    make([]series.Sample, 0, len(rec.Samples)),
	}

	slot := make([]int, len(payloadCols))
	for k, col := range payloadCols {
		if j := rec.ColumnIndex(col); j >= 0 {
			slot[k] = j
			continue
		}
		slot[k] = len(out.Columns)
		out.Columns = append(out.Columns, col)
	}

	for i, s := range rec.Samples {
		if !state.in[i] {
			continue
		}
		fields := make([]string, len(out.Columns))
		copy(fields, s.Fields)
		for k, cell := range state.payload[i] {
			fields[slot[k]] = cell
		}
		out.Samples = append(out.Samples, series.Sample{Time: s.Time, Fields: fields})
	}
	return out
}
