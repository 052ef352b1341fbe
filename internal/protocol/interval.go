// Package protocol models the operator-authored protocol log: labelled
// experiment intervals and the machine-specific payload each one carries.
package protocol

import (
	"fmt"
	"slices"
	"time"
)

// Interval is one protocol row. Start <= End is assumed but not enforced;
// intervals of one table may overlap.
type Interval struct {
	Start   time.Time
	End     time.Time
	Payload Payload
}

// Contains reports whether t lies in the closed interval [Start, End].
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && !t.After(iv.End)
}

// SortedByStart returns a copy of ivs stably sorted by start time. Intervals
// with equal starts keep their protocol order.
func SortedByStart(ivs []Interval) []Interval {
	out := slices.Clone(ivs)
	slices.SortStableFunc(out, func(a, b Interval) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// Issue describes a suspicious but legal protocol row.
type Issue struct {
	Index   int
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("interval %d: %s", i.Index, i.Message)
}

// Validate reports inverted intervals and overlaps between neighbours in
// start order. Neither is an error: the matchers define what overlap means.
func Validate(ivs []Interval) []Issue {
	var issues []Issue
	for i, iv := range ivs {
		if iv.End.Before(iv.Start) {
			issues = append(issues, Issue{Index: i, Message: fmt.Sprintf("end %s before start %s",
				iv.End.Format(time.DateTime), iv.Start.Format(time.DateTime))})
		}
	}

	type indexed struct {
		pos int
		iv  Interval
	}
	order := make([]indexed, len(ivs))
	for i, iv := range ivs {
		order[i] = indexed{i, iv}
	}
	slices.SortStableFunc(order, func(a, b indexed) int { return a.iv.Start.Compare(b.iv.Start) })

	for k := 1; k < len(order); k++ {
		prev, cur := order[k-1], order[k]
		if !cur.iv.Start.After(prev.iv.End) {
			issues = append(issues, Issue{Index: cur.pos, Message: fmt.Sprintf("overlaps interval %d", prev.pos)})
		}
	}
	return issues
}
