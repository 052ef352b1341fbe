package match

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/labrun/internal/protocol"
	"github.com/banshee-data/labrun/internal/series"
	"github.com/banshee-data/labrun/internal/testutil"
)

func recorder(t *testing.T, hhmm ...string) series.RecorderTable {
	t.Helper()
	rec := series.RecorderTable{TimeColumn: "Timestamp", Columns: []string{"power"}}
	for i, s := range hhmm {
		rec.Samples = append(rec.Samples, series.Sample{
			Time:   testutil.Day(t, s),
			Fields: []string{string(rune('a' + i))},
		})
	}
	return rec
}

func ocean(t *testing.T, start, end string, dur float64) protocol.Interval {
	t.Helper()
	return protocol.Interval{
		Start:   testutil.Day(t, start),
		End:     testutil.Day(t, end),
		Payload: protocol.OceanPayload{TDuration: dur},
	}
}

func TestContained_OceanOverlapScenario(t *testing.T) {
	rec := recorder(t, "10:01", "10:04", "10:12")
	ivs := []protocol.Interval{
		ocean(t, "10:00", "10:05", 5),
		ocean(t, "10:03", "10:10", 7),
	}

	got := Contained(rec, ivs, protocol.Ocean.Attacher())

	want := series.RecorderTable{
		TimeColumn: "Timestamp",
		Columns:    []string{"power", "t_duration"},
		Samples: []series.Sample{
			{Time: testutil.Day(t, "10:01"), Fields: []string{"a", "5"}},
			{Time: testutil.Day(t, "10:04"), Fields: []string{"b", "7"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Contained mismatch (-want +got):\n%s", diff)
	}
}

func TestContained_LastStartWinsRegardlessOfProtocolOrder(t *testing.T) {
	rec := recorder(t, "10:04")
	// Later-starting interval listed first in the protocol file.
	ivs := []protocol.Interval{
		ocean(t, "10:03", "10:10", 7),
		ocean(t, "10:00", "10:05", 5),
	}

	got := Contained(rec, ivs, protocol.Ocean.Attacher())
	require.Equal(t, 1, got.Len())
	assert.Equal(t, []string{"a", "7"}, got.Samples[0].Fields)
}

func TestContained_BoundariesInclusive(t *testing.T) {
	rec := recorder(t, "09:59", "10:00", "10:05", "10:06")
	ivs := []protocol.Interval{ocean(t, "10:00", "10:05", 5)}

	got := Contained(rec, ivs, protocol.Ocean.Attacher())

	require.Equal(t, 2, got.Len())
	assert.True(t, got.Samples[0].Time.Equal(testutil.Day(t, "10:00")))
	assert.True(t, got.Samples[1].Time.Equal(testutil.Day(t, "10:05")))
}

func TestContained_DLRAColumns(t *testing.T) {
	rec := recorder(t, "10:01")
	ivs := []protocol.Interval{{
		Start:   testutil.Day(t, "10:00"),
		End:     testutil.Day(t, "10:02"),
		Payload: protocol.DLRAPayload{RotationSpeed: 1200, TemperatureDrying: 60.5},
	}}

	got := Contained(rec, ivs, protocol.DLRA.Attacher())

	assert.Equal(t, []string{"power", "rotation_speed", "temperature_drying"}, got.Columns)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, []string{"a", "1200", "60.5"}, got.Samples[0].Fields)
}

func TestContained_GenericMachineFiltersOnly(t *testing.T) {
	rec := recorder(t, "10:01", "11:00")
	ivs := []protocol.Interval{{
		Start:   testutil.Day(t, "10:00"),
		End:     testutil.Day(t, "10:02"),
		Payload: protocol.NoPayload{},
	}}

	for name, att := range map[string]protocol.PayloadAttacher{
		"generic": protocol.Generic.Attacher(),
		"nil":     nil,
	} {
		t.Run(name, func(t *testing.T) {
			got := Contained(rec, ivs, att)
			assert.Equal(t, []string{"power"}, got.Columns)
			require.Equal(t, 1, got.Len())
			assert.Equal(t, []string{"a"}, got.Samples[0].Fields)
		})
	}
}

func TestContained_MismatchedPayloadLeavesBlankCells(t *testing.T) {
	rec := recorder(t, "10:01")
	ivs := []protocol.Interval{ocean(t, "10:00", "10:02", 5)}

	got := Contained(rec, ivs, protocol.DLRA.Attacher())

	require.Equal(t, 1, got.Len())
	assert.Equal(t, []string{"a", "", ""}, got.Samples[0].Fields)
}

func TestContained_PreservesInputOrderAndInput(t *testing.T) {
	rec := recorder(t, "10:04", "10:01", "10:03")
	before := rec.Clone()
	ivs := []protocol.Interval{ocean(t, "10:00", "10:05", 5)}

	got := Contained(rec, ivs, protocol.Ocean.Attacher())

	require.Equal(t, 3, got.Len())
	assert.Equal(t, "a", got.Samples[0].Fields[0])
	assert.Equal(t, "b", got.Samples[1].Fields[0])
	assert.Equal(t, "c", got.Samples[2].Fields[0])
	if diff := cmp.Diff(before, rec); diff != "" {
		t.Errorf("input table modified (-before +after):\n%s", diff)
	}
}

func TestContained_Idempotent(t *testing.T) {
	rec := recorder(t, "10:01", "10:04", "10:12", "10:07")
	ivs := []protocol.Interval{
		ocean(t, "10:00", "10:05", 5),
		ocean(t, "10:03", "10:10", 7),
	}
	att := protocol.Ocean.Attacher()

	once := Contained(rec, ivs, att)
	twice := Contained(once, ivs, att)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second pass changed output (-once +twice):\n%s", diff)
	}
}

func TestContained_EmptyInputs(t *testing.T) {
	got := Contained(recorder(t), nil, protocol.Ocean.Attacher())
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, []string{"power", "t_duration"}, got.Columns)

	got = Contained(recorder(t, "10:00"), nil, protocol.Ocean.Attacher())
	assert.Equal(t, 0, got.Len())
}

// TestContained_MatchesBruteForce checks membership and payload choice
// against a direct evaluation over random overlapping intervals.
func TestContained_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	base := testutil.Day(t, "00:00")
	at := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }

	for round := 0; round < 50; round++ {
		var ivs []protocol.Interval
		n := 1 + rng.IntN(6)
		for k := 0; k < n; k++ {
			s := rng.IntN(100)
			ivs = append(ivs, protocol.Interval{
				Start:   at(s),
				End:     at(s + rng.IntN(20)),
				Payload: protocol.OceanPayload{TDuration: float64(k)},
			})
		}
		rec := series.RecorderTable{TimeColumn: "Timestamp"}
		for i := 0; i < 40; i++ {
			rec.Samples = append(rec.Samples, series.Sample{Time: at(rng.IntN(130))})
		}

		got := Contained(rec, ivs, protocol.Ocean.Attacher())

		var want []series.Sample
		for _, s := range rec.Samples {
			best := -1
			for k, iv := range ivs {
				if !iv.Contains(s.Time) {
					continue
				}
				// Latest start wins; protocol order breaks ties.
				if best < 0 || !iv.Start.Before(ivs[best].Start) {
					best = k
				}
			}
			if best < 0 {
				continue
			}
			dur := ivs[best].Payload.(protocol.OceanPayload).TDuration
			want = append(want, series.Sample{Time: s.Time, Fields: []string{protocol.FormatFloat(dur)}})
		}

		if diff := cmp.Diff(want, got.Samples, cmp.Comparer(func(a, b []series.Sample) bool {
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if !a[i].Time.Equal(b[i].Time) || cmp.Diff(a[i].Fields, b[i].Fields) != "" {
					return false
				}
			}
			return true
		})); diff != "" {
			t.Fatalf("round %d: mismatch (-want +got):\n%s", round, diff)
		}
	}
}
