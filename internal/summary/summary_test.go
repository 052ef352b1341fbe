package summary

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/labrun/internal/protocol"
	"github.com/banshee-data/labrun/internal/series"
	"github.com/banshee-data/labrun/internal/testutil"
)

func TestCompute(t *testing.T) {
	day := func(s string) time.Time { return testutil.Day(t, s) }
	nan := math.NaN()

	ivs := []protocol.Interval{
		{Start: day("10:10"), End: day("10:15"), Payload: protocol.OceanPayload{TDuration: 7}},
		{Start: day("10:00"), End: day("10:05"), Payload: protocol.OceanPayload{TDuration: 5}},
	}
	rec := series.RecorderTable{
		TimeColumn: "Timestamp",
		Samples: []series.Sample{
			{Time: day("10:00")}, {Time: day("10:03")}, {Time: day("10:05")}, {Time: day("10:12")},
		},
	}
	wide := series.WideTable{
		SensorIDs: []int{1, 2},
		Times:     []time.Time{day("10:01"), day("10:02"), day("10:06"), day("10:11"), day("09:59")},
		Values:    [][]float64{{20, nan}, {22, 30}, {99, 99}, {25, nan}, {99, 99}},
	}

	got := Compute(rec, wide, ivs)

	assert.Equal(t, []int{1, 2}, got.SensorIDs)
	require.Len(t, got.Rows, 2)

	a, b := got.Rows[0], got.Rows[1]
	assert.Equal(t, 0, a.Index)
	assert.Equal(t, day("10:00"), a.Interval.Start)
	assert.Equal(t, 3, a.RecorderRows)
	assert.Equal(t, 2, a.LoggerRows)
	assert.Equal(t, 2, a.Sensors[0].N)
	assert.InDelta(t, 21, a.Sensors[0].Mean, 1e-12)
	assert.InDelta(t, math.Sqrt2, a.Sensors[0].StdDev, 1e-12)
	assert.Equal(t, 1, a.Sensors[1].N)
	assert.Equal(t, 30.0, a.Sensors[1].Mean)
	assert.True(t, math.IsNaN(a.Sensors[1].StdDev))

	assert.Equal(t, 1, b.Index)
	assert.Equal(t, 1, b.RecorderRows)
	assert.Equal(t, 1, b.LoggerRows)
	assert.Equal(t, 25.0, b.Sensors[0].Mean)
	assert.Equal(t, 0, b.Sensors[1].N)
	assert.True(t, math.IsNaN(b.Sensors[1].Mean))
}

func TestCompute_OverlapSharesRecorderRows(t *testing.T) {
	day := func(s string) time.Time { return testutil.Day(t, s) }
	ivs := []protocol.Interval{
		{Start: day("10:00"), End: day("10:05")},
		{Start: day("10:03"), End: day("10:04")},
	}
	rec := series.RecorderTable{Samples: []series.Sample{{Time: day("10:01")}, {Time: day("10:03")}}}
	wide := series.WideTable{
		SensorIDs: []int{1},
		Times:     []time.Time{day("10:01"), day("10:03"), day("10:05")},
		Values:    [][]float64{{1}, {2}, {3}},
	}

	got := Compute(rec, wide, ivs)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, 2, got.Rows[0].RecorderRows)
	assert.Equal(t, 1, got.Rows[1].RecorderRows)
	// 10:05 belongs to the later start, which has already ended.
	assert.Equal(t, 1, got.Rows[0].LoggerRows)
	assert.Equal(t, 1, got.Rows[1].LoggerRows)
}

func TestCompute_Empty(t *testing.T) {
	got := Compute(series.RecorderTable{}, series.WideTable{}, nil)
	assert.Empty(t, got.Rows)
	assert.Empty(t, got.SensorIDs)
}
