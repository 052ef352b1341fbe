package export

import (
	"bytes"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/labrun/internal/fsutil"
	"github.com/banshee-data/labrun/internal/protocol"
	"github.com/banshee-data/labrun/internal/series"
	"github.com/banshee-data/labrun/internal/summary"
)

var t0 = time.Date(2024, 3, 1, 10, 1, 0, 0, time.UTC)

func recorderFixture() series.RecorderTable {
	return series.RecorderTable{
		TimeColumn: "Timestamp",
		Columns:    []string{"power", "note", "t_duration"},
		Samples: []series.Sample{
			{Time: t0, Fields: []string{"1.5", "a,b", "5"}},
			{Time: t0.Add(90 * time.Second), Fields: []string{"", "", "7"}},
		},
	}
}

func wideFixture() series.WideTable {
	return series.WideTable{
		SensorIDs: []int{3, 10},
		Times:     []time.Time{t0, t0.Add(time.Minute)},
		Values:    [][]float64{{21.5, math.NaN()}, {22, 19.25}},
	}
}

func TestWriteRecorder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRecorder(&buf, recorderFixture(), nil))
	assert.Equal(t,
		"Timestamp,power,note,t_duration\n"+
			"2024-03-01 10:01:00,1.5,\"a,b\",5\n"+
			"2024-03-01 10:02:30,,,7\n",
		buf.String())
}

func TestWriteRecorder_MixedLocations(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	tbl := series.RecorderTable{
		TimeColumn: "Timestamp",
		Columns:    []string{"power"},
		Samples: []series.Sample{
			{Time: time.Date(2024, 3, 1, 10, 0, 0, 0, cet), Fields: []string{"1"}},
			{Time: time.Date(2024, 3, 1, 9, 0, 30, 0, time.UTC), Fields: []string{"2"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRecorder(&buf, tbl, cet))
	assert.Equal(t, "Timestamp,power\n2024-03-01 10:00:00,1\n2024-03-01 10:00:30,2\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteRecorder(&buf, tbl, nil))
	assert.Equal(t, "Timestamp,power\n2024-03-01 09:00:00,1\n2024-03-01 09:00:30,2\n", buf.String())
}

func TestWriteWide(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWide(&buf, wideFixture(), nil))
	assert.Equal(t,
		"Time,Sensor_3,Sensor_10\n"+
			"2024-03-01 10:01:00,21.5,\n"+
			"2024-03-01 10:02:00,22,19.25\n",
		buf.String())
}

func TestWriteWide_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWide(&buf, series.WideTable{}, nil))
	assert.Equal(t, "Time\n", buf.String())
}

func TestWriteSummary(t *testing.T) {
	tbl := summary.Table{
		SensorIDs: []int{3},
		Rows: []summary.Row{{
			Index:        0,
			Interval:     protocol.Interval{Start: t0, End: t0.Add(5 * time.Minute)},
			RecorderRows: 4,
			LoggerRows:   2,
			Sensors:      []summary.SensorStat{{N: 1, Mean: 21.5, StdDev: math.NaN()}},
		}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, tbl, nil))
	assert.Equal(t,
		"interval,start_time,end_time,recorder_rows,logger_rows,Sensor_3_mean,Sensor_3_stddev\n"+
			"0,2024-03-01 10:01:00,2024-03-01 10:06:00,4,2,21.5,\n",
		buf.String())
}

func TestSinkWrite(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	sink := NewSink(mfs, "out/run", nil)

	paths, err := sink.Write("DLRA", Result{Recorder: recorderFixture(), Logger: wideFixture()})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"out/run/DLRA_data_timestamps_filtered_datarecorder.csv",
		"out/run/DLRA_data_usb_logger.csv",
	}, paths)
	assert.False(t, mfs.Exists("out/run/DLRA_interval_summary.csv"))

	data, err := mfs.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Sensor_10")

	paths, err = sink.Write("DLRA", Result{Recorder: recorderFixture(), Logger: wideFixture(), Summary: &summary.Table{}})
	require.NoError(t, err)
	assert.Len(t, paths, 3)
	assert.True(t, mfs.Exists("out/run/DLRA_interval_summary.csv"))
}

func TestSinkWrite_Location(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	sink := NewSink(mfs, "out", time.FixedZone("CET", 3600))

	paths, err := sink.Write("OCEAN", Result{Recorder: recorderFixture(), Logger: wideFixture()})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, path := range paths {
		data, err := mfs.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "\n2024-03-01 11:01:00,", path)
	}
}

// failingFS refuses every write.
type failingFS struct{ *fsutil.MemoryFileSystem }

func (failingFS) MkdirAll(string, os.FileMode) error { return errors.New("read-only") }

func TestSinkWrite_DirectoryError(t *testing.T) {
	fsys := failingFS{fsutil.NewMemoryFileSystem()}
	_, err := NewSink(fsys, "out", nil).Write("OCEAN", Result{})
	require.Error(t, err)
	assert.False(t, fsys.Exists("out/OCEAN_data_usb_logger.csv"))
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "OCEAN_data_timestamps_filtered_datarecorder.csv", RecorderFile("OCEAN"))
	assert.Equal(t, "OCEAN_data_usb_logger.csv", LoggerFile("OCEAN"))
	assert.Equal(t, "OCEAN_interval_summary.csv", SummaryFile("OCEAN"))
}
