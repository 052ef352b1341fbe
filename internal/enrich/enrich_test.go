package enrich

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/labrun/internal/monitoring"
	"github.com/banshee-data/labrun/internal/series"
	"github.com/banshee-data/labrun/internal/testutil"
)

func TestPassThrough_ReturnsCopy(t *testing.T) {
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, format) })
	defer monitoring.SetLogger(nil)

	rec := series.RecorderTable{
		TimeColumn: "Timestamp",
		Columns:    []string{"power", "t_duration"},
		Samples: []series.Sample{
			{Time: testutil.Day(t, "10:01"), Fields: []string{"3.2", "5"}},
		},
	}
	dry := series.DrynessTable{Columns: []string{"run", "dryness"}, Rows: [][]string{{"1", "0.93"}}}

	got, err := Default().Enrich(rec, dry)
	testutil.AssertNoError(t, err)

	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("pass-through changed the table (-in +out):\n%s", diff)
	}
	got.Samples[0].Fields[0] = "changed"
	if rec.Samples[0].Fields[0] != "3.2" {
		t.Error("pass-through output aliases its input")
	}
	if len(logged) != 1 {
		t.Errorf("expected one warning about the missing join key, got %d", len(logged))
	}
}

func TestPassThrough_NoDrynessIsQuiet(t *testing.T) {
	called := false
	monitoring.SetLogger(func(string, ...interface{}) { called = true })
	defer monitoring.SetLogger(nil)

	_, err := PassThrough{}.Enrich(series.RecorderTable{}, series.DrynessTable{})
	testutil.AssertNoError(t, err)
	if called {
		t.Error("no warning expected without dryness rows")
	}
	if (PassThrough{}).Name() != "dryness-passthrough" {
		t.Error("unexpected stage name")
	}
}
