// Package enrich attaches auxiliary per-run measurements to the filtered
// datarecorder table.
//
// The join between dryness measurements and recorder samples has no agreed
// key yet. PassThrough marks the place where that join goes.
package enrich

import (
	"github.com/banshee-data/labrun/internal/monitoring"
	"github.com/banshee-data/labrun/internal/series"
)

// Stage enriches a filtered recorder table with dryness attributes.
type Stage interface {
	Name() string
	Enrich(rec series.RecorderTable, dryness series.DrynessTable) (series.RecorderTable, error)
}

// PassThrough is the dryness stage in use today. It returns a copy of the
// recorder table unchanged.
type PassThrough struct{}

// Name identifies the stage in logs and the run archive.
func (PassThrough) Name() string { return "dryness-passthrough" }

// Enrich returns a copy of rec. Dryness rows are accepted and ignored.
func (PassThrough) Enrich(rec series.RecorderTable, dryness series.DrynessTable) (series.RecorderTable, error) {
	if dryness.Len() > 0 {
		monitoring.Logf("dryness data has %d rows but no join key is defined; recorder output not enriched", dryness.Len())
	}
	return rec.Clone(), nil
}

// Default returns the stage the pipeline uses when none is injected.
func Default() Stage { return PassThrough{} }
