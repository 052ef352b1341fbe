package protocol

import (
	"math"
	"strconv"
)

// Payload is the machine-specific attribute set carried by an interval.
// The implementations below are the only ones.
type Payload interface {
	isPayload()
}

// OceanPayload is the OCEAN interval payload.
type OceanPayload struct {
	TDuration float64
}

// DLRAPayload is the DLRA interval payload.
type DLRAPayload struct {
	RotationSpeed     float64
	TemperatureDrying float64
}

// NoPayload is carried by intervals of machines without a schema.
type NoPayload struct{}

func (OceanPayload) isPayload() {}
func (DLRAPayload) isPayload()  {}
func (NoPayload) isPayload()    {}

// PayloadAttacher turns an interval into the cells appended to every sample
// the interval contains.
type PayloadAttacher interface {
	// Columns names the attached columns.
	Columns() []string
	// Attach returns one cell per column. An interval whose payload belongs
	// to another machine yields blank cells.
	Attach(iv Interval) []string
}

type oceanAttacher struct{}

func (oceanAttacher) Columns() []string { return []string{"t_duration"} }

func (oceanAttacher) Attach(iv Interval) []string {
	p, ok := iv.Payload.(OceanPayload)
	if !ok {
		return []string{""}
	}
	return []string{FormatFloat(p.TDuration)}
}

type dlraAttacher struct{}

func (dlraAttacher) Columns() []string {
	return []string{"rotation_speed", "temperature_drying"}
}

func (dlraAttacher) Attach(iv Interval) []string {
	p, ok := iv.Payload.(DLRAPayload)
	if !ok {
		return []string{"", ""}
	}
	return []string{FormatFloat(p.RotationSpeed), FormatFloat(p.TemperatureDrying)}
}

type noPayloadAttacher struct{}

func (noPayloadAttacher) Columns() []string       { return nil }
func (noPayloadAttacher) Attach(Interval) []string { return nil }

// FormatFloat renders a value in its shortest round-tripping form. NaN marks
// a blank protocol cell and renders empty.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
