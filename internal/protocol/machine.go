package protocol

import (
	"fmt"
	"strings"
)

// Machine identifies the machine under test. The set is closed: each value
// carries its own payload schema through Attacher.
type Machine int

const (
	// Generic is any machine without a known payload schema. Generic runs
	// filter by interval but attach no protocol columns.
	Generic Machine = iota
	Ocean
	DLRA
)

var machineNames = map[Machine]string{
	Generic: "GENERIC",
	Ocean:   "OCEAN",
	DLRA:    "DLRA",
}

// String returns the canonical upper-case machine name.
func (m Machine) String() string {
	if n, ok := machineNames[m]; ok {
		return n
	}
	return fmt.Sprintf("Machine(%d)", int(m))
}

// ParseMachine maps a selector to a Machine. Unknown names map to Generic and
// ok is false; callers decide whether that deserves a warning.
func ParseMachine(name string) (m Machine, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "OCEAN":
		return Ocean, true
	case "DLRA":
		return DLRA, true
	default:
		return Generic, false
	}
}

// Attacher returns the payload schema for the machine.
func (m Machine) Attacher() PayloadAttacher {
	switch m {
	case Ocean:
		return oceanAttacher{}
	case DLRA:
		return dlraAttacher{}
	default:
		return noPayloadAttacher{}
	}
}

// PayloadSource lists the protocol file columns a machine reads its payload
// from, in the order of Attacher().Columns().
func (m Machine) PayloadSource() []string {
	switch m {
	case Ocean:
		return []string{"t_duration"}
	case DLRA:
		return []string{"n_UL", "T_drying"}
	default:
		return nil
	}
}

// NewPayload builds the machine's payload from values read in PayloadSource
// order. A length mismatch is a programming error in the reader.
func (m Machine) NewPayload(values []float64) (Payload, error) {
	want := len(m.PayloadSource())
	if len(values) != want {
		return nil, fmt.Errorf("%s payload needs %d values, got %d", m, want, len(values))
	}
	switch m {
	case Ocean:
		return OceanPayload{TDuration: values[0]}, nil
	case DLRA:
		return DLRAPayload{RotationSpeed: values[0], TemperatureDrying: values[1]}, nil
	default:
		return NoPayload{}, nil
	}
}
