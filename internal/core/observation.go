package core

import "sort"

// Observation is one system's view at a moment. Data participates in state
// identity; Metadata is opaque and excluded.
type Observation struct {
	System   string
	Data     map[string]Value
	Metadata map[string]any
}

// NewObservation constructs an Observation from raw Go values, routing through
// FromGo so floats are rounded and NaN/Inf rejected up front rather than at
// hashing time.
func NewObservation(system string, data map[string]any, metadata map[string]any) (Observation, error) {
	converted := make(map[string]Value, len(data))
	for k, v := range data {
		cv, err := FromGo(v)
		if err != nil {
			return Observation{}, &ConfigurationError{Reason: "observation field " + k, Cause: err}
		}
		converted[k] = cv
	}
	return Observation{System: system, Data: converted, Metadata: metadata}, nil
}

// sortedKeys returns Data's keys in sorted order, used both for canonical
// hashing and for deterministic iteration when comparing two observations.
func (o Observation) sortedKeys() []string {
	keys := make([]string, 0, len(o.Data))
	for k := range o.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal compares two observations by system name and data content, ignoring
// Metadata. Used by ObservationsEqual and by the adapters' rollback
// round-trip tests.
func (o Observation) Equal(other Observation) bool {
	if o.System != other.System || len(o.Data) != len(other.Data) {
		return false
	}
	for k, v := range o.Data {
		ov, ok := other.Data[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// ObservationsEqual compares two ordered lists of Observations system-by-
// system, independent of input order (mirrors the permutation-invariance of
// state identity).
func ObservationsEqual(a, b []Observation) bool {
	if len(a) != len(b) {
		return false
	}
	am := map[string]Observation{}
	for _, o := range a {
		am[o.System] = o
	}
	for _, o := range b {
		ao, ok := am[o.System]
		if !ok || !ao.Equal(o) {
			return false
		}
	}
	return true
}
