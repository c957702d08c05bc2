package engine

import "github.com/talgya/graindeer/internal/weather"

// State is the shared simulation state. It carries no lock: within a phase
// it is either only read (compute) or each field has exactly one writer
// (publish, report), and the barrier orders the phases.
//
// Field owners:
//
//	Clock, Env, Done  reporter
//	Population        population role
//	Resource          resource role
//	Popularity        popularity role
type State struct {
	Clock Clock           `json:"clock"`
	Env   weather.Drivers `json:"env"`

	Population int     `json:"population"` // head count, never negative
	Resource   float64 `json:"resource"`   // inches, never negative
	Popularity float64 `json:"popularity"` // index units

	// Done is the single termination flag. The reporter sets it once per
	// cycle before DonePrinting; every role reads it after DonePrinting.
	Done bool `json:"done"`
}
