// Package occupancy derives how long a reservation holds its tables.
package occupancy

import (
	"seatflow/pkg/daytime"
	"seatflow/pkg/model"
)

// Window is an effective occupancy interval in minutes of the reservation's
// operating day. End may exceed daytime.DayMinutes for spillover.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (w Window) Duration() int {
	return w.End - w.Start
}

// Spills reports whether the window runs past midnight.
func (w Window) Spills() bool {
	return w.End > daytime.DayMinutes
}

// Resolve computes the effective window of r. Explicit adjustment
// boundaries win; otherwise start comes from the wall-clock time and end
// from the party-size estimate, capped at midnight. Explicit ends are never
// capped.
func Resolve(r *model.Reservation, adj model.DurationAdjustment) Window {
	start := adj.Start.OrElse(daytime.TimeToMinutes(r.Time))
	end, ok := adj.End.Get()
	if !ok {
		end = min(daytime.DayMinutes, start+EstimateDurationMinutes(r.PartySize))
	}
	return Window{Start: start, End: end}
}
