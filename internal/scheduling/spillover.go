package scheduling

import (
	"seatflow/internal/occupancy"
	"seatflow/pkg/daytime"
	"seatflow/pkg/model"
	"sort"
)

// DayInput is everything needed to build the floor view of Date.
// Today is the real-world date key used to retire spilled reservations.
type DayInput struct {
	Date                string
	Today               string
	Current             []*model.Reservation
	Previous            []*model.Reservation
	CurrentAdjustments  model.AdjustmentMap
	PreviousAdjustments model.AdjustmentMap
}

type Entry struct {
	Reservation *model.Reservation `json:"reservation"`
	Window      occupancy.Window   `json:"window"`
	Spillover   bool               `json:"spillover"`
	SourceDate  string             `json:"source_date,omitempty"`
	// SpillWindow is the part of a previous-day reservation that falls on
	// the viewed date.
	SpillWindow *occupancy.Window `json:"spill_window,omitempty"`
}

func (e Entry) displayStart() int {
	if e.SpillWindow != nil {
		return e.SpillWindow.Start
	}
	return e.Window.Start
}

// Classify builds the view of in.Date. It never mutates its inputs.
func Classify(in DayInput) []Entry {
	var entries []Entry

	pastDate := in.Today > in.Date
	for _, res := range in.Current {
		if !res.Visible() {
			continue
		}
		w := occupancy.Resolve(res, in.CurrentAdjustments[res.ID])
		if w.Spills() && pastDate {
			continue
		}
		entries = append(entries, Entry{Reservation: res, Window: w})
	}

	for _, res := range in.Previous {
		if !res.Visible() {
			continue
		}
		w := occupancy.Resolve(res, in.PreviousAdjustments[res.ID])
		if !w.Spills() {
			continue
		}
		source := res.Date
		if source == "" {
			source = daytime.PrevDate(in.Date)
		}
		spill := occupancy.Window{Start: 0, End: min(daytime.DayMinutes, w.End-daytime.DayMinutes)}
		entries = append(entries, Entry{
			Reservation: res,
			Window:      w,
			Spillover:   true,
			SourceDate:  source,
			SpillWindow: &spill,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].displayStart() < entries[j].displayStart()
	})
	return entries
}
