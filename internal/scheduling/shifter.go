package scheduling

import (
	"context"
	"seatflow/internal/occupancy"
	"seatflow/pkg/daytime"
	"seatflow/pkg/logger"
	"seatflow/pkg/model"
)

type ReservationUpdater interface {
	Update(ctx context.Context, kind model.Kind, id string, patch model.ReservationPatch) error
}

type AdjustmentWriter interface {
	Set(ctx context.Context, date, reservationID string, patch model.DurationAdjustment) model.DurationAdjustment
}

// Shift records what happened to one candidate. Reservation is the
// candidate with its new wall-clock time applied; Err is the record
// update failure, if any.
type Shift struct {
	Reservation model.Reservation `json:"reservation"`
	From        occupancy.Window  `json:"from"`
	To          occupancy.Window  `json:"to"`
	Err         error             `json:"-"`
	Error       string            `json:"error,omitempty"`
}

type CascadeResult struct {
	Shifts []Shift `json:"shifts"`
}

func (r CascadeResult) Failed() []Shift {
	var out []Shift
	for _, s := range r.Shifts {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Shifter pushes conflicting reservations to start where the extended one
// now ends. Only the candidates handed to Apply move; conflicts that a
// shifted candidate creates in turn are left for staff to resolve.
type Shifter struct {
	reservations ReservationUpdater
	adjustments  AdjustmentWriter
	log          *logger.Logger
}

func NewShifter(reservations ReservationUpdater, adjustments AdjustmentWriter, log *logger.Logger) *Shifter {
	return &Shifter{reservations: reservations, adjustments: adjustments, log: log}
}

// Target computes a candidate's shifted window from its own pre-shift
// window. The end keeps the original duration but is capped at midnight,
// and never falls before the new start.
//
// When newEnd is already past midnight the candidate is left with an empty
// window at newEnd, and Apply writes the wrapped clock (e.g. "00:10") onto
// a record still filed under the earlier date. The stored adjustment start
// keeps the window correct for resolution; moving such a booking to the
// next date is left to staff, like any conflict beyond the first level.
func Target(from occupancy.Window, newEnd int) occupancy.Window {
	shift := newEnd - from.Start
	end := min(daytime.DayMinutes, from.End+shift)
	return occupancy.Window{Start: newEnd, End: max(newEnd, end)}
}

// Apply shifts every candidate independently. A failed record write is
// logged and reported without stopping the remaining candidates, and the
// adjustment is written regardless.
func (s *Shifter) Apply(ctx context.Context, date string, newEnd int, candidates []Candidate) CascadeResult {
	result := CascadeResult{Shifts: make([]Shift, 0, len(candidates))}

	for _, c := range candidates {
		to := Target(c.Window, newEnd)
		newTime := daytime.MinutesToTime(to.Start)
		patch := model.ReservationPatch{Time: &newTime}

		shift := Shift{
			Reservation: patch.Apply(*c.Reservation),
			From:        c.Window,
			To:          to,
		}

		if err := s.reservations.Update(ctx, c.Reservation.Kind, c.Reservation.ID, patch); err != nil {
			s.log.Error("Failed to move reservation during cascade",
				"date", date,
				"reservation_id", c.Reservation.ID,
				"kind", c.Reservation.Kind,
				"new_time", newTime,
				"error", err,
			)
			shift.Err = err
			shift.Error = err.Error()
		}

		s.adjustments.Set(ctx, date, c.Reservation.ID, model.DurationAdjustment{
			Start: model.Some(to.Start),
			End:   model.Some(to.End),
		})

		s.log.Info("Reservation shifted by cascade",
			"date", date,
			"reservation_id", c.Reservation.ID,
			"from_start", c.Window.Start,
			"to_start", to.Start,
			"to_end", to.End,
		)
		result.Shifts = append(result.Shifts, shift)
	}

	return result
}
