// Package scheduling finds and resolves table conflicts created when a
// seated reservation is extended, and builds the per-day floor view.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"seatflow/internal/occupancy"
	"seatflow/pkg/logger"
	"seatflow/pkg/model"
)

var kinds = []model.Kind{model.KindRegular, model.KindEvent}

type ReservationSource interface {
	FindByDate(ctx context.Context, kind model.Kind, date string) ([]*model.Reservation, error)
}

type AdjustmentReader interface {
	Snapshot(date string) model.AdjustmentMap
}

// Extension describes a reservation whose end boundary moves from
// PreviousEnd to NewEnd.
type Extension struct {
	ReservationID string
	Date          string
	TableIDs      []string
	PreviousEnd   int
	NewEnd        int
}

// Candidate is a reservation that starts inside the newly claimed interval,
// with the window it had before any shift.
type Candidate struct {
	Reservation *model.Reservation
	Window      occupancy.Window
}

type Detector struct {
	source      ReservationSource
	adjustments AdjustmentReader
	log         *logger.Logger
}

func NewDetector(source ReservationSource, adjustments AdjustmentReader, log *logger.Logger) *Detector {
	return &Detector{source: source, adjustments: adjustments, log: log}
}

// Detect scans both collections of ext.Date. A failing collection is logged
// and skipped; an error is returned only when no collection could be read.
func (d *Detector) Detect(ctx context.Context, ext Extension) ([]Candidate, error) {
	adjustments := d.adjustments.Snapshot(ext.Date)

	var candidates []Candidate
	var errs []error
	for _, kind := range kinds {
		reservations, err := d.source.FindByDate(ctx, kind, ext.Date)
		if err != nil {
			d.log.Warn("Conflict scan skipped a reservation collection",
				"kind", kind,
				"date", ext.Date,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}

		for _, res := range reservations {
			if res.Kind == "" {
				res.Kind = kind
			}
			if c, ok := conflicts(ext, res, adjustments[res.ID]); ok {
				candidates = append(candidates, c)
			}
		}
	}

	if len(errs) == len(kinds) {
		return nil, errors.Join(errs...)
	}
	return candidates, nil
}

func conflicts(ext Extension, res *model.Reservation, adj model.DurationAdjustment) (Candidate, bool) {
	if res.ID == ext.ReservationID || !res.Pending() || !res.SharesTable(ext.TableIDs) {
		return Candidate{}, false
	}

	w := occupancy.Resolve(res, adj)
	if w.Start < ext.PreviousEnd || w.Start >= ext.NewEnd {
		return Candidate{}, false
	}
	return Candidate{Reservation: res, Window: w}, true
}
