package model

import "time"

// Kind tells which collection a reservation lives in. Regular and
// event-linked reservations share the same time semantics.
type Kind string

const (
	KindRegular Kind = "regular"
	KindEvent   Kind = "event"
)

func (k Kind) Valid() bool {
	return k == KindRegular || k == KindEvent
}

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusConfirmed  Status = "confirmed"
	StatusArrived    Status = "arrived"
	StatusNotArrived Status = "not_arrived"
	StatusCancelled  Status = "cancelled"
	// StatusPending is a legacy regular status still found in older records.
	StatusPending Status = "pending"
	// StatusBooked is the event-reservation equivalent of waiting.
	StatusBooked Status = "booked"
)

type Reservation struct {
	ID            string    `json:"id" bson:"_id"`
	Kind          Kind      `json:"kind" bson:"-"`
	EventID       string    `json:"event_id,omitempty" bson:"event_id,omitempty"`
	GuestName     string    `json:"guest_name" bson:"guest_name"`
	Date          string    `json:"date" bson:"date"`
	Time          string    `json:"time" bson:"time"`
	PartySize     int       `json:"number_of_guests" bson:"number_of_guests"`
	ZoneID        string    `json:"zone_id,omitempty" bson:"zone_id,omitempty"`
	TableIDs      []string  `json:"table_ids" bson:"table_ids"`
	Status        Status    `json:"status" bson:"status"`
	Cleared       bool      `json:"cleared" bson:"cleared"`
	IsDeleted     bool      `json:"is_deleted,omitempty" bson:"is_deleted,omitempty"`
	PaymentStatus string    `json:"payment_status,omitempty" bson:"payment_status,omitempty"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// ReservationPatch carries the lifecycle fields the engine is allowed to
// change on a reservation record. Nil fields are left untouched.
type ReservationPatch struct {
	Time    *string `json:"time,omitempty"`
	Status  *Status `json:"status,omitempty"`
	Cleared *bool   `json:"cleared,omitempty"`
}

func (p ReservationPatch) Empty() bool {
	return p.Time == nil && p.Status == nil && p.Cleared == nil
}

// Apply returns a copy of r with the patch applied.
func (p ReservationPatch) Apply(r Reservation) Reservation {
	if p.Time != nil {
		r.Time = *p.Time
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Cleared != nil {
		r.Cleared = *p.Cleared
	}
	return r
}

// Pending reports whether the reservation has not been seated yet and can
// still be pushed around by a cascade.
func (r *Reservation) Pending() bool {
	if r.Cleared || r.IsDeleted {
		return false
	}
	if r.Kind == KindEvent {
		return r.Status == StatusBooked
	}
	return r.Status == StatusWaiting || r.Status == StatusConfirmed
}

// Seated reports whether the party is at the table right now.
func (r *Reservation) Seated() bool {
	return r.Status == StatusArrived && !r.Cleared && !r.IsDeleted
}

// Visible reports whether the reservation belongs on a floor view.
func (r *Reservation) Visible() bool {
	if r.Cleared || r.IsDeleted {
		return false
	}
	if r.Kind == KindEvent {
		return r.Status == StatusBooked || r.Status == StatusArrived
	}
	switch r.Status {
	case StatusWaiting, StatusConfirmed, StatusArrived, StatusPending:
		return true
	}
	return false
}

// SharesTable reports whether r and other occupy at least one common table.
func (r *Reservation) SharesTable(tableIDs []string) bool {
	for _, a := range r.TableIDs {
		for _, b := range tableIDs {
			if a == b {
				return true
			}
		}
	}
	return false
}
