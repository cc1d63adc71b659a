package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinutesDistinguishesUnsetFromZero(t *testing.T) {
	unset := None()
	zero := Some(0)

	_, ok := unset.Get()
	assert.False(t, ok)
	v, ok := zero.Get()
	assert.True(t, ok)
	assert.Equal(t, 0, v)

	assert.Equal(t, 60, unset.OrElse(60))
	assert.Equal(t, 0, zero.OrElse(60))
	assert.Nil(t, unset.Ptr())
	require.NotNil(t, zero.Ptr())
	assert.Equal(t, 0, *zero.Ptr())
}

func TestDurationAdjustmentJSON(t *testing.T) {
	data, err := json.Marshal(DurationAdjustment{End: Some(1280)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"end":1280}`, string(data))

	var adj DurationAdjustment
	require.NoError(t, json.Unmarshal([]byte(`{"start":0,"end":null}`), &adj))
	assert.Equal(t, Some(0), adj.Start)
	assert.False(t, adj.End.IsSet())
}

func TestDurationAdjustmentMerge(t *testing.T) {
	existing := DurationAdjustment{Start: Some(1200), End: Some(1260)}

	merged := existing.Merge(DurationAdjustment{End: Some(1280)})
	assert.Equal(t, DurationAdjustment{Start: Some(1200), End: Some(1280)}, merged)

	assert.Equal(t, existing, existing.Merge(DurationAdjustment{}))
}

func TestReservationStatusPredicates(t *testing.T) {
	tests := []struct {
		name    string
		r       Reservation
		pending bool
		seated  bool
		visible bool
	}{
		{"waiting", Reservation{Kind: KindRegular, Status: StatusWaiting}, true, false, true},
		{"confirmed", Reservation{Kind: KindRegular, Status: StatusConfirmed}, true, false, true},
		{"legacy pending", Reservation{Kind: KindRegular, Status: StatusPending}, false, false, true},
		{"arrived", Reservation{Kind: KindRegular, Status: StatusArrived}, false, true, true},
		{"arrived and cleared", Reservation{Kind: KindRegular, Status: StatusArrived, Cleared: true}, false, false, false},
		{"cancelled", Reservation{Kind: KindRegular, Status: StatusCancelled}, false, false, false},
		{"not arrived", Reservation{Kind: KindRegular, Status: StatusNotArrived}, false, false, false},
		{"event booked", Reservation{Kind: KindEvent, Status: StatusBooked}, true, false, true},
		{"event waiting is not an event status", Reservation{Kind: KindEvent, Status: StatusWaiting}, false, false, false},
		{"deleted", Reservation{Kind: KindRegular, Status: StatusWaiting, IsDeleted: true}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.pending, tt.r.Pending())
			assert.Equal(t, tt.seated, tt.r.Seated())
			assert.Equal(t, tt.visible, tt.r.Visible())
		})
	}
}

func TestReservationPatchApply(t *testing.T) {
	newTime := "21:20"
	r := Reservation{ID: "r2", Time: "21:10", Status: StatusWaiting}

	patched := ReservationPatch{Time: &newTime}.Apply(r)
	assert.Equal(t, "21:20", patched.Time)
	assert.Equal(t, StatusWaiting, patched.Status)
	assert.Equal(t, "21:10", r.Time)
	assert.True(t, ReservationPatch{}.Empty())
}
