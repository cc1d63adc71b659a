package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Minutes is an optional minute-of-day value. The zero value is unset,
// which means "use the default for this boundary"; Some(0) is an explicit
// midnight.
type Minutes struct {
	value int
	set   bool
}

func Some(v int) Minutes {
	return Minutes{value: v, set: true}
}

func None() Minutes {
	return Minutes{}
}

// FromPtr converts a nullable stored value.
func FromPtr(v *int) Minutes {
	if v == nil {
		return None()
	}
	return Some(*v)
}

func (m Minutes) Get() (int, bool) {
	return m.value, m.set
}

func (m Minutes) IsSet() bool {
	return m.set
}

// IsZero lets encoding/json omit unset values with omitzero.
func (m Minutes) IsZero() bool {
	return !m.set
}

func (m Minutes) OrElse(fallback int) int {
	if m.set {
		return m.value
	}
	return fallback
}

func (m Minutes) Ptr() *int {
	if !m.set {
		return nil
	}
	v := m.value
	return &v
}

func (m Minutes) MarshalJSON() ([]byte, error) {
	if !m.set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(m.value)), nil
}

func (m *Minutes) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = None()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Some(int(v))
	return nil
}

// DurationAdjustment overrides a reservation's default occupancy window.
type DurationAdjustment struct {
	Start Minutes `json:"start,omitzero" validate:"omitempty,day_minutes"`
	End   Minutes `json:"end,omitzero" validate:"omitempty,day_minutes"`
}

func (a DurationAdjustment) Empty() bool {
	return !a.Start.IsSet() && !a.End.IsSet()
}

// Merge returns a with every field that patch sets replaced.
func (a DurationAdjustment) Merge(patch DurationAdjustment) DurationAdjustment {
	if patch.Start.IsSet() {
		a.Start = patch.Start
	}
	if patch.End.IsSet() {
		a.End = patch.End
	}
	return a
}

// AdjustmentMap holds one operating date's adjustments by reservation id.
type AdjustmentMap map[string]DurationAdjustment

func (m AdjustmentMap) Clone() AdjustmentMap {
	out := make(AdjustmentMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
