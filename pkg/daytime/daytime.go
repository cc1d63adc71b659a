// Package daytime converts between wall-clock "HH:MM" strings and
// minute-of-day integers and defines the operating day.
//
// An operating day spans minutes [0, DayMinutes). Values above DayMinutes
// describe occupancy that spills over midnight into the next calendar date;
// MaxMinutes bounds that spillover to one extra day.
package daytime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DayMinutes = 24 * 60
	MaxMinutes = 2 * DayMinutes

	DateLayout = "2006-01-02"
)

// TimeToMinutes converts "HH:MM" to minutes since midnight.
// Malformed input never fails: missing or non-numeric parts count as zero,
// hours wrap modulo 24 and minutes modulo 60.
func TimeToMinutes(t string) int {
	parts := strings.SplitN(strings.TrimSpace(t), ":", 3)
	hours := wrap(component(parts, 0), 24)
	mins := wrap(component(parts, 1), 60)
	return hours*60 + mins
}

// MinutesToTime converts minutes since midnight to "HH:MM".
// Minutes past midnight wrap to the next day's wall clock.
func MinutesToTime(m int) string {
	if m < 0 {
		m = 0
	}
	m %= DayMinutes
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func component(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return n
}

func wrap(v, unit int) int {
	return ((v % unit) + unit) % unit
}

// DateKey formats t as an operating date key (YYYY-MM-DD) in t's location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses an operating date key as midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid operating date %q: %w", date, err)
	}
	return t, nil
}

// ValidDate reports whether date is a well-formed YYYY-MM-DD key.
func ValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// NextDate returns the date key following date, or "" if date is malformed.
func NextDate(date string) string {
	return shiftDate(date, 1)
}

// PrevDate returns the date key preceding date, or "" if date is malformed.
func PrevDate(date string) string {
	return shiftDate(date, -1)
}

func shiftDate(date string, days int) string {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, days).Format(DateLayout)
}

// MinuteOfOperatingDay returns how many whole minutes of date's operating
// day have elapsed at now. After midnight the value keeps growing past
// DayMinutes, so a seating on date is still measured against date's clock.
// A malformed date falls back to now's own minute of day.
func MinuteOfOperatingDay(date string, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = now.Location()
	}
	midnight, err := ParseDate(date, loc)
	if err != nil {
		local := now.In(loc)
		return local.Hour()*60 + local.Minute()
	}
	return int(now.Sub(midnight) / time.Minute)
}

// Instant returns the wall-clock instant of minutes on date's operating day.
func Instant(date string, minutes int, loc *time.Location) (time.Time, error) {
	midnight, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	return midnight.Add(time.Duration(minutes) * time.Minute), nil
}
