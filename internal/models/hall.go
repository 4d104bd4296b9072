package models

import (
	"fmt"
	"time"
)

// Hall is a bookable photo-studio hall
type Hall struct {
	ID                string  `json:"id" db:"id"`
	Name              string  `json:"name" db:"name"`
	Description       string  `json:"description" db:"description"`
	HourlyRate        float64 `json:"hourly_rate" db:"hourly_rate"`
	MinBookingMinutes int     `json:"min_booking_minutes" db:"min_booking_minutes"`
	WorkStart         string  `json:"work_start" db:"work_start"` // "09:00"
	WorkEnd           string  `json:"work_end" db:"work_end"`     // "22:00"
}

// Price returns the booking price for a window at this hall's hourly rate
func (h *Hall) Price(start, end time.Time) float64 {
	return end.Sub(start).Hours() * h.HourlyRate
}

// ValidateWindow checks a booking window against the hall's working hours and
// minimum booking duration. Availability queries are not restricted by this;
// only actual claims are.
func (h *Hall) ValidateWindow(start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidRange
	}
	if d := end.Sub(start); d < time.Duration(h.MinBookingMinutes)*time.Minute {
		return fmt.Errorf("booking must be at least %d minutes for hall %s", h.MinBookingMinutes, h.ID)
	}
	// the window must fall within a single working day; an end exactly at
	// the next midnight falls through to the minuteOfEnd comparison
	dayEnd := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location()).AddDate(0, 0, 1)
	if end.After(dayEnd) {
		return fmt.Errorf("booking must start and end on the same day at hall %s", h.ID)
	}
	workStart, err := minutesOfDay(h.WorkStart)
	if err != nil {
		return fmt.Errorf("hall %s has invalid work_start: %w", h.ID, err)
	}
	workEnd, err := minutesOfDay(h.WorkEnd)
	if err != nil {
		return fmt.Errorf("hall %s has invalid work_end: %w", h.ID, err)
	}
	if minuteOf(start) < workStart || minuteOfEnd(end) > workEnd {
		return fmt.Errorf("hall %s is open %s-%s", h.ID, h.WorkStart, h.WorkEnd)
	}
	return nil
}

func minutesOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func minuteOf(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// minuteOfEnd treats midnight as minute 1440 so a booking ending exactly at
// 00:00 the next day compares against the end of the working day
func minuteOfEnd(t time.Time) int {
	m := minuteOf(t)
	if m == 0 {
		return 24 * 60
	}
	return m
}
