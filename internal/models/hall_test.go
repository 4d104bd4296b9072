package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testHall() *Hall {
	return &Hall{
		ID:                "hall-001",
		Name:              "Large Hall",
		HourlyRate:        1500,
		MinBookingMinutes: 60,
		WorkStart:         "09:00",
		WorkEnd:           "22:00",
	}
}

func TestHall_Price(t *testing.T) {
	h := testHall()
	start := time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 3000.0, h.Price(start, start.Add(2*time.Hour)))
	assert.Equal(t, 2250.0, h.Price(start, start.Add(90*time.Minute)))
}

func TestHall_ValidateWindow(t *testing.T) {
	h := testHall()
	day := func(hh, mm int) time.Time {
		return time.Date(2025, 12, 20, hh, mm, 0, 0, time.UTC)
	}

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr bool
	}{
		{"inside working hours", day(10, 0), day(12, 0), false},
		{"exactly working hours", day(9, 0), day(22, 0), false},
		{"before opening", day(8, 0), day(10, 0), true},
		{"past closing", day(21, 0), day(23, 0), true},
		{"below minimum duration", day(10, 0), day(10, 30), true},
		{"inverted range", day(12, 0), day(10, 0), true},
		{"zero length", day(10, 0), day(10, 0), true},
		{"spans into the next day", day(10, 0), day(11, 0).AddDate(0, 0, 1), true},
		{"spans several days", day(10, 0), day(12, 0).AddDate(0, 0, 7), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.ValidateWindow(tt.start, tt.end)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHall_ValidateWindow_MidnightClose(t *testing.T) {
	h := testHall()
	h.WorkEnd = "23:59"

	// a booking ending exactly at midnight stays within a 23:59 working day
	start := time.Date(2025, 12, 20, 22, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC)
	assert.Error(t, h.ValidateWindow(start, end))

	h.MinBookingMinutes = 30
	assert.Error(t, h.ValidateWindow(start, end), "midnight end is minute 1440, past 23:59")

	endBefore := time.Date(2025, 12, 20, 23, 30, 0, 0, time.UTC)
	assert.NoError(t, h.ValidateWindow(start, endBefore))
}
