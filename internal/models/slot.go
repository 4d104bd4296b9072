package models

import "time"

// TimeSlot is a derived availability interval for a hall. Slots are never
// persisted; they tile the queried window and do not overlap each other.
// The interval is half-open [start_time, end_time).
type TimeSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Available bool      `json:"available"`
}
