package services

import (
	"sort"
	"time"

	"github.com/photostudio/booking-backend/internal/models"
)

// ComputeSlots partitions [windowStart, windowEnd) into availability slots
// against the given reservations. Only reservations whose status occupies a
// slot are considered. With a positive granularity the window is tiled into
// fixed-size candidate slots (the last one clipped to the window edge); a
// candidate is available iff it intersects no occupying reservation. With
// granularity <= 0 the maximal free/occupied runs are returned instead.
//
// All intervals are half-open, so a slot ending exactly where a reservation
// starts is available. Pure function: no side effects, deterministic for a
// given input.
func ComputeSlots(reservations []models.Reservation, windowStart, windowEnd time.Time, granularity time.Duration) ([]models.TimeSlot, error) {
	if !windowStart.Before(windowEnd) {
		return nil, models.ErrInvalidRange
	}

	occupied := occupiedIntervals(reservations, windowStart, windowEnd)

	if granularity <= 0 {
		return maximalRuns(occupied, windowStart, windowEnd), nil
	}

	var slots []models.TimeSlot
	for cur := windowStart; cur.Before(windowEnd); cur = cur.Add(granularity) {
		end := cur.Add(granularity)
		if end.After(windowEnd) {
			end = windowEnd
		}
		slots = append(slots, models.TimeSlot{
			StartTime: cur,
			EndTime:   end,
			Available: !intersectsAny(occupied, cur, end),
		})
	}
	return slots, nil
}

type interval struct {
	start, end time.Time
}

// occupiedIntervals merges the occupying reservation intervals, clipped to the
// window, into a sorted non-overlapping set
func occupiedIntervals(reservations []models.Reservation, windowStart, windowEnd time.Time) []interval {
	var raw []interval
	for _, r := range reservations {
		if !r.Status.OccupiesSlot() || !r.Overlaps(windowStart, windowEnd) {
			continue
		}
		iv := interval{start: r.StartTime, end: r.EndTime}
		if iv.start.Before(windowStart) {
			iv.start = windowStart
		}
		if iv.end.After(windowEnd) {
			iv.end = windowEnd
		}
		raw = append(raw, iv)
	}
	if len(raw) == 0 {
		return nil
	}

	sort.Slice(raw, func(i, j int) bool { return raw[i].start.Before(raw[j].start) })

	merged := []interval{raw[0]}
	for _, iv := range raw[1:] {
		last := &merged[len(merged)-1]
		if !iv.start.After(last.end) {
			if iv.end.After(last.end) {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func intersectsAny(occupied []interval, start, end time.Time) bool {
	for _, iv := range occupied {
		if iv.start.Before(end) && start.Before(iv.end) {
			return true
		}
	}
	return false
}

// maximalRuns emits alternating free/occupied slots that exactly tile the window
func maximalRuns(occupied []interval, windowStart, windowEnd time.Time) []models.TimeSlot {
	var slots []models.TimeSlot
	cur := windowStart
	for _, iv := range occupied {
		if cur.Before(iv.start) {
			slots = append(slots, models.TimeSlot{StartTime: cur, EndTime: iv.start, Available: true})
		}
		slots = append(slots, models.TimeSlot{StartTime: iv.start, EndTime: iv.end, Available: false})
		cur = iv.end
	}
	if cur.Before(windowEnd) {
		slots = append(slots, models.TimeSlot{StartTime: cur, EndTime: windowEnd, Available: true})
	}
	return slots
}
