// Package allocate computes which (slot, lane) pairs a team may book for an
// inspection type on a given day. It is pure: callers supply a snapshot of
// the day's bookings and commit the chosen candidate elsewhere.
package allocate

import (
	"fmt"

	"github.com/zulandar/scrutineer/internal/models"
	"github.com/zulandar/scrutineer/internal/slot"
)

// DefaultMinStart is the earliest start a rescrutineering team may take when
// no first attempt has been booked today.
const DefaultMinStart = "00:00"

// Request is the snapshot an allocation decision is made against.
type Request struct {
	Type        models.InspectionType
	Date        string
	WindowStart string
	WindowEnd   string
	DayBookings []models.Booking // all bookings for Type on Date
	TeamHistory []models.Booking // the requesting team's bookings for Type
}

// Candidate is one offered (slot, lane) pair.
type Candidate struct {
	StartTime     string
	EndTime       string
	ResourceIndex int
}

// HasFailed reports whether the history holds a failed booking for typeID.
func HasFailed(history []models.Booking, typeID uint) bool {
	for _, b := range history {
		if b.InspectionTypeID == typeID && b.Status == models.BookingFailed {
			return true
		}
	}
	return false
}

// MinStart returns the latest start time among the day's first-attempt
// bookings, so a retrying team cannot cut in front of them.
func MinStart(dayBookings []models.Booking) string {
	minStart := DefaultMinStart
	for _, b := range dayBookings {
		if b.IsRescrutineering || b.Status == models.BookingCancelled {
			continue
		}
		if b.StartTime > minStart {
			minStart = b.StartTime
		}
	}
	return minStart
}

// Offer returns, in time order, the first free lane of every bookable slot.
func Offer(req Request) ([]Candidate, error) {
	if req.Type.ConcurrentSlots < 1 {
		return nil, fmt.Errorf("allocate: inspection type %q has no lanes", req.Type.Key)
	}

	hasFailed := HasFailed(req.TeamHistory, req.Type.ID)
	minStart := DefaultMinStart
	if hasFailed {
		minStart = MinStart(req.DayBookings)
	}

	slots, err := slot.Generate(req.WindowStart, req.WindowEnd, req.Type.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}

	taken := occupied(req.DayBookings)

	var out []Candidate
	for _, start := range slots {
		if hasFailed && start < minStart {
			continue
		}
		for lane := 0; lane < req.Type.ConcurrentSlots; lane++ {
			if taken[laneKey{start, lane}] {
				continue
			}
			end, err := slot.Add(start, req.Type.DurationMinutes)
			if err != nil {
				return nil, fmt.Errorf("allocate: %w", err)
			}
			out = append(out, Candidate{StartTime: start, EndTime: end, ResourceIndex: lane})
			break
		}
	}
	return out, nil
}

// ForSlot returns the offered candidate starting at start, if any.
func ForSlot(candidates []Candidate, start string) (Candidate, bool) {
	for _, c := range candidates {
		if c.StartTime == start {
			return c, true
		}
	}
	return Candidate{}, false
}

type laneKey struct {
	start string
	lane  int
}

// occupied indexes lanes held by live bookings. Cancelled bookings release
// their lane; reopened rows share the lane of the booking they reopen.
func occupied(bookings []models.Booking) map[laneKey]bool {
	taken := make(map[laneKey]bool, len(bookings))
	for _, b := range bookings {
		if b.Status == models.BookingCancelled {
			continue
		}
		taken[laneKey{b.StartTime, b.ResourceIndex}] = true
	}
	return taken
}
