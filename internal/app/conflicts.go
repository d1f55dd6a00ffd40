package app

import "time"

func findEventType(eventTypes []EventType, id string) *EventType {
	for i := range eventTypes {
		if eventTypes[i].ID == id {
			return &eventTypes[i]
		}
	}
	return nil
}

// IsSlotTaken reports whether the candidate window [start, end) overlaps any
// blocking booking. Each existing booking is expanded by its own event
// type's buffers; the buffers protect time around the already-placed
// booking, not around the candidate. A booking whose event type no longer
// exists gets zero buffers.
func IsSlotTaken(start, end time.Time, bookings []Booking, eventTypes []EventType) bool {
	for _, b := range bookings {
		if !b.Blocks() {
			continue
		}
		var before, after time.Duration
		if et := findEventType(eventTypes, b.EventTypeID); et != nil {
			before = time.Duration(et.BufferBeforeMins) * time.Minute
			after = time.Duration(et.BufferAfterMins) * time.Minute
		}
		bStart := b.StartAtUTC.Add(-before)
		bEnd := b.EndAtUTC.Add(after)
		// Half-open interval overlap.
		if start.Before(bEnd) && end.After(bStart) {
			return true
		}
	}
	return false
}

// withoutBooking filters out one booking by id, for conflict checks that
// must not count the booking being moved against itself.
func withoutBooking(bookings []Booking, id string) []Booking {
	out := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}
