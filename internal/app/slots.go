package app

import (
	"context"
	"fmt"
	"time"
)

// Slot is one bookable [start, end) window in UTC.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// GenerateSlots computes every bookable slot for one civil date, given the
// effective rule for that date and the event type being booked. The walk is
// a cursor from the rule's start to its end in steps of the event duration;
// no partial trailing slot is emitted. Each candidate's wall-clock time is
// resolved to an instant in loc (DST-aware), then filtered by the minimum
// notice policy and the booking conflict check. Output is ascending and a
// pure function of its inputs.
func GenerateSlots(date Date, rule Rule, et EventType, loc *time.Location, now time.Time, bookings []Booking, eventTypes []EventType) []Slot {
	if rule == nil {
		return nil
	}
	start, end, ok := rule.Hours()
	if !ok {
		return nil
	}
	if et.DurationMins <= 0 {
		return nil
	}
	if !et.InDateRange(date) {
		return nil
	}
	if et.MaxBookingsPerDay > 0 &&
		bookingsOnDay(bookings, et.ID, date, loc) >= et.MaxBookingsPerDay {
		return nil
	}

	duration := time.Duration(et.DurationMins) * time.Minute
	minNotice := time.Duration(et.MinNoticeMins) * time.Minute
	step := TimeOfDay(et.DurationMins)

	var slots []Slot
	for cursor := start; cursor+step <= end; cursor += step {
		slotStart := date.At(cursor, loc).UTC()
		slotEnd := slotStart.Add(duration)
		if slotStart.Sub(now) < minNotice {
			continue
		}
		if IsSlotTaken(slotStart, slotEnd, bookings, eventTypes) {
			continue
		}
		slots = append(slots, Slot{Start: slotStart, End: slotEnd})
	}
	return slots
}

// bookingsOnDay counts blocking bookings of one event type whose start falls
// on the given civil date as observed in loc. Backs max_bookings_per_day.
func bookingsOnDay(bookings []Booking, eventTypeID string, date Date, loc *time.Location) int {
	n := 0
	for _, b := range bookings {
		if b.Blocks() && b.EventTypeID == eventTypeID && DateOf(b.StartAtUTC, loc) == date {
			n++
		}
	}
	return n
}

// DayOverview says whether one day of a month can be booked at all. It backs
// the month grid the booking page renders; slot-level filtering still
// happens per date.
type DayOverview struct {
	Date      Date `json:"date"`
	Available bool `json:"available"`
}

// MonthOverview reports day-level availability for every day of a month.
// Days in the past (relative to now in loc) are unavailable regardless of
// rules.
func MonthOverview(year int, month time.Month, rules []Rule, loc *time.Location, now time.Time) []DayOverview {
	today := DateOf(now, loc)
	daysInMonth := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()

	out := make([]DayOverview, 0, daysInMonth)
	for day := 1; day <= daysInMonth; day++ {
		date := Date{Year: year, Month: month, Day: day}
		available := false
		if !date.Before(today) {
			if rule := ResolveEffectiveRule(date, rules); rule != nil {
				_, _, available = rule.Hours()
			}
		}
		out = append(out, DayOverview{Date: date, Available: available})
	}
	return out
}

// AvailableSlots is the read side of the booking funnel: it snapshots the
// owner's rules, bookings and event types from the store and runs the
// resolver and generator for one date.
func (a *App) AvailableSlots(ctx context.Context, ownerSlug, eventTypeSlug string, date Date) ([]Slot, error) {
	owner, err := a.Store.GetOwner(ctx, ownerSlug)
	if err != nil {
		return nil, err
	}
	loc, err := owner.Location()
	if err != nil {
		return nil, err
	}
	et, err := a.Store.GetEventTypeBySlug(ctx, ownerSlug, eventTypeSlug)
	if err != nil {
		return nil, err
	}
	if !et.IsActive {
		return nil, ErrNotFound
	}
	rules, err := a.Store.ListRules(ctx, ownerSlug)
	if err != nil {
		return nil, err
	}
	bookings, err := a.Store.ListBookings(ctx, ownerSlug)
	if err != nil {
		return nil, err
	}
	eventTypes, err := a.Store.ListEventTypes(ctx, ownerSlug)
	if err != nil {
		return nil, err
	}

	rule := ResolveEffectiveRule(date, rules)
	return GenerateSlots(date, rule, *et, loc, a.Clock.Now(), bookings, eventTypes), nil
}

// AvailableDays backs GET .../days?month=YYYY-MM.
func (a *App) AvailableDays(ctx context.Context, ownerSlug string, year int, month time.Month) ([]DayOverview, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	owner, err := a.Store.GetOwner(ctx, ownerSlug)
	if err != nil {
		return nil, err
	}
	loc, err := owner.Location()
	if err != nil {
		return nil, err
	}
	rules, err := a.Store.ListRules(ctx, ownerSlug)
	if err != nil {
		return nil, err
	}
	return MonthOverview(year, month, rules, loc, a.Clock.Now()), nil
}
