package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The Kolkata scenario: owner in UTC+5:30 (no DST), Monday 09:00-17:00,
// 30-minute meetings with 60 minutes notice, now 03:00Z on that Monday.
// 09:00 IST is 03:30Z, only 30 minutes away, so the day's first bookable
// slot is 09:30 IST (04:00Z).
func TestGenerateSlots_KolkataEndToEnd(t *testing.T) {
	kolkata := mustLoc(t, "Asia/Kolkata")
	date := mustDate(t, "2026-03-02")
	rule := weekdayRule(t, time.Monday, "09:00", "17:00")
	now := mustTime(t, "2026-03-02T03:00:00Z")

	slots := GenerateSlots(date, rule, introCall(), kolkata, now, nil, nil)
	require.NotEmpty(t, slots)
	assert.Equal(t, mustTime(t, "2026-03-02T04:00:00Z"), slots[0].Start)
	assert.Equal(t, mustTime(t, "2026-03-02T04:30:00Z"), slots[0].End)

	// 09:00-17:00 holds sixteen 30-minute slots; the first is excluded by
	// notice, leaving fifteen. The last one starts 16:30 IST (11:00Z).
	assert.Len(t, slots, 15)
	assert.Equal(t, mustTime(t, "2026-03-02T11:00:00Z"), slots[len(slots)-1].Start)
}

func TestGenerateSlots_GridAlignment(t *testing.T) {
	date := mustDate(t, "2026-03-02")
	rule := weekdayRule(t, time.Monday, "09:00", "17:00")
	et := introCall()
	et.MinNoticeMins = 0
	now := mustTime(t, "2026-02-01T00:00:00Z")

	slots := GenerateSlots(date, rule, et, time.UTC, now, nil, nil)
	require.Len(t, slots, 16)
	assert.Equal(t, mustTime(t, "2026-03-02T09:00:00Z"), slots[0].Start)
	for i, s := range slots {
		assert.Equal(t, 30*time.Minute, s.End.Sub(s.Start))
		if i > 0 {
			assert.Equal(t, 30*time.Minute, s.Start.Sub(slots[i-1].Start))
		}
	}
	// Never past the rule's end.
	assert.False(t, slots[len(slots)-1].End.After(mustTime(t, "2026-03-02T17:00:00Z")))
}

func TestGenerateSlots_NoPartialTrailingSlot(t *testing.T) {
	date := mustDate(t, "2026-03-02")
	rule := weekdayRule(t, time.Monday, "09:00", "10:45")
	et := introCall()
	et.MinNoticeMins = 0

	slots := GenerateSlots(date, rule, et, time.UTC, mustTime(t, "2026-02-01T00:00:00Z"), nil, nil)
	// 09:00, 09:30, 10:00 fit; 10:30-11:00 would overrun 10:45.
	require.Len(t, slots, 3)
	assert.Equal(t, mustTime(t, "2026-03-02T10:00:00Z"), slots[2].Start)
}

func TestGenerateSlots_NilRuleAndDayOff(t *testing.T) {
	date := mustDate(t, "2026-03-02")
	et := introCall()
	now := mustTime(t, "2026-02-01T00:00:00Z")

	assert.Empty(t, GenerateSlots(date, nil, et, time.UTC, now, nil, nil))

	dayOff := DayOffRule{ID: "off", OwnerSlug: "dwayne", Date: date}
	assert.Empty(t, GenerateSlots(date, dayOff, et, time.UTC, now, nil, nil))
}

func TestGenerateSlots_OverridePrecedence(t *testing.T) {
	monday := mustDate(t, "2026-03-02")
	recurring := weekdayRule(t, time.Monday, "09:00", "17:00")
	et := introCall()
	et.MinNoticeMins = 0
	now := mustTime(t, "2026-02-01T00:00:00Z")

	// day_off override: empty sequence.
	rules := []Rule{recurring, DayOffRule{ID: "off", OwnerSlug: "dwayne", Date: monday}}
	effective := ResolveEffectiveRule(monday, rules)
	assert.Empty(t, GenerateSlots(monday, effective, et, time.UTC, now, nil, nil))

	// one_time 13:00-17:00 override: slots confined to the override window.
	oneTime := OneTimeRule{
		ID: "ot", OwnerSlug: "dwayne", Date: monday,
		Start: mustTOD(t, "13:00"), End: mustTOD(t, "17:00"),
	}
	rules = []Rule{recurring, oneTime}
	effective = ResolveEffectiveRule(monday, rules)
	slots := GenerateSlots(monday, effective, et, time.UTC, now, nil, nil)
	require.Len(t, slots, 8)
	assert.Equal(t, mustTime(t, "2026-03-02T13:00:00Z"), slots[0].Start)
	assert.False(t, slots[len(slots)-1].End.After(mustTime(t, "2026-03-02T17:00:00Z")))
}

func TestGenerateSlots_NoticeInvariant(t *testing.T) {
	date := mustDate(t, "2026-03-02")
	rule := weekdayRule(t, time.Monday, "09:00", "17:00")
	et := introCall()
	et.MinNoticeMins = 120
	now := mustTime(t, "2026-03-02T09:10:00Z")

	slots := GenerateSlots(date, rule, et, time.UTC, now, nil, nil)
	require.NotEmpty(t, slots)
	notice := time.Duration(et.MinNoticeMins) * time.Minute
	for _, s := range slots {
		assert.GreaterOrEqual(t, s.Start.Sub(now), notice)
	}
	// 11:10 rounds up to the 11:30 grid line.
	assert.Equal(t, mustTime(t, "2026-03-02T11:30:00Z"), slots[0].Start)
}

// Every slot the generator emits must pass the same conflict predicate it
// filtered with.
func TestGenerateSlots_NoConflictInvariant(t *testing.T) {
	date := mustDate(t, "2026-03-02")
	rule := weekdayRule(t, time.Monday, "09:00", "17:00")
	typeA := introCall()
	typeA.BufferBeforeMins = 5
	typeA.BufferAfterMins = 10
	eventTypes := []EventType{typeA}
	bookings := []Booking{
		confirmedBooking(t, "b1", typeA.ID, "2026-03-02T10:00:00Z", "2026-03-02T10:30:00Z"),
		confirmedBooking(t, "b2", typeA.ID, "2026-03-02T14:00:00Z", "2026-03-02T14:30:00Z"),
	}
	now := mustTime(t, "2026-02-01T00:00:00Z")

	slots := GenerateSlots(date, rule, typeA, time.UTC, now, bookings, eventTypes)
	require.NotEmpty(t, slots)
	for _, s := range slots {
		assert.False(t, IsSlotTaken(s.Start, s.End, bookings, eventTypes),
			"slot %s-%s conflicts", s.Start, s.End)
	}
}

func TestGenerateSlots_CancellationFreesTheSlot(t *testing.T) {
	date := mustDate(t, "2026-03-02")
	rule := weekdayRule(t, time.Monday, "09:00", "17:00")
	et := introCall()
	et.MinNoticeMins = 0
	now := mustTime(t, "2026-02-01T00:00:00Z")
	booking := confirmedBooking(t, "b1", et.ID, "2026-03-02T14:00:00Z", "2026-03-02T14:30:00Z")

	occupied := GenerateSlots(date, rule, et, time.UTC, now, []Booking{booking}, []EventType{et})
	for _, s := range occupied {
		assert.NotEqual(t, mustTime(t, "2026-03-02T14:00:00Z"), s.Start)
	}

	booking.Status = BookingCancelled
	booking.CancelReason = "Attendee requested cancellation"
	freed := GenerateSlots(date, rule, et, time.UTC, now, []Booking{booking}, []EventType{et})
	assert.Len(t, freed, len(occupied)+1)
	assert.False(t, IsSlotTaken(
		mustTime(t, "2026-03-02T14:00:00Z"), mustTime(t, "2026-03-02T14:30:00Z"),
		[]Booking{booking}, []EventType{et}))
}

func TestGenerateSlots_Idempotent(t *testing.T) {
	date := mustDate(t, "2026-03-02")
	rule := weekdayRule(t, time.Monday, "09:00", "17:00")
	et := introCall()
	now := mustTime(t, "2026-03-02T03:00:00Z")
	bookings := []Booking{
		confirmedBooking(t, "b1", et.ID, "2026-03-02T10:00:00Z", "2026-03-02T10:30:00Z"),
	}

	first := GenerateSlots(date, rule, et, time.UTC, now, bookings, []EventType{et})
	second := GenerateSlots(date, rule, et, time.UTC, now, bookings, []EventType{et})
	assert.Equal(t, first, second)
}

func TestGenerateSlots_DateRangeEnforced(t *testing.T) {
	rule := weekdayRule(t, time.Monday, "09:00", "17:00")
	et := introCall()
	et.MinNoticeMins = 0
	rangeStart := mustDate(t, "2026-03-09")
	rangeEnd := mustDate(t, "2026-03-31")
	et.DateRangeStart = &rangeStart
	et.DateRangeEnd = &rangeEnd
	now := mustTime(t, "2026-02-01T00:00:00Z")

	// 2026-03-02 is before the range opens.
	assert.Empty(t, GenerateSlots(mustDate(t, "2026-03-02"), rule, et, time.UTC, now, nil, nil))
	// 2026-03-09 (also a Monday) is inside.
	assert.NotEmpty(t, GenerateSlots(mustDate(t, "2026-03-09"), rule, et, time.UTC, now, nil, nil))
	// 2026-04-06 is past the end.
	assert.Empty(t, GenerateSlots(mustDate(t, "2026-04-06"), rule, et, time.UTC, now, nil, nil))
}

func TestGenerateSlots_MaxBookingsPerDayEnforced(t *testing.T) {
	date := mustDate(t, "2026-03-02")
	rule := weekdayRule(t, time.Monday, "09:00", "17:00")
	et := introCall()
	et.MinNoticeMins = 0
	et.MaxBookingsPerDay = 2
	now := mustTime(t, "2026-02-01T00:00:00Z")

	bookings := []Booking{
		confirmedBooking(t, "b1", et.ID, "2026-03-02T09:00:00Z", "2026-03-02T09:30:00Z"),
		confirmedBooking(t, "b2", et.ID, "2026-03-02T10:00:00Z", "2026-03-02T10:30:00Z"),
	}
	assert.Empty(t, GenerateSlots(date, rule, et, time.UTC, now, bookings, []EventType{et}))

	// A cancelled booking does not count against the daily cap.
	bookings[1].Status = BookingCancelled
	assert.NotEmpty(t, GenerateSlots(date, rule, et, time.UTC, now, bookings, []EventType{et}))
}

func TestMonthOverview(t *testing.T) {
	rules := []Rule{
		weekdayRule(t, time.Monday, "09:00", "17:00"),
		DayOffRule{ID: "off", OwnerSlug: "dwayne", Date: mustDate(t, "2026-03-09")},
	}
	now := mustTime(t, "2026-03-03T12:00:00Z")

	days := MonthOverview(2026, time.March, rules, time.UTC, now)
	require.Len(t, days, 31)

	byDate := map[string]bool{}
	for _, d := range days {
		byDate[d.Date.String()] = d.Available
	}
	assert.False(t, byDate["2026-03-02"], "Monday before today is past")
	assert.False(t, byDate["2026-03-09"], "day off overrides the Monday rule")
	assert.True(t, byDate["2026-03-16"])
	assert.True(t, byDate["2026-03-23"])
	assert.False(t, byDate["2026-03-04"], "no rule for Wednesdays")
}
