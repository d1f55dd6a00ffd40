package app

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	tt, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return tt
}

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %q: %v", name, err)
	}
	return loc
}

func mustTOD(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse time of day %q: %v", s, err)
	}
	return tod
}

func introCall() EventType {
	return EventType{
		ID:            "et-intro",
		OwnerSlug:     "dwayne",
		Slug:          "30-min-intro",
		Title:         "30-Min Introduction Call",
		DurationMins:  30,
		LocationType:  LocationGoogleMeet,
		MinNoticeMins: 60,
		IsActive:      true,
	}
}

func weekdayRule(t *testing.T, weekday time.Weekday, start, end string) RecurringRule {
	t.Helper()
	return RecurringRule{
		ID:        "rule-" + weekday.String(),
		OwnerSlug: "dwayne",
		Weekday:   weekday,
		Start:     mustTOD(t, start),
		End:       mustTOD(t, end),
		Available: true,
	}
}

func confirmedBooking(t *testing.T, id, eventTypeID, start, end string) Booking {
	t.Helper()
	return Booking{
		ID:            id,
		OwnerSlug:     "dwayne",
		EventTypeID:   eventTypeID,
		AttendeeName:  "Alice Thompson",
		AttendeeEmail: "alice@example.com",
		StartAtUTC:    mustTime(t, start),
		EndAtUTC:      mustTime(t, end),
		Status:        BookingConfirmed,
	}
}
