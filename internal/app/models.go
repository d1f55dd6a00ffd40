package app

import (
	"fmt"
	"time"
)

// Owner is the person whose calendar is being booked. Every rule's working
// hours are interpreted in the owner's configured timezone.
type Owner struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Location resolves the owner's configured IANA timezone.
func (o Owner) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return nil, fmt.Errorf("owner %s: invalid timezone %q", o.Slug, o.Timezone)
	}
	return loc, nil
}

type LocationType string

const (
	LocationGoogleMeet LocationType = "google_meet"
	LocationZoom       LocationType = "zoom"
	LocationPhone      LocationType = "phone"
	LocationInPerson   LocationType = "in_person"
)

func (l LocationType) Valid() bool {
	switch l {
	case LocationGoogleMeet, LocationZoom, LocationPhone, LocationInPerson:
		return true
	}
	return false
}

type QuestionType string

const (
	QuestionText     QuestionType = "text"
	QuestionTextarea QuestionType = "textarea"
	QuestionNumber   QuestionType = "number"
)

func (q QuestionType) Valid() bool {
	switch q {
	case QuestionText, QuestionTextarea, QuestionNumber:
		return true
	}
	return false
}

// CustomQuestion is asked of the attendee on the booking form.
type CustomQuestion struct {
	ID       string       `json:"id"`
	Label    string       `json:"label"`
	Type     QuestionType `json:"type"`
	Required bool         `json:"required"`
}

// EventType is an owner-defined template for a bookable meeting.
type EventType struct {
	ID                string           `json:"id"`
	OwnerSlug         string           `json:"owner_slug"`
	Slug              string           `json:"slug"`
	Title             string           `json:"title"`
	Description       string           `json:"description,omitempty"`
	DurationMins      int              `json:"duration_minutes"`
	LocationType      LocationType     `json:"location_type"`
	BufferBeforeMins  int              `json:"buffer_before_mins"`
	BufferAfterMins   int              `json:"buffer_after_mins"`
	MinNoticeMins     int              `json:"min_notice_mins"`
	IsActive          bool             `json:"is_active"`
	DateRangeStart    *Date            `json:"date_range_start,omitempty"`
	DateRangeEnd      *Date            `json:"date_range_end,omitempty"`
	MaxBookingsPerDay int              `json:"max_bookings_per_day,omitempty"`
	CustomQuestions   []CustomQuestion `json:"custom_questions,omitempty"`
	CreatedAt         time.Time        `json:"created_at,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at,omitempty"`
}

// InDateRange reports whether date falls inside the event type's optional
// booking window. A nil bound means unrestricted on that side.
func (et EventType) InDateRange(date Date) bool {
	if et.DateRangeStart != nil && date.Before(*et.DateRangeStart) {
		return false
	}
	if et.DateRangeEnd != nil && date.After(*et.DateRangeEnd) {
		return false
	}
	return true
}

type BookingStatus string

const (
	BookingConfirmed   BookingStatus = "confirmed"
	BookingCancelled   BookingStatus = "cancelled"
	BookingRescheduled BookingStatus = "rescheduled"
)

// CustomAnswer snapshots one event-type question and its answer at booking
// time. The snapshot is immutable even if the question later changes.
type CustomAnswer struct {
	QuestionID string `json:"question_id"`
	Label      string `json:"label"`
	Answer     string `json:"answer"`
}

// Booking is a reservation of one slot. EventTypeID is a weak reference:
// deleting the event type leaves the booking with a dangling id, which
// dependent lookups must tolerate.
type Booking struct {
	ID               string         `json:"id"`
	OwnerSlug        string         `json:"owner_slug"`
	EventTypeID      string         `json:"event_type_id"`
	AttendeeName     string         `json:"attendee_name"`
	AttendeeEmail    string         `json:"attendee_email"`
	AttendeeTimezone string         `json:"attendee_timezone"`
	Notes            string         `json:"notes,omitempty"`
	Guests           []string       `json:"guests,omitempty"`
	StartAtUTC       time.Time      `json:"start_at_utc"`
	EndAtUTC         time.Time      `json:"end_at_utc"`
	Status           BookingStatus  `json:"status"`
	CustomAnswers    []CustomAnswer `json:"custom_answers,omitempty"`
	MeetingLink      string         `json:"meeting_link,omitempty"`
	CancelReason     string         `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Blocks reports whether the booking occupies its [start, end) window for
// conflict purposes. A rescheduled booking still holds its current window;
// only cancellation frees it.
func (b Booking) Blocks() bool {
	return b.Status == BookingConfirmed || b.Status == BookingRescheduled
}
