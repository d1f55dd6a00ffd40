package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrSlotUnavailable is the race-lost outcome: the slot was open when the
// attendee picked it but another booking landed first. Callers should tell
// the attendee to pick another slot, not treat this as a field error.
var ErrSlotUnavailable = errors.New("slot no longer available")

var ErrAlreadyCancelled = errors.New("booking is already cancelled")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const maxGuests = 5

// FieldError is one user-correctable violation on the booking form.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every violation so the form can render them all
// at once instead of failing on the first.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, fe := range v {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// BookingInput is an attendee's booking submission.
type BookingInput struct {
	AttendeeName     string            `json:"attendee_name"`
	AttendeeEmail    string            `json:"attendee_email"`
	AttendeeTimezone string            `json:"attendee_timezone"`
	Notes            string            `json:"notes"`
	Guests           []string          `json:"guests"`
	StartAtUTC       time.Time         `json:"start_at_utc"`
	EndAtUTC         time.Time         `json:"end_at_utc"`
	CustomAnswers    map[string]string `json:"custom_answers"` // question id -> answer
}

// ValidateBookingInput checks every field and returns the full violation
// list. Empty result means the input is admissible.
func ValidateBookingInput(in BookingInput, et EventType) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(in.AttendeeName) == "" {
		errs = append(errs, FieldError{"attendee_name", "name is required"})
	}
	email := strings.TrimSpace(in.AttendeeEmail)
	switch {
	case email == "":
		errs = append(errs, FieldError{"attendee_email", "email is required"})
	case !emailPattern.MatchString(email):
		errs = append(errs, FieldError{"attendee_email", "invalid email address"})
	}

	if len(in.Guests) > maxGuests {
		errs = append(errs, FieldError{"guests", fmt.Sprintf("at most %d guests allowed", maxGuests)})
	}
	for i, g := range in.Guests {
		g = strings.TrimSpace(g)
		if g != "" && !emailPattern.MatchString(g) {
			errs = append(errs, FieldError{fmt.Sprintf("guests[%d]", i), "invalid email address"})
		}
	}

	if !in.StartAtUTC.Before(in.EndAtUTC) {
		errs = append(errs, FieldError{"start_at_utc", "start must be before end"})
	} else if in.EndAtUTC.Sub(in.StartAtUTC) != time.Duration(et.DurationMins)*time.Minute {
		errs = append(errs, FieldError{"end_at_utc", "slot length does not match the event duration"})
	}

	for _, q := range et.CustomQuestions {
		if q.Required && strings.TrimSpace(in.CustomAnswers[q.ID]) == "" {
			errs = append(errs, FieldError{q.ID, q.Label + " is required"})
		}
	}
	return errs
}

// meetingLink fabricates a join link for the booked location. It stands in
// for a real conferencing integration.
func meetingLink(loc LocationType, bookingID string) string {
	short := strings.ReplaceAll(bookingID, "-", "")
	if len(short) > 10 {
		short = short[:10]
	}
	switch loc {
	case LocationGoogleMeet:
		return "https://meet.google.com/lookup/" + short
	case LocationZoom:
		return "https://zoom.us/j/" + short
	default:
		return ""
	}
}

// SubmitBooking admits an attendee's submission. All field violations are
// returned together as ValidationErrors. The conflict predicate is re-run
// inside the store's per-owner critical section, so a slot that was taken
// between listing and submission is rejected with ErrSlotUnavailable
// instead of double-booked.
func (a *App) SubmitBooking(ctx context.Context, ownerSlug, eventTypeSlug string, in BookingInput) (*Booking, error) {
	owner, err := a.Store.GetOwner(ctx, ownerSlug)
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
	if errs := ValidateBookingInput(in, *et); len(errs) > 0 {
		return nil, errs
	}
	loc, err := owner.Location()
	if err != nil {
		return nil, err
	}

	guests := make([]string, 0, len(in.Guests))
	for _, g := range in.Guests {
		if g = strings.TrimSpace(g); g != "" {
			guests = append(guests, g)
		}
	}
	answers := make([]CustomAnswer, 0, len(et.CustomQuestions))
	for _, q := range et.CustomQuestions {
		answers = append(answers, CustomAnswer{
			QuestionID: q.ID,
			Label:      q.Label,
			Answer:     strings.TrimSpace(in.CustomAnswers[q.ID]),
		})
	}

	var booking *Booking
	err = a.Store.Atomic(ctx, ownerSlug, func(s Store) error {
		bookings, err := s.ListBookings(ctx, ownerSlug)
		if err != nil {
			return err
		}
		eventTypes, err := s.ListEventTypes(ctx, ownerSlug)
		if err != nil {
			return err
		}
		if IsSlotTaken(in.StartAtUTC, in.EndAtUTC, bookings, eventTypes) {
			return ErrSlotUnavailable
		}
		if et.MaxBookingsPerDay > 0 {
			day := DateOf(in.StartAtUTC, loc)
			if bookingsOnDay(bookings, et.ID, day, loc) >= et.MaxBookingsPerDay {
				return ErrSlotUnavailable
			}
		}

		id := uuid.NewString()
		b := &Booking{
			ID:               id,
			OwnerSlug:        ownerSlug,
			EventTypeID:      et.ID,
			AttendeeName:     strings.TrimSpace(in.AttendeeName),
			AttendeeEmail:    strings.TrimSpace(in.AttendeeEmail),
			AttendeeTimezone: in.AttendeeTimezone,
			Notes:            strings.TrimSpace(in.Notes),
			Guests:           guests,
			StartAtUTC:       in.StartAtUTC.UTC(),
			EndAtUTC:         in.EndAtUTC.UTC(),
			Status:           BookingConfirmed,
			CustomAnswers:    answers,
			MeetingLink:      meetingLink(et.LocationType, id),
			CreatedAt:        a.Clock.Now().UTC(),
		}
		if err := s.CreateBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// CancelBooking moves a booking to cancelled, a terminal state. Cancelling
// twice is rejected.
func (a *App) CancelBooking(ctx context.Context, id, reason string) (*Booking, error) {
	b, err := a.Store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == BookingCancelled {
		return nil, ErrAlreadyCancelled
	}
	if reason == "" {
		reason = "Cancelled by owner"
	}
	b.Status = BookingCancelled
	b.CancelReason = reason
	if err := a.Store.UpdateBooking(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// RescheduleBooking moves a booking to a new window in place: same id, same
// meeting link, status becomes rescheduled. The new window is conflict-
// checked against every other blocking booking under the owner's critical
// section. There is no way out of cancelled.
func (a *App) RescheduleBooking(ctx context.Context, id string, start, end time.Time) (*Booking, error) {
	if !start.Before(end) {
		return nil, ValidationErrors{{Field: "start_at_utc", Message: "start must be before end"}}
	}
	b, err := a.Store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == BookingCancelled {
		return nil, ErrAlreadyCancelled
	}

	err = a.Store.Atomic(ctx, b.OwnerSlug, func(s Store) error {
		bookings, err := s.ListBookings(ctx, b.OwnerSlug)
		if err != nil {
			return err
		}
		eventTypes, err := s.ListEventTypes(ctx, b.OwnerSlug)
		if err != nil {
			return err
		}
		if IsSlotTaken(start, end, withoutBooking(bookings, b.ID), eventTypes) {
			return ErrSlotUnavailable
		}
		b.StartAtUTC = start.UTC()
		b.EndAtUTC = end.UTC()
		b.Status = BookingRescheduled
		return s.UpdateBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}
