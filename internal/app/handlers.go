package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// statusFromErr maps engine errors onto HTTP responses. Validation failures
// carry the full field list; the race-lost outcome is a distinct 409 so the
// client knows to re-fetch the slot list.
func statusFromErr(c *gin.Context, err error) {
	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
	case errors.Is(err, ErrSlotUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "slot no longer available, please pick another", "code": "slot_taken"})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, ErrDuplicateRule), errors.Is(err, ErrDuplicateSlug), errors.Is(err, ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ── Public booking funnel ───────────────────────────────────────────────

// GET /book/:owner
func (a *App) GetOwnerProfileHandler(c *gin.Context) {
	ctx := c.Request.Context()
	owner, err := a.Store.GetOwner(ctx, c.Param("owner"))
	if err != nil {
		statusFromErr(c, err)
		return
	}
	eventTypes, err := a.Store.ListEventTypes(ctx, owner.Slug)
	if err != nil {
		statusFromErr(c, err)
		return
	}
	active := make([]EventType, 0, len(eventTypes))
	for _, et := range eventTypes {
		if et.IsActive {
			active = append(active, et)
		}
	}
	c.JSON(http.StatusOK, gin.H{"owner": owner, "event_types": active})
}

// GET /book/:owner/:slug
func (a *App) GetEventTypeHandler(c *gin.Context) {
	et, err := a.Store.GetEventTypeBySlug(c.Request.Context(), c.Param("owner"), c.Param("slug"))
	if err != nil {
		statusFromErr(c, err)
		return
	}
	if !et.IsActive {
		statusFromErr(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, et)
}

// GET /book/:owner/:slug/slots?date=YYYY-MM-DD
func (a *App) GetSlotsHandler(c *gin.Context) {
	date, err := ParseDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return
	}
	slots, err := a.AvailableSlots(c.Request.Context(), c.Param("owner"), c.Param("slug"), date)
	if err != nil {
		statusFromErr(c, err)
		return
	}
	if slots == nil {
		slots = []Slot{}
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "slots": slots})
}

// GET /book/:owner/:slug/days?month=YYYY-MM
func (a *App) GetDaysHandler(c *gin.Context) {
	monthStr := c.Query("month")
	parsed, err := time.Parse("2006-01", monthStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month required (YYYY-MM)"})
		return
	}
	days, err := a.AvailableDays(c.Request.Context(), c.Param("owner"), parsed.Year(), parsed.Month())
	if err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"month": monthStr, "days": days})
}

// POST /book/:owner/:slug/bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var in BookingInput
	if err := c.BindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := a.SubmitBooking(c.Request.Context(), c.Param("owner"), c.Param("slug"), in)
	if err != nil {
		statusFromErr(c, err)
		return
	}

	title := "Meeting"
	description := ""
	if et, err := a.Store.GetEventType(c.Request.Context(), booking.OwnerSlug, booking.EventTypeID); err == nil {
		title = et.Title
		description = et.Description
	}
	c.JSON(http.StatusCreated, gin.H{
		"booking": booking,
		"add_to_calendar_url": GoogleCalendarURL(
			title, booking.StartAtUTC, booking.EndAtUTC, description, booking.MeetingLink),
	})
}

// ── Admin: owner settings ───────────────────────────────────────────────

type ownerReq struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone" binding:"required"`
}

// PUT /api/owners/:owner
func (a *App) UpsertOwnerHandler(c *gin.Context) {
	var req ownerReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown timezone %q", req.Timezone)})
		return
	}
	owner := &Owner{Slug: c.Param("owner"), Name: req.Name, Timezone: req.Timezone}
	if err := a.Store.UpsertOwner(c.Request.Context(), owner); err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, owner)
}

// ── Admin: event types ──────────────────────────────────────────────────

func validateEventType(et *EventType) error {
	var errs ValidationErrors
	if strings.TrimSpace(et.Title) == "" {
		errs = append(errs, FieldError{"title", "title is required"})
	}
	if strings.TrimSpace(et.Slug) == "" {
		errs = append(errs, FieldError{"slug", "slug is required"})
	}
	if et.DurationMins <= 0 {
		errs = append(errs, FieldError{"duration_minutes", "duration must be positive"})
	}
	if et.BufferBeforeMins < 0 || et.BufferAfterMins < 0 {
		errs = append(errs, FieldError{"buffer_before_mins", "buffers must not be negative"})
	}
	if et.MinNoticeMins < 0 {
		errs = append(errs, FieldError{"min_notice_mins", "minimum notice must not be negative"})
	}
	if et.MaxBookingsPerDay < 0 {
		errs = append(errs, FieldError{"max_bookings_per_day", "limit must not be negative"})
	}
	if !et.LocationType.Valid() {
		errs = append(errs, FieldError{"location_type", "unknown location type"})
	}
	if et.DateRangeStart != nil && et.DateRangeEnd != nil && et.DateRangeEnd.Before(*et.DateRangeStart) {
		errs = append(errs, FieldError{"date_range_end", "date range end before start"})
	}
	for i, q := range et.CustomQuestions {
		if strings.TrimSpace(q.Label) == "" {
			errs = append(errs, FieldError{fmt.Sprintf("custom_questions[%d]", i), "label is required"})
		}
		if !q.Type.Valid() {
			errs = append(errs, FieldError{fmt.Sprintf("custom_questions[%d]", i), "unknown question type"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// GET /api/owners/:owner/event-types
func (a *App) ListEventTypesHandler(c *gin.Context) {
	eventTypes, err := a.Store.ListEventTypes(c.Request.Context(), c.Param("owner"))
	if err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, eventTypes)
}

// POST /api/owners/:owner/event-types
func (a *App) CreateEventTypeHandler(c *gin.Context) {
	var et EventType
	if err := c.BindJSON(&et); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	et.ID = uuid.NewString()
	et.OwnerSlug = c.Param("owner")
	now := a.Clock.Now().UTC()
	et.CreatedAt, et.UpdatedAt = now, now
	for i := range et.CustomQuestions {
		if et.CustomQuestions[i].ID == "" {
			et.CustomQuestions[i].ID = uuid.NewString()
		}
	}
	if err := validateEventType(&et); err != nil {
		statusFromErr(c, err)
		return
	}
	if err := a.Store.CreateEventType(c.Request.Context(), &et); err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, et)
}

// PUT /api/owners/:owner/event-types/:id
func (a *App) UpdateEventTypeHandler(c *gin.Context) {
	existing, err := a.Store.GetEventType(c.Request.Context(), c.Param("owner"), c.Param("id"))
	if err != nil {
		statusFromErr(c, err)
		return
	}
	var et EventType
	if err := c.BindJSON(&et); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	et.ID = existing.ID
	et.OwnerSlug = existing.OwnerSlug
	et.CreatedAt = existing.CreatedAt
	et.UpdatedAt = a.Clock.Now().UTC()
	for i := range et.CustomQuestions {
		if et.CustomQuestions[i].ID == "" {
			et.CustomQuestions[i].ID = uuid.NewString()
		}
	}
	if err := validateEventType(&et); err != nil {
		statusFromErr(c, err)
		return
	}
	if err := a.Store.UpdateEventType(c.Request.Context(), &et); err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, et)
}

// DELETE /api/owners/:owner/event-types/:id
// Bookings referencing the deleted type are kept; their conflict buffers
// degrade to zero.
func (a *App) DeleteEventTypeHandler(c *gin.Context) {
	if err := a.Store.DeleteEventType(c.Request.Context(), c.Param("owner"), c.Param("id")); err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ── Admin: availability rules ───────────────────────────────────────────

// GET /api/owners/:owner/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	rules, err := a.Store.ListRules(c.Request.Context(), c.Param("owner"))
	if err != nil {
		statusFromErr(c, err)
		return
	}
	records := make([]ruleRecord, 0, len(rules))
	for _, r := range rules {
		records = append(records, recordFromRule(r))
	}
	c.JSON(http.StatusOK, records)
}

// POST /api/owners/:owner/availability
func (a *App) CreateAvailabilityHandler(c *gin.Context) {
	var rec ruleRecord
	if err := c.BindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec.ID = uuid.NewString()
	rec.OwnerSlug = c.Param("owner")
	rule, err := rec.toRule()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.Store.CreateRule(c.Request.Context(), rule); err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, recordFromRule(rule))
}

// PUT /api/owners/:owner/availability/:id
func (a *App) UpdateAvailabilityHandler(c *gin.Context) {
	var rec ruleRecord
	if err := c.BindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec.ID = c.Param("id")
	rec.OwnerSlug = c.Param("owner")
	rule, err := rec.toRule()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.Store.UpdateRule(c.Request.Context(), rule); err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, recordFromRule(rule))
}

// DELETE /api/owners/:owner/availability/:id
func (a *App) DeleteAvailabilityHandler(c *gin.Context) {
	if err := a.Store.DeleteRule(c.Request.Context(), c.Param("owner"), c.Param("id")); err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ── Admin: bookings ─────────────────────────────────────────────────────

// GET /api/owners/:owner/bookings?status=confirmed
func (a *App) ListBookingsHandler(c *gin.Context) {
	bookings, err := a.Store.ListBookings(c.Request.Context(), c.Param("owner"))
	if err != nil {
		statusFromErr(c, err)
		return
	}
	if status := c.Query("status"); status != "" {
		filtered := make([]Booking, 0, len(bookings))
		for _, b := range bookings {
			if string(b.Status) == status {
				filtered = append(filtered, b)
			}
		}
		bookings = filtered
	}
	c.JSON(http.StatusOK, bookings)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// POST /api/bookings/:id/cancel
func (a *App) CancelBookingHandler(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req) // body optional
	booking, err := a.CancelBooking(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

type rescheduleReq struct {
	StartAtUTC time.Time `json:"start_at_utc" binding:"required"`
	EndAtUTC   time.Time `json:"end_at_utc" binding:"required"`
}

// POST /api/bookings/:id/reschedule
func (a *App) RescheduleBookingHandler(c *gin.Context) {
	var req rescheduleReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	booking, err := a.RescheduleBooking(c.Request.Context(), c.Param("id"), req.StartAtUTC, req.EndAtUTC)
	if err != nil {
		statusFromErr(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
