package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// gcalDate formats an instant in Google Calendar's compact UTC form,
// "20260302T033000Z".
func gcalDate(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// GoogleCalendarURL builds the "add to calendar" redirect URL for a booked
// slot. Pure formatting; no API call and no authentication involved.
func GoogleCalendarURL(title string, start, end time.Time, description, location string) string {
	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", title)
	params.Set("dates", gcalDate(start)+"/"+gcalDate(end))
	params.Set("details", description)
	params.Set("location", location)
	return "https://calendar.google.com/calendar/render?" + params.Encode()
}

// GoogleCalendarConfig holds OAuth2 configuration for the optional
// owner-calendar sync.
type GoogleCalendarConfig struct {
	Config *oauth2.Config
}

// InitGoogleCalendarConfig reads the OAuth client from the environment.
// Returns nil when the integration is not configured.
func InitGoogleCalendarConfig() *GoogleCalendarConfig {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	redirectURL := os.Getenv("GOOGLE_REDIRECT_URL")

	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil
	}

	return &GoogleCalendarConfig{Config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			calendar.CalendarEventsScope,
		},
		Endpoint: google.Endpoint,
	}}
}

// GoogleAuthHandler initiates the OAuth2 flow for an owner connecting
// their Google Calendar.
func (a *App) GoogleAuthHandler(c *gin.Context) {
	calendarConfig := InitGoogleCalendarConfig()
	if calendarConfig == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}

	state := fmt.Sprintf("owner_%s_%d", c.Query("owner"), a.Clock.Now().Unix())
	authURL := calendarConfig.Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"state":    state,
	})
}

// GoogleOAuth2CallbackHandler exchanges the authorization code for a token.
// The token is returned to the caller; persisting it per owner is left to
// the deployment.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	calendarConfig := InitGoogleCalendarConfig()
	if calendarConfig == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}

	token, err := calendarConfig.Config.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}

	tokenJSON, _ := json.Marshal(token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Authorization successful",
		"state":   c.Query("state"),
		"token":   string(tokenJSON),
	})
}

// PushBookingToCalendarHandler inserts a booking into the owner's Google
// Calendar as a real event. The owner's OAuth token travels in the
// X-Google-Token header.
//
// POST /api/bookings/:id/calendar-event
func (a *App) PushBookingToCalendarHandler(c *gin.Context) {
	tokenStr := c.GetHeader("X-Google-Token")
	if tokenStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Google token required in X-Google-Token header"})
		return
	}
	var token oauth2.Token
	if err := json.Unmarshal([]byte(tokenStr), &token); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token format"})
		return
	}

	calendarConfig := InitGoogleCalendarConfig()
	if calendarConfig == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Google Calendar not configured"})
		return
	}

	ctx := c.Request.Context()
	booking, err := a.Store.GetBooking(ctx, c.Param("id"))
	if err != nil {
		statusFromErr(c, err)
		return
	}

	title := "Booking with " + booking.AttendeeName
	description := booking.Notes
	if et, err := a.Store.GetEventType(ctx, booking.OwnerSlug, booking.EventTypeID); err == nil {
		title = et.Title + " with " + booking.AttendeeName
		description = et.Description
	}

	client := calendarConfig.Config.Client(ctx, &token)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create calendar service"})
		return
	}

	event := &calendar.Event{
		Summary:     title,
		Description: description,
		Location:    booking.MeetingLink,
		Start:       &calendar.EventDateTime{DateTime: booking.StartAtUTC.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: booking.EndAtUTC.Format(time.RFC3339)},
		Attendees: []*calendar.EventAttendee{
			{Email: booking.AttendeeEmail},
		},
	}
	for _, g := range booking.Guests {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: g})
	}

	created, err := srv.Events.Insert(c.DefaultQuery("calendar_id", "primary"), event).Do()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to create event: %v", err)})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"event_id":   created.Id,
		"html_link":  created.HtmlLink,
		"booking_id": booking.ID,
	})
}
