package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"booking-service/internal/app"
	"booking-service/internal/server"
)

func main() {
	ctx := context.Background()

	var store app.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		defer pool.Close()

		pg := app.NewPGStore(pool)
		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := app.WaitForDB(waitCtx, pool); err != nil {
			log.Fatalf("db not reachable: %v", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Fatalf("failed to ensure schema: %v", err)
		}
		store = pg
	} else {
		log.Println("DATABASE_URL not set, using in-memory store")
		store = seedMemStore(ctx)
	}

	appInstance := app.New(store)

	router := gin.Default()

	// OAuth2 callback (must be before auth middleware)
	router.GET("/oauth2callback", appInstance.GoogleOAuth2CallbackHandler)

	// Public booking funnel
	book := router.Group("/book")
	{
		book.GET("/:owner", appInstance.GetOwnerProfileHandler)
		book.GET("/:owner/:slug", appInstance.GetEventTypeHandler)
		book.GET("/:owner/:slug/slots", appInstance.GetSlotsHandler)
		book.GET("/:owner/:slug/days", appInstance.GetDaysHandler)
		book.POST("/:owner/:slug/bookings", appInstance.CreateBookingHandler)
	}

	// Admin surface
	api := router.Group("/api", app.AdminAuthFromEnv())
	{
		owners := api.Group("/owners/:owner")
		{
			owners.PUT("", appInstance.UpsertOwnerHandler)
			owners.GET("/event-types", appInstance.ListEventTypesHandler)
			owners.POST("/event-types", appInstance.CreateEventTypeHandler)
			owners.PUT("/event-types/:id", appInstance.UpdateEventTypeHandler)
			owners.DELETE("/event-types/:id", appInstance.DeleteEventTypeHandler)
			owners.GET("/availability", appInstance.ListAvailabilityHandler)
			owners.POST("/availability", appInstance.CreateAvailabilityHandler)
			owners.PUT("/availability/:id", appInstance.UpdateAvailabilityHandler)
			owners.DELETE("/availability/:id", appInstance.DeleteAvailabilityHandler)
			owners.GET("/bookings", appInstance.ListBookingsHandler)
		}
		api.POST("/bookings/:id/cancel", appInstance.CancelBookingHandler)
		api.POST("/bookings/:id/reschedule", appInstance.RescheduleBookingHandler)
		api.POST("/bookings/:id/calendar-event", appInstance.PushBookingToCalendarHandler)
		api.GET("/calendar/auth", appInstance.GoogleAuthHandler)
	}

	server.Run(router)
}

// seedMemStore bootstraps a demo owner so the service is usable out of the
// box without a database.
func seedMemStore(ctx context.Context) app.Store {
	store := app.NewMemStore()
	owner := &app.Owner{Slug: "demo", Name: "Demo Owner", Timezone: "UTC"}
	if err := store.UpsertOwner(ctx, owner); err != nil {
		log.Fatalf("failed to seed store: %v", err)
	}
	return store
}
