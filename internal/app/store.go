package app

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateRule = errors.New("a rule already exists for this day")
	ErrDuplicateSlug = errors.New("an event type with this slug already exists")
)

// Store is the persistence boundary. The engine only reads through it;
// writes happen at the CRUD boundary, which also enforces the rule
// uniqueness invariants (one recurring rule per weekday, one override per
// date, one event-type slug per owner).
type Store interface {
	GetOwner(ctx context.Context, slug string) (*Owner, error)
	UpsertOwner(ctx context.Context, o *Owner) error

	ListEventTypes(ctx context.Context, ownerSlug string) ([]EventType, error)
	GetEventType(ctx context.Context, ownerSlug, id string) (*EventType, error)
	GetEventTypeBySlug(ctx context.Context, ownerSlug, slug string) (*EventType, error)
	CreateEventType(ctx context.Context, et *EventType) error
	UpdateEventType(ctx context.Context, et *EventType) error
	DeleteEventType(ctx context.Context, ownerSlug, id string) error

	ListRules(ctx context.Context, ownerSlug string) ([]Rule, error)
	CreateRule(ctx context.Context, r Rule) error
	UpdateRule(ctx context.Context, r Rule) error
	DeleteRule(ctx context.Context, ownerSlug, id string) error

	ListBookings(ctx context.Context, ownerSlug string) ([]Booking, error)
	GetBooking(ctx context.Context, id string) (*Booking, error)
	CreateBooking(ctx context.Context, b *Booking) error
	UpdateBooking(ctx context.Context, b *Booking) error

	// Atomic runs fn in a critical section keyed by owner, so a conflict
	// re-check and the following append cannot interleave with another
	// submission for the same owner.
	Atomic(ctx context.Context, ownerSlug string, fn func(Store) error) error
}
