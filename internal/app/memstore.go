package app

import (
	"context"
	"sort"
	"sync"
)

// MemStore keeps everything in process memory. It backs tests and local
// runs without a DATABASE_URL. Atomic sections take a per-owner mutex, the
// in-memory analogue of the Postgres advisory lock.
type MemStore struct {
	mu         sync.RWMutex
	owners     map[string]Owner
	eventTypes map[string]EventType
	rules      map[string]Rule
	bookings   map[string]Booking

	lockMu     sync.Mutex
	ownerLocks map[string]*sync.Mutex
}

func NewMemStore() *MemStore {
	return &MemStore{
		owners:     make(map[string]Owner),
		eventTypes: make(map[string]EventType),
		rules:      make(map[string]Rule),
		bookings:   make(map[string]Booking),
		ownerLocks: make(map[string]*sync.Mutex),
	}
}

func (m *MemStore) GetOwner(_ context.Context, slug string) (*Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[slug]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *MemStore) UpsertOwner(_ context.Context, o *Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[o.Slug] = *o
	return nil
}

func (m *MemStore) ListEventTypes(_ context.Context, ownerSlug string) ([]EventType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []EventType
	for _, et := range m.eventTypes {
		if et.OwnerSlug == ownerSlug {
			out = append(out, et)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemStore) GetEventType(_ context.Context, ownerSlug, id string) (*EventType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	et, ok := m.eventTypes[id]
	if !ok || et.OwnerSlug != ownerSlug {
		return nil, ErrNotFound
	}
	return &et, nil
}

func (m *MemStore) GetEventTypeBySlug(_ context.Context, ownerSlug, slug string) (*EventType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, et := range m.eventTypes {
		if et.OwnerSlug == ownerSlug && et.Slug == slug {
			out := et
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) CreateEventType(_ context.Context, et *EventType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.eventTypes {
		if existing.OwnerSlug == et.OwnerSlug && existing.Slug == et.Slug {
			return ErrDuplicateSlug
		}
	}
	m.eventTypes[et.ID] = *et
	return nil
}

func (m *MemStore) UpdateEventType(_ context.Context, et *EventType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.eventTypes[et.ID]
	if !ok || existing.OwnerSlug != et.OwnerSlug {
		return ErrNotFound
	}
	for _, other := range m.eventTypes {
		if other.ID != et.ID && other.OwnerSlug == et.OwnerSlug && other.Slug == et.Slug {
			return ErrDuplicateSlug
		}
	}
	m.eventTypes[et.ID] = *et
	return nil
}

// DeleteEventType removes the template only. Existing bookings keep their
// now-dangling event_type_id; conflict checks fall back to zero buffers.
func (m *MemStore) DeleteEventType(_ context.Context, ownerSlug, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	et, ok := m.eventTypes[id]
	if !ok || et.OwnerSlug != ownerSlug {
		return ErrNotFound
	}
	delete(m.eventTypes, id)
	return nil
}

func (m *MemStore) ListRules(_ context.Context, ownerSlug string) ([]Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Rule
	for _, r := range m.rules {
		if r.RuleOwner() == ownerSlug {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID() < out[j].RuleID() })
	return out, nil
}

// rulesCollide reports whether two rules would violate the uniqueness
// invariants: one recurring rule per weekday, one override per date.
func rulesCollide(a, b Rule) bool {
	if a.RuleOwner() != b.RuleOwner() {
		return false
	}
	if ra, ok := a.(RecurringRule); ok {
		if rb, ok := b.(RecurringRule); ok {
			return ra.Weekday == rb.Weekday
		}
		return false
	}
	da, aOverride := OverrideDate(a)
	db, bOverride := OverrideDate(b)
	return aOverride && bOverride && da == db
}

func (m *MemStore) CreateRule(_ context.Context, r Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rules {
		if rulesCollide(existing, r) {
			return ErrDuplicateRule
		}
	}
	m.rules[r.RuleID()] = r
	return nil
}

func (m *MemStore) UpdateRule(_ context.Context, r Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rules[r.RuleID()]
	if !ok || existing.RuleOwner() != r.RuleOwner() {
		return ErrNotFound
	}
	for _, other := range m.rules {
		if other.RuleID() != r.RuleID() && rulesCollide(other, r) {
			return ErrDuplicateRule
		}
	}
	m.rules[r.RuleID()] = r
	return nil
}

func (m *MemStore) DeleteRule(_ context.Context, ownerSlug, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok || r.RuleOwner() != ownerSlug {
		return ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *MemStore) ListBookings(_ context.Context, ownerSlug string) ([]Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.OwnerSlug == ownerSlug {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAtUTC.Before(out[j].StartAtUTC) })
	return out, nil
}

func (m *MemStore) GetBooking(_ context.Context, id string) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *MemStore) CreateBooking(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemStore) UpdateBooking(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemStore) ownerLock(ownerSlug string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	l, ok := m.ownerLocks[ownerSlug]
	if !ok {
		l = &sync.Mutex{}
		m.ownerLocks[ownerSlug] = l
	}
	return l
}

func (m *MemStore) Atomic(_ context.Context, ownerSlug string, fn func(Store) error) error {
	l := m.ownerLock(ownerSlug)
	l.Lock()
	defer l.Unlock()
	return fn(m)
}
