package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the subset of pgx shared by a pool and a transaction, so the
// same query methods serve both plain calls and Atomic sections.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db   querier
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool, pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS owners (
    slug        TEXT PRIMARY KEY,
    name        TEXT NOT NULL DEFAULT '',
    timezone    TEXT NOT NULL DEFAULT 'UTC',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS event_types (
    id                   TEXT PRIMARY KEY,
    owner_slug           TEXT NOT NULL,
    slug                 TEXT NOT NULL,
    title                TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    duration_minutes     INT NOT NULL,
    location_type        TEXT NOT NULL,
    buffer_before_mins   INT NOT NULL DEFAULT 0,
    buffer_after_mins    INT NOT NULL DEFAULT 0,
    min_notice_mins      INT NOT NULL DEFAULT 0,
    is_active            BOOLEAN NOT NULL DEFAULT TRUE,
    date_range_start     TEXT,
    date_range_end       TEXT,
    max_bookings_per_day INT NOT NULL DEFAULT 0,
    custom_questions     JSONB NOT NULL DEFAULT '[]',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (owner_slug, slug)
);

CREATE TABLE IF NOT EXISTS availability_rules (
    id            TEXT PRIMARY KEY,
    owner_slug    TEXT NOT NULL,
    rule_type     TEXT NOT NULL,
    day_of_week   INT,
    date_override TEXT,
    start_time    TEXT,
    end_time      TEXT,
    is_available  BOOLEAN,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS availability_rules_weekday
    ON availability_rules (owner_slug, day_of_week)
    WHERE rule_type = 'recurring';
CREATE UNIQUE INDEX IF NOT EXISTS availability_rules_override
    ON availability_rules (owner_slug, date_override)
    WHERE rule_type <> 'recurring';

CREATE TABLE IF NOT EXISTS bookings (
    id                TEXT PRIMARY KEY,
    owner_slug        TEXT NOT NULL,
    event_type_id     TEXT NOT NULL,
    attendee_name     TEXT NOT NULL,
    attendee_email    TEXT NOT NULL,
    attendee_timezone TEXT NOT NULL DEFAULT '',
    notes             TEXT NOT NULL DEFAULT '',
    guests            TEXT[] NOT NULL DEFAULT '{}',
    start_at_utc      TIMESTAMPTZ NOT NULL,
    end_at_utc        TIMESTAMPTZ NOT NULL,
    status            TEXT NOT NULL,
    custom_answers    JSONB NOT NULL DEFAULT '[]',
    meeting_link      TEXT NOT NULL DEFAULT '',
    cancel_reason     TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS bookings_owner_start
    ON bookings (owner_slug, start_at_utc);
`

// EnsureSchema creates the tables on first run.
func (p *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, schema)
	return err
}

func (p *PGStore) GetOwner(ctx context.Context, slug string) (*Owner, error) {
	q := `SELECT slug, name, timezone, created_at, updated_at FROM owners WHERE slug=$1`
	var o Owner
	err := p.db.QueryRow(ctx, q, slug).Scan(&o.Slug, &o.Name, &o.Timezone, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *PGStore) UpsertOwner(ctx context.Context, o *Owner) error {
	q := `INSERT INTO owners (slug, name, timezone, created_at, updated_at)
	      VALUES ($1,$2,$3,now(),now())
	      ON CONFLICT (slug) DO UPDATE SET name=$2, timezone=$3, updated_at=now()`
	_, err := p.db.Exec(ctx, q, o.Slug, o.Name, o.Timezone)
	return err
}

const eventTypeCols = `id, owner_slug, slug, title, description, duration_minutes,
	location_type, buffer_before_mins, buffer_after_mins, min_notice_mins,
	is_active, date_range_start, date_range_end, max_bookings_per_day,
	custom_questions, created_at, updated_at`

func scanEventType(row pgx.Row) (*EventType, error) {
	var et EventType
	var rangeStart, rangeEnd *string
	var questions []byte
	err := row.Scan(&et.ID, &et.OwnerSlug, &et.Slug, &et.Title, &et.Description,
		&et.DurationMins, &et.LocationType, &et.BufferBeforeMins, &et.BufferAfterMins,
		&et.MinNoticeMins, &et.IsActive, &rangeStart, &rangeEnd,
		&et.MaxBookingsPerDay, &questions, &et.CreatedAt, &et.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rangeStart != nil {
		d, err := ParseDate(*rangeStart)
		if err != nil {
			return nil, err
		}
		et.DateRangeStart = &d
	}
	if rangeEnd != nil {
		d, err := ParseDate(*rangeEnd)
		if err != nil {
			return nil, err
		}
		et.DateRangeEnd = &d
	}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &et.CustomQuestions); err != nil {
			return nil, fmt.Errorf("decode custom_questions: %w", err)
		}
	}
	return &et, nil
}

func (p *PGStore) ListEventTypes(ctx context.Context, ownerSlug string) ([]EventType, error) {
	q := `SELECT ` + eventTypeCols + ` FROM event_types WHERE owner_slug=$1 ORDER BY created_at`
	rows, err := p.db.Query(ctx, q, ownerSlug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventType
	for rows.Next() {
		et, err := scanEventType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *et)
	}
	return out, rows.Err()
}

func (p *PGStore) GetEventType(ctx context.Context, ownerSlug, id string) (*EventType, error) {
	q := `SELECT ` + eventTypeCols + ` FROM event_types WHERE owner_slug=$1 AND id=$2`
	return scanEventType(p.db.QueryRow(ctx, q, ownerSlug, id))
}

func (p *PGStore) GetEventTypeBySlug(ctx context.Context, ownerSlug, slug string) (*EventType, error) {
	q := `SELECT ` + eventTypeCols + ` FROM event_types WHERE owner_slug=$1 AND slug=$2`
	return scanEventType(p.db.QueryRow(ctx, q, ownerSlug, slug))
}

func eventTypeArgs(et *EventType) ([]any, error) {
	questions, err := json.Marshal(et.CustomQuestions)
	if err != nil {
		return nil, err
	}
	var rangeStart, rangeEnd *string
	if et.DateRangeStart != nil {
		s := et.DateRangeStart.String()
		rangeStart = &s
	}
	if et.DateRangeEnd != nil {
		s := et.DateRangeEnd.String()
		rangeEnd = &s
	}
	return []any{et.ID, et.OwnerSlug, et.Slug, et.Title, et.Description,
		et.DurationMins, et.LocationType, et.BufferBeforeMins, et.BufferAfterMins,
		et.MinNoticeMins, et.IsActive, rangeStart, rangeEnd,
		et.MaxBookingsPerDay, questions}, nil
}

func (p *PGStore) CreateEventType(ctx context.Context, et *EventType) error {
	var existing string
	checkQ := `SELECT id FROM event_types WHERE owner_slug=$1 AND slug=$2 LIMIT 1`
	err := p.db.QueryRow(ctx, checkQ, et.OwnerSlug, et.Slug).Scan(&existing)
	if err == nil {
		return ErrDuplicateSlug
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	args, err := eventTypeArgs(et)
	if err != nil {
		return err
	}
	q := `INSERT INTO event_types (` + eventTypeCols + `)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now(),now())`
	_, err = p.db.Exec(ctx, q, args...)
	return err
}

func (p *PGStore) UpdateEventType(ctx context.Context, et *EventType) error {
	args, err := eventTypeArgs(et)
	if err != nil {
		return err
	}
	q := `UPDATE event_types SET slug=$3, title=$4, description=$5,
	      duration_minutes=$6, location_type=$7, buffer_before_mins=$8,
	      buffer_after_mins=$9, min_notice_mins=$10, is_active=$11,
	      date_range_start=$12, date_range_end=$13, max_bookings_per_day=$14,
	      custom_questions=$15, updated_at=now()
	      WHERE id=$1 AND owner_slug=$2`
	tag, err := p.db.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PGStore) DeleteEventType(ctx context.Context, ownerSlug, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM event_types WHERE owner_slug=$1 AND id=$2`, ownerSlug, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PGStore) ListRules(ctx context.Context, ownerSlug string) ([]Rule, error) {
	q := `SELECT id, owner_slug, rule_type, day_of_week, date_override,
	      start_time, end_time, is_available
	      FROM availability_rules WHERE owner_slug=$1 ORDER BY id`
	rows, err := p.db.Query(ctx, q, ownerSlug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		var rec ruleRecord
		if err := rows.Scan(&rec.ID, &rec.OwnerSlug, &rec.RuleType, &rec.DayOfWeek,
			&rec.DateOverride, &rec.StartTime, &rec.EndTime, &rec.IsAvailable); err != nil {
			return nil, err
		}
		r, err := rec.toRule()
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rec.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ruleCollisionCheck mirrors the partial unique indexes, so callers get
// ErrDuplicateRule instead of a driver error.
func (p *PGStore) ruleCollisionCheck(ctx context.Context, r Rule, excludeID string) error {
	var q string
	var args []any
	switch v := r.(type) {
	case RecurringRule:
		q = `SELECT id FROM availability_rules
		     WHERE owner_slug=$1 AND rule_type='recurring' AND day_of_week=$2 AND id<>$3 LIMIT 1`
		args = []any{v.OwnerSlug, int(v.Weekday), excludeID}
	default:
		date, _ := OverrideDate(r)
		q = `SELECT id FROM availability_rules
		     WHERE owner_slug=$1 AND rule_type<>'recurring' AND date_override=$2 AND id<>$3 LIMIT 1`
		args = []any{r.RuleOwner(), date.String(), excludeID}
	}
	var existing string
	err := p.db.QueryRow(ctx, q, args...).Scan(&existing)
	if err == nil {
		return ErrDuplicateRule
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return nil
}

func (p *PGStore) CreateRule(ctx context.Context, r Rule) error {
	if err := p.ruleCollisionCheck(ctx, r, ""); err != nil {
		return err
	}
	rec := recordFromRule(r)
	q := `INSERT INTO availability_rules
	      (id, owner_slug, rule_type, day_of_week, date_override, start_time, end_time, is_available, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())`
	_, err := p.db.Exec(ctx, q, rec.ID, rec.OwnerSlug, rec.RuleType, rec.DayOfWeek,
		rec.DateOverride, rec.StartTime, rec.EndTime, rec.IsAvailable)
	return err
}

func (p *PGStore) UpdateRule(ctx context.Context, r Rule) error {
	if err := p.ruleCollisionCheck(ctx, r, r.RuleID()); err != nil {
		return err
	}
	rec := recordFromRule(r)
	q := `UPDATE availability_rules SET rule_type=$3, day_of_week=$4,
	      date_override=$5, start_time=$6, end_time=$7, is_available=$8, updated_at=now()
	      WHERE id=$1 AND owner_slug=$2`
	tag, err := p.db.Exec(ctx, q, rec.ID, rec.OwnerSlug, rec.RuleType, rec.DayOfWeek,
		rec.DateOverride, rec.StartTime, rec.EndTime, rec.IsAvailable)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PGStore) DeleteRule(ctx context.Context, ownerSlug, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM availability_rules WHERE owner_slug=$1 AND id=$2`, ownerSlug, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const bookingCols = `id, owner_slug, event_type_id, attendee_name, attendee_email,
	attendee_timezone, notes, guests, start_at_utc, end_at_utc, status,
	custom_answers, meeting_link, cancel_reason, created_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var answers []byte
	err := row.Scan(&b.ID, &b.OwnerSlug, &b.EventTypeID, &b.AttendeeName,
		&b.AttendeeEmail, &b.AttendeeTimezone, &b.Notes, &b.Guests,
		&b.StartAtUTC, &b.EndAtUTC, &b.Status, &answers, &b.MeetingLink,
		&b.CancelReason, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &b.CustomAnswers); err != nil {
			return nil, fmt.Errorf("decode custom_answers: %w", err)
		}
	}
	b.StartAtUTC = b.StartAtUTC.UTC()
	b.EndAtUTC = b.EndAtUTC.UTC()
	return &b, nil
}

func (p *PGStore) ListBookings(ctx context.Context, ownerSlug string) ([]Booking, error) {
	q := `SELECT ` + bookingCols + ` FROM bookings WHERE owner_slug=$1 ORDER BY start_at_utc`
	rows, err := p.db.Query(ctx, q, ownerSlug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (p *PGStore) GetBooking(ctx context.Context, id string) (*Booking, error) {
	q := `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	return scanBooking(p.db.QueryRow(ctx, q, id))
}

func (p *PGStore) CreateBooking(ctx context.Context, b *Booking) error {
	answers, err := json.Marshal(b.CustomAnswers)
	if err != nil {
		return err
	}
	guests := b.Guests
	if guests == nil {
		guests = []string{}
	}
	q := `INSERT INTO bookings (` + bookingCols + `)
	      VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err = p.db.Exec(ctx, q, b.ID, b.OwnerSlug, b.EventTypeID, b.AttendeeName,
		b.AttendeeEmail, b.AttendeeTimezone, b.Notes, guests,
		b.StartAtUTC, b.EndAtUTC, b.Status, answers, b.MeetingLink,
		b.CancelReason, b.CreatedAt)
	return err
}

func (p *PGStore) UpdateBooking(ctx context.Context, b *Booking) error {
	answers, err := json.Marshal(b.CustomAnswers)
	if err != nil {
		return err
	}
	q := `UPDATE bookings SET start_at_utc=$2, end_at_utc=$3, status=$4,
	      custom_answers=$5, cancel_reason=$6 WHERE id=$1`
	tag, err := p.db.Exec(ctx, q, b.ID, b.StartAtUTC, b.EndAtUTC, b.Status,
		answers, b.CancelReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Atomic runs fn in a transaction holding a per-owner advisory lock, so the
// conflict re-check and booking insert cannot interleave with a concurrent
// submission for the same owner.
func (p *PGStore) Atomic(ctx context.Context, ownerSlug string, fn func(Store) error) error {
	if p.pool == nil {
		return fmt.Errorf("nested atomic sections are not supported")
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ownerSlug); err != nil {
		return err
	}
	if err := fn(&PGStore{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// WaitForDB pings the pool until it answers or the context expires.
func WaitForDB(ctx context.Context, pool *pgxpool.Pool) error {
	for {
		if err := pool.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}
