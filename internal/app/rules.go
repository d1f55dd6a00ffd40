package app

import (
	"fmt"
	"time"
)

type RuleKind string

const (
	RuleRecurring RuleKind = "recurring"
	RuleOneTime   RuleKind = "one_time"
	RuleDayOff    RuleKind = "day_off"
)

// Rule is one availability statement. Exactly three kinds exist: a weekly
// recurring rule, a one-time override for a single date, and a day off
// blocking a single date. Each kind carries only the fields it needs.
type Rule interface {
	RuleID() string
	RuleOwner() string
	Kind() RuleKind
	// Hours reports the bookable window for a day governed by this rule.
	// ok is false when the rule marks the day unavailable.
	Hours() (start, end TimeOfDay, ok bool)
}

// RecurringRule applies every week on Weekday unless a date-specific
// override supersedes it.
type RecurringRule struct {
	ID        string
	OwnerSlug string
	Weekday   time.Weekday
	Start     TimeOfDay
	End       TimeOfDay
	Available bool
}

func (r RecurringRule) RuleID() string    { return r.ID }
func (r RecurringRule) RuleOwner() string { return r.OwnerSlug }
func (r RecurringRule) Kind() RuleKind    { return RuleRecurring }

func (r RecurringRule) Hours() (TimeOfDay, TimeOfDay, bool) {
	if !r.Available {
		return 0, 0, false
	}
	return r.Start, r.End, true
}

// OneTimeRule replaces the recurring rule's hours for exactly one date.
type OneTimeRule struct {
	ID        string
	OwnerSlug string
	Date      Date
	Start     TimeOfDay
	End       TimeOfDay
}

func (r OneTimeRule) RuleID() string    { return r.ID }
func (r OneTimeRule) RuleOwner() string { return r.OwnerSlug }
func (r OneTimeRule) Kind() RuleKind    { return RuleOneTime }

func (r OneTimeRule) Hours() (TimeOfDay, TimeOfDay, bool) {
	return r.Start, r.End, true
}

// DayOffRule blocks one date entirely, overriding any recurring rule.
type DayOffRule struct {
	ID        string
	OwnerSlug string
	Date      Date
}

func (r DayOffRule) RuleID() string    { return r.ID }
func (r DayOffRule) RuleOwner() string { return r.OwnerSlug }
func (r DayOffRule) Kind() RuleKind    { return RuleDayOff }

func (r DayOffRule) Hours() (TimeOfDay, TimeOfDay, bool) {
	return 0, 0, false
}

// OverrideDate returns the date a one_time or day_off rule applies to,
// and false for recurring rules.
func OverrideDate(r Rule) (Date, bool) {
	switch v := r.(type) {
	case OneTimeRule:
		return v.Date, true
	case DayOffRule:
		return v.Date, true
	}
	return Date{}, false
}

// ResolveEffectiveRule selects the single rule governing a civil date:
// a date-specific override wins over the weekday's recurring rule; with
// neither, the day is unavailable and nil is returned.
//
// The store's write boundary guarantees at most one recurring rule per
// weekday and at most one override per date.
func ResolveEffectiveRule(date Date, rules []Rule) Rule {
	for _, r := range rules {
		if d, ok := OverrideDate(r); ok && d == date {
			return r
		}
	}
	weekday := date.Weekday()
	for _, r := range rules {
		if rec, ok := r.(RecurringRule); ok && rec.Weekday == weekday {
			return rec
		}
	}
	return nil
}

// ruleRecord is the wire and storage shape of a Rule: one record with a
// rule_type discriminator and nullable kind-specific fields.
type ruleRecord struct {
	ID           string   `json:"id,omitempty"`
	OwnerSlug    string   `json:"owner_slug,omitempty"`
	RuleType     RuleKind `json:"rule_type"`
	DayOfWeek    *int     `json:"day_of_week,omitempty"`
	DateOverride *string  `json:"date_override,omitempty"`
	StartTime    *string  `json:"start_time,omitempty"`
	EndTime      *string  `json:"end_time,omitempty"`
	IsAvailable  *bool    `json:"is_available,omitempty"`
}

// toRule validates the record against its declared kind and builds the
// corresponding variant. Missing time strings default to 00:00.
func (rec ruleRecord) toRule() (Rule, error) {
	parseHours := func() (TimeOfDay, TimeOfDay, error) {
		var start, end TimeOfDay
		var err error
		if rec.StartTime != nil {
			if start, err = ParseTimeOfDay(*rec.StartTime); err != nil {
				return 0, 0, err
			}
		}
		if rec.EndTime != nil {
			if end, err = ParseTimeOfDay(*rec.EndTime); err != nil {
				return 0, 0, err
			}
		}
		if start >= end {
			return 0, 0, fmt.Errorf("end_time must be after start_time")
		}
		return start, end, nil
	}

	switch rec.RuleType {
	case RuleRecurring:
		if rec.DayOfWeek == nil || *rec.DayOfWeek < 0 || *rec.DayOfWeek > 6 {
			return nil, fmt.Errorf("recurring rule requires day_of_week 0..6")
		}
		available := rec.IsAvailable == nil || *rec.IsAvailable
		r := RecurringRule{
			ID:        rec.ID,
			OwnerSlug: rec.OwnerSlug,
			Weekday:   time.Weekday(*rec.DayOfWeek),
			Available: available,
		}
		if available {
			start, end, err := parseHours()
			if err != nil {
				return nil, err
			}
			r.Start, r.End = start, end
		}
		return r, nil

	case RuleOneTime:
		if rec.DateOverride == nil {
			return nil, fmt.Errorf("one_time rule requires date_override")
		}
		date, err := ParseDate(*rec.DateOverride)
		if err != nil {
			return nil, err
		}
		start, end, err := parseHours()
		if err != nil {
			return nil, err
		}
		return OneTimeRule{
			ID:        rec.ID,
			OwnerSlug: rec.OwnerSlug,
			Date:      date,
			Start:     start,
			End:       end,
		}, nil

	case RuleDayOff:
		if rec.DateOverride == nil {
			return nil, fmt.Errorf("day_off rule requires date_override")
		}
		date, err := ParseDate(*rec.DateOverride)
		if err != nil {
			return nil, err
		}
		return DayOffRule{ID: rec.ID, OwnerSlug: rec.OwnerSlug, Date: date}, nil
	}
	return nil, fmt.Errorf("unknown rule_type %q", rec.RuleType)
}

func recordFromRule(r Rule) ruleRecord {
	rec := ruleRecord{
		ID:        r.RuleID(),
		OwnerSlug: r.RuleOwner(),
		RuleType:  r.Kind(),
	}
	switch v := r.(type) {
	case RecurringRule:
		day := int(v.Weekday)
		rec.DayOfWeek = &day
		rec.IsAvailable = &v.Available
		if v.Available {
			start, end := v.Start.String(), v.End.String()
			rec.StartTime, rec.EndTime = &start, &end
		}
	case OneTimeRule:
		date := v.Date.String()
		start, end := v.Start.String(), v.End.String()
		available := true
		rec.DateOverride = &date
		rec.StartTime, rec.EndTime = &start, &end
		rec.IsAvailable = &available
	case DayOffRule:
		date := v.Date.String()
		available := false
		rec.DateOverride = &date
		rec.IsAvailable = &available
	}
	return rec
}
