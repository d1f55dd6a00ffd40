package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEffectiveRule_RecurringMatch(t *testing.T) {
	rules := []Rule{
		weekdayRule(t, time.Monday, "09:00", "17:00"),
		weekdayRule(t, time.Tuesday, "09:00", "17:00"),
	}

	got := ResolveEffectiveRule(mustDate(t, "2026-03-02"), rules) // a Monday
	require.NotNil(t, got)
	assert.Equal(t, RuleRecurring, got.Kind())
	assert.Equal(t, "rule-Monday", got.RuleID())
}

func TestResolveEffectiveRule_NoRuleMeansUnavailable(t *testing.T) {
	rules := []Rule{weekdayRule(t, time.Monday, "09:00", "17:00")}
	// 2026-03-04 is a Wednesday; no rule covers it.
	assert.Nil(t, ResolveEffectiveRule(mustDate(t, "2026-03-04"), rules))
	assert.Nil(t, ResolveEffectiveRule(mustDate(t, "2026-03-04"), nil))
}

func TestResolveEffectiveRule_OverrideWinsOverRecurring(t *testing.T) {
	monday := mustDate(t, "2026-03-02")
	oneTime := OneTimeRule{
		ID:        "ot-1",
		OwnerSlug: "dwayne",
		Date:      monday,
		Start:     mustTOD(t, "13:00"),
		End:       mustTOD(t, "17:00"),
	}
	rules := []Rule{weekdayRule(t, time.Monday, "09:00", "17:00"), oneTime}

	got := ResolveEffectiveRule(monday, rules)
	require.NotNil(t, got)
	assert.Equal(t, RuleOneTime, got.Kind())

	// The override only applies to its exact date.
	nextMonday := ResolveEffectiveRule(mustDate(t, "2026-03-09"), rules)
	require.NotNil(t, nextMonday)
	assert.Equal(t, RuleRecurring, nextMonday.Kind())
}

func TestResolveEffectiveRule_DayOffBlocksRecurring(t *testing.T) {
	monday := mustDate(t, "2026-03-02")
	rules := []Rule{
		weekdayRule(t, time.Monday, "09:00", "17:00"),
		DayOffRule{ID: "off-1", OwnerSlug: "dwayne", Date: monday},
	}

	got := ResolveEffectiveRule(monday, rules)
	require.NotNil(t, got)
	assert.Equal(t, RuleDayOff, got.Kind())
	_, _, ok := got.Hours()
	assert.False(t, ok)
}

func TestRecurringRuleHours_UnavailableDay(t *testing.T) {
	weekend := RecurringRule{ID: "r-sat", OwnerSlug: "dwayne", Weekday: time.Saturday, Available: false}
	_, _, ok := weekend.Hours()
	assert.False(t, ok)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func TestRuleRecord_ToRuleRecurring(t *testing.T) {
	rec := ruleRecord{
		ID:        "r1",
		OwnerSlug: "dwayne",
		RuleType:  RuleRecurring,
		DayOfWeek: intPtr(1),
		StartTime: strPtr("09:00"),
		EndTime:   strPtr("17:00"),
	}
	r, err := rec.toRule()
	require.NoError(t, err)
	rec2 := recordFromRule(r)
	assert.Equal(t, rec.ID, rec2.ID)
	assert.Equal(t, RuleRecurring, rec2.RuleType)
	require.NotNil(t, rec2.DayOfWeek)
	assert.Equal(t, 1, *rec2.DayOfWeek)
	require.NotNil(t, rec2.StartTime)
	assert.Equal(t, "09:00", *rec2.StartTime)
}

func TestRuleRecord_ToRuleValidation(t *testing.T) {
	tests := []struct {
		name string
		rec  ruleRecord
	}{
		{"recurring without day", ruleRecord{RuleType: RuleRecurring}},
		{"recurring day out of range", ruleRecord{RuleType: RuleRecurring, DayOfWeek: intPtr(7), StartTime: strPtr("09:00"), EndTime: strPtr("17:00")}},
		{"recurring end before start", ruleRecord{RuleType: RuleRecurring, DayOfWeek: intPtr(1), StartTime: strPtr("17:00"), EndTime: strPtr("09:00")}},
		{"one_time without date", ruleRecord{RuleType: RuleOneTime, StartTime: strPtr("09:00"), EndTime: strPtr("17:00")}},
		{"one_time bad date", ruleRecord{RuleType: RuleOneTime, DateOverride: strPtr("soon"), StartTime: strPtr("09:00"), EndTime: strPtr("17:00")}},
		{"day_off without date", ruleRecord{RuleType: RuleDayOff}},
		{"unknown kind", ruleRecord{RuleType: "lunch_break"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.rec.toRule()
			assert.Error(t, err)
		})
	}
}

func TestRuleRecord_UnavailableRecurringSkipsHours(t *testing.T) {
	rec := ruleRecord{
		ID:          "r-sun",
		OwnerSlug:   "dwayne",
		RuleType:    RuleRecurring,
		DayOfWeek:   intPtr(0),
		IsAvailable: boolPtr(false),
	}
	r, err := rec.toRule()
	require.NoError(t, err)
	_, _, ok := r.Hours()
	assert.False(t, ok)
}

func TestRuleRecord_DayOffRoundTrip(t *testing.T) {
	rec := ruleRecord{
		ID:           "off-1",
		OwnerSlug:    "dwayne",
		RuleType:     RuleDayOff,
		DateOverride: strPtr("2026-03-17"),
	}
	r, err := rec.toRule()
	require.NoError(t, err)
	assert.Equal(t, RuleDayOff, r.Kind())

	back := recordFromRule(r)
	require.NotNil(t, back.DateOverride)
	assert.Equal(t, "2026-03-17", *back.DateOverride)
	require.NotNil(t, back.IsAvailable)
	assert.False(t, *back.IsAvailable)
}
