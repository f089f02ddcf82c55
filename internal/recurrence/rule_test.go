package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestParseAcceptsSupportedSubset(t *testing.T) {
	cases := []string{
		"FREQ=DAILY",
		"FREQ=WEEKLY;INTERVAL=2",
		"FREQ=WEEKLY;INTERVAL=1;COUNT=3",
		"FREQ=MONTHLY;BYMONTHDAY=15",
		"FREQ=WEEKLY;BYDAY=MO,TH",
		"FREQ=YEARLY;BYMONTH=6",
		"FREQ=DAILY;UNTIL=20240301T000000Z",
	}
	for _, text := range cases {
		rule, err := Parse(text, testStart)
		require.NoErrorf(t, err, "rule %q", text)
		assert.Equal(t, text, rule.Text())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"FREQ=SOMETIMES",
		"not a rule at all",
		"INTERVAL=2",
	}
	for _, text := range cases {
		_, err := Parse(text, testStart)
		require.Errorf(t, err, "rule %q", text)
		assert.Truef(t, errors.Is(err, ErrMalformed), "rule %q returned %v", text, err)
	}
}

func TestParseRejectsUnsupportedFeatures(t *testing.T) {
	cases := []string{
		"FREQ=HOURLY",
		"FREQ=MINUTELY;INTERVAL=30",
		"FREQ=MONTHLY;BYDAY=MO;BYSETPOS=2",
		"FREQ=YEARLY;BYYEARDAY=100",
		"FREQ=YEARLY;BYWEEKNO=20",
		"FREQ=DAILY;BYHOUR=9",
	}
	for _, text := range cases {
		_, err := Parse(text, testStart)
		require.Errorf(t, err, "rule %q", text)
		assert.Truef(t, errors.Is(err, ErrUnsupported), "rule %q returned %v", text, err)
	}
}

func TestNextOccurrenceIsStrictlyAfter(t *testing.T) {
	rule, err := Parse("FREQ=WEEKLY;INTERVAL=1;COUNT=3", testStart)
	require.NoError(t, err)

	next, ok := rule.NextOccurrence(testStart)
	require.True(t, ok)
	assert.Equal(t, testStart.AddDate(0, 0, 7), next)

	next, ok = rule.NextOccurrence(next)
	require.True(t, ok)
	assert.Equal(t, testStart.AddDate(0, 0, 14), next)

	// COUNT=3 means the third occurrence is the last one.
	_, ok = rule.NextOccurrence(next)
	assert.False(t, ok)
}

func TestNextOccurrenceHonorsUntil(t *testing.T) {
	rule, err := Parse("FREQ=DAILY;UNTIL=20240103T000000Z", testStart)
	require.NoError(t, err)

	next, ok := rule.NextOccurrence(testStart.AddDate(0, 0, 1))
	require.True(t, ok)
	assert.Equal(t, testStart.AddDate(0, 0, 2), next)

	_, ok = rule.NextOccurrence(testStart.AddDate(0, 0, 2))
	assert.False(t, ok)
}

func TestNextOccurrenceMonotonicInAfter(t *testing.T) {
	rule, err := Parse("FREQ=WEEKLY;INTERVAL=2", testStart)
	require.NoError(t, err)

	var prev time.Time
	after := testStart
	for i := 0; i < 12; i++ {
		next, ok := rule.NextOccurrence(after)
		require.True(t, ok)
		if !prev.IsZero() {
			assert.False(t, next.Before(prev), "occurrences must not move backwards")
		}
		prev = next
		after = after.Add(36 * time.Hour)
	}
}

func TestFirstOccurrenceIsInclusive(t *testing.T) {
	rule, err := Parse("FREQ=WEEKLY", testStart)
	require.NoError(t, err)

	first, ok := rule.FirstOccurrence(testStart)
	require.True(t, ok)
	assert.Equal(t, testStart, first)

	first, ok = rule.FirstOccurrence(testStart.Add(time.Hour))
	require.True(t, ok)
	assert.Equal(t, testStart.AddDate(0, 0, 7), first)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("FREQ=WEEKLY;COUNT=10"))
	assert.Error(t, Validate("FREQ=NEVER"))
}
