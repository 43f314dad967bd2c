package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextRunDate(t *testing.T) {
	tests := []struct {
		name      string
		from      time.Time
		frequency RecurrenceFrequency
		want      time.Time
	}{
		{
			name:      "weekly adds seven days",
			from:      date(2025, time.June, 15),
			frequency: RecurrenceFrequencyWeekly,
			want:      date(2025, time.June, 22),
		},
		{
			name:      "fortnightly adds fourteen days",
			from:      date(2025, time.June, 15),
			frequency: RecurrenceFrequencyFortnightly,
			want:      date(2025, time.June, 29),
		},
		{
			name:      "monthly mid month",
			from:      date(2025, time.June, 15),
			frequency: RecurrenceFrequencyMonthly,
			want:      date(2025, time.July, 15),
		},
		{
			name:      "monthly clamps jan 31 to feb 28",
			from:      date(2025, time.January, 31),
			frequency: RecurrenceFrequencyMonthly,
			want:      date(2025, time.February, 28),
		},
		{
			name:      "monthly clamps to feb 29 in leap year",
			from:      date(2024, time.January, 31),
			frequency: RecurrenceFrequencyMonthly,
			want:      date(2024, time.February, 29),
		},
		{
			name:      "monthly clamps may 31 to jun 30",
			from:      date(2025, time.May, 31),
			frequency: RecurrenceFrequencyMonthly,
			want:      date(2025, time.June, 30),
		},
		{
			name:      "monthly rolls over year boundary",
			from:      date(2025, time.December, 15),
			frequency: RecurrenceFrequencyMonthly,
			want:      date(2026, time.January, 15),
		},
		{
			name:      "quarterly clamps nov 30 to feb 28",
			from:      date(2024, time.November, 30),
			frequency: RecurrenceFrequencyQuarterly,
			want:      date(2025, time.February, 28),
		},
		{
			name:      "annually from feb 29 clamps to feb 28",
			from:      date(2024, time.February, 29),
			frequency: RecurrenceFrequencyAnnually,
			want:      date(2025, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRunDate(tt.from, tt.frequency)
			assert.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestNextRunDateInvalidFrequency(t *testing.T) {
	_, err := NextRunDate(date(2025, time.June, 15), RecurrenceFrequency("hourly"))
	assert.Error(t, err)
}

func TestAddClampedDatePreservesTimeOfDay(t *testing.T) {
	from := time.Date(2025, time.January, 31, 9, 30, 0, 0, time.UTC)
	got := AddClampedDate(from, 0, 1, 0)
	assert.True(t, got.Equal(time.Date(2025, time.February, 28, 9, 30, 0, 0, time.UTC)))
}

func TestDaysOverdue(t *testing.T) {
	now := time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		dueDate time.Time
		want    int
	}{
		{"future due date", date(2025, time.June, 20), 0},
		{"due today", date(2025, time.June, 15), 0},
		{"due yesterday", date(2025, time.June, 14), 1},
		{"time of day ignored", time.Date(2025, time.June, 14, 23, 59, 0, 0, time.UTC), 1},
		{"two weeks overdue", date(2025, time.June, 1), 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysOverdue(tt.dueDate, now))
		})
	}
}

func TestStartOfDay(t *testing.T) {
	got := StartOfDay(time.Date(2025, time.June, 15, 18, 45, 12, 999, time.UTC))
	assert.True(t, got.Equal(date(2025, time.June, 15)))

	// non-UTC inputs normalize to the UTC day
	loc := time.FixedZone("UTC+5", 5*3600)
	got = StartOfDay(time.Date(2025, time.June, 15, 2, 0, 0, 0, loc))
	assert.True(t, got.Equal(date(2025, time.June, 14)))
}
