package types

import (
	"time"

	ierr "github.com/ledgerline/ledgerline/internal/errors"
)

// NextRunDate calculates the next generation date for a recurrence template
// from the run that just fired. Month-based cadences clamp to the last valid
// day of the target month, so a template anchored on the 31st rolling into a
// 30-day month lands on the 30th rather than spilling into the next month.
func NextRunDate(from time.Time, frequency RecurrenceFrequency) (time.Time, error) {
	switch frequency {
	case RecurrenceFrequencyWeekly:
		return AddClampedDate(from, 0, 0, 7), nil
	case RecurrenceFrequencyFortnightly:
		return AddClampedDate(from, 0, 0, 14), nil
	case RecurrenceFrequencyMonthly:
		return AddClampedDate(from, 0, 1, 0), nil
	case RecurrenceFrequencyQuarterly:
		return AddClampedDate(from, 0, 3, 0), nil
	case RecurrenceFrequencyAnnually:
		return AddClampedDate(from, 1, 0, 0), nil
	default:
		return from, ierr.NewError("invalid recurrence frequency").
			WithHintf("Invalid recurrence frequency: %s", frequency).
			Mark(ierr.ErrValidation)
	}
}

// AddClampedDate adds the given offsets to t, clamping the day of month to the
// last valid day of the target month instead of letting time.AddDate normalize
// Jan 31 + 1 month into Mar 2/3.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Last valid day of the target month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.AddDate(0, 0, -1).Day()

	newD := d
	if newD > lastDay {
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location()).AddDate(0, 0, days)
}

// DaysOverdue returns the number of whole days between the due date and now.
// Returns 0 when the due date is in the future.
func DaysOverdue(dueDate, now time.Time) int {
	days := int(StartOfDay(now).Sub(StartOfDay(dueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
