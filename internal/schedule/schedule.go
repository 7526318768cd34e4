// Package schedule owns scope keys and the date math behind postponement.
// A scope key pins a task to one calendar slot: "2025-03-10" (day),
// "2025-W12" (ISO week), "2025-03" (month) or "2025" (year).
package schedule

import (
	"fmt"
	"time"

	"hingeboard/internal/domain"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
	YearLayout  = "2006"
)

// DeriveDate returns the canonical date a scope key stands for: the day
// itself, the Monday of an ISO week, the first of a month, January 1st of a
// year. All dates are UTC midnight.
func DeriveDate(scope domain.Scope, key string) (time.Time, error) {
	switch scope {
	case domain.ScopeDay:
		t, err := time.ParseInLocation(DayLayout, key, time.UTC)
		if err != nil {
			return time.Time{}, domain.Validationf("invalid_scope_key", "invalid day key %q: expected YYYY-MM-DD", key)
		}
		return t, nil
	case domain.ScopeWeek:
		var year, week int
		if _, err := fmt.Sscanf(key, "%d-W%d", &year, &week); err != nil || week < 1 || week > 53 {
			return time.Time{}, domain.Validationf("invalid_scope_key", "invalid week key %q: expected YYYY-Www", key)
		}
		return isoWeekStart(year, week), nil
	case domain.ScopeMonth:
		t, err := time.ParseInLocation(MonthLayout, key, time.UTC)
		if err != nil {
			return time.Time{}, domain.Validationf("invalid_scope_key", "invalid month key %q: expected YYYY-MM", key)
		}
		return t, nil
	case domain.ScopeYear:
		t, err := time.ParseInLocation(YearLayout, key, time.UTC)
		if err != nil {
			return time.Time{}, domain.Validationf("invalid_scope_key", "invalid year key %q: expected YYYY", key)
		}
		return t, nil
	default:
		return time.Time{}, domain.Validationf("invalid_scope", "unknown scope %q", scope)
	}
}

// Key renders a date back into the scope's key format.
func Key(scope domain.Scope, date time.Time) (string, error) {
	switch scope {
	case domain.ScopeDay:
		return date.Format(DayLayout), nil
	case domain.ScopeWeek:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	case domain.ScopeMonth:
		return date.Format(MonthLayout), nil
	case domain.ScopeYear:
		return date.Format(YearLayout), nil
	default:
		return "", domain.Validationf("invalid_scope", "unknown scope %q", scope)
	}
}

// Shift moves a scope key forward by the given number of days and re-keys at
// the same scope. A postponed task is never reclassified into another scope;
// a day task shifted across a week boundary is still a day task. It returns
// the new key and the pre-shift canonical date, which the engine records as
// the original scheduled date on first postponement.
func Shift(scope domain.Scope, key string, days int) (string, time.Time, error) {
	before, err := DeriveDate(scope, key)
	if err != nil {
		return "", time.Time{}, err
	}
	after := before.AddDate(0, 0, days)
	newKey, err := Key(scope, after)
	if err != nil {
		return "", time.Time{}, err
	}
	return newKey, before, nil
}

// isoWeekStart returns the Monday of the given ISO week. January 4th is
// always in week 1.
func isoWeekStart(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	wd := int(jan4.Weekday())
	if wd == 0 {
		wd = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-wd)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}
