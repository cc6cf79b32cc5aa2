// Package calendar holds the UTC date arithmetic used by billing schedules.
//
// Every function works on calendar dates at UTC midnight. Period keys are taken
// from the calendar month of such a date, so no value here carries a zone offset
// that could move an entry into a neighbouring month.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout   = "2006-01-02"
	PeriodLayout = "2006-01"

	// FiscalYearEndMonth closes the fiscal year; December opens the next one.
	FiscalYearEndMonth = time.November
)

var (
	ErrInvalidDate   = errors.New("invalid_date")
	ErrInvalidPeriod = errors.New("invalid_period")
)

// Date builds a UTC midnight date. Out-of-range values normalize like time.Date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Normalize keeps the UTC calendar date of t and drops the clock time. Stored
// dates are UTC midnights, so a driver that hands them back in time.Local still
// maps to the same day.
func Normalize(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return Date(y, m, d)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return Normalize(t).Format(DateLayout)
}

// DaysIn reports the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return Date(year, month+1, 0).Day()
}

// AddMonths shifts t by n calendar months. The day of month is kept unless the
// target month is shorter, in which case it clamps to the last day.
func AddMonths(t time.Time, n int) time.Time {
	t = Normalize(t)
	total := int(t.Month()) - 1 + n
	year := t.Year() + floorDiv(total, 12)
	month := time.Month(floorMod(total, 12) + 1)

	day := t.Day()
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return Date(year, month, day)
}

func AddDays(t time.Time, n int) time.Time {
	return Normalize(t).AddDate(0, 0, n)
}

// Tempo is the due date of a term: start plus n months, minus one day.
func Tempo(start time.Time, n int) time.Time {
	return AddDays(AddMonths(start, n), -1)
}

// FiscalYearEnd returns Nov 30 of the fiscal year containing d.
func FiscalYearEnd(d time.Time) time.Time {
	return Date(FiscalYearOf(d), FiscalYearEndMonth, 30)
}

// FiscalYearOf names the fiscal year by the calendar year it ends in.
func FiscalYearOf(d time.Time) int {
	d = Normalize(d)
	if d.Month() > FiscalYearEndMonth {
		return d.Year() + 1
	}
	return d.Year()
}

// FiscalYearStart returns Dec 1 of fy-1.
func FiscalYearStart(fy int) time.Time {
	return Date(fy-1, time.December, 1)
}

// FiscalYearPeriods lists the twelve period keys of fy, December first.
func FiscalYearPeriods(fy int) []string {
	start := FiscalYearStart(fy)
	periods := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		periods = append(periods, PeriodKey(start.AddDate(0, i, 0)))
	}
	return periods
}

func PeriodKey(t time.Time) string {
	return Normalize(t).Format(PeriodLayout)
}

// ParsePeriod accepts only the strict YYYY-MM form and returns the first day of
// that month.
func ParsePeriod(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(PeriodLayout) || s[4] != '-' {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	month, err := strconv.Atoi(s[5:])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Date(year, time.Month(month), 1), nil
}

func IsPeriod(s string) bool {
	_, err := ParsePeriod(s)
	return err == nil
}

func NextPeriod(period string) (string, error) {
	start, err := ParsePeriod(period)
	if err != nil {
		return "", err
	}
	return PeriodKey(start.AddDate(0, 1, 0)), nil
}

// PeriodsBetween lists period keys from..to inclusive. from after to yields an error.
func PeriodsBetween(from, to string) ([]string, error) {
	start, err := ParsePeriod(from)
	if err != nil {
		return nil, err
	}
	end, err := ParsePeriod(to)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrInvalidPeriod, from, to)
	}

	var periods []string
	for cur := start; !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		periods = append(periods, PeriodKey(cur))
	}
	return periods, nil
}

// EndOfPeriod returns the last day of the month named by a period key.
func EndOfPeriod(period string) (time.Time, error) {
	start, err := ParsePeriod(period)
	if err != nil {
		return time.Time{}, err
	}
	return AddDays(start.AddDate(0, 1, 0), -1), nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}
