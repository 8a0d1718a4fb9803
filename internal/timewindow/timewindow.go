// Package timewindow computes the working-day interval that the availability
// check looks at.
package timewindow

import (
	"errors"
	"fmt"
	"time"

	"github.com/bnema/nextday-freebusy/internal/logger"
)

// ErrInvalidTimezone is returned by Resolve for ids the tz database does not know.
var ErrInvalidTimezone = errors.New("invalid timezone")

// DefaultTimezone is the zone the login flow checks when nothing else is configured.
const DefaultTimezone = "America/Los_Angeles"

// Hours is a half-open range of local clock hours.
type Hours struct {
	Start int
	End   int
}

// BusinessHours is 09:00-17:00.
var BusinessHours = Hours{Start: 9, End: 17}

// Validate reports whether the hours describe a non-empty range inside one day.
func (h Hours) Validate() error {
	if h.Start < 0 || h.End > 23 || h.Start >= h.End {
		return fmt.Errorf("invalid working hours %02d:00-%02d:00", h.Start, h.End)
	}
	return nil
}

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Weekday()
}

// AddDays returns d shifted by n days, normalizing month and year overflow.
func (d Date) AddDays(n int) Date {
	return dateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

func (d Date) at(hour int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, hour, 0, 0, 0, loc)
}

func dateOf(t time.Time) Date {
	y, m, day := t.Date()
	return Date{Year: y, Month: m, Day: day}
}

// Window is one working-day interval in a specific zone.
type Window struct {
	Start    time.Time
	End      time.Time
	Date     Date
	Timezone string
	// Fallback is set when the requested zone was unknown and UTC was used.
	Fallback bool
}

// StartISO returns the window start as RFC 3339 with the zone offset.
func (w Window) StartISO() string {
	return w.Start.Format(time.RFC3339)
}

// EndISO returns the window end as RFC 3339 with the zone offset.
func (w Window) EndISO() string {
	return w.End.Format(time.RFC3339)
}

// Location returns the zone the window was computed in.
func (w Window) Location() *time.Location {
	return w.Start.Location()
}

// Label renders the clock range, e.g. "9:00 AM - 5:00 PM".
func (w Window) Label() string {
	return w.Start.Format("3:04 PM") + " - " + w.End.Format("3:04 PM")
}

// DisplayDate renders the date as "Monday, June 10, 2024".
func (w Window) DisplayDate() string {
	return w.Start.Format("Monday, January 02, 2006")
}

// Resolve looks up an IANA zone id. Empty and "Local" are rejected so the
// result never depends on the host configuration.
func Resolve(id string) (*time.Location, error) {
	if id == "" || id == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, id)
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTimezone, id, err)
	}
	return loc, nil
}

// Next returns the business-hours window of the first weekday after now's
// date in tzID. Unknown zones fall back to UTC with a warning.
func Next(tzID string, now time.Time) Window {
	return NextWithHours(tzID, now, BusinessHours)
}

// NextWithHours is Next with custom working hours.
func NextWithHours(tzID string, now time.Time, hours Hours) Window {
	if err := hours.Validate(); err != nil {
		logger.Warn("ignoring working hours, using business hours", "error", err)
		hours = BusinessHours
	}

	fallback := false
	loc, err := Resolve(tzID)
	if err != nil {
		logger.Warn("unknown timezone, defaulting to UTC", "timezone", tzID)
		loc = time.UTC
		tzID = "UTC"
		fallback = true
	}

	target := dateOf(now.In(loc)).AddDays(1)
	for target.Weekday() == time.Saturday || target.Weekday() == time.Sunday {
		target = target.AddDays(1)
	}

	return Window{
		Start:    target.at(hours.Start, loc),
		End:      target.at(hours.End, loc),
		Date:     target,
		Timezone: tzID,
		Fallback: fallback,
	}
}
