package calendar

import "time"

const (
	// PrimaryCalendarID addresses the signed-in user's main calendar.
	PrimaryCalendarID = "primary"

	// DefaultTimeout bounds a single free/busy query.
	DefaultTimeout = 5 * time.Second
)
