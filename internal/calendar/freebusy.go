package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// BusyInterval is one busy period as returned by the provider.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Querier runs a free/busy query for a single calendar on behalf of the
// owner of accessToken.
type Querier interface {
	QueryFreeBusy(ctx context.Context, accessToken string, timeMin, timeMax time.Time, calendarID string) ([]BusyInterval, error)
}

// QuerierFunc adapts a function to Querier.
type QuerierFunc func(ctx context.Context, accessToken string, timeMin, timeMax time.Time, calendarID string) ([]BusyInterval, error)

func (f QuerierFunc) QueryFreeBusy(ctx context.Context, accessToken string, timeMin, timeMax time.Time, calendarID string) ([]BusyInterval, error) {
	return f(ctx, accessToken, timeMin, timeMax, calendarID)
}

// APIError is a transport or protocol failure talking to the Calendar API.
// StatusCode is 0 when no HTTP response was received.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("Google Calendar API error: %s", e.Reason)
	}
	return fmt.Sprintf("Google Calendar API error: %d %s", e.StatusCode, e.Reason)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the query gave up waiting for the provider.
func (e *APIError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
