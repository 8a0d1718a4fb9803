// Package availability turns a free/busy query for the next working day into
// a report ready for display.
package availability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bnema/nextday-freebusy/internal/calendar"
	"github.com/bnema/nextday-freebusy/internal/logger"
	"github.com/bnema/nextday-freebusy/internal/timewindow"
)

// ClockFormat is the 12-hour layout used for busy slots, e.g. "09:30 AM".
const ClockFormat = "03:04 PM"

// DisplayInterval is a busy interval formatted in the target zone.
type DisplayInterval struct {
	Start string
	End   string
}

func (d DisplayInterval) String() string {
	return d.Start + " - " + d.End
}

// Report is the availability of one working-day window.
type Report struct {
	TargetDate  string
	Timezone    string
	WindowLabel string
	Busy        []DisplayInterval
	Error       string

	RawBusy    []calendar.BusyInterval
	TimeMinISO string
	TimeMaxISO string
}

// OK reports whether the calendar query succeeded.
func (r Report) OK() bool {
	return r.Error == ""
}

// Free reports whether the window has no busy intervals.
func (r Report) Free() bool {
	return r.OK() && len(r.Busy) == 0
}

// Reporter builds reports from a calendar.Querier.
type Reporter struct {
	querier    calendar.Querier
	now        func() time.Time
	timeout    time.Duration
	hours      timewindow.Hours
	calendarID string
	tracer     trace.Tracer
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithClock sets the clock used to pick the window.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// WithTimeout bounds each calendar query. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHours overrides the working hours.
func WithHours(h timewindow.Hours) Option {
	return func(r *Reporter) { r.hours = h }
}

// WithCalendarID selects the calendar to query.
func WithCalendarID(id string) Option {
	return func(r *Reporter) { r.calendarID = id }
}

func New(q calendar.Querier, opts ...Option) *Reporter {
	r := &Reporter{
		querier:    q,
		now:        time.Now,
		timeout:    calendar.DefaultTimeout,
		hours:      timewindow.BusinessHours,
		calendarID: calendar.PrimaryCalendarID,
		tracer:     otel.Tracer("github.com/bnema/nextday-freebusy/internal/availability"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get reports the busy intervals of the next working day in tzID. It never
// fails: calendar errors and panics end up in Report.Error. accessToken must
// be non-empty.
func (r *Reporter) Get(ctx context.Context, accessToken, tzID string) Report {
	window := timewindow.NextWithHours(tzID, r.now(), r.hours)

	report := Report{
		TargetDate:  window.DisplayDate(),
		Timezone:    window.Timezone,
		WindowLabel: window.Label(),
		TimeMinISO:  window.StartISO(),
		TimeMaxISO:  window.EndISO(),
	}

	ctx, span := r.tracer.Start(ctx, "availability.get",
		trace.WithAttributes(
			attribute.String("calendar.timezone", window.Timezone),
			attribute.String("calendar.date", window.Date.String()),
		),
	)
	defer span.End()

	busy, err := r.query(ctx, accessToken, window)
	if err != nil {
		span.RecordError(err)

		var apiErr *calendar.APIError
		if errors.As(err, &apiErr) {
			report.Error = apiErr.Error()
			logger.Warn("calendar query failed", "status", apiErr.StatusCode, "reason", apiErr.Reason, "message", apiErr.Message)
		} else {
			report.Error = fmt.Sprintf("An unexpected error occurred while checking calendar: %v", err)
			logger.Error("unexpected calendar failure", "error", err)
		}
		return report
	}

	sort.SliceStable(busy, func(i, j int) bool {
		return busy[i].Start.Before(busy[j].Start)
	})

	loc := window.Location()
	report.RawBusy = busy
	report.Busy = make([]DisplayInterval, 0, len(busy))
	for _, b := range busy {
		report.Busy = append(report.Busy, DisplayInterval{
			Start: b.Start.In(loc).Format(ClockFormat),
			End:   b.End.In(loc).Format(ClockFormat),
		})
	}

	span.SetAttributes(attribute.Int("calendar.busy_count", len(busy)))
	logger.Info("availability checked", "date", window.Date.String(), "timezone", window.Timezone, "busy", len(busy))
	return report
}

func (r *Reporter) query(ctx context.Context, accessToken string, window timewindow.Window) (busy []calendar.BusyInterval, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	busy, err = r.querier.QueryFreeBusy(ctx, accessToken, window.Start, window.End, r.calendarID)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, &calendar.APIError{Reason: "request timed out", Err: ctx.Err()}
	}
	return busy, nil
}
