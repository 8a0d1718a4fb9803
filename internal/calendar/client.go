package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bnema/nextday-freebusy/internal/logger"
)

// Service queries Google Calendar with a caller-supplied access token. A new
// API client is built per query since every login brings its own token.
type Service struct {
	endpoint  string
	transport http.RoundTripper
}

// Option configures a Service.
type Option func(*Service)

// WithEndpoint points the client at another API base URL, e.g. a test server.
func WithEndpoint(endpoint string) Option {
	return func(s *Service) {
		s.endpoint = endpoint
	}
}

// WithTransport replaces the base HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *Service) {
		s.transport = rt
	}
}

// NewService returns a Service whose outbound calls are traced.
func NewService(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	return s
}

func (s *Service) calendarService(ctx context.Context, accessToken string) (*gcal.Service, error) {
	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   s.transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}

	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return srv, nil
}

// QueryFreeBusy returns the busy periods of calendarID between timeMin and
// timeMax, in provider order. HTTP and transport failures are returned as
// *APIError.
func (s *Service) QueryFreeBusy(ctx context.Context, accessToken string, timeMin, timeMax time.Time, calendarID string) ([]BusyInterval, error) {
	if calendarID == "" {
		calendarID = PrimaryCalendarID
	}

	srv, err := s.calendarService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	req := &gcal.FreeBusyRequest{
		TimeMin: timeMin.Format(time.RFC3339),
		TimeMax: timeMax.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}

	logger.Debug("querying free/busy", "calendar", calendarID, "time_min", req.TimeMin, "time_max", req.TimeMax)

	resp, err := srv.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, toAPIError(err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		reasons := make([]string, 0, len(cal.Errors))
		for _, e := range cal.Errors {
			reasons = append(reasons, e.Reason)
		}
		return nil, &APIError{
			Reason:  strings.Join(reasons, ", "),
			Message: fmt.Sprintf("calendar %s reported errors", calendarID),
		}
	}

	busy := make([]BusyInterval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid busy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("invalid busy end %q: %w", period.End, err)
		}
		busy = append(busy, BusyInterval{Start: start.UTC(), End: end.UTC()})
	}

	logger.Debug("free/busy query completed", "calendar", calendarID, "busy", len(busy))
	return busy, nil
}

func toAPIError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		reason := gerr.Message
		if reason == "" {
			reason = http.StatusText(gerr.Code)
		}
		return &APIError{StatusCode: gerr.Code, Reason: reason, Message: gerr.Message, Err: err}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Reason: "request timed out", Err: err}
	case errors.Is(err, context.Canceled):
		return &APIError{Reason: "request canceled", Err: err}
	}
	return &APIError{Reason: "transport failure", Message: err.Error(), Err: err}
}
