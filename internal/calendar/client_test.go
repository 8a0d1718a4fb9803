package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewService(WithEndpoint(server.URL+"/calendar/v3/"), WithTransport(server.Client().Transport))
}

func testWindow() (time.Time, time.Time) {
	loc := time.FixedZone("PDT", -7*3600)
	return time.Date(2024, 6, 10, 9, 0, 0, 0, loc), time.Date(2024, 6, 10, 17, 0, 0, 0, loc)
}

func TestQueryFreeBusy(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/calendar/v3/freeBusy" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"kind": "calendar#freeBusy",
			"calendars": {
				"primary": {
					"busy": [
						{"start": "2024-06-10T18:00:00Z", "end": "2024-06-10T19:00:00Z"},
						{"start": "2024-06-10T16:30:00Z", "end": "2024-06-10T17:00:00Z"}
					]
				}
			}
		}`))
	})

	timeMin, timeMax := testWindow()
	busy, err := svc.QueryFreeBusy(context.Background(), "ya29.token", timeMin, timeMax, "")
	if err != nil {
		t.Fatalf("QueryFreeBusy failed: %v", err)
	}

	if gotAuth != "Bearer ya29.token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["timeMin"] != "2024-06-10T09:00:00-07:00" || gotBody["timeMax"] != "2024-06-10T17:00:00-07:00" {
		t.Errorf("unexpected range %v - %v", gotBody["timeMin"], gotBody["timeMax"])
	}
	items, _ := gotBody["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["id"] != "primary" {
		t.Errorf("unexpected items %v", gotBody["items"])
	}

	if len(busy) != 2 {
		t.Fatalf("expected 2 busy intervals, got %d", len(busy))
	}
	// Provider order is preserved here; sorting is the reporter's job.
	want := time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC)
	if !busy[0].Start.Equal(want) || busy[0].Start.Location() != time.UTC {
		t.Errorf("busy[0].Start = %v", busy[0].Start)
	}
}

func TestQueryFreeBusyEmpty(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"calendars": {"primary": {"busy": []}}}`))
	})

	timeMin, timeMax := testWindow()
	busy, err := svc.QueryFreeBusy(context.Background(), "tok", timeMin, timeMax, PrimaryCalendarID)
	if err != nil {
		t.Fatalf("QueryFreeBusy failed: %v", err)
	}
	if len(busy) != 0 {
		t.Errorf("expected no busy intervals, got %v", busy)
	}
}

func TestQueryFreeBusyErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "insufficient scope",
			status:     http.StatusForbidden,
			body:       `{"error": {"code": 403, "message": "Request had insufficient authentication scopes.", "errors": [{"reason": "insufficientPermissions"}]}}`,
			wantStatus: 403,
			wantMsg:    "Google Calendar API error: 403 Request had insufficient authentication scopes.",
		},
		{
			name:       "expired token",
			status:     http.StatusUnauthorized,
			body:       `{"error": {"code": 401, "message": "Invalid Credentials"}}`,
			wantStatus: 401,
			wantMsg:    "Google Calendar API error: 401 Invalid Credentials",
		},
		{
			name:       "calendar level error",
			status:     http.StatusOK,
			body:       `{"calendars": {"primary": {"errors": [{"domain": "global", "reason": "notFound"}]}}}`,
			wantStatus: 0,
			wantMsg:    "Google Calendar API error: notFound",
		},
		{
			name:       "error without message",
			status:     http.StatusNotFound,
			body:       `{"error": {"code": 404}}`,
			wantStatus: 404,
			wantMsg:    "Google Calendar API error: 404 Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			timeMin, timeMax := testWindow()
			_, err := svc.QueryFreeBusy(context.Background(), "tok", timeMin, timeMax, "")

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantStatus)
			}
			if apiErr.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", apiErr.Error(), tt.wantMsg)
			}
		})
	}
}

func TestQueryFreeBusyTimeout(t *testing.T) {
	release := make(chan struct{})
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	timeMin, timeMax := testWindow()
	_, err := svc.QueryFreeBusy(ctx, "tok", timeMin, timeMax, "")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if !apiErr.Timeout() {
		t.Errorf("expected timeout, got %v", apiErr)
	}
}

func TestQueryFreeBusyMalformedTimes(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"calendars": {"primary": {"busy": [{"start": "yesterday", "end": "today"}]}}}`))
	})

	timeMin, timeMax := testWindow()
	_, err := svc.QueryFreeBusy(context.Background(), "tok", timeMin, timeMax, "")
	if err == nil {
		t.Fatal("expected parse error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("parse failure should not be an APIError: %v", err)
	}
}
