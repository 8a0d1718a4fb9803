package login

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bnema/nextday-freebusy/internal/auth"
	"github.com/bnema/nextday-freebusy/internal/availability"
)

type fakeDelegate struct {
	loginURL string
	startErr error

	result      *auth.Result
	completeErr error
	gotCallback string
}

func (f *fakeDelegate) StartInteractiveLogin(context.Context) (string, error) {
	return f.loginURL, f.startErr
}

func (f *fakeDelegate) CompleteInteractiveLogin(_ context.Context, callbackURL string) (*auth.Result, error) {
	f.gotCallback = callbackURL
	return f.result, f.completeErr
}

type fakeChecker struct {
	report   availability.Report
	calls    int
	gotToken string
	gotTZ    string
}

func (f *fakeChecker) Get(_ context.Context, token, tz string) availability.Report {
	f.calls++
	f.gotToken = token
	f.gotTZ = tz
	return f.report
}

func TestBegin(t *testing.T) {
	o := New(&fakeDelegate{loginURL: "https://tenant.auth0.com/authorize?x=1"}, &fakeChecker{}, "")

	start, err := o.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if start.State != AwaitingLogin || start.LoginURL != "https://tenant.auth0.com/authorize?x=1" {
		t.Errorf("unexpected start %+v", start)
	}
	if o.Timezone() != "America/Los_Angeles" {
		t.Errorf("default timezone = %q", o.Timezone())
	}

	failing := New(&fakeDelegate{startErr: errors.New("store down")}, &fakeChecker{}, "UTC")
	if _, err := failing.Begin(context.Background()); err == nil {
		t.Error("expected Begin to return the delegate error")
	}
}

func TestComplete(t *testing.T) {
	tests := []struct {
		name        string
		delegate    *fakeDelegate
		wantState   State
		wantError   string
		wantName    string
		wantMissing bool
		wantCalls   int
	}{
		{
			name: "provider error is passed through",
			delegate: &fakeDelegate{result: &auth.Result{
				Error: "access_denied", ErrorDescription: "User cancelled",
			}},
			wantState: LoginFailed,
			wantError: "access_denied",
		},
		{
			name:      "delegate failure becomes server_error",
			delegate:  &fakeDelegate{completeErr: errors.New("redis: connection refused")},
			wantState: LoginFailed,
			wantError: ErrCodeServerError,
		},
		{
			name: "no identities means missing token",
			delegate: &fakeDelegate{result: &auth.Result{
				User: auth.User{Email: "grace@example.com"},
			}},
			wantState:   LoginSucceeded,
			wantName:    "grace@example.com",
			wantMissing: true,
		},
		{
			name: "identity without token means missing token",
			delegate: &fakeDelegate{result: &auth.Result{
				User: auth.User{Identities: []auth.Identity{{Provider: "google-oauth2"}}},
			}},
			wantState:   LoginSucceeded,
			wantName:    "N/A",
			wantMissing: true,
		},
		{
			name: "token triggers availability",
			delegate: &fakeDelegate{result: &auth.Result{
				User: auth.User{
					Name:  "Ada Lovelace",
					Email: "ada@example.com",
					Identities: []auth.Identity{
						{Provider: "google-oauth2", AccessToken: "ya29.first"},
						{Provider: "github", AccessToken: "gho_second"},
					},
				},
			}},
			wantState: LoginSucceeded,
			wantName:  "Ada Lovelace",
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &fakeChecker{report: availability.Report{TargetDate: "Monday, June 10, 2024"}}
			o := New(tt.delegate, checker, "Europe/Paris")

			out := o.Complete(context.Background(), "http://127.0.0.1:3000/auth/callback?code=c&state=s")

			if tt.delegate.gotCallback != "http://127.0.0.1:3000/auth/callback?code=c&state=s" {
				t.Errorf("callback URL not passed through: %q", tt.delegate.gotCallback)
			}
			if out.State != tt.wantState {
				t.Errorf("State = %v, want %v", out.State, tt.wantState)
			}
			if out.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", out.Error, tt.wantError)
			}
			if out.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %q, want %q", out.DisplayName, tt.wantName)
			}
			if out.MissingToken != tt.wantMissing {
				t.Errorf("MissingToken = %v, want %v", out.MissingToken, tt.wantMissing)
			}
			if checker.calls != tt.wantCalls {
				t.Errorf("availability called %d times, want %d", checker.calls, tt.wantCalls)
			}
			if tt.wantCalls > 0 {
				if checker.gotToken != "ya29.first" || checker.gotTZ != "Europe/Paris" {
					t.Errorf("checker got token=%q tz=%q", checker.gotToken, checker.gotTZ)
				}
				if out.Report == nil || out.Report.TargetDate != "Monday, June 10, 2024" {
					t.Errorf("report not folded into outcome: %+v", out.Report)
				}
			} else if out.Report != nil {
				t.Errorf("unexpected report %+v", out.Report)
			}
		})
	}
}

func TestDelegateFailureHidesInternalError(t *testing.T) {
	o := New(&fakeDelegate{completeErr: errors.New("redis get: dial tcp 10.0.0.7:6379: connection refused")}, &fakeChecker{}, "UTC")

	out := o.Complete(context.Background(), "http://127.0.0.1:3000/auth/callback?code=c&state=s")
	if out.Error != ErrCodeServerError {
		t.Fatalf("Error = %q, want %q", out.Error, ErrCodeServerError)
	}
	if out.ErrorDescription == "" {
		t.Error("expected a description for the error page")
	}
	if strings.Contains(out.ErrorDescription, "redis") || strings.Contains(out.ErrorDescription, "10.0.0.7") {
		t.Errorf("internal error leaked into description: %q", out.ErrorDescription)
	}
}

func TestDelegateErrorDescriptionIsPreserved(t *testing.T) {
	o := New(&fakeDelegate{result: &auth.Result{Error: "invalid_grant", ErrorDescription: "Invalid authorization code"}}, &fakeChecker{}, "UTC")

	out := o.Complete(context.Background(), "http://x/auth/callback")
	if out.ErrorDescription != "Invalid authorization code" {
		t.Errorf("ErrorDescription = %q", out.ErrorDescription)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		AwaitingLogin:    "awaiting_login",
		CallbackReceived: "callback_received",
		LoginFailed:      "login_failed",
		LoginSucceeded:   "login_succeeded",
		State(42):        "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
