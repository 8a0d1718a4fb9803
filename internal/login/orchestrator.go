// Package login sequences the interactive login and the availability check
// that follows a successful callback.
package login

import (
	"context"

	"github.com/bnema/nextday-freebusy/internal/auth"
	"github.com/bnema/nextday-freebusy/internal/availability"
	"github.com/bnema/nextday-freebusy/internal/logger"
	"github.com/bnema/nextday-freebusy/internal/timewindow"
)

// ErrCodeServerError is reported when the delegate fails for reasons other
// than the user or the provider (store, network).
const ErrCodeServerError = "server_error"

const serverErrorDescription = "The login could not be completed. Please try again."

// Delegate is the identity provider client.
type Delegate interface {
	StartInteractiveLogin(ctx context.Context) (string, error)
	CompleteInteractiveLogin(ctx context.Context, callbackURL string) (*auth.Result, error)
}

// AvailabilityChecker produces a report for a delegated access token.
type AvailabilityChecker interface {
	Get(ctx context.Context, accessToken, tzID string) availability.Report
}

// State is a step of the login flow.
type State int

const (
	AwaitingLogin State = iota
	CallbackReceived
	LoginFailed
	LoginSucceeded
)

func (s State) String() string {
	switch s {
	case AwaitingLogin:
		return "awaiting_login"
	case CallbackReceived:
		return "callback_received"
	case LoginFailed:
		return "login_failed"
	case LoginSucceeded:
		return "login_succeeded"
	default:
		return "unknown"
	}
}

// Start is the result of beginning a login.
type Start struct {
	State    State
	LoginURL string
}

// Outcome is the terminal result of a callback.
type Outcome struct {
	State State

	Error            string
	ErrorDescription string

	DisplayName string
	// MissingToken is set when the login succeeded without a delegated
	// calendar token; Report is nil then.
	MissingToken bool
	Report       *availability.Report
}

// Orchestrator drives one login per request; it holds no per-flow state.
type Orchestrator struct {
	delegate Delegate
	checker  AvailabilityChecker
	timezone string
}

// New returns an Orchestrator checking availability in timezone. An empty
// timezone means timewindow.DefaultTimezone.
func New(delegate Delegate, checker AvailabilityChecker, timezone string) *Orchestrator {
	if timezone == "" {
		timezone = timewindow.DefaultTimezone
	}
	return &Orchestrator{delegate: delegate, checker: checker, timezone: timezone}
}

// Timezone returns the zone availability is checked in.
func (o *Orchestrator) Timezone() string {
	return o.timezone
}

// Begin asks the delegate for the provider login URL.
func (o *Orchestrator) Begin(ctx context.Context) (Start, error) {
	u, err := o.delegate.StartInteractiveLogin(ctx)
	if err != nil {
		return Start{}, err
	}
	return Start{State: AwaitingLogin, LoginURL: u}, nil
}

// Complete finishes the login for the full callback URL and, when the user
// has a delegated token, checks their availability.
func (o *Orchestrator) Complete(ctx context.Context, callbackURL string) Outcome {
	logger.Debug("login callback received", "state", CallbackReceived.String())

	result, err := o.delegate.CompleteInteractiveLogin(ctx, callbackURL)
	if err != nil {
		logger.Error("login completion failed", "error", err)
		return Outcome{State: LoginFailed, Error: ErrCodeServerError, ErrorDescription: serverErrorDescription}
	}
	if result.Failed() {
		logger.Info("login failed", "error", result.Error, "description", result.ErrorDescription)
		return Outcome{State: LoginFailed, Error: result.Error, ErrorDescription: result.ErrorDescription}
	}

	out := Outcome{
		State:       LoginSucceeded,
		DisplayName: DisplayName(result.User),
	}

	token := DelegatedToken(result.User)
	if token == "" {
		logger.Warn("no delegated calendar token on identity", "sub", result.User.Sub)
		out.MissingToken = true
		return out
	}

	report := o.checker.Get(ctx, token, o.timezone)
	out.Report = &report
	return out
}

// DisplayName prefers the name claim, then the email, then "N/A".
func DisplayName(u auth.User) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return "N/A"
	}
}

// DelegatedToken returns the upstream access token of the first linked
// identity, or "" when there is none.
func DelegatedToken(u auth.User) string {
	if len(u.Identities) == 0 {
		return ""
	}
	return u.Identities[0].AccessToken
}
