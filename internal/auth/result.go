package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Error codes reported in Result.Error for failures detected locally. Codes
// returned by the provider are passed through unchanged.
const (
	ErrCodeInvalidRequest      = "invalid_request"
	ErrCodeMissingTransaction  = "missing_transaction"
	ErrCodeInvalidState        = "invalid_state"
	ErrCodeInvalidIDToken      = "invalid_id_token"
	ErrCodeTokenExchangeFailed = "token_exchange_failed"
)

// Result is the outcome of completing an interactive login.
type Result struct {
	Error            string
	ErrorDescription string
	User             User
	Tokens           Tokens
}

// Failed reports whether the provider or the exchange reported an error.
func (r *Result) Failed() bool {
	return r.Error != ""
}

// User holds the ID token claims the application reads.
type User struct {
	Sub        string     `json:"sub"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Picture    string     `json:"picture,omitempty"`
	Identities []Identity `json:"identities,omitempty"`
}

// Identity is one linked upstream account. AccessToken is only present when
// the connection stores the upstream token (token vault).
type Identity struct {
	Provider    string `json:"provider"`
	Connection  string `json:"connection"`
	UserID      UserID `json:"user_id"`
	IsSocial    bool   `json:"isSocial"`
	AccessToken string `json:"access_token,omitempty"`
}

// UserID is an upstream account id. Some connections emit it as a JSON
// number, others as a string.
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*u = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user_id must be a string or number: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

// Tokens are the identity provider's own tokens for the session.
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	Expiry       time.Time
}

func failure(code, description string) *Result {
	return &Result{Error: code, ErrorDescription: description}
}
