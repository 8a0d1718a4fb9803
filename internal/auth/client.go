// Package auth drives the OIDC authorization-code flow against an Auth0
// tenant: it builds the login URL, keeps the pending transaction in a Store
// and completes the code exchange on callback.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/bnema/nextday-freebusy/internal/auth/store"
	"github.com/bnema/nextday-freebusy/internal/logger"
	"github.com/bnema/nextday-freebusy/internal/security"
)

const (
	// ScopeCalendarFreeBusy is requested from Google through the connection.
	ScopeCalendarFreeBusy = "https://www.googleapis.com/auth/calendar.freebusy"

	// DefaultConnection is the Auth0 connection used for social login.
	DefaultConnection = "google-oauth2"

	defaultTransactionTTL = 10 * time.Minute
)

// DefaultScopes are the OIDC scopes requested from the tenant.
var DefaultScopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}

// Config configures a Client.
type Config struct {
	// Domain is the tenant host ("tenant.eu.auth0.com") or a full base URL.
	Domain       string
	ClientID     string
	ClientSecret string
	// Secret is the session-signing secret used to seal transactions.
	Secret      string
	RedirectURL string

	Scopes          []string
	Connection      string
	ConnectionScope string

	TransactionTTL time.Duration

	// HTTPClient is used for token and JWKS requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// KeySet overrides the remote JWKS, for tests.
	KeySet oidc.KeySet
	// Now overrides the clock used for ID token expiry checks.
	Now func() time.Time
}

// Client is the identity delegate. It is safe for concurrent use as long as
// its Store is.
type Client struct {
	oauth          *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	store          store.Store
	sealer         *security.Sealer
	authParams     []oauth2.AuthCodeOption
	transactionTTL time.Duration
	httpClient     *http.Client
	logger         *slog.Logger
}

// BaseURL normalizes a tenant domain into an https base URL without a
// trailing slash. Values that already carry a scheme are kept as is.
func BaseURL(domain string) string {
	d := strings.TrimSpace(domain)
	if !strings.Contains(d, "://") {
		d = "https://" + d
	}
	return strings.TrimRight(d, "/")
}

// New builds a Client. It does not contact the provider; keys are fetched
// on the first ID token verification.
func New(cfg Config, st store.Store) (*Client, error) {
	if cfg.Domain == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("auth: domain, client id and client secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("auth: redirect url is required")
	}
	if st == nil {
		return nil, errors.New("auth: transaction store is required")
	}

	sealer, err := security.NewSealer(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	base := BaseURL(cfg.Domain)
	issuer := base + "/"

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	keySet := cfg.KeySet
	if keySet == nil {
		keySet = oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), httpClient), base+"/.well-known/jwks.json")
	}

	verifier := oidc.NewVerifier(issuer, keySet, &oidc.Config{
		ClientID: cfg.ClientID,
		Now:      cfg.Now,
	})

	connection := cfg.Connection
	if connection == "" {
		connection = DefaultConnection
	}
	connectionScope := cfg.ConnectionScope
	if connectionScope == "" {
		connectionScope = ScopeCalendarFreeBusy
	}

	ttl := cfg.TransactionTTL
	if ttl <= 0 {
		ttl = defaultTransactionTTL
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/authorize",
				TokenURL:  base + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		verifier: verifier,
		store:    st,
		sealer:   sealer,
		authParams: []oauth2.AuthCodeOption{
			oauth2.SetAuthURLParam("connection", connection),
			oauth2.SetAuthURLParam("connection_scope", connectionScope),
		},
		transactionTTL: ttl,
		httpClient:     httpClient,
		logger:         logger.With("component", "auth"),
	}, nil
}

// StartInteractiveLogin records a new pending transaction and returns the
// provider URL the user should be sent to.
func (c *Client) StartInteractiveLogin(ctx context.Context) (string, error) {
	state, err := security.GenerateToken(32)
	if err != nil {
		return "", err
	}
	nonce, err := security.GenerateToken(32)
	if err != nil {
		return "", err
	}

	txn := &transaction{
		State:        state,
		Nonce:        nonce,
		CodeVerifier: oauth2.GenerateVerifier(),
		RedirectURI:  c.oauth.RedirectURL,
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.saveTransaction(ctx, txn); err != nil {
		return "", err
	}

	opts := append([]oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(txn.CodeVerifier),
		oidc.Nonce(nonce),
	}, c.authParams...)

	c.logger.Debug("login transaction started", "state", security.Mask(state))
	return c.oauth.AuthCodeURL(state, opts...), nil
}

// CompleteInteractiveLogin finishes the flow for the full callback URL,
// query string included. Provider-reported and verification failures are
// returned in Result.Error; the error return is reserved for infrastructure
// failures (store, network).
func (c *Client) CompleteInteractiveLogin(ctx context.Context, callbackURL string) (*Result, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("invalid callback url: %w", err)
	}
	q := u.Query()
	state := q.Get("state")

	if code := q.Get("error"); code != "" {
		c.forgetTransaction(ctx, state)
		c.logger.Info("provider reported login error", "error", code)
		return failure(code, q.Get("error_description")), nil
	}

	code := q.Get("code")
	if code == "" || state == "" {
		return failure(ErrCodeInvalidRequest, "The callback is missing the authorization code or state."), nil
	}

	txn, err := c.takeTransaction(ctx, state)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return failure(ErrCodeMissingTransaction, "The login transaction was not found or has expired. Please start again."), nil
	case errors.Is(err, errTransactionMismatch):
		return failure(ErrCodeInvalidState, "The state parameter does not match the login transaction."), nil
	case err != nil:
		var cryptoErr *security.CryptoError
		if errors.As(err, &cryptoErr) {
			c.logger.Warn("login transaction could not be opened", "error", err)
			return failure(ErrCodeInvalidState, "The login transaction could not be verified."), nil
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.oauth.Exchange(ctx, code,
		oauth2.VerifierOption(txn.CodeVerifier),
		oauth2.SetAuthURLParam("redirect_uri", txn.RedirectURI),
	)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			c.logger.Warn("token exchange rejected", "error_code", retrieveErr.ErrorCode, "status", retrieveStatus(retrieveErr))
			if retrieveErr.ErrorCode != "" {
				return failure(retrieveErr.ErrorCode, retrieveErr.ErrorDescription), nil
			}
			return failure(ErrCodeTokenExchangeFailed, fmt.Sprintf("token endpoint returned status %d", retrieveStatus(retrieveErr))), nil
		}
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return failure(ErrCodeInvalidIDToken, "The token response did not include an ID token."), nil
	}

	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		c.logger.Warn("id token verification failed", "error", err)
		return failure(ErrCodeInvalidIDToken, err.Error()), nil
	}
	if idToken.Nonce != txn.Nonce {
		return failure(ErrCodeInvalidState, "The ID token nonce does not match the login transaction."), nil
	}

	var user User
	if err := idToken.Claims(&user); err != nil {
		return failure(ErrCodeInvalidIDToken, fmt.Sprintf("failed to decode ID token claims: %v", err)), nil
	}

	c.logger.Info("login completed", "sub", user.Sub, "identities", len(user.Identities))

	return &Result{
		User: user,
		Tokens: Tokens{
			AccessToken:  token.AccessToken,
			IDToken:      rawIDToken,
			RefreshToken: token.RefreshToken,
			Expiry:       token.Expiry,
		},
	}, nil
}

func retrieveStatus(err *oauth2.RetrieveError) int {
	if err.Response == nil {
		return 0
	}
	return err.Response.StatusCode
}
