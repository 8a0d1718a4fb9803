// Package web serves the login and availability pages.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bnema/nextday-freebusy/internal/auth"
	"github.com/bnema/nextday-freebusy/internal/login"
	"github.com/bnema/nextday-freebusy/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	contentTypeHTML = "text/html; charset=utf-8"
	callbackPath    = "/auth/callback"
)

const fallbackPage = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Error</title></head>
<body><h2>Something went wrong</h2><p>The page could not be rendered. Please try again.</p></body></html>`

// Flow is the login sequence the pages drive.
type Flow interface {
	Begin(ctx context.Context) (login.Start, error)
	Complete(ctx context.Context, callbackURL string) login.Outcome
}

// Server renders the HTML surface of the application.
type Server struct {
	flow      Flow
	baseURL   string
	https     bool
	templates *template.Template
	logger    *slog.Logger
}

type errorPage struct {
	Error            string
	ErrorDescription string
	RetryURL         string
}

type successPage struct {
	login.Outcome
	Scope string
}

// New parses the embedded templates. baseURL is the externally visible
// origin (APP_BASE_URL) used to rebuild the callback URL.
func New(flow Flow, baseURL string) (*Server, error) {
	if flow == nil {
		return nil, errors.New("web: login flow is required")
	}
	if baseURL == "" {
		return nil, errors.New("web: base url is required")
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Server{
		flow:      flow,
		baseURL:   strings.TrimRight(baseURL, "/"),
		https:     strings.HasPrefix(baseURL, "https://"),
		templates: templates,
		logger:    logger.With("component", "web"),
	}, nil
}

// CallbackURL returns the redirect URI registered with the provider.
func (s *Server) CallbackURL() string {
	return s.baseURL + callbackPath
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", withMiddleware(
		s.handleHealth,
		noCache(),
	))

	mux.HandleFunc("GET /{$}", withMiddleware(
		s.handleRoot,
		requestID(),
		requestLogger(s.logger),
		securityHeaders(s.https),
	))

	mux.HandleFunc("GET "+callbackPath, withMiddleware(
		s.handleCallback,
		requestID(),
		requestLogger(s.logger),
		securityHeaders(s.https),
	))

	return otelhttp.NewHandler(mux, "nextday-freebusy",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	start, err := s.flow.Begin(r.Context())
	if err != nil {
		s.logger.Error("failed to start login", "error", err, "request_id", RequestIDFromContext(r.Context()))
		s.render(w, http.StatusOK, "login_error.html", errorPage{
			Error:            login.ErrCodeServerError,
			ErrorDescription: "The login could not be started. Please try again later.",
			RetryURL:         "/",
		})
		return
	}

	s.render(w, http.StatusOK, "login.html", start)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	out := s.flow.Complete(r.Context(), s.baseURL+r.URL.RequestURI())

	if out.State == login.LoginFailed {
		s.render(w, http.StatusOK, "login_error.html", errorPage{
			Error:            out.Error,
			ErrorDescription: out.ErrorDescription,
			RetryURL:         "/",
		})
		return
	}

	s.render(w, http.StatusOK, "success.html", successPage{
		Outcome: out,
		Scope:   auth.ScopeCalendarFreeBusy,
	})
}

// render executes into a buffer so a template failure never leaves a half
// written page behind.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("failed to execute template", "template", name, "error", err)
		w.Header().Set("Content-Type", contentTypeHTML)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fallbackPage))
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("failed to write response", "template", name, "error", err)
	}
}
