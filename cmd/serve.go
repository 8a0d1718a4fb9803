package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bnema/nextday-freebusy/internal/auth"
	"github.com/bnema/nextday-freebusy/internal/auth/store"
	"github.com/bnema/nextday-freebusy/internal/availability"
	"github.com/bnema/nextday-freebusy/internal/calendar"
	"github.com/bnema/nextday-freebusy/internal/config"
	"github.com/bnema/nextday-freebusy/internal/logger"
	"github.com/bnema/nextday-freebusy/internal/login"
	"github.com/bnema/nextday-freebusy/internal/telemetry"
	"github.com/bnema/nextday-freebusy/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the login and availability web server",
	Long: `Start the HTTP server. Open the base URL in a browser, log in with Google
and the next working day's busy slots are shown.

Required environment:
  AUTH0_DOMAIN, AUTH0_CLIENT_ID, AUTH0_CLIENT_SECRET, AUTH0_SECRET, APP_BASE_URL

The identity provider must allow {APP_BASE_URL}/auth/callback as a callback URL.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.Endpoint,
		Insecure:     cfg.Telemetry.Insecure,
		SampleRatio:  cfg.Telemetry.SamplingRatio,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	transactions, closeStore, err := newTransactionStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	authClient, err := auth.New(auth.Config{
		Domain:         cfg.Auth0.Domain,
		ClientID:       cfg.Auth0.ClientID,
		ClientSecret:   cfg.Auth0.ClientSecret,
		Secret:         cfg.Auth0.Secret,
		RedirectURL:    cfg.CallbackURL(),
		Connection:     cfg.Auth0.Connection,
		TransactionTTL: cfg.Auth0.TransactionTTL,
		HTTPClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		},
	}, transactions)
	if err != nil {
		return fmt.Errorf("failed to create auth client: %w", err)
	}

	reporter := availability.New(calendar.NewService(),
		availability.WithTimeout(cfg.Calendar.Timeout),
		availability.WithHours(cfg.Calendar.Hours()),
		availability.WithCalendarID(cfg.Calendar.CalendarID),
	)
	orchestrator := login.New(authClient, reporter, cfg.Calendar.Timezone)

	site, err := web.New(orchestrator, cfg.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	server := newHTTPServer(cfg.ListenAddr(), site.Handler())

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"version", version,
			"addr", server.Addr,
			"base_url", cfg.Server.BaseURL,
			"callback_url", site.CallbackURL(),
			"timezone", orchestrator.Timezone(),
			"store", cfg.Store.Backend,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Open %s/ in your browser to log in.\n", cfg.Server.BaseURL)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: handler,

		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// newTransactionStore builds the login transaction store selected in cfg.
// The returned func releases it.
func newTransactionStore(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Backend {
	case config.StoreRedis:
		rs, err := store.NewRedis(cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis store: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rs.Ping(pingCtx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis is not reachable: %w", err)
		}

		logger.Info("using redis transaction store", "prefix", cfg.Prefix)
		return rs, func() {
			if err := rs.Close(); err != nil {
				logger.Warn("failed to close redis", "error", err)
			}
		}, nil
	default:
		logger.Info("using in-memory transaction store")
		return store.NewMemory(), func() {}, nil
	}
}
