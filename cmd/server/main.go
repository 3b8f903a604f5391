package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/roomledger/internal/auth"
	"github.com/mmynk/roomledger/internal/config"
	"github.com/mmynk/roomledger/internal/lifecycle"
	"github.com/mmynk/roomledger/internal/metrics"
	"github.com/mmynk/roomledger/internal/middleware"
	"github.com/mmynk/roomledger/internal/notify"
	"github.com/mmynk/roomledger/internal/service"
	"github.com/mmynk/roomledger/internal/storage"
	"github.com/mmynk/roomledger/internal/storage/postgres"
	"github.com/mmynk/roomledger/internal/storage/sqlite"
	"github.com/mmynk/roomledger/pkg/api"
	"github.com/mmynk/roomledger/pkg/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.SetupWith(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "driver", cfg.DBDriver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	dispatcher := notify.NewDispatcher(notify.NewStoreNotifier(store), newMailer(cfg, logger), m, logger)
	engine := lifecycle.New(store,
		lifecycle.WithDispatcher(dispatcher),
		lifecycle.WithMetrics(m),
		lifecycle.WithLogger(logger),
	)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store, auth.WithAppAdmins(cfg.AppAdminEmails))

	logged := connect.WithInterceptors(middleware.LoggingInterceptor(logger))
	authed := connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor(logger))

	mux := http.NewServeMux()
	mux.Handle(api.NewAuthServiceHandler(service.NewAuthService(authenticator, jwtManager, logger), logged))
	mux.Handle(api.NewRoomServiceHandler(service.NewRoomService(engine, logger), authed))
	mux.Handle(api.NewCycleServiceHandler(service.NewCycleService(engine, logger), authed))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	handler := h2c.NewHandler(loggingMiddleware(logger, corsMiddleware(mux)), &http2.Server{})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.New(cfg.DatabaseURL)
	default:
		return sqlite.New(cfg.DBPath)
	}
}

func newMailer(cfg *config.Config, logger *slog.Logger) notify.Mailer {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
		return notify.NewLogMailer(logger)
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}

// loggingMiddleware logs requests outside the RPC surface; RPCs are logged by
// the Connect interceptor.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.IsAPIPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
