/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment)
  2. Initialize the logger
  3. Load reference data (tax brackets, withholding rules, settings)
  4. Initialize SQLite store
  5. Create the period manager and API handler
  6. Start server with graceful shutdown

CONFIGURATION:
  See config/config.go for every key. Flags override the environment:
  -env      Path of the .env file (default: .env)
  -port     HTTP server port
  -db       SQLite database path (":memory:" for a scratch database)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection

EXAMPLES:
  REFERENCE_DATA_PATH=./factory/testdata/reference.yaml ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	envFile := flag.String("env", ".env", "Path of the .env file")
	port := flag.Int("port", 0, "HTTP server port (overrides HTTP_PORT)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	flag.Parse()

	if err := run(*envFile, *port, *dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run(envFile string, port int, dbPath string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != 0 {
		cfg.HTTP.Port = port
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ref, err := factory.LoadReference(cfg.Reference.Path)
	if err != nil {
		return err
	}
	log.Info().
		Str("company", ref.Settings.Name).
		Str("frequency", string(ref.Settings.PayrollFrequency)).
		Ints("tax_years", ref.Table.Years()).
		Msg("reference data loaded")

	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	manager := payroll.NewManager(store, ref.Builder(),
		payroll.WithWorkers(cfg.Payroll.Workers),
		payroll.WithLogger(log.Component("payroll")),
	)
	handler := api.NewHandler(manager, ref, store, log.Component("api"))
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Log:         log.Component("http"),
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("db", cfg.DB.Path).Str("env", cfg.App.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
