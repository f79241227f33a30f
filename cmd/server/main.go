/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the GP practice ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve          Start the HTTP server
  token          Mint a bearer token for an address (needs JWT_SECRET)
  refund-policy  Print the effective refund policy as JSON

STARTUP SEQUENCE (serve):
  1. Load configuration (environment, .env)
  2. Initialize SQLite store
  3. Connect the event/payout publisher (RabbitMQ, or the log fallback)
  4. Create the engine (bootstraps the admin on a new database)
  5. Configure HTTP router
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close publisher and database connection
  4. Exit

ENVIRONMENT:
  See config/config.go. ADMIN_ADDRESS is required.

EXAMPLES:
  ADMIN_ADDRESS=0xadmin gp-server serve
  JWT_SECRET=... gp-server token --address 0xpatient --ttl 24h

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/warp/gp-ledger/api"
	"github.com/warp/gp-ledger/config"
	"github.com/warp/gp-ledger/factory"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
	"github.com/warp/gp-ledger/mq"
	"github.com/warp/gp-ledger/notify"
	"github.com/warp/gp-ledger/store/sqlite"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gp-server",
		Short: "GP practice booking and escrow ledger",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(refundPolicyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an address",
		RunE: func(cmd *cobra.Command, args []string) error {
			address, _ := cmd.Flags().GetString("address")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if address == "" {
				return errors.New("--address is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := api.IssueToken([]byte(cfg.JWTSecret), generic.Address(address), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("address", "", "Caller address the token identifies")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func refundPolicyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refund-policy",
		Short: "Print the effective refund policy as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			policy, err := cfg.RefundPolicy()
			if err != nil {
				return err
			}
			if policy == nil {
				fmt.Println(factory.DefaultRefundPolicyJSON())
				return nil
			}
			b, err := json.MarshalIndent(factory.ToJSON(*policy), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger.Level(level)
}

// sink is where events and payout orders go.
type sink interface {
	gp.Notifier
	generic.Payments
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg)

	refunds, err := cfg.RefundPolicy()
	if err != nil {
		return err
	}
	funding, err := cfg.Funding()
	if err != nil {
		return err
	}

	// Initialize store
	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Events and payouts
	var out sink = notify.NewLog(logger)
	if cfg.RabbitURL != "" {
		pub, err := mq.NewPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		out = pub
		logger.Info().Str("exchange", cfg.EventsExchange).Msg("publishing to rabbitmq")
	} else {
		logger.Warn().Msg("RABBIT_URL not set, events and payouts are only logged")
	}

	ctx := context.Background()
	engine, err := gp.New(ctx, store, gp.Options{
		Name:           cfg.PracticeName,
		Admin:          generic.Address(cfg.AdminAddress),
		AdminName:      cfg.AdminName,
		InitialFunding: funding,
		Payments:       out,
		Notifier:       out,
		Refunds:        refunds,
		Logger:         &logger,
	})
	if err != nil {
		return err
	}

	handler := api.NewHandler(engine, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		Auth: api.Auth{
			SigningKey:  []byte(cfg.JWTSecret),
			AllowHeader: cfg.IsDev(),
		},
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("practice", cfg.PracticeName).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}
