package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/forage-sim/internal/api"
	"github.com/talgya/forage-sim/internal/logging"
	"github.com/talgya/forage-sim/internal/persistence"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			addr, _ := cmd.Flags().GetString("addr")
			level, _ := cmd.Flags().GetString("log-level")
			if err := logging.Setup(level, "auto"); err != nil {
				return err
			}

			db, err := persistence.Open(dbPath)
			if err != nil {
				return fmt.Errorf("opening run database: %w", err)
			}
			defer db.Close()

			srv := api.NewServer(db, nil, addr).Start()
			waitForSignal()
			return shutdown(srv)
		},
	}
	cmd.Flags().String("db", "runs.db", "SQLite run database")
	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}

// waitForSignal blocks until SIGINT or SIGTERM.
func waitForSignal() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	slog.Info("serving, press Ctrl-C to stop")
	<-ctx.Done()
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down HTTP server: %w", err)
	}
	slog.Info("HTTP API stopped")
	return nil
}
