package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/focusblock/internal/database"
	"github.com/dukerupert/focusblock/internal/logging"
	"github.com/dukerupert/focusblock/internal/maintenance"
	"github.com/dukerupert/focusblock/internal/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := logging.SetupFormat(cfg.LogLevel, cfg.LogFormat)

			db, err := database.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			srv := server.New(db, server.Options{
				RateLimit:      cfg.RateLimit,
				RatePeriod:     cfg.RatePeriod,
				AllowedOrigins: cfg.AllowedOrigins,
			}, logger)

			sched := maintenance.NewScheduler(logger)
			if err := sched.Add("purge_sessions", cfg.CleanupCron, maintenance.PurgeSessions(srv.SessionStore())); err != nil {
				return err
			}
			if err := sched.Add("prune_rate_limits", cfg.CleanupCron, maintenance.Prune(srv.RateLimiter())); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Housekeeping runs once at startup; backups wait for their schedule.
			sched.RunAll(ctx)
			if cfg.Backup.Cron != "" {
				backups, err := newBackupManager(cfg, db, logger)
				if err != nil {
					return err
				}
				if err := sched.Add("backup", cfg.Backup.Cron, backups.RunAndPrune); err != nil {
					return err
				}
			}
			sched.Start()
			defer sched.Stop()

			httpServer := &http.Server{
				Addr:         cfg.Addr(),
				Handler:      srv.Router(),
				ReadTimeout:  5 * time.Second,
				WriteTimeout: 10 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("focusblock listening", "addr", cfg.Addr(), "db", cfg.DBPath, "version", version)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}
