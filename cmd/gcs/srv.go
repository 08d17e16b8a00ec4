package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gcs/internal/attachments"
	"gcs/internal/auth"
	"gcs/internal/config"
	"gcs/internal/pipeline"
	"gcs/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the gcs API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			authenticator, err := newAuthenticator(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("loading service", "file", cfg.ServiceFile)
			rt, err := buildRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					logger.Warn("shutdown", "error", err)
				}
			}()

			if cfg.Sweep.Interval.Duration > 0 {
				go runSweeps(ctx, rt, cfg.Sweep.Interval.Duration, cfg.Sweep.MinAge.Duration, logger.With("component", "sweep"))
			}

			srv := server.New(addr, rt.engine, server.Options{
				Auth:              authenticator,
				Logger:            logger,
				UploadMaxBytes:    cfg.Uploads.MaxBytes,
				UploadConcurrency: cfg.Uploads.Concurrency,
			})
			logger.Info("listening", "addr", addr, "service", rt.def.ServiceName, "environments", rt.def.Environments())
			return srv.ListenAndServe(ctx)
		},
	}
}

func newAuthenticator(cfg *config.Config) (*auth.Authenticator, error) {
	var users []auth.User
	if cfg.Auth.UsersFile != "" {
		loaded, err := auth.LoadUsers(cfg.Auth.UsersFile)
		if err != nil {
			return nil, err
		}
		users = loaded
	}
	return auth.NewAuthenticator(users, cfg.Auth.TrustHeaders)
}

// runSweeps reconciles orphan blobs of every environment whose database does
// not depend on a tenant, until ctx is done.
func runSweeps(ctx context.Context, rt *runtime, interval, minAge time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, env := range rt.def.Environments() {
			if rt.resolver.TenantSpecific(env) {
				continue
			}
			result, err := rt.engine.Sweep(ctx, pipeline.FileRequest{Env: env}, attachments.SweepOptions{MinAge: minAge})
			if err != nil {
				logger.Error("sweep failed", "env", env, "error", err)
				continue
			}
			logger.Info("sweep finished", "env", env,
				"candidates", result.CandidateCount,
				"deleted", result.DeletedCount,
				"failed", result.FailedCount,
				"reclaimed_bytes", result.ReclaimedBytes)
		}
	}
}
