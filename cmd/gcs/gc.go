package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gcs/internal/attachments"
	"gcs/internal/config"
	"gcs/internal/models"
	"gcs/internal/pipeline"
)

func newGCCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		tenant string
		dryRun bool
		minAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove blobs no record references any more",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(cfg.Env) == "" {
				return fmt.Errorf("--env is required")
			}
			if minAge < 0 {
				return fmt.Errorf("--min-age must be >= 0")
			}

			logger := slog.Default().With("component", "gc")
			rt, err := buildRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			req := pipeline.FileRequest{Env: cfg.Env}
			if tenant != "" {
				req.Principal = &models.Principal{TenantCode: tenant}
			}
			result, err := rt.engine.Sweep(cmd.Context(), req, attachments.SweepOptions{MinAge: minAge, DryRun: dryRun})
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(result)
			}
			return writeSweepResult(result)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant code for tenant-specific databases")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting them")
	cmd.Flags().DurationVar(&minAge, "min-age", cfg.Sweep.MinAge.Duration, "skip blobs uploaded more recently than this")
	return cmd
}
