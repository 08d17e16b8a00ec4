package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gcs/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "gcs",
		Short:         "Gcs serves record and attachment CRUD for a declarative service definition",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&cfg.Env, "env", cfg.Env, "environment code")

	cmd.AddCommand(
		newSrvCmd(cfg),
		newConfigCmd(cfg),
		newRegistryCmd(cfg, &jsonOutput),
		newGCCmd(cfg, &jsonOutput),
		newUserCmd(cfg),
		newInfoCmd(cfg, &jsonOutput),
		newListCmd(cfg, &jsonOutput),
		newGetCmd(cfg, &jsonOutput),
		newAddCmd(cfg, &jsonOutput),
		newUpdateCmd(cfg, &jsonOutput),
		newDeleteCmd(cfg, &jsonOutput),
		newUploadCmd(cfg, &jsonOutput),
		newDownloadCmd(cfg),
		newDeleteFileCmd(cfg, &jsonOutput),
	)

	return cmd
}
