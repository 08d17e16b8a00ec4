package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gcs/internal/config"
	"gcs/internal/registry"
)

func newRegistryCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the bolt environment registry",
	}

	cmd.AddCommand(newRegistryImportCmd(cfg, jsonOutput))
	cmd.AddCommand(newRegistryShowCmd(cfg, jsonOutput))
	cmd.AddCommand(newRegistryListCmd(cfg, jsonOutput))
	cmd.AddCommand(newRegistryRemoveCmd(cfg))
	return cmd
}

func withBoltRegistry(cfg *config.Config, fn func(*registry.BoltLookup) error) error {
	lookup, err := registry.OpenBolt(boltRegistryPath(cfg))
	if err != nil {
		return err
	}
	defer lookup.Close()
	return fn(lookup)
}

func newRegistryImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Store every environment of a registry file",
		Args:  requireExactlyArgs(1, "registry file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := registry.LoadFile(args[0])
			if err != nil {
				return err
			}
			return withBoltRegistry(cfg, func(lookup *registry.BoltLookup) error {
				count, err := lookup.Import(cmd.Context(), doc)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(map[string]any{"imported": count, "codes": doc.Codes()})
				}
				return writePlain("imported %d environment(s) into %s\n", count, boltRegistryPath(cfg))
			})
		},
	}
}

func newRegistryShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <ENV>",
		Short: "Print one environment",
		Args:  requireExactlyArgs(1, "environment code is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoltRegistry(cfg, func(lookup *registry.BoltLookup) error {
				env, err := lookup.Environment(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if env == nil {
					return fmt.Errorf("environment %s is not registered", registry.NormalizeCode(args[0]))
				}
				if *jsonOutput {
					return writeJSON(env)
				}
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				if err := enc.Encode(env); err != nil {
					return err
				}
				return enc.Close()
			})
		},
	}
}

func newRegistryListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered environment codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoltRegistry(cfg, func(lookup *registry.BoltLookup) error {
				codes, err := lookup.Codes(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(codes)
				}
				for _, code := range codes {
					if err := writePlain("%s\n", code); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newRegistryRemoveCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <ENV>",
		Short: "Remove one environment",
		Args:  requireExactlyArgs(1, "environment code is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBoltRegistry(cfg, func(lookup *registry.BoltLookup) error {
				return lookup.Delete(cmd.Context(), args[0])
			})
		},
	}
}
