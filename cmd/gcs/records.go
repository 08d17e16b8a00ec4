package main

import (
	"github.com/spf13/cobra"

	"gcs/internal/api"
	"gcs/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the service a server exposes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				info, err := client.Info(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(info)
				}
				return fieldsFormatter.Write(cmdOut(cmd), info)
			})
		},
	}
}

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				records, err := client.List(cmd.Context())
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(records)
				}
				return writeRecordList(records)
			})
		},
	}
}

func newGetCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one record with its attachments expanded",
		Args:  requireExactlyArgs(1, "id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				record, err := client.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(record)
				}
				if record == nil {
					return writePlain("no record %s\n", args[0])
				}
				return writeRecordDetail(*record)
			})
		},
	}
}

func newAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "add [key=value...]",
		Short: "Add a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args)
			if err != nil {
				return err
			}
			fields, err = mergeJSONData(data, fields)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				record, err := client.Add(cmd.Context(), fields)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(record)
				}
				return writePlain("added %s\n", record.ID)
			})
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "record fields as a JSON object")
	return cmd
}

func newUpdateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "update <id> [key=value...]",
		Short: "Update fields of a record",
		Args:  requireAtLeastArgs(1, "id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			fields, err = mergeJSONData(data, fields)
			if err != nil {
				return err
			}
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.Update(cmd.Context(), args[0], fields)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(resp)
				}
				return writePlain("updated %s\n", resp.ID)
			})
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "record fields as a JSON object")
	return cmd
}

func newDeleteCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record and every blob attached to it",
		Args:  requireExactlyArgs(1, "id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				ok, err := client.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(ok)
				}
				return writePlain("deleted %s\n", args[0])
			})
		},
	}
}
