package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gcs/internal/api"
	"gcs/internal/config"
)

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var params api.UploadParams

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file into an attachment field of a record",
		Args:  requireExactlyArgs(1, "file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if params.RecordID == "" || params.Field == "" {
				return fmt.Errorf("--nid and --field are required")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withClient(cfg, func(client *api.Client) error {
				blob, err := client.Upload(cmd.Context(), params, args[0], f)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(blob)
				}
				return fieldsFormatter.Write(cmdOut(cmd), blob)
			})
		},
	}

	cmd.Flags().StringVar(&params.RecordID, "nid", "", "id of the owning record")
	cmd.Flags().StringVar(&params.Field, "field", "", "attachment field name")
	cmd.Flags().IntVar(&params.Position, "position", 0, "position inside the field")
	cmd.Flags().StringVar(&params.Media, "media", "document", "media kind (image, video, audio, document)")
	cmd.Flags().BoolVar(&params.Edit, "edit", false, "replace the blob at --position")
	return cmd
}

func newDownloadCmd(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download the content of a blob",
		Args:  requireExactlyArgs(1, "id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w io.Writer = cmdOut(cmd)
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return withClient(cfg, func(client *api.Client) error {
				contentType, n, err := client.Download(cmd.Context(), args[0], w)
				if err != nil {
					if output != "" && output != "-" {
						_ = os.Remove(output)
					}
					return err
				}
				if output != "" && output != "-" {
					fmt.Fprintf(os.Stderr, "wrote %d bytes (%s) to %s\n", n, contentType, output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write content to this file instead of stdout")
	return cmd
}

func newDeleteFileCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var params api.DeleteFileParams

	cmd := &cobra.Command{
		Use:   "delete-file <id>",
		Short: "Delete a blob and unlink it from its record",
		Args:  requireExactlyArgs(1, "id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.ID = args[0]
			return withClient(cfg, func(client *api.Client) error {
				if err := client.DeleteFile(cmd.Context(), params); err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(true)
				}
				return writePlain("deleted file %s\n", params.ID)
			})
		},
	}

	cmd.Flags().StringVar(&params.RecordID, "record", "", "id of the owning record")
	cmd.Flags().StringVar(&params.Field, "field", "", "attachment field name")
	return cmd
}

func cmdOut(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
