package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/huangang/replydesk/pkg/client"
)

func (a *app) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Database backups and user exports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the database backups kept on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			list, err := gw.ListBackups(cmd.Context())
			if err != nil {
				return report(cmd, client.ResultOf(err, "", "Failed to list backups"))
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILENAME\tSIZE (MB)\tMODIFIED")
			for _, b := range list.Backups {
				fmt.Fprintf(tw, "%s\t%.2f\t%s\n", b.Filename, b.SizeMB, b.ModifiedTime)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d backup(s)\n", list.Total)
			return nil
		},
	})

	var name, output string
	download := &cobra.Command{
		Use:   "download",
		Short: "Download a fresh database snapshot, or a stored backup with --name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" {
				return a.downloadStored(cmd, name, output)
			}
			ctl, err := a.controller()
			if err != nil {
				return err
			}
			return report(cmd, ctl.DownloadDatabaseBackup(cmd.Context(), output))
		},
	}
	download.Flags().StringVar(&name, "name", "", "Stored backup to download (see backup list)")
	download.Flags().StringVarP(&output, "output", "o", ".", "Destination file or directory")
	cmd.AddCommand(download)

	var yes bool
	upload := &cobra.Command{
		Use:   "upload <file.db>",
		Short: "Restore the database from a SQLite file",
		Long: `Restore the whole database from a SQLite file. This overwrites all
current data; the server keeps a safety backup of the replaced database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller()
			if err != nil {
				return err
			}
			confirm := func(question string) bool {
				return yes || a.confirm(cmd, question)
			}
			return report(cmd, ctl.UploadDatabaseBackup(cmd.Context(), args[0], confirm))
		},
	}
	upload.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(upload)

	var exportTo string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export your accounts and settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller()
			if err != nil {
				return err
			}
			return report(cmd, ctl.ExportUserBackup(cmd.Context(), exportTo))
		},
	}
	export.Flags().StringVarP(&exportTo, "output", "o", ".", "Destination file or directory")
	cmd.AddCommand(export)

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Import a JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller()
			if err != nil {
				return err
			}
			return report(cmd, ctl.ImportUserBackup(cmd.Context(), args[0]))
		},
	})
	return cmd
}

// downloadStored saves the stored backup name under output.
func (a *app) downloadStored(cmd *cobra.Command, name, output string) error {
	gw, err := a.gateway()
	if err != nil {
		return err
	}
	target := output
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		target = filepath.Join(output, filepath.Base(name))
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := gw.DownloadDatabaseBackup(cmd.Context(), name, f); err != nil {
		f.Close()
		os.Remove(target)
		return report(cmd, client.ResultOf(err, "", "Failed to download "+name))
	}
	if err := f.Close(); err != nil {
		return err
	}
	return report(cmd, client.Result{Success: true, Message: "Backup saved to " + target})
}
