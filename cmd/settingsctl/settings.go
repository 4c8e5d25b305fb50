package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/huangang/replydesk/internal/console"
	"github.com/huangang/replydesk/internal/tui"
	"github.com/huangang/replydesk/pkg/client"
	"github.com/huangang/replydesk/pkg/settings"
)

func (a *app) settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change system settings",
	}
	cmd.AddCommand(a.settingsGetCmd(), a.settingsSetCmd(), a.settingsSaveCmd(),
		a.settingsEditCmd(), a.settingsExportCmd(), a.settingsImportCmd())
	return cmd
}

// loaded returns a controller with the stored settings loaded.
func (a *app) loaded(cmd *cobra.Command) (*console.Controller, error) {
	ctl, err := a.controller()
	if err != nil {
		return nil, err
	}
	if r := ctl.Load(cmd.Context()); !r.Success {
		return nil, report(cmd, r)
	}
	return ctl, nil
}

func (a *app) settingsGetCmd() *cobra.Command {
	var asJSON, showSecrets bool
	cmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Show all settings, or the value of one key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				v, err := gw.GetSystemSetting(cmd.Context(), args[0])
				if err != nil {
					return report(cmd, client.ResultOf(err, "", "Failed to read "+args[0]))
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}

			s, err := gw.LoadSystemSettings(cmd.Context())
			if err != nil {
				return report(cmd, client.ResultOf(err, "", "Failed to load system settings"))
			}
			if asJSON {
				return writeJSON(cmd, s)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, k := range s.Keys() {
				v, _ := s.Get(k)
				if settings.IsSecret(k) && !showSecrets && v != "" {
					v = "********"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", k, settings.TypeOf(k), v)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the typed settings as JSON (secrets included)")
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secret values in clear")
	return cmd
}

func (a *app) settingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set key=value...",
		Short: "Change settings and save them",
		Long: `Change one or more settings and save immediately. Values are parsed by
the key's type: booleans take true/false and smtp_port takes an integer.
Every other key, including unknown ones, is stored as a string.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.loaded(cmd)
			if err != nil {
				return err
			}
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				if err := ctl.Set(k, v); err != nil {
					return err
				}
			}
			return report(cmd, ctl.Save(cmd.Context()))
		},
	}
}

func (a *app) settingsSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Write the stored settings back with form defaults filled in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.loaded(cmd)
			if err != nil {
				return err
			}
			return report(cmd, ctl.Save(cmd.Context()))
		},
	}
}

func (a *app) settingsEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Open the interactive settings form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller()
			if err != nil {
				return err
			}
			return tui.Run(ctl, console.OSC52{})
		},
	}
}

func (a *app) settingsExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the current settings, secrets included, to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.loaded(cmd)
			if err != nil {
				return err
			}
			return report(cmd, ctl.ExportDraft(args[0]))
		},
	}
}

func (a *app) settingsImportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the settings with a JSON file and save",
		Long: `Replace the form with the contents of a JSON file and save every key it
defines. Keys the file does not mention are left untouched on the server.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.loaded(cmd)
			if err != nil {
				return err
			}
			if r := ctl.ImportDraft(args[0]); !r.Success {
				return report(cmd, r)
			}
			if dryRun {
				draft := ctl.Draft()
				fmt.Fprintf(cmd.OutOrStdout(), "would save %d key(s): %s\n", len(draft.Keys()), strings.Join(draft.Keys(), ", "))
				return nil
			}
			return report(cmd, ctl.Save(cmd.Context()))
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the keys that would be saved")
	return cmd
}

func (a *app) secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage the reply service secret",
	}

	var save, copyOut bool
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new qq_reply_secret_key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.loaded(cmd)
			if err != nil {
				return err
			}
			ctl.GenerateSecret()
			draft := ctl.Draft()
			secret, _ := draft.Get(settings.QQReplySecretKey)
			fmt.Fprintln(cmd.OutOrStdout(), secret)

			if copyOut {
				if r := ctl.CopySecret(console.OSC52{}); !r.Success {
					return report(cmd, r)
				}
			}
			if !save {
				fmt.Fprintln(cmd.ErrOrStderr(), "not saved; rerun with --save to store it")
				return nil
			}
			return report(cmd, ctl.Save(cmd.Context()))
		},
	}
	generate.Flags().BoolVar(&save, "save", false, "Save the new secret")
	generate.Flags().BoolVar(&copyOut, "copy", false, "Copy the secret to the clipboard")
	cmd.AddCommand(generate)
	return cmd
}

func (a *app) aiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "AI provider tools",
	}

	var account string
	test := &cobra.Command{
		Use:   "test",
		Short: "Ask the backend for a sample reply with the stored AI settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.loaded(cmd)
			if err != nil {
				return err
			}
			if r := ctl.LoadAccounts(cmd.Context()); !r.Success {
				return report(cmd, r)
			}
			if account != "" {
				if err := ctl.SelectTestAccount(account); err != nil {
					return err
				}
			}
			return report(cmd, ctl.TestAI(cmd.Context()))
		},
	}
	test.Flags().StringVar(&account, "account", "", "Account to reply as (default: first account)")
	cmd.AddCommand(test)
	return cmd
}

func (a *app) emailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Email tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "test <address>",
		Short: "Send a test message through the stored SMTP settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller()
			if err != nil {
				return err
			}
			return report(cmd, ctl.TestEmail(cmd.Context(), args[0]))
		},
	})
	return cmd
}

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Backend settings cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Reload the backend settings cache from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller()
			if err != nil {
				return err
			}
			return report(cmd, ctl.ReloadCache(cmd.Context()))
		},
	})
	return cmd
}

func (a *app) accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Messaging accounts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the accounts visible to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			accounts, err := gw.ListAccounts(cmd.Context())
			if err != nil {
				return report(cmd, client.ResultOf(err, "", "Failed to load accounts"))
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tENABLED\tREMARK\tCREATED")
			for _, acc := range accounts {
				fmt.Fprintf(tw, "%s\t%t\t%s\t%s\n", acc.ID, acc.Enabled, acc.Remark, acc.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	})
	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
