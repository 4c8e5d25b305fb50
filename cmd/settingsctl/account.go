package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/pkg/client"
)

func (a *app) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if username == "" {
				if username, err = a.prompt(cmd, "Username", false); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = a.prompt(cmd, "Password", true); err != nil {
					return err
				}
			}

			resp, err := a.client.Login(cmd.Context(), username, password)
			if err != nil {
				return report(cmd, client.ResultOf(err, "", "Login failed"))
			}
			if err := config.SaveCredentials(config.Credentials{Token: resp.Token, Username: resp.User.Username}); err != nil {
				return fmt.Errorf("store credentials: %w", err)
			}
			return report(cmd, client.Result{Success: true, Message: fmt.Sprintf("Logged in as %s (%s)", resp.User.Username, resp.User.Role)})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted when empty)")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ClearCredentials(); err != nil {
				return err
			}
			return report(cmd, client.Result{Success: true, Message: "Logged out"})
		},
	}
}

func (a *app) passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the admin password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := a.controller()
			if err != nil {
				return err
			}
			current, err := a.prompt(cmd, "Current password", true)
			if err != nil {
				return err
			}
			next, err := a.prompt(cmd, "New password", true)
			if err != nil {
				return err
			}
			confirm, err := a.prompt(cmd, "Confirm new password", true)
			if err != nil {
				return err
			}
			return report(cmd, ctl.ChangePassword(cmd.Context(), current, next, confirm))
		},
	}
}

func (a *app) userSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user-settings",
		Short: "Your per-user settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			all, err := gw.GetUserSettings(cmd.Context())
			if err != nil {
				return report(cmd, client.ResultOf(err, "", "Failed to load user settings"))
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVALUE\tDESCRIPTION")
			for _, k := range keys {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", k, all[k].Value, all[k].Description)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			v, err := gw.GetUserSetting(cmd.Context(), args[0])
			if err != nil {
				return report(cmd, client.ResultOf(err, "", "Failed to read "+args[0]))
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	})

	var description string
	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			r, _ := gw.UpdateUserSetting(cmd.Context(), args[0], args[1], description)
			return report(cmd, r)
		},
	}
	set.Flags().StringVar(&description, "description", "", "Description stored with the value")
	cmd.AddCommand(set)
	return cmd
}

func (a *app) knowledgeBaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Per-item knowledge base",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <account> <item>",
		Short: "Print an item's knowledge base",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			kb, err := gw.GetKnowledgeBase(cmd.Context(), args[0], args[1])
			if err != nil {
				return report(cmd, client.ResultOf(err, "", "Failed to load knowledge base"))
			}
			if kb.Title != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", kb.Title)
			}
			fmt.Fprintln(cmd.OutOrStdout(), kb.Content)
			return nil
		},
	})

	var title, file string
	set := &cobra.Command{
		Use:   "set <account> <item> [text]",
		Short: "Replace an item's knowledge base from text or --file",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content string
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				content = string(data)
			case len(args) == 3:
				content = args[2]
			default:
				return fmt.Errorf("knowledge base text or --file is required")
			}
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			r, _ := gw.SaveKnowledgeBase(cmd.Context(), args[0], args[1], title, content)
			return report(cmd, r)
		},
	}
	set.Flags().StringVar(&title, "title", "", "Item title")
	set.Flags().StringVarP(&file, "file", "f", "", "Read the text from a file")
	cmd.AddCommand(set)
	return cmd
}
