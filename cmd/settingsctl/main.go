// Command settingsctl administers a replydesk backend from the terminal.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/huangang/replydesk/internal/config"
	"github.com/huangang/replydesk/internal/console"
	"github.com/huangang/replydesk/pkg/client"
	"github.com/huangang/replydesk/pkg/logger"
)

// app holds the state shared by all subcommands.
type app struct {
	cfg    config.ClientConfig
	creds  config.Credentials
	client *client.Client

	stdin io.Reader
	lines *bufio.Reader
}

func main() {
	if err := newRootCmd(&app{stdin: os.Stdin}).Execute(); err != nil {
		var shown reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	var apiBase, token, logLevel string

	root := &cobra.Command{
		Use:           "settingsctl",
		Short:         "Manage replydesk system settings, backups and accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig()
			if err != nil {
				return err
			}
			if apiBase != "" {
				cfg.APIBase = strings.TrimRight(apiBase, "/")
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			logger.InitWithWriter(cfg.LogLevel, cmd.ErrOrStderr())

			creds, err := config.LoadCredentials()
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if token != "" {
				creds.Token = token
			}

			a.cfg, a.creds = cfg, creds
			a.client = client.New(cfg.APIBase,
				client.WithToken(creds.Token),
				client.WithTimeout(time.Duration(cfg.Timeout)*time.Second))
			logger.Debug().Str("api", cfg.APIBase).Bool("token", creds.Token != "").Msg("client ready")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&apiBase, "api", "", "API base URL (default from client.yaml or REPLYDESK_API_BASE)")
	root.PersistentFlags().StringVar(&token, "token", "", "Session token (default from credentials.yaml or REPLYDESK_TOKEN)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.settingsCmd(),
		a.secretCmd(),
		a.aiCmd(),
		a.emailCmd(),
		a.passwdCmd(),
		a.backupCmd(),
		a.cacheCmd(),
		a.userSettingsCmd(),
		a.accountsCmd(),
		a.knowledgeBaseCmd(),
	)
	return root
}

// gateway returns the client, or ErrNotLoggedIn when no token is known.
func (a *app) gateway() (*client.Client, error) {
	if a.client.Token() == "" {
		return nil, fmt.Errorf("%w: run settingsctl login", client.ErrNotLoggedIn)
	}
	return a.client, nil
}

// controller returns a form controller whose notifications go to the log;
// commands print the returned results themselves.
func (a *app) controller() (*console.Controller, error) {
	gw, err := a.gateway()
	if err != nil {
		return nil, err
	}
	return console.NewController(gw, console.NotifierFunc(func(r client.Result) {
		logger.Debug().Bool("success", r.Success).Msg(r.Message)
	})), nil
}

// report prints r and turns a failure into a non-zero exit.
func report(cmd *cobra.Command, r client.Result) error {
	out := termenv.NewOutput(cmd.OutOrStdout())
	if r.Success {
		fmt.Fprintln(cmd.OutOrStdout(), out.String("✓ "+r.Message).Foreground(out.Color("2")))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.String("✗ "+r.Message).Foreground(out.Color("1")))
	return reportedError(r.Message)
}

// reportedError is a failure report already printed.
type reportedError string

func (e reportedError) Error() string { return string(e) }

// prompt reads one line; secret input is not echoed on a terminal.
func (a *app) prompt(cmd *cobra.Command, label string, secret bool) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label+": ")
	if f, ok := a.stdin.(*os.File); ok && secret && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		return string(b), err
	}
	if a.lines == nil {
		a.lines = bufio.NewReader(a.stdin)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) confirm(cmd *cobra.Command, question string) bool {
	answer, err := a.prompt(cmd, question+" [y/N]", false)
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
