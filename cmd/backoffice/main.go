// Command backoffice is the terminal client of the Mallow Sale back office. It signs in,
// keeps the session alive, and calls the back-office API through the authorized gateway.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hifat/mallow-sale-back-office-sub000/internal/config"
	"github.com/hifat/mallow-sale-back-office-sub000/internal/identity/client"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "backoffice",
		Short:         "Mallow Sale back-office client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		loginCmd(),
		logoutCmd(),
		whoamiCmd(),
		requestCmd(),
		listCmd(),
		shellCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "backoffice version %s\n", version)
			},
		},
	)
	return cmd
}

// withApp loads config, wires the stack and runs fn. Quiet commands discard navigation notices.
func withApp(cmd *cobra.Command, quiet bool, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if lc := configureLogging(cfg); lc != nil {
		defer lc.Close()
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notices io.Writer = cmd.ErrOrStderr()
	if quiet {
		notices = io.Discard
	}
	a, err := newApp(ctx, cfg, cmd.OutOrStdout(), notices, cfg.LandingRoute)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func loginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and persist the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "password: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				if err := a.ctrl.SignIn(ctx, client.Credentials{Username: args[0], Password: password}); err != nil {
					return err
				}
				if u := a.ctrl.User(); u != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (%s)\n", u.Name, u.Username)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (read from stdin when omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				a.ctrl.SignOut(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "signed out")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				a.shell.Exec(ctx, "whoami")
				return nil
			})
		},
	}
}

func requestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <path>",
		Short: "GET an API path through the authorized gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				data, err := a.api.Raw(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(data)))
				return nil
			})
		},
	}
}

func listCmd() *cobra.Command {
	var (
		page   int
		search string
	)
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List inventories, recipes, suppliers, promotions or stocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := strings.Join([]string{"list", args[0], strconv.Itoa(page), search}, " ")
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				a.shell.Exec(ctx, line)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().StringVar(&search, "search", "", "Search term")
	return cmd
}

func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session with silent token refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				a.ctrl.Start(ctx)
				return a.shell.Run(ctx, cmd.InOrStdin())
			})
		},
	}
}
