package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	cl "petling/internal/cli"
	"petling/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "petctl",
		Short:        "Petling operator CLI",
		SilenceUsage: true,
	}

	root.AddCommand(
		newConnectCmd(),
		newDisconnectCmd(),
		newHealthCmd(),
		newCatalogCmd(),
		newUserCmd(),
		newCreditCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newClient prefers environment settings and falls back to the saved
// connection profile.
func newClient() *cl.Client {
	cfg := config.LoadCLIFromEnv()
	baseURL := cfg.APIBaseURL
	token := cfg.AdminToken
	if profile, err := cl.LoadProfile(); err == nil {
		if os.Getenv("PETCTL_API_BASE_URL") == "" {
			baseURL = profile.APIBaseURL
		}
		if token == "" {
			token = profile.AdminToken
		}
	}
	return cl.NewClient(baseURL, token)
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newConnectCmd() *cobra.Command {
	var apiURL, token string
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Save API address and admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(apiURL) == "" {
				return fmt.Errorf("--api-url is required")
			}
			if err := cl.SaveProfile(cl.ConnectionProfile{
				APIBaseURL: strings.TrimRight(strings.TrimSpace(apiURL), "/"),
				AdminToken: strings.TrimSpace(token),
			}); err != nil {
				return err
			}
			printSuccess("Connection profile saved.")
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "http://localhost:8080", "petling API base URL")
	cmd.Flags().StringVar(&token, "token", "", "admin token for credit operations")
	return cmd
}

func newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Remove the saved connection profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearProfile(); err != nil {
				return err
			}
			printSuccess("Connection profile removed.")
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the API is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			if err := newClient().Health(ctx); err != nil {
				return err
			}
			printSuccess("API is healthy.")
			return nil
		},
	}
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List purchasable pet types",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			entries, err := newClient().Catalog(ctx)
			if err != nil {
				return err
			}
			renderCatalog(entries)
			return nil
		},
	}
}

func newUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user <user-id>",
		Short: "Show a user's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			profile, err := newClient().User(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			renderProfile(profile)
			return nil
		},
	}
}

func newCreditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credit <user-id> <amount>",
		Short: "Top up a user's point balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive integer")
			}
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			balance, err := newClient().Credit(ctx, strings.TrimSpace(args[0]), amount)
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Credited %d points. New balance: %d", amount, balance))
			return nil
		},
	}
}
