package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skillbridge/messaging-server/internal/app"
	"github.com/skillbridge/messaging-server/internal/auth"
	"github.com/skillbridge/messaging-server/internal/config"
	"github.com/skillbridge/messaging-server/internal/core"
	"github.com/skillbridge/messaging-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "messaging-server",
		Short:         "Real-time messaging server for the services marketplace",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newTokenCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the messaging server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := log.New("info")

			cfg, usedPath, err := config.Load(bootLogger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", usedPath).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	return cmd
}

// newTokenCmd mints a development token for local testing against a server
// configured with the same secret.
func newTokenCmd() *cobra.Command {
	var (
		secret   string
		issuer   string
		audience string
		userID   string
		name     string
		role     string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a development JWT",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			switch core.Role(role) {
			case core.RoleCustomer, core.RoleProvider, core.RoleAdmin:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			token, err := auth.GenerateToken(&auth.JWTConfig{
				Secret:   []byte(secret),
				Issuer:   issuer,
				Audience: audience,
				TTL:      ttl,
			}, userID, name, core.Role(role))
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	defaults := config.Default()
	cmd.Flags().StringVar(&secret, "secret", "", "JWT signing secret")
	cmd.Flags().StringVar(&issuer, "issuer", defaults.JWTIssuer, "token issuer")
	cmd.Flags().StringVar(&audience, "audience", defaults.JWTAudience, "token audience")
	cmd.Flags().StringVar(&userID, "user", "", "user id claim")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&role, "role", string(core.RoleCustomer), "role claim: customer, provider or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
