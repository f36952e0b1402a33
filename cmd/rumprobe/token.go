package main

import (
	"fmt"
	"time"

	"finsite/internal/core/services"
	"finsite/pkg/config"

	"github.com/spf13/cobra"
)

func tokenCommand() *cobra.Command {
	var (
		configPath string
		secret     string
		subject    string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a token for the RUM summary API",
		Long: `Mint a JWT carrying the analytics:read scope. The secret defaults to
auth.jwt_secret from the config file when --secret is not set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
				secret = cfg.Auth.JWTSecret
				if ttl <= 0 {
					ttl = cfg.Auth.AccessTokenTTL
				}
			}
			if secret == "" {
				return fmt.Errorf("no signing secret: pass --secret or set auth.jwt_secret")
			}
			if ttl <= 0 {
				ttl = time.Hour
			}

			token, err := services.NewAuthService(secret, ttl).IssueToken(subject, services.ScopeAnalyticsRead)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC signing secret")
	cmd.Flags().StringVar(&subject, "subject", "rumprobe", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime")

	return cmd
}
