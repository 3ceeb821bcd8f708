package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/faqbot/internal/adapters/driven/auth"
	"github.com/custodia-labs/faqbot/internal/core/domain"
)

func tokenCmd(a *app) *cobra.Command {
	var subject string
	var ttl time.Duration

	token := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token for POST /ask",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Server.AuthSecret == "" {
				return fmt.Errorf("%w: server.auth_secret is not set, tokens are not required", domain.ErrInvalidInput)
			}

			signed, claims, err := auth.NewAdapter(a.cfg.Server.AuthSecret).IssueToken(subject, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), signed)
			if claims.ExpiresAt.IsZero() {
				a.logger.Info("issued token", "subject", claims.Subject, "id", claims.TokenID, "expires", "never")
			} else {
				a.logger.Info("issued token", "subject", claims.Subject, "id", claims.TokenID, "expires", claims.ExpiresAt)
			}
			return nil
		},
	}
	token.Flags().StringVar(&subject, "subject", "faqbot-client", "who the token is issued to")
	token.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime (0 never expires)")
	return token
}
