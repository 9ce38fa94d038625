package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/akylbek/payment-system/acquirer-gateway/internal/auth"
	"github.com/akylbek/payment-system/acquirer-gateway/internal/config"
)

func tokenCmd() *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)

	issue := &cobra.Command{
		Use:   "issue [subject]",
		Short: "Mint a bearer token for the admin API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			m, err := auth.NewManager(auth.Options{
				SigningKey: []byte(cfg.Auth.SigningKey),
				Issuer:     cfg.Auth.Issuer,
				TTL:        cfg.Auth.TokenTTL,
				Leeway:     cfg.Auth.Leeway,
			})
			if err != nil {
				return err
			}
			token, err := m.Issue(args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&role, "role", auth.RoleAdmin, "role claim")
	issue.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Admin API tokens",
	}
	cmd.AddCommand(issue)
	return cmd
}
