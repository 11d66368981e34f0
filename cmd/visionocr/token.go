package main

import (
	"fmt"
	"time"

	"github.com/Abraxas-365/visionocr/auth"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		scopes []string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token SUBJECT",
		Short: "Issue an API token signed with server.jwt_secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens, err := auth.NewTokenService(settings.Server.JWTSecret, ttl)
			if err != nil {
				return err
			}
			token, err := tokens.GenerateToken(args[0], scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{"extract"}, "scopes granted to the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
