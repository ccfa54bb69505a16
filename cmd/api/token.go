package main

import (
	"errors"
	"fmt"
	"time"

	"comments-api/pkg/auth"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenRoles   []string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token signed with JWT_SECRET",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "who the token is for")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", []string{auth.RoleModerator}, "roles to grant")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		TTL:       tokenTTL,
	})
	if err != nil {
		return err
	}
	token, err := validator.IssueToken(tokenSubject, tokenRoles...)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
