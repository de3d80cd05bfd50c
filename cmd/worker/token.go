package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token",
	Short: "Sign an access token for a tenant user",
	Long: `issue-token signs a bearer token with the configured JWT secret. It is
meant for local development and smoke tests; production tokens come from the
identity provider.`,
	Example: `  worker issue-token --tenant 7d4f... --user 1b2c... --ttl 2h`,
	RunE:    runIssueToken,
}

func init() {
	rootCmd.AddCommand(issueTokenCmd)

	issueTokenCmd.Flags().String("tenant", "", "Tenant (organization) ID")
	issueTokenCmd.Flags().String("user", "", "User ID (default: random)")
	issueTokenCmd.Flags().String("username", "", "Username claim")
	issueTokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	_ = issueTokenCmd.MarkFlagRequired("tenant")
}

func runIssueToken(cmd *cobra.Command, args []string) error {
	tenantStr, _ := cmd.Flags().GetString("tenant")
	userStr, _ := cmd.Flags().GetString("user")
	username, _ := cmd.Flags().GetString("username")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	tenantID, err := uuid.Parse(tenantStr)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}
	userID := uuid.New()
	if userStr != "" {
		if userID, err = uuid.Parse(userStr); err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	token, expiresAt, err := auth.NewJWTService(cfg.JWT).IssueToken(auth.IssueTokenInput{
		TenantID: tenantID,
		UserID:   userID,
		Username: username,
		TTL:      ttl,
	})
	if err != nil {
		return err
	}
	log.Info("Token issued",
		zap.String("tenant_id", tenantID.String()),
		zap.String("user_id", userID.String()),
		zap.Time("expires_at", expiresAt),
	)
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
