package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/jobboard-api/pkg/auth"
)

var (
	tokenUserID string
	tokenRole   string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token signed with the configured secret",
	Example: `  jobboard-api token --user 3f1c... --role candidate
  jobboard-api token --role admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		role := auth.Role(tokenRole)
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", tokenRole)
		}
		userID := uuid.New()
		if tokenUserID != "" {
			if userID, err = uuid.Parse(tokenUserID); err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}
		}

		tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
		token, err := tokens.Issue(auth.Identity{UserID: userID, Role: role})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id (random when empty)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleCandidate), "candidate, employer or admin")
}
