package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/beesaferoot/rentals/internal/auth"
	"github.com/beesaferoot/rentals/internal/models"
)

// TokenCmd issues a bearer token for local development. It signs with the
// server's RENTALS_JWT_SECRET, so it is only useful where that secret is known.
func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			if user == "" {
				return fmt.Errorf("--user is required")
			}
			r := models.Role(role)
			if !r.Valid() || r == models.RoleSystem {
				return fmt.Errorf("--role must be tenant, landlord or admin")
			}

			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.JWTSecret) < 16 {
				return fmt.Errorf("RENTALS_JWT_SECRET must be at least 16 characters")
			}

			tok, err := auth.NewTokenIssuer(auth.TokenConfig{
				Secret: []byte(cfg.JWTSecret),
				Issuer: cfg.JWTIssuer,
			}).Issue(auth.Actor{UserID: user, Role: r}, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().String("user", "", "User id to put in the token subject")
	cmd.Flags().String("role", string(models.RoleTenant), "Role: tenant, landlord or admin")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
