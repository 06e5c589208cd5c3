package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/repair-desk/internal/auth"
	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/domain"
)

type tokenOptions struct {
	uid          string
	role         string
	technicianID int
	name         string
	email        string
	ttlMinutes   int
}

func newTokenCommand() *cobra.Command {
	opts := &tokenOptions{}
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token",
		Long:  `Sign a bearer token for a staff member with the configured AUTH_JWT_SECRET.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, expiresAt, err := issueToken(cfg.Auth, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.uid, "uid", "", "Subject identifier")
	cmd.Flags().StringVarP(&opts.role, "role", "r", string(domain.RoleTechnician), "Role (admin, technician)")
	cmd.Flags().IntVarP(&opts.technicianID, "technician", "t", 0, "Technician roster ID (technicians only)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Display name")
	cmd.Flags().StringVar(&opts.email, "email", "", "Email address")
	cmd.Flags().IntVar(&opts.ttlMinutes, "ttl", 0, "Lifetime in minutes (default AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	_ = cmd.MarkFlagRequired("uid")

	return cmd
}

func issueToken(cfg config.AuthConfig, opts *tokenOptions) (string, time.Time, error) {
	role := domain.Role(opts.role)
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("unknown role %q", opts.role)
	}

	profile := domain.UserProfile{
		UID:         opts.uid,
		Role:        role,
		DisplayName: opts.name,
		Email:       opts.email,
	}
	if role == domain.RoleTechnician {
		tech, ok := domain.TechnicianByID(opts.technicianID)
		if !ok {
			return "", time.Time{}, fmt.Errorf("technician %d is not on the roster", opts.technicianID)
		}
		profile.TechnicianID = &tech.ID
		if profile.DisplayName == "" {
			profile.DisplayName = tech.Name
		}
	}

	ttl := cfg.AccessTokenTTLMinutes
	if opts.ttlMinutes > 0 {
		ttl = opts.ttlMinutes
	}
	return auth.NewTokenManager(cfg.JWTSecret, ttl).GenerateToken(profile)
}
