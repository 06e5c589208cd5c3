package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-desk/internal/auth"
	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/domain"
)

func TestIssueToken_Technician(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "s3cret", AccessTokenTTLMinutes: 60}
	token, _, err := issueToken(cfg, &tokenOptions{uid: "u-7", role: "technician", technicianID: 2})
	require.NoError(t, err)

	claims, err := auth.NewTokenManager("s3cret", 60).ParseToken(token)
	require.NoError(t, err)
	profile := claims.Profile()
	assert.Equal(t, "u-7", profile.UID)
	assert.Equal(t, domain.RoleTechnician, profile.Role)
	require.NotNil(t, profile.TechnicianID)
	assert.Equal(t, 2, *profile.TechnicianID)
	assert.Equal(t, "Jane Smith", profile.DisplayName)
}

func TestIssueToken_Rejects(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "s3cret", AccessTokenTTLMinutes: 60}

	_, _, err := issueToken(cfg, &tokenOptions{uid: "u", role: "owner"})
	assert.Error(t, err)

	_, _, err = issueToken(cfg, &tokenOptions{uid: "u", role: "technician", technicianID: 99})
	assert.Error(t, err)
}

func TestIssueToken_AdminHasNoTechnician(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "s3cret", AccessTokenTTLMinutes: 60}
	token, _, err := issueToken(cfg, &tokenOptions{uid: "a", role: "admin", technicianID: 1})
	require.NoError(t, err)

	claims, err := auth.NewTokenManager("s3cret", 60).ParseToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.Profile().TechnicianID)
}
