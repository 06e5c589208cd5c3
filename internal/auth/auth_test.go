package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/repair-desk/internal/access"
	"github.com/spec-kit/repair-desk/internal/domain"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

func technician(id int) domain.UserProfile {
	return domain.UserProfile{UID: "tech-uid", Role: domain.RoleTechnician, TechnicianID: &id, DisplayName: "Jane Smith"}
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	token, expiresAt, err := tm.GenerateToken(technician(2))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	profile := claims.Profile()
	assert.Equal(t, "tech-uid", profile.UID)
	assert.Equal(t, domain.RoleTechnician, profile.Role)
	require.NotNil(t, profile.TechnicianID)
	assert.Equal(t, 2, *profile.TechnicianID)
}

func TestParseToken_Rejects(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	token, _, err := tm.GenerateToken(domain.UserProfile{UID: "a", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = NewTokenManager("other", 30).ParseToken(token)
	assert.Error(t, err)

	expired := NewTokenManager("secret", 30)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.GenerateToken(domain.UserProfile{UID: "a", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = tm.ParseToken(old)
	assert.Error(t, err)
}

func TestGenerateToken_ValidatesProfile(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	_, _, err := tm.GenerateToken(domain.UserProfile{Role: domain.RoleAdmin})
	assert.Error(t, err)
	_, _, err = tm.GenerateToken(domain.UserProfile{UID: "x", Role: "guest"})
	assert.Error(t, err)
	_, _, err = tm.GenerateToken(domain.UserProfile{UID: "x", Role: domain.RoleTechnician})
	assert.Error(t, err)
}

func newTestApp(tm *TokenManager, extra ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tm).Handle}, extra...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		actor, ok := access.FromContext(c.UserContext())
		if !ok {
			return c.SendStatus(http.StatusInternalServerError)
		}
		return c.SendString(actor.UID)
	})
	app.Get("/", handlers...)
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	token, _, err := tm.GenerateToken(technician(1))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}

	app := newTestApp(tm)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tm := NewTokenManager("secret", 30)
	techToken, _, err := tm.GenerateToken(technician(1))
	require.NoError(t, err)
	adminToken, _, err := tm.GenerateToken(domain.UserProfile{UID: "admin", Role: domain.RoleAdmin})
	require.NoError(t, err)

	app := newTestApp(tm, RequireRole(domain.RoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+techToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
