package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/access"
	"github.com/spec-kit/repair-desk/internal/domain"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer tokens and installs the caller identity.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes. The profile is stored
// in fiber locals and the matching access.Actor in the user context, where
// the ticket store picks it up.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	profile := claims.Profile()
	c.Locals(principalKey, &profile)
	c.SetUserContext(access.WithActor(c.UserContext(), access.Actor{
		UID:          profile.UID,
		Role:         profile.Role,
		TechnicianID: profile.TechnicianID,
	}))
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated profile.
func PrincipalFromContext(c *fiber.Ctx) (*domain.UserProfile, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.UserProfile)
	return principal, ok
}
