package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/repair-desk/internal/domain"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute, now: time.Now}
}

// Claims describes JWT payload.
type Claims struct {
	Role         domain.Role `json:"role"`
	TechnicianID *int        `json:"technician_id,omitempty"`
	DisplayName  string      `json:"name,omitempty"`
	Email        string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Profile converts the claims into the caller's profile.
func (c *Claims) Profile() domain.UserProfile {
	return domain.UserProfile{
		UID:          c.Subject,
		Role:         c.Role,
		TechnicianID: c.TechnicianID,
		DisplayName:  c.DisplayName,
		Email:        c.Email,
	}
}

// GenerateToken builds and signs a JWT for the profile.
func (tm *TokenManager) GenerateToken(profile domain.UserProfile) (string, time.Time, error) {
	if profile.UID == "" {
		return "", time.Time{}, errors.New("profile uid is required")
	}
	if !profile.Role.Valid() {
		return "", time.Time{}, errors.New("profile role is invalid")
	}
	if profile.Role == domain.RoleTechnician && profile.TechnicianID == nil {
		return "", time.Time{}, errors.New("technician profile needs a technician id")
	}

	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Role:         profile.Role,
		TechnicianID: profile.TechnicianID,
		DisplayName:  profile.DisplayName,
		Email:        profile.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.UID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, errors.New("token has no usable identity")
	}
	return claims, nil
}
