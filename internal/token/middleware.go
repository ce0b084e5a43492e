package token

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/rental-portal/internal/domain"
	apperrors "github.com/spec-kit/rental-portal/pkg/util/errorutil"
)

const (
	principalKey   = "auth_principal"
	accessTokenKey = "auth_access_token"
)

// Middleware validates bearer tokens and loads principals.
type Middleware struct {
	tokens *Service
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *Service) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c)
	if err != nil {
		return err
	}

	claims, err := m.tokens.VerifyAccess(c.UserContext(), raw)
	if err != nil {
		return err
	}

	c.Locals(principalKey, claims.Principal())
	c.Locals(accessTokenKey, raw)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated identity.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}

// AccessTokenFromContext returns the raw bearer token the middleware
// verified. Logout needs it to blacklist the literal string.
func AccessTokenFromContext(c *fiber.Ctx) string {
	if raw, ok := c.Locals(accessTokenKey).(string); ok {
		return raw
	}
	return ""
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return parts[1], nil
}
