package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/TjayDev-11/Servicesoko-sub000/internal/domain"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/observability"
	apperrors "github.com/TjayDev-11/Servicesoko-sub000/pkg/util"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer access tokens and attaches the principal.
// Validation is a pure function of the credential: the profile claims baked
// into the token are trusted as-is, with no per-request store lookup.
type AuthMiddleware struct {
	tokens *TokenManager
	logger *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, logger: logger}
}

// ValidateAccessToken runs the full credential check pipeline on a raw
// bearer token: signature, expiry, token kind, then required subject claim.
// Each failure maps to a distinct error code so clients can pick distinct
// recovery paths; only TOKEN_EXPIRED is recoverable via refresh.
func (m *AuthMiddleware) ValidateAccessToken(raw string) (*domain.Principal, error) {
	claims, err := m.tokens.Verify(raw)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			return nil, apperrors.NewForbidden("TOKEN_EXPIRED", "access token expired")
		default:
			return nil, apperrors.NewForbidden("INVALID_TOKEN", "invalid access token")
		}
	}

	if claims.Kind != domain.TokenKindAccess {
		// A refresh token is never accepted in place of an access token.
		return nil, apperrors.NewForbidden("INVALID_TOKEN", "invalid access token")
	}

	if claims.Subject == "" {
		// Signature validity alone is not sufficient.
		return nil, apperrors.NewForbidden("INVALID_TOKEN_PAYLOAD", "token missing subject claim")
	}

	return &domain.Principal{
		UserID: claims.Subject,
		Role:   claims.Role,
		Email:  claims.Email,
		Phone:  claims.Phone,
		Name:   claims.Name,
	}, nil
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := ExtractBearer(c)
	if err != nil {
		return err
	}

	principal, err := m.ValidateAccessToken(raw)
	if err != nil {
		de := apperrors.ToDomainError(err)
		m.logger.Debug("token rejected",
			zap.String("code", de.Code),
			zap.String("token", observability.RedactToken(raw)),
		)
		return err
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// ExtractBearer pulls the bearer credential from the Authorization header.
func ExtractBearer(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("MISSING_TOKEN", "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperrors.NewUnauthorized("MISSING_TOKEN", "invalid authorization header")
	}
	return parts[1], nil
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}
