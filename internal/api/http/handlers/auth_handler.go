package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/TjayDev-11/Servicesoko-sub000/internal/api/dto"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/auth"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/domain"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/observability"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/service"
	apperrors "github.com/TjayDev-11/Servicesoko-sub000/pkg/util"
)

// AuthHandler exposes the session lifecycle endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	metrics *observability.Metrics
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{auth: authService, metrics: metrics}
}

// Signup handles POST /auth/signup.
func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, pair, err := h.auth.Signup(c.Context(), req.Name, req.Email, req.Phone, req.Password, domain.Role(req.Role))
	if err != nil {
		return err
	}

	h.metrics.RecordAuthEvent("signup")
	return c.Status(http.StatusCreated).JSON(sessionResponse(user, pair))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, pair, err := h.auth.Login(c.Context(), req.Identifier, req.Password, req.RememberMe, c.IP())
	if err != nil {
		return err
	}

	h.metrics.RecordAuthEvent("login")
	return c.JSON(sessionResponse(user, pair))
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewUnauthorized("MISSING_REFRESH_TOKEN", "refresh token required")
	}

	accessToken, expiresAt, err := h.auth.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	h.metrics.RecordAuthEvent("refresh")
	return c.JSON(dto.RefreshResponse{AccessToken: accessToken, ExpiresAt: expiresAt})
}

// ValidateToken handles GET /auth/validate-token. The middleware has already
// validated the bearer; this endpoint additionally confirms the subject
// still exists and returns fresh user data.
func (h *AuthHandler) ValidateToken(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("MISSING_TOKEN", "authentication required")
	}

	user, err := h.auth.LookupPrincipalUser(c.Context(), principal)
	if err != nil {
		return err
	}

	return c.JSON(dto.ValidateTokenResponse{Valid: true, User: dto.NewUserResponse(user)})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("MISSING_TOKEN", "authentication required")
	}

	if err := h.auth.Logout(c.Context(), principal); err != nil {
		return err
	}

	h.metrics.RecordAuthEvent("logout")
	return c.JSON(fiber.Map{"success": true})
}

func sessionResponse(user *domain.User, pair *domain.TokenPair) dto.SessionResponse {
	return dto.SessionResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.AccessExpiresAt,
		User:         dto.NewUserResponse(user),
	}
}
