package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/TjayDev-11/Servicesoko-sub000/internal/auth"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/config"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/domain"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/events"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/ratelimit"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/repository"
	apperrors "github.com/TjayDev-11/Servicesoko-sub000/pkg/util"
)

// AuthService coordinates signup, login and the token lifecycle.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	limiter    ratelimit.LoginLimiter
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates collaborator requirements for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	LoginLimiter ratelimit.LoginLimiter
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	limiter := deps.LoginLimiter
	if limiter == nil {
		limiter = ratelimit.NopLimiter{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users: deps.UserRepo,
		tokenMgr: auth.NewTokenManager(
			cfg.Auth.JWTSecret,
			cfg.Auth.AccessTokenTTL(),
			cfg.Auth.ExtendedSessionTTL(),
			cfg.Auth.RefreshTokenTTL(),
		),
		limiter:    limiter,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Signup creates a new marketplace account and issues a token pair.
// At least one of email or phone is required so the account stays reachable
// for order and messaging notifications.
func (s *AuthService) Signup(ctx context.Context, name, email, phone, password string, role domain.Role) (*domain.User, *domain.TokenPair, error) {
	if name == "" || password == "" {
		return nil, nil, apperrors.NewValidationError("name and password required", nil)
	}
	if email == "" && phone == "" {
		return nil, nil, apperrors.NewValidationError("email or phone required", nil)
	}
	if len(password) < 6 {
		return nil, nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
	}
	if role == "" {
		role = domain.RoleBuyer
	}
	if !domain.ValidRole(role) {
		return nil, nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}

	for _, identifier := range []string{email, phone} {
		if identifier == "" {
			continue
		}
		if _, err := s.users.GetByIdentifier(ctx, identifier); err == nil {
			return nil, nil, apperrors.NewConflict("account already exists", nil)
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, err
		}
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokenPair(user, false)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.EventUserRegistered, user.ID, events.UserRegisteredPayload{
		Name:  user.Name,
		Email: user.Email,
		Phone: user.Phone,
		Role:  user.Role,
	})

	return user, pair, nil
}

// Login authenticates by email or phone. rememberMe stretches the access
// token lifetime only; the refresh token lifetime is fixed.
func (s *AuthService) Login(ctx context.Context, identifier, password string, rememberMe bool, ip string) (*domain.User, *domain.TokenPair, error) {
	if identifier == "" || password == "" {
		return nil, nil, apperrors.NewValidationError("identifier and password required", nil)
	}

	if err := s.limiter.Allow(ctx, identifier, ip); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			return nil, nil, apperrors.NewRateLimited("too many login attempts")
		}
		return nil, nil, err
	}

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewBadRequest("INVALID_CREDENTIALS", "invalid credentials")
		}
		return nil, nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, nil, apperrors.NewBadRequest("INVALID_CREDENTIALS", "invalid credentials")
	}

	pair, err := s.issueTokenPair(user, rememberMe)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.EventUserLoggedIn, user.ID, events.UserLoggedInPayload{ExtendedSession: rememberMe})

	return user, pair, nil
}

// Refresh validates a refresh token and mints a fresh short-lived access
// token from current user data. The refresh token itself is not reissued;
// it remains valid until its own expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	if refreshToken == "" {
		return "", time.Time{}, apperrors.NewUnauthorized("MISSING_REFRESH_TOKEN", "refresh token required")
	}

	claims, err := s.tokenMgr.Verify(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return "", time.Time{}, apperrors.NewUnauthorized("REFRESH_TOKEN_EXPIRED", "refresh token expired")
		}
		return "", time.Time{}, apperrors.NewUnauthorized("INVALID_REFRESH_TOKEN", "invalid refresh token")
	}
	if claims.Kind != domain.TokenKindRefresh || claims.Subject == "" {
		return "", time.Time{}, apperrors.NewUnauthorized("INVALID_REFRESH_TOKEN", "invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Account deleted after the refresh token was issued.
			return "", time.Time{}, apperrors.NewForbidden("USER_NOT_FOUND", "user no longer exists")
		}
		return "", time.Time{}, err
	}

	accessToken, expiresAt, err := s.tokenMgr.IssueAccessToken(user, false)
	if err != nil {
		return "", time.Time{}, err
	}

	s.publish(ctx, events.EventSessionRefreshed, user.ID, events.SessionRefreshedPayload{AccessExpiresAt: expiresAt})

	return accessToken, expiresAt, nil
}

// LookupPrincipalUser re-reads the subject behind a validated principal.
// Used by the validate-token endpoint to report a deleted account.
func (s *AuthService) LookupPrincipalUser(ctx context.Context, principal *domain.Principal) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewForbidden("USER_NOT_FOUND", "user no longer exists")
		}
		return nil, err
	}
	return user, nil
}

// Logout is a server-side no-op for stateless tokens; the client owns
// session teardown. Kept as an explicit operation for the event trail.
func (s *AuthService) Logout(ctx context.Context, principal *domain.Principal) error {
	s.publish(ctx, events.EventUserLoggedOut, principal.UserID, nil)
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issueTokenPair(user *domain.User, extended bool) (*domain.TokenPair, error) {
	accessToken, accessExp, err := s.tokenMgr.IssueAccessToken(user, extended)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.tokenMgr.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		ExtendedSession:  extended,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, userID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", string(eventType)), zap.Error(err))
	}
}
