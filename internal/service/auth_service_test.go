package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/TjayDev-11/Servicesoko-sub000/internal/auth"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/config"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/domain"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/ratelimit"
	apperrors "github.com/TjayDev-11/Servicesoko-sub000/pkg/util"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if (user.Email != "" && user.Email == identifier) || (user.Phone != "" && user.Phone == identifier) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

type deniedLimiter struct{}

func (deniedLimiter) Allow(context.Context, string, string) error {
	return ratelimit.ErrRateLimited
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			AccessTokenTTLMinutes:   15,
			ExtendedSessionTTLHours: 168,
			RefreshTokenTTLHours:    168,
			BcryptCost:              4,
		},
	}
}

func newTestService(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	svc := NewAuthService(testConfig(), AuthDependencies{UserRepo: repo})
	return svc, repo
}

func assertCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	de := apperrors.ToDomainError(err)
	if de.Code != code || de.HTTPStatus != status {
		t.Fatalf("expected %d %s, got %d %s", status, code, de.HTTPStatus, de.Code)
	}
}

func TestSignupAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, pair, err := svc.Signup(ctx, "Amina", "amina@example.com", "", "passw0rd", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Role != domain.RoleBuyer {
		t.Fatalf("expected default BUYER role, got %q", user.Role)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens issued")
	}

	loggedIn, pair2, err := svc.Login(ctx, "amina@example.com", "passw0rd", false, "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("expected same user, got %q vs %q", loggedIn.ID, user.ID)
	}
	if pair2.ExtendedSession {
		t.Fatal("expected non-extended session")
	}
}

func TestLoginByPhone(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "Juma", "", "+254700000002", "passw0rd", domain.RoleSeller); err != nil {
		t.Fatalf("signup: %v", err)
	}

	user, _, err := svc.Login(ctx, "+254700000002", "passw0rd", false, "")
	if err != nil {
		t.Fatalf("login by phone: %v", err)
	}
	if user.Role != domain.RoleSeller {
		t.Fatalf("expected SELLER, got %q", user.Role)
	}
}

func TestLoginRememberMeExtendsAccessOnly(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "Amina", "amina@example.com", "", "passw0rd", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, short, err := svc.Login(ctx, "amina@example.com", "passw0rd", false, "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_, long, err := svc.Login(ctx, "amina@example.com", "passw0rd", true, "")
	if err != nil {
		t.Fatalf("login rememberMe: %v", err)
	}

	if !long.AccessExpiresAt.After(short.AccessExpiresAt.Add(time.Hour)) {
		t.Fatalf("expected extended access ttl, got %v vs %v", long.AccessExpiresAt, short.AccessExpiresAt)
	}

	// The refresh token lifetime is fixed regardless of rememberMe.
	diff := long.RefreshExpiresAt.Sub(short.RefreshExpiresAt)
	if diff < -time.Minute || diff > time.Minute {
		t.Fatalf("refresh ttl should not depend on rememberMe, diff %v", diff)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "", "a@example.com", "", "passw0rd", ""); err == nil {
		t.Fatal("expected error for missing name")
	}
	if _, _, err := svc.Signup(ctx, "NoContact", "", "", "passw0rd", ""); err == nil {
		t.Fatal("expected error for missing email and phone")
	}
	if _, _, err := svc.Signup(ctx, "Short", "s@example.com", "", "abc", ""); err == nil {
		t.Fatal("expected error for short password")
	}
	if _, _, err := svc.Signup(ctx, "BadRole", "b@example.com", "", "passw0rd", "WIZARD"); err == nil {
		t.Fatal("expected error for unknown role")
	}

	if _, _, err := svc.Signup(ctx, "Amina", "amina@example.com", "", "passw0rd", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, _, err := svc.Signup(ctx, "Copycat", "amina@example.com", "", "passw0rd", "")
	assertCode(t, err, "CONFLICT", http.StatusConflict)
}

func TestLoginBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.Signup(ctx, "Amina", "amina@example.com", "", "passw0rd", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, _, err := svc.Login(ctx, "amina@example.com", "wrong", false, "")
	assertCode(t, err, "INVALID_CREDENTIALS", http.StatusBadRequest)

	_, _, err = svc.Login(ctx, "nobody@example.com", "passw0rd", false, "")
	assertCode(t, err, "INVALID_CREDENTIALS", http.StatusBadRequest)
}

func TestLoginRateLimited(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(testConfig(), AuthDependencies{UserRepo: repo, LoginLimiter: deniedLimiter{}})

	_, _, err := svc.Login(context.Background(), "amina@example.com", "passw0rd", false, "203.0.113.9")
	assertCode(t, err, "RATE_LIMITED", http.StatusTooManyRequests)
}

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, pair, err := svc.Signup(ctx, "Amina", "amina@example.com", "", "passw0rd", domain.RoleBoth)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	accessToken, expiresAt, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if time.Until(expiresAt) > 16*time.Minute {
		t.Fatalf("refreshed access token must be short-lived, got %v", time.Until(expiresAt))
	}

	claims, err := svc.TokenManager().Verify(accessToken)
	if err != nil {
		t.Fatalf("verify refreshed token: %v", err)
	}
	if claims.Subject != user.ID {
		t.Fatalf("expected subject %q, got %q", user.ID, claims.Subject)
	}
	if claims.Kind != domain.TokenKindAccess {
		t.Fatalf("expected access token, got %q", claims.Kind)
	}
}

func TestRefreshTokenIsReusable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, pair, err := svc.Signup(ctx, "Amina", "amina@example.com", "", "passw0rd", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	// No rotation: the same refresh token mints access tokens until its own
	// expiry.
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if _, _, err := svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
}

func TestRefreshFailureCodes(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	user, pair, err := svc.Signup(ctx, "Amina", "amina@example.com", "", "passw0rd", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, _, err = svc.Refresh(ctx, "")
	assertCode(t, err, "MISSING_REFRESH_TOKEN", http.StatusUnauthorized)

	_, _, err = svc.Refresh(ctx, "not-a-token")
	assertCode(t, err, "INVALID_REFRESH_TOKEN", http.StatusUnauthorized)

	// An access token is never accepted in place of a refresh token.
	_, _, err = svc.Refresh(ctx, pair.AccessToken)
	assertCode(t, err, "INVALID_REFRESH_TOKEN", http.StatusUnauthorized)

	expiredTM := auth.NewTokenManager("test-secret", 0, 0, -time.Hour)
	expired, _, err := expiredTM.IssueRefreshToken(user)
	if err != nil {
		t.Fatalf("issue expired refresh: %v", err)
	}
	_, _, err = svc.Refresh(ctx, expired)
	assertCode(t, err, "REFRESH_TOKEN_EXPIRED", http.StatusUnauthorized)

	repo.delete(user.ID)
	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	assertCode(t, err, "USER_NOT_FOUND", http.StatusForbidden)
}

func TestLookupPrincipalUserDeleted(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	user, _, err := svc.Signup(ctx, "Amina", "amina@example.com", "", "passw0rd", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	principal := &domain.Principal{UserID: user.ID, Role: user.Role}
	if _, err := svc.LookupPrincipalUser(ctx, principal); err != nil {
		t.Fatalf("lookup: %v", err)
	}

	repo.delete(user.ID)
	_, err = svc.LookupPrincipalUser(ctx, principal)
	assertCode(t, err, "USER_NOT_FOUND", http.StatusForbidden)
}
