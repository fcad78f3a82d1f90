package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/TjayDev-11/Servicesoko-sub000/internal/domain"
)

// Verification failures, ordered from structural to semantic. Signature and
// expiry problems come out of Verify; the subject and kind checks belong to
// the callers so a well-signed token with a bad payload stays distinguishable.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrBadSignature   = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims describes the signed claim set carried by both token kinds.
// Access tokens carry the full profile snapshot; refresh tokens only
// subject, role and kind.
type Claims struct {
	Name  string           `json:"name,omitempty"`
	Email string           `json:"email,omitempty"`
	Phone string           `json:"phone,omitempty"`
	Role  domain.Role      `json:"role,omitempty"`
	Kind  domain.TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies JWT tokens for the session subsystem.
type TokenManager struct {
	secret      []byte
	accessTTL   time.Duration
	extendedTTL time.Duration
	refreshTTL  time.Duration
}

// NewTokenManager builds a new manager. Zero TTLs fall back to the
// defaults: 15 minutes for access tokens, 7 days for extended sessions
// and refresh tokens.
func NewTokenManager(secret string, accessTTL, extendedTTL, refreshTTL time.Duration) *TokenManager {
	if accessTTL == 0 {
		accessTTL = 15 * time.Minute
	}
	if extendedTTL == 0 {
		extendedTTL = 7 * 24 * time.Hour
	}
	if refreshTTL == 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{
		secret:      []byte(secret),
		accessTTL:   accessTTL,
		extendedTTL: extendedTTL,
		refreshTTL:  refreshTTL,
	}
}

// IssueAccessToken signs an access token for the user. An extended session
// (remember-me) stretches the lifetime from the short default to the
// extended TTL; the claim set is identical either way.
func (tm *TokenManager) IssueAccessToken(user *domain.User, extended bool) (string, time.Time, error) {
	ttl := tm.accessTTL
	if extended {
		ttl = tm.extendedTTL
	}
	claims := &Claims{
		Name:  user.Name,
		Email: user.Email,
		Phone: user.Phone,
		Role:  user.Role,
		Kind:  domain.TokenKindAccess,
	}
	return tm.sign(claims, user.ID, ttl)
}

// IssueRefreshToken signs a refresh token with the fixed refresh TTL.
// The lifetime does not depend on the extended-session flag, and the
// token is never rotated on use; it stays valid until its own expiry.
func (tm *TokenManager) IssueRefreshToken(user *domain.User) (string, time.Time, error) {
	claims := &Claims{
		Role: user.Role,
		Kind: domain.TokenKindRefresh,
	}
	return tm.sign(claims, user.ID, tm.refreshTTL)
}

func (tm *TokenManager) sign(claims *Claims, subjectID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subjectID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify checks signature and expiry and returns the decoded claim set.
// It fails closed: any structural or cryptographic anomaly is rejected.
// Subject presence is deliberately not checked here.
func (tm *TokenManager) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrBadSignature
		}
		return tm.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrBadSignature
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrBadSignature
	}
	return claims, nil
}
