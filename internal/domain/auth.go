package domain

import "time"

// TokenKind differentiates access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenPair bundles the two credentials issued at login and signup.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	ExtendedSession  bool
}

// Principal is the validated caller identity derived from an access token.
// It carries the profile claims baked into the token at issuance; those may
// lag a profile update until the next refresh.
type Principal struct {
	UserID string
	Role   Role
	Email  string
	Phone  string
	Name   string
}
