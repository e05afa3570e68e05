package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session is a verified admin session. It is self-contained: validity rests
// entirely in the token's signature and expiry, the server holds no session
// table, and logout is client-side token discard. Server-side revocation
// before expiry is not supported; every token carries a random ID (jti) so
// a denylist could be added later without changing the wire format.
type Session struct {
	SubjectID string    `json:"subjectId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// IssueSession mints a signed session token for the identity, valid for the
// configured TTL from now. Returns ErrNoSigningSecret when no signing
// secret is configured.
func (a *Authenticator) IssueSession(identity *Identity) (string, error) {
	if a.cfg.SigningSecret == "" {
		return "", ErrNoSigningSecret
	}

	now := a.now()
	claims := sessionClaims{
		Email: identity.Email,
		Role:  identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.sessionTTL())),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.SigningSecret))
}

// VerifySession checks a token issued by IssueSession and returns the
// session it carries, or nil if the signature is invalid, the token is
// malformed, or the expiry has passed. Tokens signed with any other secret
// or algorithm fail regardless of their claimed expiry.
func (a *Authenticator) VerifySession(token string) *Session {
	if a.cfg.SigningSecret == "" {
		return nil
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) {
			return []byte(a.cfg.SigningSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return nil
	}

	session := &Session{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session
}
