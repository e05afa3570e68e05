package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/orelode/sitegate"
)

type contextKey string

const sessionContextKey contextKey = "admin_session"

// SessionCookie is the default cookie the session token is carried in.
const SessionCookie = "admin_session"

// middlewareConfig configures RequireSession.
type middlewareConfig struct {
	cookie   string
	redirect string
}

// MiddlewareOption configures the RequireSession middleware.
type MiddlewareOption func(*middlewareConfig)

// WithCookieName sets the cookie to read the session token from
// (default: SessionCookie).
func WithCookieName(name string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.cookie = name
	}
}

// WithRedirect redirects to the given URL instead of returning a 401 when
// the session is missing or invalid. Use for browser-facing admin pages;
// API routes should keep the JSON 401.
func WithRedirect(url string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.redirect = url
	}
}

// RequireSession returns middleware guarding a protected route. The token
// is read from the session cookie or an "Authorization: Bearer" header and
// verified; on failure the request is rejected (or redirected) without
// reaching the handler, and on success the resolved Session is passed down
// in the request context.
func RequireSession(a *Authenticator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{cookie: SessionCookie}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r, cfg.cookie)

			session := (*Session)(nil)
			if token != "" {
				session = a.VerifySession(token)
			}

			if session == nil {
				if cfg.redirect != "" {
					http.Redirect(w, r, cfg.redirect, http.StatusSeeOther)
					return
				}
				if sitegate.HasState(r.Context()) {
					sitegate.SetError(r, sitegate.ErrUnauthorized.With("Admin session required"))
				} else {
					http.Error(w, "Admin session required", http.StatusUnauthorized)
				}
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext retrieves the verified session from the request
// context, as placed there by RequireSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	return session, ok
}

func extractToken(r *http.Request, cookie string) string {
	if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
		return c.Value
	}

	const prefix = "Bearer "
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}
	return ""
}
