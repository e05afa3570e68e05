package auth

import (
	"net/http"
	"time"

	"github.com/nhalm/canonlog"
	"github.com/orelode/sitegate"
	"github.com/orelode/sitegate/bind"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginHandler returns the login endpoint: it binds and validates the
// credentials, authorizes them, and on success sets the session cookie and
// returns the session. Failures are a uniform 401 with no detail. Compose a
// throttle.Limiter on the route to bound guessing; this handler has no
// lockout of its own.
//
// Requires the sitegate.Handler middleware for response writing.
func LoginHandler(a *Authenticator, opts ...MiddlewareOption) http.HandlerFunc {
	cfg := &middlewareConfig{cookie: SessionCookie}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !bind.JSON(r, &req) {
			return
		}

		identity := a.Authorize(r.Context(), req.Email, req.Password)
		if identity == nil {
			sitegate.SetError(r, sitegate.ErrUnauthorized.With("Invalid email or password"))
			return
		}

		token, err := a.IssueSession(identity)
		if err != nil {
			canonlog.ErrorAdd(r.Context(), err)
			sitegate.SetError(r, sitegate.ErrInternal.With("Could not start session"))
			return
		}

		ttl := a.cfg.sessionTTL()
		http.SetCookie(w, &http.Cookie{
			Name:     cfg.cookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(ttl / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		sitegate.SetResponse(r, http.StatusOK, map[string]any{
			"email":     identity.Email,
			"role":      identity.Role,
			"expiresAt": a.now().Add(ttl).UTC().Format(time.RFC3339),
		})
	}
}

// LogoutHandler clears the session cookie. The token itself stays valid
// until its expiry; there is no server-side session to destroy.
func LogoutHandler(opts ...MiddlewareOption) http.HandlerFunc {
	cfg := &middlewareConfig{cookie: SessionCookie}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     cfg.cookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		sitegate.SetResponse(r, http.StatusNoContent, nil)
	}
}
