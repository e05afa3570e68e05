// Package auth provides single-identity credential verification and signed
// admin session tokens for the site's admin surface.
//
// Exactly one administrator identity exists per deployment, fixed by
// configuration. Credential verification is stateless; throttling of login
// attempts is composed at the router with the throttle package, not here.
//
//	authn := auth.New(auth.Config{
//	    AdminEmail:    "admin@example.com",
//	    PasswordHash:  hash, // argon2id, from auth.HashPassword
//	    SigningSecret: secret,
//	})
//	r.Post("/admin/login", auth.LoginHandler(authn))
//	r.With(auth.RequireSession(authn)).Get("/admin", dashboard)
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/nhalm/canonlog"
)

// RoleAdmin is the only role this package issues.
const RoleAdmin = "admin"

// adminSubjectID is the subject identifier of the singleton admin identity.
const adminSubjectID = "admin"

// DefaultSessionTTL is the session validity window used when Config leaves
// SessionTTL zero.
const DefaultSessionTTL = 24 * time.Hour

// Configuration errors, reported by Config.Validate at startup. A missing
// signing secret or password source disables issuance and verification
// rather than letting any credential through.
var (
	ErrNoAdminEmail     = errors.New("auth: admin email not configured")
	ErrNoSigningSecret  = errors.New("auth: session signing secret not configured")
	ErrNoPasswordSource = errors.New("auth: neither password hash nor plaintext password configured")
)

// Config is the explicit construction-time configuration for the
// Authenticator. The boundary layer loads it once (from its environment,
// secrets manager, etc.) and injects it here; this package never reads the
// environment itself.
type Config struct {
	// AdminEmail is the fixed administrator email, compared case-sensitively.
	AdminEmail string

	// PasswordHash is an argon2id encoded hash (see HashPassword). When set
	// it takes precedence over Password.
	PasswordHash string

	// Password is a plaintext fallback secret, intended for development
	// only. Production deployments should set PasswordHash.
	Password string

	// SigningSecret signs and verifies session tokens. Without it the
	// authenticator refuses to issue or verify sessions.
	SigningSecret string

	// SessionTTL is the fixed validity window of issued sessions.
	// Zero means DefaultSessionTTL.
	SessionTTL time.Duration
}

// Validate reports misconfiguration. Call it at startup and fail loudly;
// an Authenticator built from an invalid config still constructs but
// rejects every credential and session.
func (c Config) Validate() error {
	var errs []error
	if c.AdminEmail == "" {
		errs = append(errs, ErrNoAdminEmail)
	}
	if c.SigningSecret == "" {
		errs = append(errs, ErrNoSigningSecret)
	}
	if c.PasswordHash == "" && c.Password == "" {
		errs = append(errs, ErrNoPasswordSource)
	}
	return errors.Join(errs...)
}

func (c Config) sessionTTL() time.Duration {
	if c.SessionTTL > 0 {
		return c.SessionTTL
	}
	return DefaultSessionTTL
}

// Identity is the result of successful credential verification.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Authenticator verifies the configured admin credential and issues and
// verifies session tokens. Safe for concurrent use.
type Authenticator struct {
	cfg Config
	now func() time.Time
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithClock sets the time source used for session issuance and expiry
// checks. Tests inject a deterministic clock here.
func WithClock(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		a.now = now
	}
}

// New creates an Authenticator from the given configuration.
func New(cfg Config, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize verifies the supplied credentials against the configured admin
// identity and returns the identity on success, nil otherwise.
//
// Wrong email, wrong password, and an unconfigured password source are
// indistinguishable to the caller: all return nil with no detail, so the
// response cannot be used to enumerate accounts. The email gate runs first
// so a mismatched email never reaches the hash comparison.
func (a *Authenticator) Authorize(ctx context.Context, email, password string) *Identity {
	if a.cfg.AdminEmail == "" || email != a.cfg.AdminEmail {
		return nil
	}

	switch {
	case a.cfg.PasswordHash != "":
		ok, err := verifyPassword(password, a.cfg.PasswordHash)
		if err != nil {
			canonlog.ErrorAdd(ctx, err)
			return nil
		}
		if !ok {
			return nil
		}
	case a.cfg.Password != "":
		if subtle.ConstantTimeCompare([]byte(password), []byte(a.cfg.Password)) != 1 {
			return nil
		}
	default:
		canonlog.ErrorAdd(ctx, ErrNoPasswordSource)
		return nil
	}

	return &Identity{
		ID:    adminSubjectID,
		Email: a.cfg.AdminEmail,
		Role:  RoleAdmin,
	}
}
