// Package throttle provides fixed-window admission control for public write
// endpoints (newsletter subscription, contact forms) and the admin login
// route, as a plain Check API and as Chi/standard middleware.
//
// Each key gets a counter that resets at a fixed interval boundary. The
// known edge effect is accepted: up to twice the limit can land in a short
// span straddling a window boundary. Admission is best-effort and
// single-process with the memory store; see the store package for the
// Redis-backed alternative.
//
// Middleware example:
//
//	st := store.NewMemory()
//	defer st.Close()
//	limiter := throttle.New(st, throttle.Policy{MaxRequests: 5, Window: time.Minute},
//	    throttle.WithName("newsletter"),
//	    throttle.WithRealIP(),
//	)
//	r.With(limiter.Handler).Post("/api/newsletter", subscribe)
//
// All middleware sets standard rate limit headers (RateLimit-Limit,
// RateLimit-Remaining, RateLimit-Reset) and returns 429 (Too Many Requests)
// with a Retry-After hint when the limit is exceeded. These headers follow
// the IETF draft-ietf-httpapi-ratelimit-headers specification.
package throttle

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/orelode/sitegate"
	"github.com/orelode/sitegate/throttle/store"
)

// UnknownClient is the sentinel key used when no client address can be
// derived from the request. All such requests share one counter.
const UnknownClient = "unknown"

// Policy is a (window, limit) pair. Multiple policies may coexist; give
// each limiter its own name prefix so their key spaces do not collide.
type Policy struct {
	// Window is the length of the counting window. Must be positive.
	Window time.Duration
	// MaxRequests is the number of requests admitted per window per key.
	// Must be positive.
	MaxRequests int64
}

// DefaultPolicy is the policy used when the caller supplies a zero Policy:
// 10 requests per 60-second window.
func DefaultPolicy() Policy {
	return Policy{Window: time.Minute, MaxRequests: 10}
}

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Remaining is the number of requests left in the current window.
	Remaining int64
	// ResetAt is when the window closes; surface it as a retry hint when
	// Allowed is false.
	ResetAt time.Time
}

// HeaderMode controls when rate limit headers are included in responses.
type HeaderMode int

const (
	// HeadersAlways includes rate limit headers on all responses (default).
	HeadersAlways HeaderMode = iota

	// HeadersOnLimitExceeded includes rate limit headers only on 429 responses.
	HeadersOnLimitExceeded

	// HeadersNever never includes rate limit headers in any response.
	HeadersNever
)

// KeyFunc extracts a key component from an HTTP request.
// Returning an empty string indicates the value is missing.
type KeyFunc func(*http.Request) string

// dimension holds a key function with validation metadata.
type dimension struct {
	fn       KeyFunc
	required bool
	name     string // for error messages (e.g., "header X-API-Key")
}

// Limiter performs admission control per derived key.
type Limiter struct {
	store      store.Store
	policy     Policy
	name       string
	keyDims    []dimension
	headerMode HeaderMode
	now        func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the time source used to compute the Retry-After hint.
// Pair it with the store's clock so the hint and ResetAt agree under a
// deterministic clock in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithHeaderMode configures when rate limit headers are included in responses.
func WithHeaderMode(mode HeaderMode) Option {
	return func(l *Limiter) {
		l.headerMode = mode
	}
}

// WithName sets a prefix for throttle keys.
// Use it to keep key spaces separate when different endpoints share a store.
func WithName(name string) Option {
	return func(l *Limiter) {
		l.name = name
	}
}

// WithIP adds the client IP address (from RemoteAddr) to the key.
// Use this for direct connections without a proxy.
func WithIP() Option {
	return func(l *Limiter) {
		l.keyDims = append(l.keyDims, dimension{
			fn: func(r *http.Request) string {
				ip, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					return r.RemoteAddr
				}
				return ip
			},
			name: "IP",
		})
	}
}

// WithRealIP adds the client IP derived from the forwarding-header chain:
// the first X-Forwarded-For value, then X-Real-IP, then RemoteAddr, then
// the UnknownClient sentinel. The dimension is therefore always present.
//
// SECURITY: Only use this behind a trusted reverse proxy that sets these
// headers. Without a proxy, clients can spoof X-Forwarded-For to dodge the
// throttle.
func WithRealIP() Option {
	return func(l *Limiter) {
		l.keyDims = append(l.keyDims, dimension{
			fn:   ClientIP,
			name: "client IP",
		})
	}
}

// WithEndpoint adds the HTTP method and path to the key.
// Key component format: "<method>:<path>".
func WithEndpoint() Option {
	return func(l *Limiter) {
		l.keyDims = append(l.keyDims, dimension{
			fn: func(r *http.Request) string {
				var sb strings.Builder
				sb.Grow(len(r.Method) + 1 + len(r.URL.Path))
				sb.WriteString(r.Method)
				sb.WriteByte(':')
				sb.WriteString(r.URL.Path)
				return sb.String()
			},
			name: "endpoint",
		})
	}
}

// WithHeader adds a header value to the key.
// If the header is missing, throttling is skipped for that request.
func WithHeader(header string) Option {
	return withHeader(header, false)
}

// WithHeaderRequired adds a header value to the key.
// Returns 400 Bad Request when the header is missing.
func WithHeaderRequired(header string) Option {
	return withHeader(header, true)
}

func withHeader(header string, required bool) Option {
	return func(l *Limiter) {
		l.keyDims = append(l.keyDims, dimension{
			fn: func(r *http.Request) string {
				return r.Header.Get(header)
			},
			required: required,
			name:     fmt.Sprintf("header %s", header),
		})
	}
}

// WithKeyFunc adds a custom key component.
// Returning an empty string skips throttling for that request.
func WithKeyFunc(fn KeyFunc) Option {
	return func(l *Limiter) {
		l.keyDims = append(l.keyDims, dimension{
			fn:   fn,
			name: "custom key",
		})
	}
}

// ClientIP canonicalizes the client address from request metadata: the
// first value of a comma-separated X-Forwarded-For, then X-Real-IP, then
// the RemoteAddr host, then UnknownClient.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return UnknownClient
}

// New creates a Limiter over the given store. A zero policy falls back to
// DefaultPolicy. Configure key dimensions with the With* options when the
// limiter is used as middleware; Check callers supply their own keys.
func New(st store.Store, policy Policy, opts ...Option) *Limiter {
	if policy.Window <= 0 || policy.MaxRequests <= 0 {
		policy = DefaultPolicy()
	}
	l := &Limiter{
		store:      st,
		policy:     policy,
		headerMode: HeadersAlways,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Check admits or rejects one request for the given key. An empty key skips
// throttling: the request is allowed and nothing is counted. It never errors
// on exhaustion; Allowed=false is the computed decision and the caller
// rejects the request, surfacing ResetAt as the retry hint. An error is only
// returned when the store itself fails.
func (l *Limiter) Check(ctx context.Context, key string) (Decision, error) {
	if key == "" {
		return Decision{Allowed: true, Remaining: l.policy.MaxRequests}, nil
	}
	res, err := l.store.Take(ctx, key, l.policy.MaxRequests, l.policy.Window)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: res.Allowed, Remaining: res.Remaining, ResetAt: res.ResetAt}, nil
}

// Handler returns the throttling middleware.
// Sets the following headers based on header mode:
//   - RateLimit-Limit: The ceiling for the current window
//   - RateLimit-Remaining: Requests remaining in the current window
//   - RateLimit-Reset: Unix timestamp when the current window resets
//   - Retry-After: (only when limited) Seconds until the window resets
//
// Panics if no key dimensions are configured.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	if len(l.keyDims) == 0 {
		panic("throttle: must configure at least one key dimension option (WithIP, WithRealIP, WithEndpoint, WithHeader, or WithKeyFunc)")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		useState := sitegate.HasState(ctx)

		key, missingDim := l.buildKey(r)

		if missingDim != "" {
			errMsg := fmt.Sprintf("Missing required %s", missingDim)
			if useState {
				sitegate.SetError(r, sitegate.ErrBadRequest.With(errMsg))
			} else {
				http.Error(w, errMsg, http.StatusBadRequest)
			}
			return
		}

		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		decision, err := l.Check(ctx, key)
		if err != nil {
			if useState {
				sitegate.SetError(r, sitegate.ErrInternal.With("Throttle check failed"))
			} else {
				http.Error(w, "Throttle check failed", http.StatusInternalServerError)
			}
			return
		}

		setHeaders := l.headerMode == HeadersAlways ||
			(l.headerMode == HeadersOnLimitExceeded && !decision.Allowed)

		if setHeaders {
			l.setHeader(r, w, useState, "RateLimit-Limit", strconv.FormatInt(l.policy.MaxRequests, 10))
			l.setHeader(r, w, useState, "RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			l.setHeader(r, w, useState, "RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}

		if !decision.Allowed {
			if setHeaders {
				retryAfter := int(decision.ResetAt.Sub(l.now()).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				l.setHeader(r, w, useState, "Retry-After", strconv.Itoa(retryAfter))
			}
			errMsg := fmt.Sprintf("Rate limit exceeded: %d requests per %s", l.policy.MaxRequests, l.policy.Window)
			if useState {
				sitegate.SetError(r, sitegate.ErrRateLimited.With(errMsg))
			} else {
				http.Error(w, errMsg, http.StatusTooManyRequests)
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) setHeader(r *http.Request, w http.ResponseWriter, useState bool, key, value string) {
	if useState {
		sitegate.SetHeader(r, key, value)
	} else {
		w.Header().Set(key, value)
	}
}

// buildKey builds the throttle key from all dimensions.
// Returns (key, missingDimName). A non-empty missingDimName means a
// required dimension was absent.
func (l *Limiter) buildKey(r *http.Request) (string, string) {
	var sb strings.Builder
	sb.Grow(20 + len(l.keyDims)*30)
	hasContent := false

	if l.name != "" {
		sb.WriteString(l.name)
		hasContent = true
	}

	for _, dim := range l.keyDims {
		part := dim.fn(r)
		if part == "" {
			if dim.required {
				return "", dim.name
			}
			continue
		}
		if hasContent {
			sb.WriteByte(':')
		}
		sb.WriteString(part)
		hasContent = true
	}

	if !hasContent {
		return "", ""
	}
	return sb.String(), ""
}
