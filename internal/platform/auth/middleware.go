package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/workshop-planner/api/internal/platform/httpx"
)

const defaultVerifyTimeout = 5 * time.Second

var (
	// ErrTokenExpired is returned by verifiers for an expired ID token.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid is returned by verifiers for any other rejected ID token.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
	// ErrVerifierUnavailable means the token could not be checked, not that it is bad.
	ErrVerifierUnavailable = errors.New("auth: token verification unavailable")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns a bearer ID token into an Identity carrying workshop roles.
type Authenticator struct {
	verifier     TokenVerifier
	roleClaim    string
	fallbackRole string
	timeout      time.Duration
}

// Option customises an Authenticator.
type Option func(*Authenticator)

// WithRoleClaim names the custom claim holding roles. The legacy "role" claim is still read
// when the configured claim is absent.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithFallbackRole grants role to tokens without any role claim. Without it such tokens get 403.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		a.fallbackRole = normaliseRole(role)
	}
}

// WithVerificationTimeout bounds each token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator builds an Authenticator around verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:  verifier,
		roleClaim: defaultRoleClaim,
		timeout:   defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireRoles rejects requests without a valid bearer token. When roles are given the caller
// must hold at least one of them.
func (a *Authenticator) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := uniqueRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, failure := a.authenticate(r)
			if failure != nil {
				httpx.WriteError(r.Context(), w, *failure)
				return
			}
			if len(allowed) > 0 && !identity.HasAnyRole(allowed...) {
				httpx.WriteError(r.Context(), w, httpx.NewError("insufficient_role", "identity does not have required role", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *Authenticator) authenticate(r *http.Request) (*Identity, *httpx.Error) {
	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, unauthenticated("unauthenticated", "authorization header missing or invalid")
	}
	if a == nil || a.verifier == nil {
		return nil, unauthenticated("unauthenticated", "authorization service unavailable")
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()
	token, err := a.verifier.VerifyIDToken(ctx, raw)
	switch {
	case err == nil:
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		return nil, unauthenticated("token_expired", "firebase id token expired")
	case errors.Is(err, ErrVerifierUnavailable):
		e := httpx.NewError("auth_unavailable", "token verification temporarily unavailable", http.StatusServiceUnavailable)
		return nil, &e
	default:
		return nil, unauthenticated("invalid_token", "firebase id token invalid")
	}

	c := claims(token.Claims)
	roles := c.roles(a.roleClaim)
	if len(roles) == 0 && a.roleClaim != legacyRoleClaim {
		roles = c.roles(legacyRoleClaim)
	}
	if len(roles) == 0 && a.fallbackRole != "" {
		roles = []string{a.fallbackRole}
	}
	if len(roles) == 0 {
		e := httpx.NewError("missing_role", "no workshop role associated with identity", http.StatusForbidden)
		return nil, &e
	}
	return &Identity{
		UID:   token.UID,
		Email: c.text("email"),
		Name:  c.text("name"),
		Roles: roles,
		token: token,
	}, nil
}

func unauthenticated(code, message string) *httpx.Error {
	e := httpx.NewError(code, message, http.StatusUnauthorized)
	return &e
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
