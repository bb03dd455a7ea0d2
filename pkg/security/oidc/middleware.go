// Package oidc protects the s3proxy admin API with OIDC bearer-token
// verification and a small role policy. The data-plane proxy path never goes
// through this package; SigV4 query authentication covers it.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// Config defines OIDC verification settings for the admin API. Typical
// minimal config needs Issuer and ClientID, or a JWKSURL + Audience.
type Config struct {
	// Issuer is the OIDC issuer URL; when set, the provider's well-known
	// metadata is used to discover JWKS and other endpoints.
	Issuer string

	// ClientID is the expected audience/client_id for ID tokens.
	ClientID string

	// Audience, when set, overrides ClientID as the expected audience.
	Audience string

	// JWKSURL is an optional direct JWKS endpoint; used when Issuer
	// discovery is not available.
	JWKSURL string
}

// Verifier validates Bearer tokens using OIDC discovery or a remote JWKS.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewVerifier builds a token verifier based on the provided Config.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	expectedAud := cfg.Audience
	if expectedAud == "" {
		expectedAud = cfg.ClientID
	}

	switch {
	case cfg.Issuer != "":
		provider, err := gooidc.NewProvider(ctx, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("oidc: provider discovery failed: %w", err)
		}
		return &Verifier{verifier: provider.Verifier(&gooidc.Config{ClientID: expectedAud})}, nil
	case cfg.JWKSURL != "":
		ks := gooidc.NewRemoteKeySet(ctx, cfg.JWKSURL)
		// Empty issuer skips the issuer check.
		return &Verifier{verifier: gooidc.NewVerifier(cfg.Issuer, ks, &gooidc.Config{ClientID: expectedAud})}, nil
	default:
		return nil, errors.New("oidc: either Issuer or JWKSURL must be provided")
	}
}

// Subject holds verified identity fields extracted from the token.
type Subject struct {
	Subject   string
	Issuer    string
	Audience  string
	ExpiresAt time.Time
	Roles     []string
	Scopes    []string
}

type rawClaims struct {
	Exp         int64  `json:"exp"`
	Sub         string `json:"sub"`
	Iss         string `json:"iss"`
	Aud         any    `json:"aud"` // string or []string
	Roles       any    `json:"roles"`
	Scope       string `json:"scope"`
	Scp         any    `json:"scp"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// Verify parses and validates a Bearer token string and returns subject info.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Subject, error) {
	if v == nil || v.verifier == nil {
		return nil, errors.New("oidc: verifier not initialized")
	}
	idt, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("oidc: token verification failed: %w", err)
	}
	var claims rawClaims
	if err := idt.Claims(&claims); err != nil {
		return nil, fmt.Errorf("oidc: parse claims: %w", err)
	}
	return &Subject{
		Subject:   claims.Sub,
		Issuer:    claims.Iss,
		Audience:  firstAudience(claims.Aud),
		ExpiresAt: time.Unix(claims.Exp, 0).UTC(),
		Roles:     rolesFromClaims(claims),
		Scopes:    scopesFromClaims(claims),
	}, nil
}

func firstAudience(aud any) string {
	switch t := aud.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	case []string:
		if len(t) > 0 {
			return t[0]
		}
	}
	return ""
}

// rolesFromClaims collects roles from the common locations: a top-level
// "roles" claim (array or single string) and Keycloak's realm_access.roles.
func rolesFromClaims(claims rawClaims) []string {
	set := map[string]struct{}{}
	add := func(r string) {
		r = strings.TrimSpace(r)
		if r != "" {
			set[r] = struct{}{}
		}
	}
	switch t := claims.Roles.(type) {
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				add(s)
			}
		}
	case []string:
		for _, s := range t {
			add(s)
		}
	case string:
		add(t)
	}
	for _, r := range claims.RealmAccess.Roles {
		add(r)
	}
	var roles []string
	for r := range set {
		roles = append(roles, r)
	}
	return roles
}

// scopesFromClaims merges "scope" (space-separated) and "scp" (array or
// string) claims.
func scopesFromClaims(claims rawClaims) []string {
	var scopes []string
	addSplit := func(s string) {
		for _, part := range strings.Split(s, " ") {
			part = strings.TrimSpace(part)
			if part != "" {
				scopes = append(scopes, part)
			}
		}
	}
	if claims.Scope != "" {
		addSplit(claims.Scope)
	}
	switch t := claims.Scp.(type) {
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok {
				scopes = append(scopes, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range t {
			scopes = append(scopes, strings.TrimSpace(s))
		}
	case string:
		addSplit(t)
	}
	return scopes
}

// VerifierIface allows plugging a custom verifier (and simplifies testing).
type VerifierIface interface {
	Verify(ctx context.Context, rawToken string) (*Subject, error)
}

// Context helpers to access the verified subject downstream (e.g., RBAC).
type contextKey string

const subjectContextKey contextKey = "oidcSubject"

func WithSubject(ctx context.Context, s *Subject) context.Context {
	if s == nil {
		return ctx
	}
	return context.WithValue(ctx, subjectContextKey, s)
}

func SubjectFromContext(ctx context.Context) (*Subject, bool) {
	v := ctx.Value(subjectContextKey)
	if v == nil {
		return nil, false
	}
	if s, ok := v.(*Subject); ok {
		return s, true
	}
	return nil, false
}

// Middleware enforces OIDC Bearer auth on incoming requests. It expects
// Authorization: Bearer <token>. On success it sets X-Admin-Subject and
// stores the subject in the request context; on failure it returns 401.
func Middleware(v VerifierIface, exempt func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt != nil && exempt(r) {
				next.ServeHTTP(w, r)
				return
			}
			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
			subj, err := v.Verify(r.Context(), raw)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := r.Context()
			if subj != nil {
				w.Header().Set("X-Admin-Subject", subj.Subject)
				ctx = WithSubject(ctx, subj)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
