package oidc

import (
	"net/http"
	"strings"
)

// Policy maps an HTTP request to a list of required roles/scopes. An empty
// or nil result means no RBAC check for that request.
type Policy func(*http.Request) []string

// RBAC enforces role/scope checks using the provided policy. It expects that
// the OIDC middleware has already attached a Subject to the context.
func RBAC(policy Policy) func(http.Handler) http.Handler {
	if policy == nil {
		policy = func(r *http.Request) []string { return nil }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqRoles := policy(r)
			if len(reqRoles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			subj, ok := SubjectFromContext(r.Context())
			if !ok || subj == nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if !hasAny(subj, reqRoles) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// hasAny returns true if the subject has ANY of the required roles/scopes
// (exact match in Roles or Scopes).
func hasAny(s *Subject, required []string) bool {
	if s == nil || len(required) == 0 {
		return true
	}
	for _, req := range required {
		for _, r := range s.Roles {
			if r == req {
				return true
			}
		}
		for _, sc := range s.Scopes {
			if sc == req {
				return true
			}
		}
	}
	return false
}

// AdminPolicy defines the role requirements for the proxy admin API: GETs
// under /admin/ (health, version, redacted config) require "admin.read",
// POSTs (on-demand origin probe) require "admin.ops". Non-admin routes carry
// no RBAC requirement.
func AdminPolicy() Policy {
	return func(r *http.Request) []string {
		if !strings.HasPrefix(r.URL.Path, "/admin/") {
			return nil
		}
		switch r.Method {
		case http.MethodGet:
			return []string{"admin.read"}
		case http.MethodPost:
			return []string{"admin.ops"}
		}
		return nil
	}
}
