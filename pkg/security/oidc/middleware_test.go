package oidc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeVerifier struct {
	subject *Subject
	err     error
	gotRaw  string
}

func (f *fakeVerifier) Verify(ctx context.Context, rawToken string) (*Subject, error) {
	f.gotRaw = rawToken
	if f.err != nil {
		return nil, f.err
	}
	return f.subject, nil
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	fv := &fakeVerifier{subject: &Subject{Subject: "alice"}}
	h := Middleware(fv, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareRejectsNonBearer(t *testing.T) {
	fv := &fakeVerifier{subject: &Subject{Subject: "alice"}}
	h := Middleware(fv, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	fv := &fakeVerifier{err: errors.New("bad signature")}
	h := Middleware(fv, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if fv.gotRaw != "not-a-token" {
		t.Errorf("verifier received %q", fv.gotRaw)
	}
}

func TestMiddlewarePassesSubject(t *testing.T) {
	fv := &fakeVerifier{subject: &Subject{Subject: "alice", Roles: []string{"admin.read"}}}
	var got *Subject
	h := Middleware(fv, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got == nil || got.Subject != "alice" {
		t.Fatalf("subject in context = %+v", got)
	}
	if rec.Header().Get("X-Admin-Subject") != "alice" {
		t.Errorf("X-Admin-Subject = %q", rec.Header().Get("X-Admin-Subject"))
	}
}

func TestMiddlewareExemption(t *testing.T) {
	fv := &fakeVerifier{err: errors.New("should not be consulted")}
	exempt := func(r *http.Request) bool { return r.URL.Path == "/admin/health" }
	h := Middleware(fv, exempt)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("exempt path: status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/config", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("non-exempt path: status = %d, want 401", rec.Code)
	}
}

func TestRolesFromClaims(t *testing.T) {
	claims := rawClaims{Roles: []any{"admin.read", "viewer", "admin.read"}}
	claims.RealmAccess.Roles = []string{"operator"}
	roles := rolesFromClaims(claims)

	want := map[string]bool{"admin.read": true, "viewer": true, "operator": true}
	if len(roles) != len(want) {
		t.Fatalf("roles = %v", roles)
	}
	for _, r := range roles {
		if !want[r] {
			t.Errorf("unexpected role %q", r)
		}
	}
}

func TestScopesFromClaims(t *testing.T) {
	claims := rawClaims{Scope: "openid admin.read", Scp: []any{"email"}}
	scopes := scopesFromClaims(claims)
	joined := strings.Join(scopes, ",")
	for _, want := range []string{"openid", "admin.read", "email"} {
		if !strings.Contains(joined, want) {
			t.Errorf("scopes %v missing %q", scopes, want)
		}
	}
}

func TestFirstAudience(t *testing.T) {
	if got := firstAudience("aud1"); got != "aud1" {
		t.Errorf("string audience = %q", got)
	}
	if got := firstAudience([]any{"aud1", "aud2"}); got != "aud1" {
		t.Errorf("array audience = %q", got)
	}
	if got := firstAudience(nil); got != "" {
		t.Errorf("nil audience = %q", got)
	}
}
