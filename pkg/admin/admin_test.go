package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testServer(probe ProbeFunc) *Server {
	return New(
		Info{Version: "1.2.3", Address: ":8000", AdminAddress: ":9000"},
		ConfigView{
			Address:         ":8000",
			Region:          "us-east-1",
			OriginDomain:    "s3.example.com",
			OriginScheme:    "https",
			ClientAccessKey: "CLIENTKEY",
			OriginAccessKey: "ORIGINKEY",
			UpstreamTimeout: "5m0s",
			ProbeTimeout:    "5s",
		},
		func() bool { return true },
		probe,
	)
}

func TestHealthEndpoint(t *testing.T) {
	h := testServer(nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "1.2.3" || body["ready"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestVersionEndpoint(t *testing.T) {
	h := testServer(nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/admin/version", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] != "1.2.3" {
		t.Errorf("version = %q", body["version"])
	}
}

func TestConfigEndpointRedactsSecrets(t *testing.T) {
	h := testServer(nil).Handler()
	req := httptest.NewRequest(http.MethodGet, "/admin/config", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	raw := rec.Body.String()
	if strings.Contains(raw, "secret") || strings.Contains(raw, "Secret") {
		t.Fatalf("config response leaks a secret field: %s", raw)
	}
	var view ConfigView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ClientAccessKey != "CLIENTKEY" || view.OriginDomain != "s3.example.com" {
		t.Errorf("view = %+v", view)
	}
}

func TestProbeEndpoint(t *testing.T) {
	var probed bool
	h := testServer(func(ctx context.Context) bool {
		probed = true
		return true
	}).Handler()

	req := httptest.NewRequest(http.MethodPost, "/admin/probe", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !probed {
		t.Fatal("probe func not invoked")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["healthy"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestProbeEndpointRequiresPOST(t *testing.T) {
	h := testServer(func(ctx context.Context) bool { return true }).Handler()
	req := httptest.NewRequest(http.MethodGet, "/admin/probe", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestProbeEndpointWithoutProbeFunc(t *testing.T) {
	h := testServer(nil).Handler()
	req := httptest.NewRequest(http.MethodPost, "/admin/probe", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestMethodNotAllowedOnReadEndpoints(t *testing.T) {
	h := testServer(nil).Handler()
	for _, path := range []string{"/admin/health", "/admin/version", "/admin/config"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: status = %d, want 405", path, rec.Code)
		}
	}
}
