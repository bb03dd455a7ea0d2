// Package admin exposes the read-only operator endpoints served on the
// separate admin port: process health, version, redacted runtime
// configuration, and an on-demand origin probe.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Info is the static process information reported by the admin endpoints.
type Info struct {
	Version      string
	Address      string
	AdminAddress string
}

// ConfigView is the redacted runtime configuration; secret keys never leave
// the process.
type ConfigView struct {
	Address         string `json:"address"`
	Region          string `json:"region"`
	OriginDomain    string `json:"originDomain"`
	OriginScheme    string `json:"originScheme"`
	ClientAccessKey string `json:"clientAccessKey"`
	OriginAccessKey string `json:"originAccessKey"`
	UpstreamTimeout string `json:"upstreamTimeout"`
	ProbeTimeout    string `json:"probeTimeout"`
}

// ProbeFunc runs one synchronous origin health probe.
type ProbeFunc func(ctx context.Context) bool

// Server serves the admin routes. ready reports process readiness and probe
// checks the origin; both are injected by main.
type Server struct {
	info   Info
	config ConfigView
	ready  func() bool
	probe  ProbeFunc
}

// New builds an admin server. ready and probe may be nil; a nil ready always
// reports true and a nil probe disables /admin/probe.
func New(info Info, cfg ConfigView, ready func() bool, probe ProbeFunc) *Server {
	return &Server{info: info, config: cfg, ready: ready, probe: probe}
}

// Handler returns the admin route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/health", s.handleHealth)
	mux.HandleFunc("/admin/version", s.handleVersion)
	mux.HandleFunc("/admin/config", s.handleConfig)
	mux.HandleFunc("/admin/probe", s.handleProbe)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ready := true
	if s.ready != nil {
		ready = s.ready()
	}
	writeJSON(w, map[string]any{
		"status":    "ok",
		"ready":     ready,
		"version":   s.info.Version,
		"address":   s.info.Address,
		"admin":     s.info.AdminAddress,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{
		"version":   s.info.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.config)
}

// handleProbe runs a single origin probe, POST only. Useful when diagnosing
// a 450 from /healthz without waiting for the load balancer cycle.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.probe == nil {
		http.Error(w, "probe not configured", http.StatusNotFound)
		return
	}
	healthy := s.probe(r.Context())
	writeJSON(w, map[string]any{
		"healthy":   healthy,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
