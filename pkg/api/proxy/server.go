// Package proxy implements the request-facing HTTP surface: SigV4
// verification of inbound presigned requests, re-signing against the origin
// credential pair, streaming forwarding of the rewritten request, and origin
// health probing.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/salehi/s3proxy/pkg/security/sigv4"
)

// Options configures a proxy Server. Credential pairs and the origin host are
// immutable for the lifetime of the process.
type Options struct {
	// Client is the credential pair presented by callers.
	Client sigv4.Credentials
	// Origin is the credential pair used towards the backing store.
	Origin sigv4.Credentials
	// OriginHost is the origin domain (host[:port]).
	OriginHost string
	// OriginScheme is "https" (default) or "http".
	OriginScheme string
	// UpstreamTimeout bounds a full forwarded exchange; default 5m.
	UpstreamTimeout time.Duration
	// ProbeTimeout bounds a health probe; default 5s.
	ProbeTimeout time.Duration
}

// Server routes proxy requests. Dependencies are injected for testability.
type Server struct {
	opt    Options
	client *http.Client
	obs    Observer
}

// Observer receives proxy-level events; implemented by the metrics package.
// A nil observer is valid and drops all events.
type Observer interface {
	ObserveAuthFailure(reason string)
	ObserveUpstreamError(kind string)
	ObserveForwardedBytes(direction string, n int64)
	ObserveHealthCheck(healthy bool)
}

// New returns a proxy server for the given options.
func New(opt Options) *Server {
	if opt.OriginScheme == "" {
		opt.OriginScheme = "https"
	}
	if opt.UpstreamTimeout <= 0 {
		opt.UpstreamTimeout = 5 * time.Minute
	}
	if opt.ProbeTimeout <= 0 {
		opt.ProbeTimeout = 5 * time.Second
	}
	return &Server{
		opt: opt,
		client: &http.Client{
			Timeout: opt.UpstreamTimeout,
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				MaxIdleConnsPerHost:   32,
			},
			// Redirects from the origin are relayed verbatim, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// SetObserver wires a metrics observer.
func (s *Server) SetObserver(o Observer) { s.obs = o }

// SetHTTPClient overrides the upstream client (tests).
func (s *Server) SetHTTPClient(c *http.Client) { s.client = c }

// Handler returns an http.Handler for the proxy routes.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.route)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/healthz" {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleHealthz(w, r)
		return
	}
	s.handleForward(w, r)
}

func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead:
	default:
		w.Header().Set("Allow", "GET, POST, PUT, DELETE, HEAD")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := sigv4.VerifyPresignedRequest(r, s.opt.Client); err != nil {
		status, reason := classifyAuthError(err)
		if s.obs != nil {
			s.obs.ObserveAuthFailure(reason)
		}
		slog.Info("request rejected",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("reason", reason),
		)
		writeJSONError(w, status, err.Error())
		return
	}
	s.forward(w, r)
}

// classifyAuthError maps verification failures to HTTP statuses: malformed
// parameters and access-key mismatch are 400, a wrong or expired signature
// is 403.
func classifyAuthError(err error) (status int, reason string) {
	switch {
	case errors.Is(err, sigv4.ErrAccessKeyMismatch):
		return http.StatusBadRequest, "access_key_mismatch"
	case errors.Is(err, sigv4.ErrSignatureMismatch):
		return http.StatusForbidden, "signature_mismatch"
	case errors.Is(err, sigv4.ErrRequestExpired):
		return http.StatusForbidden, "expired"
	default:
		return http.StatusBadRequest, "malformed"
	}
}

// handleHealthz probes the origin synchronously; nothing is cached between
// calls since an external load balancer polls on its own schedule.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	healthy := s.probeOrigin(r.Context())
	if s.obs != nil {
		s.obs.ObserveHealthCheck(healthy)
	}
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		return
	}
	w.WriteHeader(statusOriginUnhealthy)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "nok"})
}

// statusOriginUnhealthy is the nonstandard code the external load balancer
// keys on to pull this instance from rotation.
const statusOriginUnhealthy = 450

// ProbeOrigin runs one synchronous origin health probe. Exposed for the
// admin API's on-demand probe endpoint.
func (s *Server) ProbeOrigin(ctx context.Context) bool {
	return s.probeOrigin(ctx)
}

func (s *Server) probeOrigin(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.opt.ProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.opt.OriginScheme+"://"+s.opt.OriginHost+"/", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		slog.Warn("origin probe failed", slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
