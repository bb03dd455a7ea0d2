package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/salehi/s3proxy/pkg/admin"
	"github.com/salehi/s3proxy/pkg/api/proxy"
	"github.com/salehi/s3proxy/pkg/config"
	"github.com/salehi/s3proxy/pkg/obs/metrics"
	"github.com/salehi/s3proxy/pkg/obs/tracing"
	adminoidc "github.com/salehi/s3proxy/pkg/security/oidc"
	"github.com/salehi/s3proxy/pkg/security/sigv4"
)

var version = "0.0.1-dev"
var ready atomic.Bool

func main() {
	// Load config from S3PROXY_CONFIG or ./config.yaml; defaults otherwise.
	cfgPath := os.Getenv("S3PROXY_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize tracing (OpenTelemetry)
	traceShutdown, terr := tracing.Init(context.Background(), tracing.Options{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Protocol:    cfg.Tracing.Protocol,
		SampleRatio: cfg.Tracing.SampleRatio,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if terr != nil {
		slog.Warn("tracing init failed", slog.String("error", terr.Error()))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Metrics: Prometheus /metrics endpoint and HTTP instrumentation
	m := metrics.New()
	mux.Handle("/metrics", m.Handler())
	pm := metrics.NewProxyMetrics(m.Registry())

	// Mount the re-signing proxy at root. /healthz is handled inside the
	// proxy server so the probe shares the upstream client configuration.
	srvOpts := proxy.Options{
		Client:          sigv4.Credentials{AccessKey: cfg.Client.AccessKey, SecretKey: cfg.Client.SecretKey},
		Origin:          sigv4.Credentials{AccessKey: cfg.Origin.AccessKey, SecretKey: cfg.Origin.SecretKey},
		OriginHost:      cfg.Origin.Domain,
		OriginScheme:    cfg.Origin.Scheme,
		UpstreamTimeout: parseDurationOr(cfg.Upstream.Timeout, 5*time.Minute),
		ProbeTimeout:    parseDurationOr(cfg.Upstream.ProbeTimeout, 5*time.Second),
	}
	api := proxy.New(srvOpts)
	api.SetObserver(pm)
	slog.Info("proxy configured",
		slog.String("origin", cfg.Origin.Domain),
		slog.String("scheme", srvOpts.OriginScheme),
		slog.String("clientAccessKey", cfg.Client.AccessKey),
	)

	handler := tracing.Middleware(api.Handler())
	handler = m.Middleware(handler)
	mux.Handle("/", handler)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming responses must not be cut off
		IdleTimeout:  60 * time.Second,
	}

	// Optional admin server on a separate port with read-only endpoints
	var adminSrv *http.Server
	if cfg.AdminAddress != "" {
		adm := admin.New(
			admin.Info{Version: version, Address: cfg.Address, AdminAddress: cfg.AdminAddress},
			admin.ConfigView{
				Address:         cfg.Address,
				Region:          cfg.Region,
				OriginDomain:    cfg.Origin.Domain,
				OriginScheme:    srvOpts.OriginScheme,
				ClientAccessKey: cfg.Client.AccessKey,
				OriginAccessKey: cfg.Origin.AccessKey,
				UpstreamTimeout: srvOpts.UpstreamTimeout.String(),
				ProbeTimeout:    srvOpts.ProbeTimeout.String(),
			},
			ready.Load,
			api.ProbeOrigin,
		)

		adminHandler := adm.Handler()
		if cfg.OIDC.Enabled {
			v, err := adminoidc.NewVerifier(context.Background(), adminoidc.Config{
				Issuer:   cfg.OIDC.Issuer,
				ClientID: cfg.OIDC.ClientID,
				Audience: cfg.OIDC.Audience,
				JWKSURL:  cfg.OIDC.JWKSURL,
			})
			if err != nil {
				slog.Error("admin oidc init failed", slog.String("error", err.Error()))
			} else {
				// Exemptions for health/version if allowed by config (LB/K8s probes).
				exempt := func(r *http.Request) bool {
					if cfg.OIDC.AllowUnauthHealth && r.URL.Path == "/admin/health" {
						return true
					}
					if cfg.OIDC.AllowUnauthVersion && r.URL.Path == "/admin/version" {
						return true
					}
					return false
				}
				// OIDC runs before RBAC so the subject is present for RBAC.
				adminHandler = adminoidc.RBAC(adminoidc.AdminPolicy())(adminHandler)
				adminHandler = adminoidc.Middleware(v, exempt)(adminHandler)
				slog.Info("admin oidc enabled",
					slog.Bool("allowUnauthHealth", cfg.OIDC.AllowUnauthHealth),
					slog.Bool("allowUnauthVersion", cfg.OIDC.AllowUnauthVersion),
				)
			}
		}

		adminSrv = &http.Server{
			Addr:         cfg.AdminAddress,
			Handler:      adminHandler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		}
		go func() {
			slog.Info("admin listening", slog.String("addr", cfg.AdminAddress))
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("admin server error", slog.String("error", err.Error()))
				os.Exit(1)
			}
		}()
	}

	go func() {
		ready.Store(true)
		slog.Info("s3proxy listening", slog.String("version", version), slog.String("addr", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ready.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", slog.String("error", err.Error()))
	}
	if adminSrv != nil {
		if err := adminSrv.Shutdown(ctx); err != nil {
			slog.Error("admin shutdown error", slog.String("error", err.Error()))
		}
	}
	if err := traceShutdown(ctx); err != nil {
		slog.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	slog.Info("s3proxy stopped")
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
