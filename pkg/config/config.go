package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for s3proxy.
//
// YAML example:
//   address: ":8000"
//   region: "us-east-1"
//   client:
//     accessKey: "CLIENTKEY"
//     secretKey: "clientsecret"
//   origin:
//     domain: "s3.example.com"
//     accessKey: "ORIGINKEY"
//     secretKey: "originsecret"
//
// Environment overrides (S3PROXY_* wins over the file; PORT is honored as a
// fallback for Address for container runtimes that only inject a port):
//   S3PROXY_ADDR, PORT
//   S3PROXY_ADMIN_ADDR
//   S3PROXY_REGION
//   S3PROXY_CLIENT_ACCESS_KEY, S3PROXY_CLIENT_SECRET_KEY
//   S3PROXY_ORIGIN_ACCESS_KEY, S3PROXY_ORIGIN_SECRET_KEY
//   S3PROXY_ORIGIN_DOMAIN, S3PROXY_ORIGIN_SCHEME
//   S3PROXY_UPSTREAM_TIMEOUT, S3PROXY_PROBE_TIMEOUT
//   S3PROXY_TRACING_ENABLED, S3PROXY_TRACING_ENDPOINT, S3PROXY_TRACING_PROTOCOL,
//   S3PROXY_TRACING_SAMPLE, S3PROXY_TRACING_SERVICE
//   S3PROXY_OIDC_ENABLED, S3PROXY_OIDC_ISSUER, S3PROXY_OIDC_CLIENT_ID,
//   S3PROXY_OIDC_AUDIENCE, S3PROXY_OIDC_JWKS_URL,
//   S3PROXY_OIDC_ALLOW_UNAUTH_HEALTH, S3PROXY_OIDC_ALLOW_UNAUTH_VERSION
//   S3PROXY_CONFIG path to the YAML file; if empty, ./config.yaml is tried.
//
// The loaded Config is immutable after startup and injected by value.
type Config struct {
	Address      string         `yaml:"address"`
	AdminAddress string         `yaml:"adminAddress"` // optional separate admin port
	Region       string         `yaml:"region"`       // presign CLI default only; request scopes are parsed per request
	Client       CredentialPair `yaml:"client"`
	Origin       OriginConfig   `yaml:"origin"`
	Upstream     UpstreamConfig `yaml:"upstream"`
	Tracing      TracingConfig  `yaml:"tracing"`
	OIDC         OIDCConfig     `yaml:"oidc"` // admin OIDC verification
}

// CredentialPair is a static access/secret key pair.
type CredentialPair struct {
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// OriginConfig describes the backing store and its credentials.
type OriginConfig struct {
	Domain    string `yaml:"domain"`           // host[:port]
	Scheme    string `yaml:"scheme,omitempty"` // "https" (default) or "http"
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// UpstreamConfig bounds the outbound legs.
type UpstreamConfig struct {
	Timeout      string `yaml:"timeout,omitempty"`      // forwarded exchange, e.g. "5m"
	ProbeTimeout string `yaml:"probeTimeout,omitempty"` // health probe, e.g. "5s"
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`              // OTLP collector endpoint (host:port or URL)
	Protocol    string  `yaml:"protocol,omitempty"`    // "grpc" (default) or "http"
	SampleRatio float64 `yaml:"sampleRatio,omitempty"` // 0.0 - 1.0
	ServiceName string  `yaml:"serviceName,omitempty"` // default "s3proxy"
}

// OIDCConfig configures Admin API OIDC verification (disabled by default).
type OIDCConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Issuer   string `yaml:"issuer,omitempty"`
	ClientID string `yaml:"clientID,omitempty"`
	Audience string `yaml:"audience,omitempty"`
	JWKSURL  string `yaml:"jwksURL,omitempty"`
	// When OIDC is enabled, optionally allow unauthenticated access to
	// selected admin endpoints (k8s/LB probes without tokens).
	AllowUnauthHealth  bool `yaml:"allowUnauthHealth,omitempty"`
	AllowUnauthVersion bool `yaml:"allowUnauthVersion,omitempty"`
}

// Default returns a Config with safe, local defaults. Credentials and the
// origin domain have no defaults; Validate rejects a Config without them.
func Default() Config {
	return Config{
		Address: ":8000",
		Region:  "us-east-1",
		Origin: OriginConfig{
			Scheme: "https",
		},
		Upstream: UpstreamConfig{
			Timeout:      "5m",
			ProbeTimeout: "5s",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Protocol:    "grpc",
			SampleRatio: 0.0,
			ServiceName: "s3proxy",
		},
		OIDC: OIDCConfig{
			Enabled: false,
		},
	}
}

// Load reads configuration from path. If path is empty, it attempts to read
// ./config.yaml; if not found, returns Default(). Environment overrides are
// applied last.
func Load(path string) (Config, error) {
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path == "" {
		return applyEnvOverrides(Default()), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return applyEnvOverrides(Default()), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return applyEnvOverrides(cfg), nil
}

// Validate reports missing required settings in one pass.
func Validate(cfg Config) error {
	var missing []string
	if cfg.Client.AccessKey == "" {
		missing = append(missing, "client.accessKey")
	}
	if cfg.Client.SecretKey == "" {
		missing = append(missing, "client.secretKey")
	}
	if cfg.Origin.AccessKey == "" {
		missing = append(missing, "origin.accessKey")
	}
	if cfg.Origin.SecretKey == "" {
		missing = append(missing, "origin.secretKey")
	}
	if cfg.Origin.Domain == "" {
		missing = append(missing, "origin.domain")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	if s := cfg.Origin.Scheme; s != "" && s != "http" && s != "https" {
		return fmt.Errorf("config: invalid origin.scheme %q", s)
	}
	return nil
}

func applyEnvOverrides(cfg Config) Config {
	if v := os.Getenv("S3PROXY_ADDR"); v != "" {
		cfg.Address = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.Address = ":" + strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_ADMIN_ADDR"); v != "" {
		cfg.AdminAddress = v
	}
	if v := os.Getenv("S3PROXY_REGION"); v != "" {
		cfg.Region = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_CLIENT_ACCESS_KEY"); v != "" {
		cfg.Client.AccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_CLIENT_SECRET_KEY"); v != "" {
		cfg.Client.SecretKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_ORIGIN_ACCESS_KEY"); v != "" {
		cfg.Origin.AccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_ORIGIN_SECRET_KEY"); v != "" {
		cfg.Origin.SecretKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_ORIGIN_DOMAIN"); v != "" {
		cfg.Origin.Domain = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_ORIGIN_SCHEME"); v != "" {
		s := strings.ToLower(strings.TrimSpace(v))
		if s == "http" || s == "https" {
			cfg.Origin.Scheme = s
		}
	}
	if v := os.Getenv("S3PROXY_UPSTREAM_TIMEOUT"); v != "" {
		cfg.Upstream.Timeout = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_PROBE_TIMEOUT"); v != "" {
		cfg.Upstream.ProbeTimeout = strings.TrimSpace(v)
	}

	// Tracing overrides
	if v := os.Getenv("S3PROXY_TRACING_ENABLED"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.Tracing.Enabled = b
		}
	}
	if v := os.Getenv("S3PROXY_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_TRACING_PROTOCOL"); v != "" {
		p := strings.ToLower(strings.TrimSpace(v))
		if p == "grpc" || p == "http" {
			cfg.Tracing.Protocol = p
		}
	}
	if v := os.Getenv("S3PROXY_TRACING_SAMPLE"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			if f < 0 {
				f = 0
			}
			if f > 1 {
				f = 1
			}
			cfg.Tracing.SampleRatio = f
		}
	}
	if v := os.Getenv("S3PROXY_TRACING_SERVICE"); v != "" {
		cfg.Tracing.ServiceName = strings.TrimSpace(v)
	}

	// Admin OIDC overrides
	if v := os.Getenv("S3PROXY_OIDC_ENABLED"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.OIDC.Enabled = b
		}
	}
	if v := os.Getenv("S3PROXY_OIDC_ISSUER"); v != "" {
		cfg.OIDC.Issuer = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_OIDC_CLIENT_ID"); v != "" {
		cfg.OIDC.ClientID = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_OIDC_AUDIENCE"); v != "" {
		cfg.OIDC.Audience = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_OIDC_JWKS_URL"); v != "" {
		cfg.OIDC.JWKSURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3PROXY_OIDC_ALLOW_UNAUTH_HEALTH"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.OIDC.AllowUnauthHealth = b
		}
	}
	if v := os.Getenv("S3PROXY_OIDC_ALLOW_UNAUTH_VERSION"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.OIDC.AllowUnauthVersion = b
		}
	}

	return cfg
}

func parseBool(v string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}
