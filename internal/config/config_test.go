package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
gateway:
  base_url: https://api.example.com/v1
  timeout: 10s
  max_rps: 5
auth:
  mode: api_key
  api_key: sk-test
database:
  dsn: ":memory:"
poller:
  interval: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Gateway.BaseURL != "https://api.example.com/v1" {
		t.Errorf("base_url = %q", cfg.Gateway.BaseURL)
	}
	if cfg.Gateway.Timeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.Gateway.Timeout)
	}
	if cfg.Auth.Mode != "api_key" || cfg.Auth.APIKey != "sk-test" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Database.DSN != ":memory:" {
		t.Errorf("dsn = %q, want :memory:", cfg.Database.DSN)
	}
	if cfg.Poller.Interval != time.Minute {
		t.Errorf("poller interval = %v, want 1m", cfg.Poller.Interval)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
gateway:
  base_url: https://api.example.com/v1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Auth.Mode != "none" {
		t.Errorf("default auth mode = %q, want none", cfg.Auth.Mode)
	}
	if cfg.Auth.APIKeyHeader != "x-api-key" {
		t.Errorf("default api key header = %q", cfg.Auth.APIKeyHeader)
	}
	if cfg.Database.DSN != "devportal.db" {
		t.Errorf("default dsn = %q", cfg.Database.DSN)
	}
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("default cache ttl = %v", cfg.Cache.DefaultTTL)
	}
	if cfg.Poller.Interval != 5*time.Minute {
		t.Errorf("default poller interval = %v", cfg.Poller.Interval)
	}
	if cfg.Monitor.Addr != "127.0.0.1:8090" {
		t.Errorf("default monitor addr = %q", cfg.Monitor.Addr)
	}
}

func TestExpandEnv(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv
	t.Setenv("TEST_PORTAL_KEY", "sk-secret-123")

	path := writeConfig(t, `
gateway:
  base_url: https://api.example.com/v1
auth:
  mode: api_key
  api_key: ${TEST_PORTAL_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.APIKey != "sk-secret-123" {
		t.Errorf("api_key = %q, want expanded env value", cfg.Auth.APIKey)
	}

	// Unset variables are left intact rather than expanded to empty.
	result := expandEnv([]byte("key: ${TEST_PORTAL_UNSET}"))
	if string(result) != "key: ${TEST_PORTAL_UNSET}" {
		t.Errorf("expandEnv = %q", string(result))
	}
}

func TestLoadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"missing base url",
			`auth: {mode: none}`,
			"base_url",
		},
		{
			"unknown auth mode",
			"gateway: {base_url: https://x}\nauth: {mode: kerberos}",
			"auth.mode",
		},
		{
			"oauth2 without token url",
			"gateway: {base_url: https://x}\nauth: {mode: oauth2}",
			"token_url",
		},
		{
			"sigv4 without region",
			"gateway: {base_url: https://x}\nauth: {mode: sigv4}",
			"region",
		},
		{
			"non-positive poll interval",
			"gateway: {base_url: https://x}\npoller: {enabled: true, interval: 0s}",
			"poller.interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}
