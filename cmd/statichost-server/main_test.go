package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/statichost/internal/server/config"
)

// testEnvPrefix keeps the process environment out of the tests.
const testEnvPrefix = "STATICHOST_TEST_"

func loadConfig(path string) (*config.ServerConfig, error) {
	return configSource{File: path, EnvPrefix: testEnvPrefix}.load()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statichost.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	logDir := t.TempDir()
	return writeConfig(t, `
environment: Development
hosting:
  http_port: 8088
content:
  root: `+root+`
auth:
  fallback_policy: allow_all
  anonymous_paths: /healthz,/readyz,/version
log:
  level: debug
  dir: `+logDir+`
`)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig(validConfig(t))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Environment != config.EnvironmentDevelopment {
		t.Errorf("Environment = %q, want %q", cfg.Environment, config.EnvironmentDevelopment)
	}
	if cfg.Hosting.HTTPPort != 8088 {
		t.Errorf("HTTPPort = %d, want 8088", cfg.Hosting.HTTPPort)
	}
	if cfg.Auth.FallbackPolicy != config.PolicyAllowAll {
		t.Errorf("FallbackPolicy = %q, want %q", cfg.Auth.FallbackPolicy, config.PolicyAllowAll)
	}
	if got := strings.Join(cfg.Auth.AnonymousPaths, " "); got != "/healthz /readyz /version" {
		t.Errorf("AnonymousPaths = %q", got)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.RateLimit.Limit != config.DefaultRateLimit {
		t.Errorf("RateLimit.Limit = %d, want default %d", cfg.RateLimit.Limit, config.DefaultRateLimit)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv(testEnvPrefix+"RATE_LIMIT__LIMIT", "7")
	t.Setenv(testEnvPrefix+"LOG__LEVEL", "warn")
	t.Setenv("STATICHOST_RATE_LIMIT__LIMIT", "9")

	cfg, err := loadConfig(validConfig(t))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.RateLimit.Limit != 7 {
		t.Errorf("RateLimit.Limit = %d, want 7 from the prefixed variable", cfg.RateLimit.Limit)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no authenticator",
			body: "auth:\n  fallback_policy: require_authenticated\n",
			want: "invalid configuration",
		},
		{
			name: "bad policy",
			body: "auth:\n  fallback_policy: sometimes\n",
			want: "auth.fallback_policy",
		},
		{
			name: "malformed yaml",
			body: "hosting: [",
			want: "load config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("loadConfig() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("loadConfig() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestCheckFlag(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	args := []string{"statichost-server", "--config", validConfig(t), "--env-prefix", testEnvPrefix, "--check"}
	if err := app.Run(args); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "configuration OK") {
		t.Errorf("output = %q, want configuration OK", out.String())
	}
}

func TestCheckFlagInvalid(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}

	path := writeConfig(t, "environment: staging\n")
	if err := app.Run([]string{"statichost-server", "-c", path, "--env-prefix", testEnvPrefix, "--check"}); err == nil {
		t.Fatal("Run() error = nil for invalid environment")
	}
}

func TestInitLoggerFallsBackToStdout(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Log.Dir = filepath.Join(blocker, "logs")
	cfg.Log.Level = "error"

	log, file, err := initLogger(cfg)
	if err != nil {
		t.Fatalf("initLogger() error = %v", err)
	}
	if log == nil {
		t.Fatal("initLogger() returned nil logger")
	}
	if file != nil {
		t.Errorf("initLogger() file = %v, want nil for unusable dir", file.Path())
	}
}

func TestInitLoggerOpensDailyFile(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Dir = t.TempDir()
	cfg.Log.Level = "error"

	_, file, err := initLogger(cfg)
	if err != nil {
		t.Fatalf("initLogger() error = %v", err)
	}
	if file == nil {
		t.Fatal("initLogger() file = nil")
	}
	defer file.Close()
	if got := filepath.Base(file.Path()); got != logFileName+".log" {
		t.Errorf("log file = %q, want %s.log", got, logFileName)
	}
}
