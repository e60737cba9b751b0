package config

import (
	"path/filepath"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("DB_PATH", filepath.Join(dir, "db", "data.db"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.ServerPort)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %s", cfg.Database.Driver)
	}
	if cfg.Resolve.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", cfg.Resolve.Attempts)
	}
	if cfg.Resolve.AttemptTimeout != 8*time.Second {
		t.Errorf("expected 8s attempt timeout, got %s", cfg.Resolve.AttemptTimeout)
	}
	if cfg.Resolve.InitialBackoff != time.Second {
		t.Errorf("expected 1s backoff, got %s", cfg.Resolve.InitialBackoff)
	}
	if cfg.Transcript.HostedAPIKey != "" {
		t.Errorf("expected hosted API to be unconfigured")
	}
	if cfg.Archive.Enabled() {
		t.Errorf("expected archive to be disabled without a bucket")
	}
	if cfg.AlwaysOK {
		t.Errorf("expected AlwaysOK to default to false")
	}
	if cfg.Middleware.EnableRateLimit {
		t.Errorf("expected development middleware preset")
	}
}

func TestLoadFromEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("READ_TIMEOUT", "10s")
	t.Setenv("TRANSCRIPT_API_KEY", "secret")
	t.Setenv("YOUTUBE_RPS", "0.5")
	t.Setenv("RESOLVE_ATTEMPTS", "5")
	t.Setenv("ALWAYS_OK", "true")
	t.Setenv("ARCHIVE_BUCKET", "captions")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("expected 9090, got %s", cfg.ServerPort)
	}
	if cfg.ReadTimeout != 10*time.Second {
		t.Errorf("expected 10s, got %s", cfg.ReadTimeout)
	}
	if cfg.Transcript.HostedAPIKey != "secret" {
		t.Errorf("expected hosted API key to be read")
	}
	if cfg.Transcript.RequestsPerSecond != 0.5 {
		t.Errorf("expected 0.5 rps, got %v", cfg.Transcript.RequestsPerSecond)
	}
	if cfg.Resolve.Attempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Resolve.Attempts)
	}
	if !cfg.AlwaysOK {
		t.Errorf("expected AlwaysOK")
	}
	if !cfg.Archive.Enabled() {
		t.Errorf("expected archive to be enabled")
	}
	if got := cfg.CORS.AllowedOrigins; len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", got)
	}
	if !cfg.Middleware.EnableRateLimit || !cfg.Production {
		t.Errorf("expected production middleware preset")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("READ_TIMEOUT", "soon")
	t.Setenv("QUEUE_WORKERS", "many")
	t.Setenv("DEBUG", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Errorf("expected default read timeout, got %s", cfg.ReadTimeout)
	}
	if cfg.Queue.Workers != 4 {
		t.Errorf("expected default workers, got %d", cfg.Queue.Workers)
	}
	if cfg.Debug {
		t.Errorf("expected debug default false")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, true},
		{"postgres with url", map[string]string{"DB_DRIVER": "postgres", "DATABASE_URL": "postgres://localhost/yt"}, false},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, true},
		{"zero attempts", map[string]string{"RESOLVE_ATTEMPTS": "0"}, true},
		{"negative timeout", map[string]string{"WRITE_TIMEOUT": "-1s"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
