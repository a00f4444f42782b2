package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENVIRONMENT", "PORT", "ALLOWED_ORIGINS", "JWT_SECRET", "REQUIRE_SESSION_TOKEN",
		"DATABASE_URL", "CHAT_RETENTION", "CHAT_SWEEP_INTERVAL", "PORT_RECLAIM", "PORT_RETRY_DELAY",
		"ARCHIVE_S3_BUCKET", "ARCHIVE_S3_ENDPOINT", "ARCHIVE_S3_ACCESS_KEY_ID", "ARCHIVE_S3_SECRET_ACCESS_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig err: %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Fatalf("expected port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.Retention != 72*time.Hour {
		t.Fatalf("expected 72h retention, got %s", cfg.Retention)
	}
	if cfg.SweepInterval != time.Hour {
		t.Fatalf("expected hourly sweep, got %s", cfg.SweepInterval)
	}
	if cfg.RequireSessionToken {
		t.Fatalf("expected session token to be optional in development")
	}
	if !cfg.PortReclaim {
		t.Fatalf("expected port reclaim enabled by default")
	}
	if cfg.ArchiveEnabled() {
		t.Fatalf("expected archive disabled without bucket")
	}
}

func TestLoadConfigProductionRequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without JWT_SECRET in production")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without DATABASE_URL in production")
	}

	t.Setenv("DATABASE_URL", "postgres://x@db/relay")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig err: %v", err)
	}
	if cfg.RequireSessionToken {
		t.Fatalf("expected query identity to stay allowed until REQUIRE_SESSION_TOKEN is set")
	}

	t.Setenv("REQUIRE_SESSION_TOKEN", "true")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig err: %v", err)
	}
	if !cfg.RequireSessionToken {
		t.Fatalf("expected session token required when enabled")
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                  "80",
		"CHAT_RETENTION":        "-1h",
		"CHAT_SWEEP_INTERVAL":   "soon",
		"REQUIRE_SESSION_TOKEN": "maybe",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestLoadConfigArchiveNeedsCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARCHIVE_S3_BUCKET", "chat-archive")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for bucket without endpoint/credentials")
	}

	t.Setenv("ARCHIVE_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("ARCHIVE_S3_ACCESS_KEY_ID", "id")
	t.Setenv("ARCHIVE_S3_SECRET_ACCESS_KEY", "key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig err: %v", err)
	}
	if !cfg.ArchiveEnabled() {
		t.Fatal("expected archive enabled")
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	if err := os.WriteFile(path, []byte("PORT=4100\nCHAT_RETENTION=24h\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	t.Setenv("PORT", "4200")
	os.Unsetenv("CHAT_RETENTION")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv err: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig err: %v", err)
	}
	if cfg.Port != 4200 {
		t.Fatalf("expected exported PORT to win, got %d", cfg.Port)
	}
	if cfg.Retention != 24*time.Hour {
		t.Fatalf("expected retention from .env, got %s", cfg.Retention)
	}
}
