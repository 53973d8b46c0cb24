package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "test")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example, http://b.example,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StorageDriver != StorageDriverLocal {
		t.Fatalf("unexpected storage driver: %s", cfg.StorageDriver)
	}
	if cfg.MaxUploadBytes() != 100*1_000_000 {
		t.Fatalf("unexpected upload limit: %d", cfg.MaxUploadBytes())
	}
	origins := cfg.AllowedOrigins()
	if len(origins) != 2 || origins[0] != "http://a.example" || origins[1] != "http://b.example" {
		t.Fatalf("unexpected origins: %#v", origins)
	}
	if cfg.TaskLockTTL() != 10*time.Minute {
		t.Fatalf("unexpected lock ttl: %s", cfg.TaskLockTTL())
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "ftp")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestValidateReleaseRequiresSecrets(t *testing.T) {
	cfg := &Config{
		GinMode:         "release",
		StorageDriver:   StorageDriverLocal,
		StorageDir:      "static",
		MaxUploadSizeMB: 100,
		DatabaseDSN:     "dsn",
		RedisURL:        "redis://127.0.0.1:6379/0",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
	cfg.JWTSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
