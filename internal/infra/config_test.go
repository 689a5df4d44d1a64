package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaultsToSQLiteWithoutDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("VIDEO_API_KEY", "key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreDriver != StoreDriverSQLite {
		t.Fatalf("StoreDriver mismatch: got %q want %q", cfg.StoreDriver, StoreDriverSQLite)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("PollInterval mismatch: got %s", cfg.PollInterval)
	}
	if cfg.PollMaxAttempts != 60 {
		t.Fatalf("PollMaxAttempts mismatch: got %d", cfg.PollMaxAttempts)
	}
}

func TestLoadConfigInfersPostgresFromDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("VIDEO_API_KEY", "key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("StoreDriver mismatch: got %q want %q", cfg.StoreDriver, StoreDriverPostgres)
	}
}

func TestLoadConfigRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("VIDEO_API_KEY", "key")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for postgres without DATABASE_URL")
	}
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("VIDEO_API_KEY", "key")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadConfigRequiresVideoAPIKey(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("VIDEO_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without VIDEO_API_KEY")
	}
}

func TestLoadConfigPollingOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("VIDEO_API_KEY", "key")
	t.Setenv("POLL_INTERVAL_SECONDS", "2")
	t.Setenv("POLL_MAX_ATTEMPTS", "7")
	t.Setenv("EMBEDDED_SWEEPER", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PollInterval != 2*time.Second || cfg.PollMaxAttempts != 7 {
		t.Fatalf("poll policy mismatch: %s / %d", cfg.PollInterval, cfg.PollMaxAttempts)
	}
	if !cfg.EmbeddedSweeper {
		t.Fatal("EmbeddedSweeper should be true")
	}
}

func TestLoadConfigRejectsNonPositiveAttempts(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("VIDEO_API_KEY", "key")
	t.Setenv("POLL_MAX_ATTEMPTS", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for zero attempts")
	}
}

func TestLoadConfigParsesCORSOrigins(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("VIDEO_API_KEY", "key")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example, ,https://b.example ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins mismatch: got %v", cfg.CORSOrigins)
	}
}

func TestLoadConfigAuthRequiredNeedsSecret(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("VIDEO_API_KEY", "key")
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for AUTH_REQUIRED without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("VIDEO_CALLBACK_SECRET", "hook-key")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.AuthRequired {
		t.Fatal("AuthRequired should be set")
	}
	if cfg.VideoCallbackSecret != "hook-key" {
		t.Fatalf("VideoCallbackSecret mismatch: got %q", cfg.VideoCallbackSecret)
	}
}
