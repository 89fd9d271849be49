package config

import (
	"testing"
	"time"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "3001" {
		t.Errorf("Port = %q, want 3001", cfg.Port)
	}
	if cfg.Database.Database != "bakbak" {
		t.Errorf("Database = %q, want bakbak", cfg.Database.Database)
	}
	if cfg.Retention.Window != 30*24*time.Hour {
		t.Errorf("retention window = %v, want 30 days", cfg.Retention.Window)
	}
	if cfg.Messaging.EditWindow != 15*time.Minute {
		t.Errorf("edit window = %v, want 15m", cfg.Messaging.EditWindow)
	}
	if cfg.Messaging.HistoryPageSize != 50 {
		t.Errorf("page size = %d, want 50", cfg.Messaging.HistoryPageSize)
	}
	if cfg.Summarizer.Provider != "local" {
		t.Errorf("summarizer = %q, want local", cfg.Summarizer.Provider)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9999")
	t.Setenv("EDIT_WINDOW_MINUTES", "5")
	t.Setenv("RECENTLY_DELETED_RETENTION_DAYS", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.Messaging.EditWindow != 5*time.Minute {
		t.Errorf("edit window = %v", cfg.Messaging.EditWindow)
	}
	if cfg.Retention.Window != 7*24*time.Hour {
		t.Errorf("retention window = %v", cfg.Retention.Window)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv("HISTORY_PAGE_SIZE", "not-a-number")
	if got := getEnvInt("HISTORY_PAGE_SIZE", 50); got != 50 {
		t.Errorf("getEnvInt = %d, want fallback 50", got)
	}
}
