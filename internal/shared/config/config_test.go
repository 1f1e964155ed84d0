package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("TRUELAYER_CLIENT_ID", "test-client-id")
	t.Setenv("TRUELAYER_CLIENT_SECRET", "test-client-secret")
}

func TestLoad_Success(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.TrueLayer.ClientID != "test-client-id" {
		t.Errorf("TrueLayer.ClientID = %q, want %q", cfg.TrueLayer.ClientID, "test-client-id")
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 5432)
	}
	if cfg.Sync.Interval != 5*time.Minute {
		t.Errorf("Sync.Interval = %s, want 5m", cfg.Sync.Interval)
	}
	if !cfg.TrueLayer.UseSandbox {
		t.Error("TrueLayer.UseSandbox should default to true")
	}
}

func TestLoad_MissingClientID(t *testing.T) {
	t.Setenv("TRUELAYER_CLIENT_ID", "")
	t.Setenv("TRUELAYER_CLIENT_SECRET", "secret")
	os.Unsetenv("TRUELAYER_CLIENT_ID")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for missing TRUELAYER_CLIENT_ID, got nil")
	}
}

func TestLoad_MissingClientSecret(t *testing.T) {
	t.Setenv("TRUELAYER_CLIENT_ID", "id")
	t.Setenv("TRUELAYER_CLIENT_SECRET", "")
	os.Unsetenv("TRUELAYER_CLIENT_SECRET")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for missing TRUELAYER_CLIENT_SECRET, got nil")
	}
}

func TestLoad_InvalidSyncInterval(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("SYNC_INTERVAL", "often")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for invalid SYNC_INTERVAL, got nil")
	}
}

func TestLoad_ConnectionString(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := "host=db.internal port=5432 user=fintrack password=hunter2 dbname=fintrack sslmode=disable"
	if got := cfg.Database.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
