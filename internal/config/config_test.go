package config

import (
	"testing"
	"time"
)

func TestLoad_RequiredMissing(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("DATABASE_URL未設定の場合はエラーを返すべき")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/contestman?sslmode=disable")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SyncInterval != 6*time.Hour {
		t.Errorf("SyncInterval = %v, want 6h", cfg.SyncInterval)
	}
	if cfg.CleanupInterval != 24*time.Hour {
		t.Errorf("CleanupInterval = %v, want 24h", cfg.CleanupInterval)
	}
	if cfg.ContestRetentionDays != 30 {
		t.Errorf("ContestRetentionDays = %d, want 30", cfg.ContestRetentionDays)
	}
	if cfg.FetchRetryCount != 3 {
		t.Errorf("FetchRetryCount = %d, want 3", cfg.FetchRetryCount)
	}
	if cfg.NotifyMaxConcurrent != 8 {
		t.Errorf("NotifyMaxConcurrent = %d, want 8", cfg.NotifyMaxConcurrent)
	}
	if cfg.SyncOnStart {
		t.Error("SyncOnStartのデフォルトはfalseであるべき")
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/contestman?sslmode=disable")
	t.Setenv("SYNC_INTERVAL", "1h")
	t.Setenv("SYNC_ON_START", "true")
	t.Setenv("CONTEST_RETENTION_DAYS", "7")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SyncInterval != time.Hour {
		t.Errorf("SyncInterval = %v, want 1h", cfg.SyncInterval)
	}
	if !cfg.SyncOnStart {
		t.Error("SyncOnStart = false, want true")
	}
	if cfg.ContestRetentionDays != 7 {
		t.Errorf("ContestRetentionDays = %d, want 7", cfg.ContestRetentionDays)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q, want redis://localhost:6379/0", cfg.RedisURL)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/contestman?sslmode=disable")
	t.Setenv("SYNC_INTERVAL", "not-a-duration")
	t.Setenv("FETCH_RETRY_COUNT", "abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SyncInterval != 6*time.Hour {
		t.Errorf("不正な値はデフォルトにフォールバックすべき: SyncInterval = %v", cfg.SyncInterval)
	}
	if cfg.FetchRetryCount != 3 {
		t.Errorf("不正な値はデフォルトにフォールバックすべき: FetchRetryCount = %d", cfg.FetchRetryCount)
	}
}
