package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（未設定の場合はインメモリの同期ロックを使用する）
	RedisURL string

	// Sync
	SyncInterval      time.Duration
	SyncOnStart       bool
	FetchTimeout      time.Duration
	FetchMaxSize      int64
	FetchRetryCount   int
	FetchRetryBackoff time.Duration

	// Platform API URL（空の場合は各アダプタのデフォルトURLを使用する）
	CodeforcesAPIURL  string
	CodeChefAPIURL    string
	AtCoderAPIURL     string
	HackerEarthAPIURL string

	// Cleanup
	CleanupInterval      time.Duration
	ContestRetentionDays int

	// Notification
	NotifyMaxConcurrent int

	// Email (AWS SES)
	SESAccessKey   string
	SESSecretKey   string
	SESRegion      string
	EmailFrom      string
	EmailFromName  string

	// Messaging
	MessagingAPIURL string
	MessagingAPIKey string

	// Push
	PushAPIURL    string
	PushServerKey string

	// Server
	ServerPort string

	// Rate Limit (req/sec)
	RateLimitGeneral int
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.SyncInterval = getEnvDuration("SYNC_INTERVAL", 6*time.Hour)
	cfg.SyncOnStart = getEnvBool("SYNC_ON_START", false)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 15*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 10485760)
	cfg.FetchRetryCount = getEnvInt("FETCH_RETRY_COUNT", 3)
	cfg.FetchRetryBackoff = getEnvDuration("FETCH_RETRY_BACKOFF", 2*time.Second)
	cfg.CodeforcesAPIURL = getEnvString("CODEFORCES_API_URL", "")
	cfg.CodeChefAPIURL = getEnvString("CODECHEF_API_URL", "")
	cfg.AtCoderAPIURL = getEnvString("ATCODER_API_URL", "")
	cfg.HackerEarthAPIURL = getEnvString("HACKEREARTH_API_URL", "")
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.ContestRetentionDays = getEnvInt("CONTEST_RETENTION_DAYS", 30)
	cfg.NotifyMaxConcurrent = getEnvInt("NOTIFY_MAX_CONCURRENT", 8)
	cfg.SESAccessKey = getEnvString("SES_ACCESS_KEY", "")
	cfg.SESSecretKey = getEnvString("SES_SECRET_KEY", "")
	cfg.SESRegion = getEnvString("SES_REGION", "us-east-1")
	cfg.EmailFrom = getEnvString("EMAIL_FROM", "noreply@contestman.app")
	cfg.EmailFromName = getEnvString("EMAIL_FROM_NAME", "Contestman")
	cfg.MessagingAPIURL = getEnvString("MESSAGING_API_URL", "")
	cfg.MessagingAPIKey = getEnvString("MESSAGING_API_KEY", "")
	cfg.PushAPIURL = getEnvString("PUSH_API_URL", "")
	cfg.PushServerKey = getEnvString("PUSH_SERVER_KEY", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 10)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
