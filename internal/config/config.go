// Package config は環境変数ベースのアプリケーション設定を提供する。
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
	// Content
	ContentDir     string
	ReloadInterval time.Duration

	// Site
	BaseURL   string
	SiteTitle string
	SiteBlurb string

	// Database
	DatabaseURL string

	// Feed
	FeedLimit int
	FeedSort  string

	// Webmention fetch
	FetchTimeout        time.Duration
	FetchMaxSize        int64
	VerifyMaxConcurrent int
	VerifyQueueSize     int
	VerifyRatePerSec    float64
	VerifyBurst         int
	SendMaxAttempts     int
	SendMaxConcurrent   int
	SendQueueSize       int

	// Recheck
	RecheckInterval  time.Duration
	RecheckTTL       time.Duration
	RecheckBatchSize int

	// Store
	StoreMaxRetries int

	// Rate Limit
	RateLimitGeneral    int
	RateLimitWebmention int

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.ContentDir = os.Getenv("CONTENT_DIR")
	if cfg.ContentDir == "" {
		missing = append(missing, "CONTENT_DIR")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ReloadInterval = getEnvDuration("RELOAD_INTERVAL", 5*time.Minute)
	cfg.SiteTitle = getEnvString("SITE_TITLE", "blogman")
	cfg.SiteBlurb = getEnvString("SITE_BLURB", "")
	cfg.FeedLimit = getEnvInt("FEED_LIMIT", 20)
	cfg.FeedSort = getEnvString("FEED_SORT", "create_desc")
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 16777215)
	cfg.VerifyMaxConcurrent = getEnvInt("VERIFY_MAX_CONCURRENT", 8)
	cfg.VerifyQueueSize = getEnvInt("VERIFY_QUEUE_SIZE", 256)
	cfg.VerifyRatePerSec = getEnvFloat("VERIFY_RATE_PER_SEC", 1.0)
	cfg.VerifyBurst = getEnvInt("VERIFY_BURST", 8)
	cfg.SendMaxAttempts = getEnvInt("SEND_MAX_ATTEMPTS", 3)
	cfg.SendMaxConcurrent = getEnvInt("SEND_MAX_CONCURRENT", 4)
	cfg.SendQueueSize = getEnvInt("SEND_QUEUE_SIZE", 256)
	cfg.RecheckInterval = getEnvDuration("RECHECK_INTERVAL", 24*time.Hour)
	cfg.RecheckTTL = getEnvDuration("RECHECK_TTL", 7*24*time.Hour)
	cfg.RecheckBatchSize = getEnvInt("RECHECK_BATCH_SIZE", 50)
	cfg.StoreMaxRetries = getEnvInt("STORE_MAX_RETRIES", 3)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWebmention = getEnvInt("RATE_LIMIT_WEBMENTION", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
