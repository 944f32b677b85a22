// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/picsearch/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID       string
	GoogleClientSecret   string
	GitHubClientID       string
	GitHubClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Unsplash
	UnsplashAccessKey string
	UnsplashAPIURL    string
	UnsplashTimeout   time.Duration
	SearchPageSize    int

	// Search log
	SearchLogOrder model.SearchLogOrder

	// Server
	ServerPort string
	BaseURL    string

	// Client
	ClientOrigin string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// OAuthプロバイダーのクレデンシャルはGoogleのみ必須で、
// GitHub/Facebookは未設定の場合そのプロバイダーが無効になる。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.UnsplashAccessKey = os.Getenv("UNSPLASH_ACCESS_KEY")
	if cfg.UnsplashAccessKey == "" {
		missing = append(missing, "UNSPLASH_ACCESS_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional providers
	cfg.GitHubClientID = os.Getenv("GITHUB_CLIENT_ID")
	cfg.GitHubClientSecret = os.Getenv("GITHUB_CLIENT_SECRET")
	cfg.FacebookClientID = os.Getenv("FACEBOOK_CLIENT_ID")
	cfg.FacebookClientSecret = os.Getenv("FACEBOOK_CLIENT_SECRET")

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.UnsplashAPIURL = getEnvString("UNSPLASH_API_URL", "https://api.unsplash.com")
	cfg.UnsplashTimeout = getEnvDuration("UNSPLASH_TIMEOUT", 10*time.Second)
	cfg.SearchPageSize = getEnvInt("SEARCH_PAGE_SIZE", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ClientOrigin = getEnvString("CLIENT_ORIGIN", cfg.BaseURL)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	order := model.SearchLogOrder(getEnvString("SEARCH_LOG_ORDER", string(model.SearchLogBefore)))
	if order != model.SearchLogBefore && order != model.SearchLogAfter {
		return nil, fmt.Errorf("SEARCH_LOG_ORDER must be %q or %q, got %q",
			model.SearchLogBefore, model.SearchLogAfter, order)
	}
	cfg.SearchLogOrder = order

	return cfg, nil
}

// RedirectURL は指定プロバイダーのOAuthコールバックURLを返す。
func (c *Config) RedirectURL(provider string) string {
	return fmt.Sprintf("%s/auth/%s/callback", strings.TrimSuffix(c.BaseURL, "/"), provider)
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
