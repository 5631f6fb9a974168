package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ニュース取得元
const (
	NewsSourceMediastack = "mediastack"
	NewsSourceRSS        = "rss"
)

// 難易度判定のバックエンド
const (
	ClassifierModeHTTP       = "http"
	ClassifierModeLLM        = "llm"
	ClassifierModeRoundRobin = "roundrobin"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database（任意。未設定の場合はメモリ上のLevel Storeを使う）
	DatabaseURL string

	// Session
	SessionMaxAge   int
	CleanupInterval time.Duration

	// News
	NewsSource        string
	MediastackAPIKey  string
	NewsBaseURL       string
	NewsLimit         int
	NewsTimeout       time.Duration
	ImageCheckTimeout time.Duration

	// Classifier
	ClassifierMode      string
	ClassifierURL       string
	ClassifierTimeout   time.Duration
	ClassifierMaxTokens int
	ModelDir            string

	// OpenAI互換API（ClassifierMode=llm）
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	// Rate Limit（req/min/session）
	RateLimitGeneral  int
	RateLimitArticles int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string
}

// LoadDotEnv は.envファイルを環境変数に読み込む。
// すでに設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。どの変数が必須かは
// NEWS_SOURCEとCLASSIFIER_MODEの値によって決まる。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.NewsSource = strings.ToLower(getEnvString("NEWS_SOURCE", NewsSourceMediastack))
	switch cfg.NewsSource {
	case NewsSourceMediastack, NewsSourceRSS:
	default:
		return nil, fmt.Errorf("invalid NEWS_SOURCE: %q (allowed: %s, %s)", cfg.NewsSource, NewsSourceMediastack, NewsSourceRSS)
	}

	cfg.ClassifierMode = strings.ToLower(getEnvString("CLASSIFIER_MODE", ClassifierModeHTTP))
	switch cfg.ClassifierMode {
	case ClassifierModeHTTP, ClassifierModeLLM, ClassifierModeRoundRobin:
	default:
		return nil, fmt.Errorf("invalid CLASSIFIER_MODE: %q (allowed: %s, %s, %s)",
			cfg.ClassifierMode, ClassifierModeHTTP, ClassifierModeLLM, ClassifierModeRoundRobin)
	}

	// Required fields
	var missing []string

	cfg.MediastackAPIKey = os.Getenv("MEDIASTACK_API_KEY")
	if cfg.NewsSource == NewsSourceMediastack && cfg.MediastackAPIKey == "" {
		missing = append(missing, "MEDIASTACK_API_KEY")
	}

	cfg.ClassifierURL = os.Getenv("CLASSIFIER_URL")
	if cfg.ClassifierMode == ClassifierModeHTTP && cfg.ClassifierURL == "" {
		missing = append(missing, "CLASSIFIER_URL")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.ClassifierMode == ClassifierModeLLM && cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 15*time.Minute)
	cfg.NewsBaseURL = getEnvString("NEWS_BASE_URL", "")
	cfg.NewsLimit = getEnvInt("NEWS_LIMIT", 25)
	cfg.NewsTimeout = getEnvDuration("NEWS_TIMEOUT", 10*time.Second)
	cfg.ImageCheckTimeout = getEnvDuration("IMAGE_CHECK_TIMEOUT", 5*time.Second)
	cfg.ClassifierTimeout = getEnvDuration("CLASSIFIER_TIMEOUT", 30*time.Second)
	cfg.ClassifierMaxTokens = getEnvInt("CLASSIFIER_MAX_TOKENS", 512)
	cfg.ModelDir = getEnvString("MODEL_DIR", "model")
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitArticles = getEnvInt("RATE_LIMIT_ARTICLES", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")

	return cfg, nil
}

// UsesDatabase はPostgreSQLのLevel Storeを使うかどうかを返す。
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

// SessionMaxAgeDuration はセッションの有効期間をtime.Durationで返す。
func (c *Config) SessionMaxAgeDuration() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
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
