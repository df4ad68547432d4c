package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ストアとIdPのバックエンド種別
const (
	StoreBackendPostgres  = "postgres"
	StoreBackendFirestore = "firestore"

	IdentityBackendLocal    = "local"
	IdentityBackendFirebase = "firebase"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Environment
	AppEnv   string
	LogLevel string

	// Backends
	StoreBackend    string
	IdentityBackend string

	// Database
	DatabaseURL string

	// Local identity
	SessionSecret string
	IDTokenTTL    time.Duration

	// Firebase
	FirebaseProjectID       string
	FirebaseAPIKey          string
	FirebaseCredentialsFile string

	// Gemini
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	GeminiTimeout time.Duration

	// Rate Limit（req/min）
	RateLimitGeneral  int
	RateLimitFeedback int
	RateLimitAuth     int

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// 既に設定済みの環境変数は上書きしない
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.AppEnv = getEnvString("APP_ENV", "development")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.StoreBackend = getEnvString("STORE_BACKEND", StoreBackendPostgres)
	cfg.IdentityBackend = getEnvString("IDENTITY_BACKEND", IdentityBackendLocal)

	switch cfg.StoreBackend {
	case StoreBackendPostgres, StoreBackendFirestore:
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND: %q", cfg.StoreBackend)
	}
	switch cfg.IdentityBackend {
	case IdentityBackendLocal, IdentityBackendFirebase:
	default:
		return nil, fmt.Errorf("unsupported IDENTITY_BACKEND: %q", cfg.IdentityBackend)
	}
	// ローカルIdPの認証主体はPostgreSQLにのみ保存できる
	if cfg.IdentityBackend == IdentityBackendLocal && cfg.StoreBackend != StoreBackendPostgres {
		return nil, fmt.Errorf("IDENTITY_BACKEND=local requires STORE_BACKEND=postgres")
	}

	// Required fields
	var missing []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StoreBackend == StoreBackendPostgres {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" && cfg.IdentityBackend == IdentityBackendLocal {
		missing = append(missing, "SESSION_SECRET")
	}

	usesFirebase := cfg.StoreBackend == StoreBackendFirestore || cfg.IdentityBackend == IdentityBackendFirebase
	cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
	if cfg.FirebaseProjectID == "" && usesFirebase {
		missing = append(missing, "FIREBASE_PROJECT_ID")
	}

	cfg.FirebaseAPIKey = os.Getenv("FIREBASE_API_KEY")
	if cfg.FirebaseAPIKey == "" && cfg.IdentityBackend == IdentityBackendFirebase {
		missing = append(missing, "FIREBASE_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.FirebaseCredentialsFile = getEnvString("FIREBASE_CREDENTIALS_FILE", "")
	cfg.IDTokenTTL = getEnvDuration("ID_TOKEN_TTL", time.Hour)
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.0-flash-001")
	cfg.GeminiBaseURL = getEnvString("GEMINI_BASE_URL", "")
	cfg.GeminiTimeout = getEnvDuration("GEMINI_TIMEOUT", 60*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitFeedback = getEnvInt("RATE_LIMIT_FEEDBACK", 10)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CookieSecure = cfg.IsProduction()
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

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
