package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 运行时配置，全部来自环境变量（可由 .env 覆盖）
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBLogLevel  string

	SessionSecret string
	SessionMaxAge time.Duration
	CORSOrigins   []string

	AIBaseURL       string
	AIAPIKey        string
	AIModel         string
	AIMaxTokens     int
	AITimeout       time.Duration
	AIRatePerMinute int

	RedisAddr       string
	SummaryCacheTTL time.Duration

	TracesExporter string
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=studyforum port=5432 sslmode=disable TimeZone=UTC"),
		DBLogLevel:  getEnv("DB_LOG_LEVEL", "warn"),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionMaxAge: time.Duration(getInt("SESSION_MAX_AGE_HOURS", 168)) * time.Hour,
		CORSOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		AIBaseURL:       strings.TrimRight(getEnv("AI_BASE_URL", "https://api.openai.com"), "/"),
		AIAPIKey:        getEnv("AI_API_KEY", os.Getenv("OPENAI_API_KEY")),
		AIModel:         getEnv("AI_MODEL", "gpt-5"),
		AIMaxTokens:     getInt("AI_MAX_TOKENS", 8192),
		AITimeout:       time.Duration(getInt("AI_TIMEOUT_SECONDS", 120)) * time.Second,
		AIRatePerMinute: getInt("AI_RATE_PER_MINUTE", 20),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		SummaryCacheTTL: time.Duration(getInt("SUMMARY_CACHE_TTL_SECONDS", 600)) * time.Second,

		TracesExporter: strings.ToLower(os.Getenv("OTEL_TRACES_EXPORTER")),
	}

	if cfg.SessionSecret == "" {
		if cfg.IsProduction() {
			log.Fatal("SESSION_SECRET must be set in production")
		}
		cfg.SessionSecret = "secret_key_change_me"
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// getInt 解析整数环境变量，非法或非正数时使用默认值
func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
