package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"classroom-backend/internal/pipeline"
)

type Config struct {
	// Server
	Port        string
	Env         string
	FrontendURL string

	// Logging
	LogMode      string
	LogLevel     string
	LogRedaction bool
	LogHashSalt  string

	// Database
	DatabaseURL   string
	MigrationsDir string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int

	// Generation options, passed on every call
	GenerationTemperature     float64
	GenerationTopK            int
	GenerationTopP            float64
	GenerationMaxOutputTokens int
	SafetyThreshold           string

	// Timeouts
	GenerationTimeout  time.Duration
	OCRTimeout         time.Duration
	PersistenceTimeout time.Duration

	// OCR
	OCRLanguage string

	// Async jobs
	WorkerCount int

	// Generation endpoints, requests per minute per client IP
	GenerationRateLimit int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),

		LogMode:      getEnvOrDefault("LOG_MODE", "development"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "debug"),
		LogRedaction: getEnvAsBoolOrDefault("LOG_REDACTION_ENABLED", true),
		LogHashSalt:  getEnvOrDefault("LOG_HASH_SALT", ""),

		DatabaseURL:   mustGetEnv("DATABASE_URL"),
		MigrationsDir: getEnvOrDefault("MIGRATIONS_DIR", "./migrations"),
		RedisURL:      mustGetEnv("REDIS_URL"),
		JWTSecret:     mustGetEnv("JWT_SECRET"),

		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),

		GenerationTemperature:     getEnvAsFloatOrDefault("GENERATION_TEMPERATURE", 0.9),
		GenerationTopK:            getEnvAsIntOrDefault("GENERATION_TOP_K", 1),
		GenerationTopP:            getEnvAsFloatOrDefault("GENERATION_TOP_P", 1),
		GenerationMaxOutputTokens: getEnvAsIntOrDefault("GENERATION_MAX_OUTPUT_TOKENS", 2048),
		SafetyThreshold:           getEnvOrDefault("SAFETY_THRESHOLD", string(pipeline.BlockMediumAndAbove)),

		GenerationTimeout:  getEnvAsDurationOrDefault("GENERATION_TIMEOUT", 90*time.Second),
		OCRTimeout:         getEnvAsDurationOrDefault("OCR_TIMEOUT", 60*time.Second),
		PersistenceTimeout: getEnvAsDurationOrDefault("PERSISTENCE_TIMEOUT", 10*time.Second),

		OCRLanguage:         getEnvOrDefault("OCR_LANGUAGE", "en"),
		WorkerCount:         getEnvAsIntOrDefault("WORKER_COUNT", 4),
		GenerationRateLimit: getEnvAsIntOrDefault("GENERATION_RATE_LIMIT", 20),
	}

	return cfg
}

// GenerationOptions builds the per-call model options from the environment.
func (c *Config) GenerationOptions() pipeline.GenerationOptions {
	return pipeline.GenerationOptions{
		Temperature:      float32(c.GenerationTemperature),
		TopK:             int32(c.GenerationTopK),
		TopP:             float32(c.GenerationTopP),
		MaxOutputTokens:  int32(c.GenerationMaxOutputTokens),
		SafetyThresholds: pipeline.UniformSafety(pipeline.BlockThreshold(strings.ToLower(c.SafetyThreshold))),
	}
}

// PipelineConfig combines options and timeouts for pipeline.New.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Options:           c.GenerationOptions(),
		GenerationTimeout: c.GenerationTimeout,
		OCRTimeout:        c.OCRTimeout,
		PersistTimeout:    c.PersistenceTimeout,
	}
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

// getEnvAsDurationOrDefault accepts Go durations ("90s") or bare seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
