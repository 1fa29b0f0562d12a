package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	WorkerPort     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int

	// Database
	DBDriver         string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	// Redis
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
	ViewCacheTTL  time.Duration

	// Kafka
	KafkaBrokers    []string
	KafkaGroupID    string
	ExtractionTopic string

	// Workflow
	WorkflowMode              string
	WorkerConsumers           int
	WorkflowMaxParallelism    int
	WorkflowMaxAttempts       int
	WorkflowInitialBackoff    time.Duration
	WorkflowBackoffMultiplier float64

	// LLM
	LLMAPIKey     string
	LLMBaseURL    string
	LLMModelName  string
	LLMTimeout    time.Duration
	LLMPromptFile string

	// Storage
	StorageDir          string
	PublicBaseURL       string
	StorageInlineImages bool
	UploadTokenTTL      time.Duration
}

func Load() *Config {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		WorkerPort:     getEnv("WORKER_PORT", "8081"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 10*1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),

		DBDriver:         getEnv("DB_DRIVER", "postgres"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "recipelens"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "recipelens"),
		PostgresDB:       getEnv("POSTGRES_DB", "recipelens"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "recipelens.db"),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", true),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		LockTTL:       getDuration("LOCK_TTL", 10*time.Minute),
		ViewCacheTTL:  getDuration("VIEW_CACHE_TTL", 10*time.Minute),

		KafkaBrokers:    getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "recipelens-extraction"),
		ExtractionTopic: getEnv("EXTRACTION_TOPIC", "recipe.extraction"),

		WorkflowMode:              getEnv("WORKFLOW_MODE", "kafka"),
		WorkerConsumers:           getIntEnv("WORKER_CONSUMERS", 4),
		WorkflowMaxParallelism:    getIntEnv("WORKFLOW_MAX_PARALLELISM", 10),
		WorkflowMaxAttempts:       getIntEnv("WORKFLOW_MAX_ATTEMPTS", 3),
		WorkflowInitialBackoff:    getDuration("WORKFLOW_INITIAL_BACKOFF", 200*time.Millisecond),
		WorkflowBackoffMultiplier: getFloatEnv("WORKFLOW_BACKOFF_MULTIPLIER", 2),

		LLMAPIKey:     getEnv("LLM_API_KEY", ""),
		LLMBaseURL:    getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModelName:  getEnv("LLM_MODEL_NAME", "openai/gpt-4o-mini"),
		LLMTimeout:    getDuration("LLM_TIMEOUT", 90*time.Second),
		LLMPromptFile: getEnv("LLM_PROMPT_FILE", ""),

		StorageDir:          getEnv("STORAGE_DIR", "./data/images"),
		PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		StorageInlineImages: getBoolEnv("STORAGE_INLINE_IMAGES", false),
		UploadTokenTTL:      getDuration("UPLOAD_TOKEN_TTL", 15*time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
