package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Upload UploadConfig
	Dedupe DedupeConfig
	Jobs   JobsConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type UploadConfig struct {
	Dir          string
	MaxSizeBytes int
}

type DedupeConfig struct {
	SessionTTL time.Duration
	SampleSize int
}

type JobsConfig struct {
	Topic     string
	ResultTTL time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "9999"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:9999"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Upload: UploadConfig{
			Dir:          getEnv("UPLOAD_DIR", "upload_data"),
			MaxSizeBytes: getEnvAsInt("UPLOAD_MAX_SIZE_BYTES", 5*1024*1024),
		},
		Dedupe: DedupeConfig{
			SessionTTL: getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			SampleSize: getEnvAsInt("DEDUPE_SAMPLE_SIZE", 150000),
		},
		Jobs: JobsConfig{
			Topic:     getEnv("DEDUPE_JOB_TOPIC_NAME", "DEDUPE_JOBS"),
			ResultTTL: getEnvAsDuration("JOB_RESULT_TTL", 24*time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
