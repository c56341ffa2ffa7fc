package config

import (
	"fmt"
	"os"
	"strconv"
)

// MaxBatchSize caps how many eligible posts one publish tick will touch.
const MaxBatchSize = 50

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Config struct {
	PostgresURI      string
	RedisURI         string
	FrontendURL      string
	GraphBaseURL     string
	R2               R2
	SecretKey        string
	CookieName       string
	MaxRetryAttempts int
	BatchInterval    string
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:  getEnv("POSTGRES_URI", ""),
		RedisURI:     getEnv("REDIS_URI", ""),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:5173"),
		GraphBaseURL: getEnv("GRAPH_BASE_URL", "https://graph.instagram.com/v21.0"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		SecretKey:        getEnv("SECRET_KEY", ""),
		CookieName:       getEnv("COOKIE_NAME", "postpipe_session"),
		MaxRetryAttempts: getEnvInt("MAX_RETRY_ATTEMPTS", 3),
		BatchInterval:    getEnv("BATCH_INTERVAL", "@every 00h01m00s"),
	}
}

// Validate rejects settings the publish drivers cannot run with.
func (c *Config) Validate() error {
	if c.MaxRetryAttempts <= 0 {
		return fmt.Errorf("MAX_RETRY_ATTEMPTS must be positive, got %d", c.MaxRetryAttempts)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
