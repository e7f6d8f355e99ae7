package config

import (
	"errors"
	"os"
	"time"
)

type Config struct {
	ServerPort      string
	DatabaseURL     string
	RedisURL        string
	AssetIndexURL   string
	JWTSecret       string
	JWTExpiry       time.Duration
	AssetCacheTTL   time.Duration
	ConfigAuthority string
}

func LoadConfig() (*Config, error) {
	expiryStr := getEnv("JWT_EXPIRY", "24h")
	expiry, err := time.ParseDuration(expiryStr)
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}

	cacheTTLStr := getEnv("ASSET_CACHE_TTL", "15s")
	cacheTTL, err := time.ParseDuration(cacheTTLStr)
	if err != nil {
		return nil, errors.New("invalid ASSET_CACHE_TTL format")
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		AssetIndexURL:   os.Getenv("ASSET_INDEX_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTExpiry:       expiry,
		AssetCacheTTL:   cacheTTL,
		ConfigAuthority: os.Getenv("CONFIG_AUTHORITY"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.AssetIndexURL == "" {
		return nil, errors.New("ASSET_INDEX_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.ConfigAuthority == "" {
		return nil, errors.New("CONFIG_AUTHORITY is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
