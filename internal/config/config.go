package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	ChannelBase      string
	WorkoutCacheTTL  time.Duration
	TypingExpiry     time.Duration
	ProbeRateLimit   int
	ProbeRateWindow  time.Duration
	ShutdownTimeout  time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ULTRACOACH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "UltraCoach API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("channel.base", "ultracoach")
	v.SetDefault("workout.cache_ttl", "5m")
	v.SetDefault("typing.expiry", "5s")
	v.SetDefault("probe.rate_limit", 60)
	v.SetDefault("probe.rate_window", "1m")
	v.SetDefault("shutdown.timeout", "5s")

	workoutTTL, err := time.ParseDuration(v.GetString("workout.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid workout cache ttl: %w", err)
	}

	typingExpiry, err := time.ParseDuration(v.GetString("typing.expiry"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid typing expiry: %w", err)
	}

	probeWindow, err := time.ParseDuration(v.GetString("probe.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid probe rate window: %w", err)
	}

	shutdownTimeout, err := time.ParseDuration(v.GetString("shutdown.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		JWTSecret:       v.GetString("jwt.secret"),
		ChannelBase:     v.GetString("channel.base"),
		WorkoutCacheTTL: workoutTTL,
		TypingExpiry:    typingExpiry,
		ProbeRateLimit:  v.GetInt("probe.rate_limit"),
		ProbeRateWindow: probeWindow,
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ProbeRateLimit <= 0 {
		cfg.ProbeRateLimit = 60
	}

	return cfg, nil
}
