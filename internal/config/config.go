package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var ErrMisconfigured = errors.New("config invalid")

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Password PasswordConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins string
	SweepInterval  time.Duration
}

type AuthConfig struct {
	ServerSecret       string
	Pin                string
	PinHash            string
	ChallengeTTL       time.Duration
	HMACWindow         time.Duration
	SessionTimeout     time.Duration
	LockoutMaxAttempts int
	LockoutDuration    time.Duration
	LockoutResetWindow time.Duration
}

type PasswordConfig struct {
	Iterations int
	MaxWorkers int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:           getenv("PORT", "8080"),
			Env:            getenv("APP_ENV", "production"),
			AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		},
		Auth: AuthConfig{
			ServerSecret: os.Getenv("SERVER_SECRET"),
			Pin:          os.Getenv("AUTH_PIN"),
			PinHash:      os.Getenv("AUTH_PIN_HASH"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
	}

	if cfg.Auth.ServerSecret == "" {
		return cfg, fmt.Errorf("%w: SERVER_SECRET is required", ErrMisconfigured)
	}
	if len(cfg.Auth.ServerSecret) < 16 {
		return cfg, fmt.Errorf("%w: SERVER_SECRET must be at least 16 characters", ErrMisconfigured)
	}
	if cfg.Auth.Pin == "" && cfg.Auth.PinHash == "" {
		return cfg, fmt.Errorf("%w: AUTH_PIN or AUTH_PIN_HASH is required", ErrMisconfigured)
	}

	var err error
	if cfg.Server.SweepInterval, err = getduration("SWEEP_INTERVAL", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.Auth.ChallengeTTL, err = getduration("CHALLENGE_TTL", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.Auth.HMACWindow, err = getduration("HMAC_WINDOW", 5*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.Auth.SessionTimeout, err = getduration("SESSION_TIMEOUT", 30*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.Auth.LockoutDuration, err = getduration("LOCKOUT_DURATION", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.Auth.LockoutResetWindow, err = getduration("LOCKOUT_RESET_WINDOW", time.Hour); err != nil {
		return cfg, err
	}
	if cfg.Auth.LockoutMaxAttempts, err = getint("LOCKOUT_MAX_ATTEMPTS", 5); err != nil {
		return cfg, err
	}
	if cfg.Auth.LockoutMaxAttempts < 1 {
		return cfg, fmt.Errorf("%w: LOCKOUT_MAX_ATTEMPTS must be at least 1", ErrMisconfigured)
	}
	if cfg.Password.Iterations, err = getint("PBKDF2_ITERATIONS", 100000); err != nil {
		return cfg, err
	}
	if cfg.Password.Iterations < 100000 {
		return cfg, fmt.Errorf("%w: PBKDF2_ITERATIONS must be at least 100000", ErrMisconfigured)
	}
	if cfg.Password.MaxWorkers, err = getint("KDF_MAX_WORKERS", 4); err != nil {
		return cfg, err
	}
	if cfg.Redis.DB, err = getint("REDIS_DB", 0); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c ServerConfig) IsDevelopment() bool {
	return c.Env == "development"
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", ErrMisconfigured, key)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrMisconfigured, key)
	}
	return parsed, nil
}

func getint(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 0 {
		return 0, fmt.Errorf("%w: invalid %s", ErrMisconfigured, key)
	}
	return parsed, nil
}
