package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/pinvault/backend/internal/config"
	"github.com/pinvault/backend/internal/handler"
	"github.com/pinvault/backend/internal/service"
	"github.com/pinvault/backend/internal/store"
)

func main() {
	// Best effort: a missing .env just means plain environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	challengeStore, sessionStore, lockoutStore := buildStores(cfg)

	sweeper := store.NewSweeper(cfg.Server.SweepInterval, challengeStore, sessionStore, lockoutStore)
	sweeper.Start()
	defer sweeper.Stop()

	challenges := service.NewChallengeService(challengeStore, cfg.Auth.ServerSecret, cfg.Auth.ChallengeTTL)
	sessions := service.NewSessionService(sessionStore, cfg.Auth.SessionTimeout)
	lockouts := service.NewLockoutTracker(lockoutStore, cfg.Auth.LockoutMaxAttempts, cfg.Auth.LockoutDuration, cfg.Auth.LockoutResetWindow)
	verifier := service.NewHMACVerifier(cfg.Auth.ServerSecret, cfg.Auth.HMACWindow)
	deriver := service.NewPasswordDeriver(cfg.Auth.ServerSecret, cfg.Password.Iterations, cfg.Password.MaxWorkers)

	authn, err := service.NewPinAuthenticator(cfg.Auth, challenges, sessions, lockouts)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	dev := cfg.Server.IsDevelopment()
	authHandler := handler.NewAuthHandler(challenges, authn, lockouts, dev)
	passwordHandler := handler.NewPasswordHandler(deriver, challenges, dev)

	if !dev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), handler.RequestID(), handler.CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.Health)
	router.GET("/challenge", authHandler.Challenge)

	auth := router.Group("/auth")
	auth.POST("/verify-pin", handler.HMACRequired(verifier), authHandler.VerifyPin)
	auth.POST("/logout", handler.HMACRequired(verifier), authHandler.Logout)
	auth.GET("/session-status", authHandler.SessionStatus)
	auth.GET("/lockout-status", authHandler.LockoutStatus)

	password := router.Group("/password")
	password.POST("/generate-password", handler.SessionRequired(sessions), handler.HMACRequired(verifier), passwordHandler.Generate)

	log.Printf("listening on :%s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// buildStores selects the shared redis implementations when REDIS_ADDR is
// set, and the in-process maps otherwise.
func buildStores(cfg config.Config) (store.ChallengeStore, store.SessionStore, store.LockoutStore) {
	if cfg.Redis.Addr == "" {
		return store.NewMemoryChallengeStore(),
			store.NewMemorySessionStore(cfg.Auth.SessionTimeout),
			store.NewMemoryLockoutStore(cfg.Auth.LockoutResetWindow)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	return store.NewRedisChallengeStore(client),
		store.NewRedisSessionStore(client, cfg.Auth.SessionTimeout),
		store.NewRedisLockoutStore(client, cfg.Auth.LockoutResetWindow)
}
