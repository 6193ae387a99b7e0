// main wires the engine together: config, stores, domain services, HTTP.
// Business logic lives in the internal service packages; this file only
// selects backends and manages the server lifecycle.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aegis/internal/audit/publisher"
	auditservice "aegis/internal/audit/service"
	auditmemory "aegis/internal/audit/store/memory"
	auditpostgres "aegis/internal/audit/store/postgres"
	"aegis/internal/auth"
	"aegis/internal/crypto/envelope"
	"aegis/internal/messaging"
	messagingmemory "aegis/internal/messaging/store/memory"
	"aegis/internal/platform/config"
	"aegis/internal/platform/httpserver"
	"aegis/internal/platform/logger"
	"aegis/internal/platform/metrics"
	"aegis/internal/platform/redis"
	"aegis/internal/ratelimit/models"
	ratelimitservice "aegis/internal/ratelimit/service"
	ratelimitmemory "aegis/internal/ratelimit/store/memory"
	ratelimitredis "aegis/internal/ratelimit/store/redis"
	"aegis/internal/risk"
	httptransport "aegis/internal/transport/http"
	verificationservice "aegis/internal/verification/service"
	verificationmemory "aegis/internal/verification/store/memory"
	verificationpostgres "aegis/internal/verification/store/postgres"
	"aegis/internal/verification/verifier"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	ctx := context.Background()

	// Window store: Redis when configured, in-process otherwise.
	var windowStore ratelimitservice.WindowStore = ratelimitmemory.New()
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		windowStore = ratelimitredis.New(redisClient.Client)
		defer redisClient.Close()
		log.Info("rate limit windows backed by redis")
	}

	limiter, err := ratelimitservice.New(windowStore, []models.Policy{
		{Name: models.PolicyLogin, Limit: cfg.Limits.MaxLoginAttempts, Window: cfg.Limits.LoginWindow},
		{Name: models.PolicyRegistration, Limit: cfg.Limits.MaxRegistrationsPerIP, Window: cfg.Limits.RegistrationWindow},
		{Name: models.PolicyMessages, Limit: cfg.Limits.MaxMessagesPerMinute, Window: time.Minute},
	}, ratelimitservice.WithLogger(log), ratelimitservice.WithMetrics(m))
	if err != nil {
		log.Error("rate limiter init failed", "error", err)
		os.Exit(1)
	}

	// Audit store: Postgres when configured.
	var auditStore auditservice.Store = auditmemory.New()
	var verificationStore verificationservice.Store = verificationmemory.New()
	if cfg.Postgres.URL != "" {
		db, err := auditpostgres.Open(cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		auditStore = auditpostgres.New(db)

		pool, err := verificationpostgres.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres pool unavailable", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		verificationStore = verificationpostgres.New(pool)
		log.Info("audit and verification records backed by postgres")
	}

	auditOpts := []auditservice.Option{
		auditservice.WithLogger(log),
		auditservice.WithMetrics(m),
	}
	siem, err := publisher.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	if err != nil {
		log.Error("kafka unavailable", "error", err)
		os.Exit(1)
	}
	if siem != nil {
		defer siem.Close()
		auditOpts = append(auditOpts, auditservice.WithPublisher(siem))
		log.Info("siem fan-out enabled", "topic", cfg.Kafka.Topic)
	}
	auditor, err := auditservice.New(auditStore, auditOpts...)
	if err != nil {
		log.Error("audit service init failed", "error", err)
		os.Exit(1)
	}

	verificationSvc, err := verificationservice.New(verificationStore, verifier.NewStatic(),
		verificationservice.WithAuditor(auditor),
		verificationservice.WithTimeout(cfg.Verifier.Timeout),
		verificationservice.WithLogger(log),
		verificationservice.WithMetrics(m))
	if err != nil {
		log.Error("verification service init failed", "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.TokenTTL)
	if err != nil {
		log.Error("token service init failed", "error", err)
		os.Exit(1)
	}
	authSvc, err := auth.NewService(auth.NewInMemoryDirectory(), auth.NewGate(verificationSvc), tokens,
		auth.WithLimiter(limiter),
		auth.WithAuditor(auditor),
		auth.WithLogger(log),
		auth.WithMetrics(m))
	if err != nil {
		log.Error("auth service init failed", "error", err)
		os.Exit(1)
	}

	keystore, err := envelope.NewKeystore(cfg.Crypto.MasterSeed)
	if err != nil {
		log.Error("keystore init failed", "error", err)
		os.Exit(1)
	}
	keyRegistry := messaging.NewInMemoryKeyRegistry()
	keySvc, err := messaging.NewKeyService(keyRegistry, keystore)
	if err != nil {
		log.Error("key service init failed", "error", err)
		os.Exit(1)
	}

	pool := envelope.NewPool(cfg.Crypto.Workers, envelope.WithMetrics(m))
	messagingSvc, err := messaging.New(messagingmemory.New(), keyRegistry, pool,
		risk.FromConfig(cfg.Risk),
		messaging.WithLimiter(limiter),
		messaging.WithAuditor(auditor),
		messaging.WithLogger(log),
		messaging.WithMetrics(m))
	if err != nil {
		log.Error("messaging service init failed", "error", err)
		os.Exit(1)
	}

	router := httptransport.NewRouter(httptransport.Services{
		Verification: verificationSvc,
		Auth:         authSvc,
		Messaging:    messagingSvc,
		Keys:         keySvc,
		Tokens:       tokens,
	}, log)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting aegis", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
