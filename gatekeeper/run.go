// Copyright 2026 MarketLens
// SPDX-License-Identifier: Apache-2.0

package gatekeeper

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"marketlens/platform/audit"
	"marketlens/platform/ratelimit"
	"marketlens/platform/shared/logger"
)

// Config holds the service's environment-derived settings
type Config struct {
	Port        string
	RedisURL    string
	DatabaseURL string
	PolicyPath  string
}

// LoadConfig reads configuration from the environment
func LoadConfig() Config {
	return Config{
		Port:        getEnv("PORT", "8080"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		PolicyPath:  os.Getenv("THROTTLE_POLICY_FILE"),
	}
}

// Run starts the gatekeeper service and blocks until SIGINT/SIGTERM
func Run() error {
	log := logger.New("gatekeeper")
	cfg := LoadConfig()

	client, err := newRedisClient(cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	repo, err := audit.NewPostgresRepository(db)
	if err != nil {
		return err
	}

	policy := ratelimit.DefaultPolicy()
	if cfg.PolicyPath != "" {
		policy, err = ratelimit.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return err
		}
		log.Info("", "throttle policy loaded", map[string]interface{}{
			"path":      cfg.PolicyPath,
			"endpoints": len(policy.Endpoints),
		})
	}

	limiter := ratelimit.NewLimiter(client, log)
	recorder := audit.NewRecorder(repo, log)
	stats := audit.NewStats(repo)

	router := buildRouter(limiter, policy, recorder, stats, repo)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      cors.AllowAll().Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "gatekeeper listening", map[string]interface{}{"port": cfg.Port})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		log.Info("", "shutting down", map[string]interface{}{"signal": sig.String()})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

// buildRouter assembles the HTTP surface: provenance capture, throttling,
// the audit/stats API, and the metrics endpoint
func buildRouter(limiter *ratelimit.Limiter, policy *ratelimit.Policy, recorder *audit.Recorder, stats *audit.Stats, repo audit.Repository) *mux.Router {
	router := mux.NewRouter()
	router.Use(audit.ProvenanceMiddleware)
	router.Use(Throttle(limiter, policy, recorder))

	audit.NewHandler(recorder, stats, repo).RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}

func newRedisClient(redisURL string, log *logger.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// The limiter fails open, so an unreachable Redis degrades
		// throttling rather than blocking startup
		log.Warn("", "Redis unreachable at startup", map[string]interface{}{
			"url":   redisURL,
			"error": err.Error(),
		})
	}

	return client, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
