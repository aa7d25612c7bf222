package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/runsync/internal/api"
	"example.com/runsync/internal/auth"
	"example.com/runsync/internal/config"
	"example.com/runsync/internal/outbox"
	persistence "example.com/runsync/internal/persistence/postgres"
	"example.com/runsync/internal/strava"
	"example.com/runsync/internal/token"
	"example.com/runsync/internal/webhook"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	client := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret)
	tokens := token.NewManager(client, repo, cfg.TokenRefreshBuffer)

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
	defer producer.Close()

	dispatcher := outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	queue := webhook.NewQueue(cfg.WebhookQueueSize)
	ingester := webhook.NewIngester(repo, repo, tokens, client)
	processor := webhook.NewProcessor(queue, ingester)
	go func() {
		if err := processor.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("webhook processor stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	webhook.NewHandler(cfg.WebhookVerifyToken, queue).RegisterRoutes(mux)
	api.NewHandler(repo, repo).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	// The webhook endpoint authenticates via the provider's verify token,
	// and /healthz and /metrics stay open for probes and scrapers.
	skipper := func(r *http.Request) bool {
		switch r.URL.Path {
		case "/strava/webhook", "/healthz", "/metrics":
			return true
		}
		return false
	}
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, skipper)

	server := &http.Server{
		Addr:         cfg.HTTPAddress,
		Handler:      authMiddleware.Wrap(logger(mux)),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("runsync api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	dispatcher.Wait()
}
