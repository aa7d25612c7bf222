// The poller runs one synchronization pass and exits; scheduling is the
// deployment's job (cron or equivalent).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/runsync/internal/config"
	"example.com/runsync/internal/domain"
	persistence "example.com/runsync/internal/persistence/postgres"
	"example.com/runsync/internal/strava"
	"example.com/runsync/internal/syncer"
	"example.com/runsync/internal/token"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("poller shutdown requested")
		cancel()
	}()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	client := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret)
	tokens := token.NewManager(client, repo, cfg.TokenRefreshBuffer)
	poller := syncer.NewPoller(repo, repo, tokens, client, cfg.SyncPageSize)

	start := time.Now()
	summary, err := poller.SyncAll(ctx)
	if err != nil {
		log.Fatalf("sync pass failed: %v", err)
	}

	log.Printf("sync pass done in %s: %d users synced, %d skipped, %d errors",
		time.Since(start).Round(time.Millisecond), summary.UsersProcessed, summary.Skipped, len(summary.Errors))
	for _, userErr := range summary.Errors {
		if domain.IsAuthError(userErr.Err) {
			log.Printf("  %s needs re-authorization: %v", userErr.Email, userErr.Err)
			continue
		}
		log.Printf("  %s: %v", userErr.Email, userErr.Err)
	}

	if len(summary.Errors) > 0 {
		os.Exit(1)
	}
}
