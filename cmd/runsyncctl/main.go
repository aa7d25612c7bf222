// runsyncctl is the operator CLI for webhook subscription administration.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"example.com/runsync/internal/config"
	persistence "example.com/runsync/internal/persistence/postgres"
	"example.com/runsync/internal/strava"
	"example.com/runsync/internal/subscription"
)

func main() {
	root := &cobra.Command{
		Use:           "runsyncctl",
		Short:         "Operator tooling for the run sync service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(subscriptionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func subscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Manage the Strava webhook subscription",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Register the webhook subscription (no-op if one exists)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, mgr *subscription.Manager) error {
				id, existed, err := mgr.Create(ctx)
				if err != nil {
					return err
				}
				if existed {
					fmt.Printf("subscription already exists: %d\n", id)
				} else {
					fmt.Printf("subscription created: %d\n", id)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "view",
		Short: "Show provider-side subscriptions and the stored id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, mgr *subscription.Manager) error {
				view, err := mgr.View(ctx)
				if err != nil {
					return err
				}
				if view.HasStoredID {
					fmt.Printf("stored subscription id: %d\n", view.StoredID)
				} else {
					fmt.Println("no stored subscription id")
				}
				for _, sub := range view.Subscriptions {
					fmt.Printf("provider subscription %d -> %s\n", sub.ID, sub.CallbackURL)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(ctx context.Context, mgr *subscription.Manager) error {
				deleted, err := mgr.Delete(ctx)
				if err != nil {
					return err
				}
				if !deleted {
					fmt.Println("no subscription to delete")
					return nil
				}
				fmt.Println("subscription deleted")
				return nil
			})
		},
	})

	return cmd
}

func withManager(ctx context.Context, fn func(context.Context, *subscription.Manager) error) error {
	cfg := config.Load()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	client := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret)
	mgr := subscription.NewManager(client, repo, cfg.WebhookCallbackURL, cfg.WebhookVerifyToken)

	return fn(ctx, mgr)
}
