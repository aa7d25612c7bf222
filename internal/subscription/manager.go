// Package subscription manages this deployment's single provider-side
// webhook subscription.
package subscription

import (
	"context"
	"fmt"
	"log"

	"example.com/runsync/internal/domain"
	"example.com/runsync/internal/strava"
)

// ProviderAPI is the subset of the Strava client the manager needs.
type ProviderAPI interface {
	CreateSubscription(ctx context.Context, callbackURL, verifyToken string) (int64, error)
	ListSubscriptions(ctx context.Context) ([]strava.Subscription, error)
	DeleteSubscription(ctx context.Context, subscriptionID int64) error
}

// Manager keeps the local subscription record and the provider in step.
type Manager struct {
	client      ProviderAPI
	store       domain.SubscriptionStore
	callbackURL string
	verifyToken string
	logger      *log.Logger
}

// NewManager constructs a Manager.
func NewManager(client ProviderAPI, store domain.SubscriptionStore, callbackURL, verifyToken string) *Manager {
	return &Manager{
		client:      client,
		store:       store,
		callbackURL: callbackURL,
		verifyToken: verifyToken,
		logger:      log.New(log.Writer(), "[subscription] ", log.LstdFlags),
	}
}

// View pairs the provider's subscription list with the locally stored id.
type View struct {
	Subscriptions []strava.Subscription
	StoredID      int64
	HasStoredID   bool
}

// Create registers the webhook subscription, short-circuiting when one is
// already recorded so repeated calls never create a second provider-side
// subscription. Returns the subscription id and whether it already existed.
func (m *Manager) Create(ctx context.Context) (int64, bool, error) {
	existing, found, err := m.store.GetSubscriptionID(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("read stored subscription: %w", err)
	}
	if found {
		m.logger.Printf("subscription already exists with id %d", existing)
		return existing, true, nil
	}

	subscriptionID, err := m.client.CreateSubscription(ctx, m.callbackURL, m.verifyToken)
	if err != nil {
		return 0, false, fmt.Errorf("create provider subscription: %w", err)
	}

	if err := m.store.SaveSubscriptionID(ctx, subscriptionID); err != nil {
		return 0, false, fmt.Errorf("store subscription id: %w", err)
	}

	m.logger.Printf("created subscription %d for %s", subscriptionID, m.callbackURL)
	return subscriptionID, false, nil
}

// View returns the provider-side subscriptions alongside the stored id.
func (m *Manager) View(ctx context.Context) (View, error) {
	subs, err := m.client.ListSubscriptions(ctx)
	if err != nil {
		return View{}, err
	}

	storedID, found, err := m.store.GetSubscriptionID(ctx)
	if err != nil {
		return View{}, err
	}

	return View{Subscriptions: subs, StoredID: storedID, HasStoredID: found}, nil
}

// Delete tears down the provider-side subscription and clears the local
// record. Returns false when nothing was stored to delete.
func (m *Manager) Delete(ctx context.Context) (bool, error) {
	storedID, found, err := m.store.GetSubscriptionID(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if err := m.client.DeleteSubscription(ctx, storedID); err != nil {
		return false, fmt.Errorf("delete provider subscription %d: %w", storedID, err)
	}

	if err := m.store.DeleteSubscription(ctx); err != nil {
		return false, fmt.Errorf("clear stored subscription: %w", err)
	}

	m.logger.Printf("deleted subscription %d", storedID)
	return true, nil
}
