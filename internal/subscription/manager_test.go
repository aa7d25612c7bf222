package subscription

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/runsync/internal/strava"
)

type fakeProvider struct {
	createCalls int
	createID    int64
	createErr   error
	listed      []strava.Subscription
	deleted     []int64
	deleteErr   error
}

func (f *fakeProvider) CreateSubscription(_ context.Context, _, _ string) (int64, error) {
	f.createCalls++
	return f.createID, f.createErr
}

func (f *fakeProvider) ListSubscriptions(_ context.Context) ([]strava.Subscription, error) {
	return f.listed, nil
}

func (f *fakeProvider) DeleteSubscription(_ context.Context, subscriptionID int64) error {
	f.deleted = append(f.deleted, subscriptionID)
	return f.deleteErr
}

type memStore struct {
	id     int64
	stored bool
	getErr error
}

func (m *memStore) GetSubscriptionID(_ context.Context) (int64, bool, error) {
	return m.id, m.stored, m.getErr
}

func (m *memStore) SaveSubscriptionID(_ context.Context, subscriptionID int64) error {
	m.id = subscriptionID
	m.stored = true
	return nil
}

func (m *memStore) DeleteSubscription(_ context.Context) error {
	m.id = 0
	m.stored = false
	return nil
}

func quietManager(client ProviderAPI, store *memStore) *Manager {
	m := NewManager(client, store, "https://example.com/strava/webhook", "verify-me")
	m.logger = log.New(io.Discard, "", 0)
	return m
}

func TestCreateStoresProviderID(t *testing.T) {
	provider := &fakeProvider{createID: 4242}
	store := &memStore{}
	m := quietManager(provider, store)

	id, existed, err := m.Create(context.Background())
	require.NoError(t, err)
	require.False(t, existed)
	require.Equal(t, int64(4242), id)
	require.Equal(t, 1, provider.createCalls)
	require.True(t, store.stored)
	require.Equal(t, int64(4242), store.id)
}

func TestCreateIsIdempotent(t *testing.T) {
	provider := &fakeProvider{createID: 4242}
	store := &memStore{}
	m := quietManager(provider, store)

	_, _, err := m.Create(context.Background())
	require.NoError(t, err)

	id, existed, err := m.Create(context.Background())
	require.NoError(t, err)
	require.True(t, existed)
	require.Equal(t, int64(4242), id)

	// Only the first call reached the provider.
	require.Equal(t, 1, provider.createCalls)
}

func TestCreateProviderFailureLeavesNothingStored(t *testing.T) {
	provider := &fakeProvider{createErr: errors.New("callback validation failed")}
	store := &memStore{}
	m := quietManager(provider, store)

	_, _, err := m.Create(context.Background())
	require.ErrorContains(t, err, "create provider subscription")
	require.False(t, store.stored)
}

func TestViewCombinesProviderAndStore(t *testing.T) {
	provider := &fakeProvider{listed: []strava.Subscription{{ID: 4242, CallbackURL: "https://example.com/strava/webhook"}}}
	store := &memStore{id: 4242, stored: true}
	m := quietManager(provider, store)

	view, err := m.View(context.Background())
	require.NoError(t, err)
	require.Len(t, view.Subscriptions, 1)
	require.True(t, view.HasStoredID)
	require.Equal(t, int64(4242), view.StoredID)
}

func TestDeleteClearsProviderAndStore(t *testing.T) {
	provider := &fakeProvider{}
	store := &memStore{id: 4242, stored: true}
	m := quietManager(provider, store)

	deleted, err := m.Delete(context.Background())
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, []int64{4242}, provider.deleted)
	require.False(t, store.stored)
}

func TestDeleteWithNothingStored(t *testing.T) {
	provider := &fakeProvider{}
	m := quietManager(provider, &memStore{})

	deleted, err := m.Delete(context.Background())
	require.NoError(t, err)
	require.False(t, deleted)
	require.Empty(t, provider.deleted)
}

func TestDeleteKeepsRecordWhenProviderFails(t *testing.T) {
	provider := &fakeProvider{deleteErr: errors.New("provider down")}
	store := &memStore{id: 4242, stored: true}
	m := quietManager(provider, store)

	_, err := m.Delete(context.Background())
	require.ErrorContains(t, err, "delete provider subscription 4242")
	require.True(t, store.stored)
}
