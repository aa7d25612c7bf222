// Package token manages per-user OAuth access token lifecycles.
package token

import (
	"context"
	"log"
	"sync"
	"time"

	"example.com/runsync/internal/domain"
	"example.com/runsync/internal/strava"
)

// DefaultRefreshBuffer is how close to expiry a token may get before it is
// refreshed. It absorbs clock skew and request latency.
const DefaultRefreshBuffer = time.Minute

// Refresher performs the provider's refresh-token grant.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*strava.TokenResponse, error)
}

// TokenUpdater persists rotated credentials.
type TokenUpdater interface {
	UpdateTokens(ctx context.Context, userID string, update domain.TokenUpdate) error
}

// Manager hands out valid access tokens, refreshing and persisting rotated
// credentials as needed. Refreshes for the same user are serialized: the
// provider invalidates the old refresh token on rotation, so a lost race
// would strand an otherwise healthy user with refresh_failed.
type Manager struct {
	refresher Refresher
	store     TokenUpdater
	buffer    time.Duration
	now       func() time.Time
	logger    *log.Logger

	// Both maps hold at most one entry per connected user and are never
	// pruned; the user base bounds their size.
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	issued map[string]issuedToken
}

// issuedToken remembers the last refresh result so callers holding a stale
// credential snapshot do not trigger a second refresh inside the buffer window.
type issuedToken struct {
	accessToken string
	expiresAt   time.Time
}

// NewManager constructs a Manager. A zero buffer falls back to DefaultRefreshBuffer.
func NewManager(refresher Refresher, store TokenUpdater, buffer time.Duration) *Manager {
	if buffer <= 0 {
		buffer = DefaultRefreshBuffer
	}
	return &Manager{
		refresher: refresher,
		store:     store,
		buffer:    buffer,
		now:       time.Now,
		logger:    log.New(log.Writer(), "[token] ", log.LstdFlags),
		locks:     make(map[string]*sync.Mutex),
		issued:    make(map[string]issuedToken),
	}
}

// EnsureAccessToken returns an access token valid for at least the refresh
// buffer, refreshing first when the stored one is missing, unset, or close
// to expiry. The refreshed token is written back before being returned.
func (m *Manager) EnsureAccessToken(ctx context.Context, user domain.User) (string, error) {
	lock := m.userLock(user.ID)
	lock.Lock()
	defer lock.Unlock()

	if cached, ok := m.cachedToken(user.ID); ok {
		return cached, nil
	}

	if !m.needsRefresh(user) {
		return *user.AccessToken, nil
	}

	if user.RefreshToken == nil || *user.RefreshToken == "" {
		return "", &domain.AuthError{UserID: user.ID, Reason: domain.AuthNoRefreshToken}
	}

	m.logger.Printf("refreshing token for %s", user.Email)

	resp, err := m.refresher.RefreshToken(ctx, *user.RefreshToken)
	if err != nil {
		return "", &domain.AuthError{UserID: user.ID, Reason: domain.AuthRefreshFailed, Err: err}
	}

	update := domain.TokenUpdate{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Unix(resp.ExpiresAt, 0).UTC(),
	}
	if err := m.store.UpdateTokens(ctx, user.ID, update); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.issued[user.ID] = issuedToken{accessToken: resp.AccessToken, expiresAt: update.ExpiresAt}
	m.mu.Unlock()

	m.logger.Printf("token refreshed for %s, new expiry %s", user.Email, update.ExpiresAt.Format(time.RFC3339))
	return resp.AccessToken, nil
}

func (m *Manager) cachedToken(userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cached, ok := m.issued[userID]
	if !ok || cached.expiresAt.Sub(m.now()) < m.buffer {
		return "", false
	}
	return cached.accessToken, true
}

func (m *Manager) needsRefresh(user domain.User) bool {
	if user.AccessToken == nil || *user.AccessToken == "" {
		return true
	}
	if user.TokenExpiresAt == nil {
		return true
	}
	return user.TokenExpiresAt.Sub(m.now()) < m.buffer
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}
