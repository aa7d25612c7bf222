// Package domain defines the core types and store contracts for run synchronization.
package domain

import (
	"context"
	"time"
)

// User is a connected athlete's credential record. Token columns are mutated
// only through UpdateTokens; readers must treat AccessToken as possibly stale.
type User struct {
	ID             string
	Email          string
	Name           *string
	Timezone       *string
	AthleteID      *int64
	AccessToken    *string
	RefreshToken   *string
	TokenExpiresAt *time.Time
	IsActive       bool
}

// Run is one normalized running activity. StravaID is the natural key for
// idempotent upserts. StartDateLocal is a naive wall-clock time paired with
// the run's own Timezone; it is not UTC and must not be converted.
type Run struct {
	StravaID           int64
	UserID             string
	StartDateLocal     time.Time
	Timezone           *string
	DistanceKm         float64
	DurationMin        float64
	AvgPaceMinKm       *float64
	TotalElevationGain *int
	AverageHeartrate   *int
	MaxHeartrate       *int
	SufferScore        *int
	Notes              *string
}

// TokenUpdate carries refreshed OAuth credentials back to the store.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// UserStore captures user credential persistence.
type UserStore interface {
	ListSyncable(ctx context.Context) ([]User, error)
	GetByAthleteID(ctx context.Context, athleteID int64) (*User, error)
	UpdateTokens(ctx context.Context, userID string, update TokenUpdate) error
	DeleteByAthleteID(ctx context.Context, athleteID int64) (bool, error)
}

// RunStore captures idempotent run persistence.
type RunStore interface {
	UpsertRuns(ctx context.Context, runs []Run) error
	DeleteRun(ctx context.Context, stravaID int64) (bool, error)
	ListRunsByUser(ctx context.Context, userID string, from, to time.Time, limit int) ([]Run, error)
}

// SubscriptionStore persists the single webhook subscription this deployment owns.
type SubscriptionStore interface {
	GetSubscriptionID(ctx context.Context) (int64, bool, error)
	SaveSubscriptionID(ctx context.Context, subscriptionID int64) error
	DeleteSubscription(ctx context.Context) error
}
