// Package syncer runs the scheduled per-user batch synchronization pass.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"example.com/runsync/internal/domain"
	"example.com/runsync/internal/strava"
)

// DefaultPageSize bounds each user's fetch to one page of recent activities.
// The poller is a backstop to the webhook plus the initial sync, not a
// historical backfill; absence from this window never implies deletion.
const DefaultPageSize = 30

// ActivitySource lists recent raw activities for an access token.
type ActivitySource interface {
	ListActivities(ctx context.Context, accessToken string, perPage int) ([]strava.RawActivity, error)
}

// TokenProvider hands out a valid access token for a user.
type TokenProvider interface {
	EnsureAccessToken(ctx context.Context, user domain.User) (string, error)
}

// UserError records one user's failure without failing the pass.
type UserError struct {
	UserID string
	Email  string
	Err    error
}

// Summary reports the outcome of one synchronization pass.
type Summary struct {
	UsersProcessed int
	Skipped        int
	Errors         []UserError
}

// Poller synchronizes runs for every connected user sequentially. One user's
// failure never aborts the others.
type Poller struct {
	users    domain.UserStore
	runs     domain.RunStore
	tokens   TokenProvider
	source   ActivitySource
	pageSize int
	logger   *log.Logger
}

// NewPoller constructs a Poller. A non-positive pageSize falls back to
// DefaultPageSize.
func NewPoller(users domain.UserStore, runs domain.RunStore, tokens TokenProvider, source ActivitySource, pageSize int) *Poller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Poller{
		users:    users,
		runs:     runs,
		tokens:   tokens,
		source:   source,
		pageSize: pageSize,
		logger:   log.New(log.Writer(), "[syncer] ", log.LstdFlags),
	}
}

// SetLogger overrides the logger, primarily for tests.
func (p *Poller) SetLogger(logger *log.Logger) { p.logger = logger }

// SyncAll fetches, normalizes, and upserts recent runs for every user with a
// refresh token. The returned error covers only the user listing itself;
// per-user failures land in the Summary.
func (p *Poller) SyncAll(ctx context.Context) (Summary, error) {
	users, err := p.users.ListSyncable(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list syncable users: %w", err)
	}

	var summary Summary
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := p.syncUser(ctx, user); err != nil {
			if errors.Is(err, domain.ErrPermissionScope) {
				// Expected when the user unchecked private-activity access.
				p.logger.Printf("skipping %s: no activity read permission", user.Email)
				summary.Skipped++
				continue
			}
			p.logger.Printf("sync failed for %s: %v", user.Email, err)
			summary.Errors = append(summary.Errors, UserError{UserID: user.ID, Email: user.Email, Err: err})
			recordUserError()
			continue
		}
		summary.UsersProcessed++
	}

	recordPassCompleted(summary.UsersProcessed)
	return summary, nil
}

func (p *Poller) syncUser(ctx context.Context, user domain.User) error {
	accessToken, err := p.tokens.EnsureAccessToken(ctx, user)
	if err != nil {
		return err
	}

	activities, err := p.source.ListActivities(ctx, accessToken, p.pageSize)
	if err != nil {
		return err
	}

	runs := make([]domain.Run, 0, len(activities))
	for _, activity := range activities {
		if activity.Type != strava.ActivityTypeRun {
			continue
		}
		run, err := strava.NormalizeActivity(activity, user.ID)
		if err != nil {
			p.logger.Printf("skipping activity %d for %s: %v", activity.ID, user.Email, err)
			continue
		}
		runs = append(runs, run)
	}

	if err := p.runs.UpsertRuns(ctx, runs); err != nil {
		return fmt.Errorf("upsert runs: %w", err)
	}

	p.logger.Printf("synced %d runs for %s", len(runs), user.Email)
	recordRunsSynced(len(runs))
	return nil
}
