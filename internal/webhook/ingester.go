package webhook

import (
	"context"
	"fmt"
	"log"

	"example.com/runsync/internal/domain"
	"example.com/runsync/internal/strava"
)

// ActivityFetcher fetches one full activity by id.
type ActivityFetcher interface {
	GetActivity(ctx context.Context, accessToken string, activityID int64) (*strava.RawActivity, error)
}

// TokenProvider hands out a valid access token for a user.
type TokenProvider interface {
	EnsureAccessToken(ctx context.Context, user domain.User) (string, error)
}

// Ingester applies webhook events to the record store through the same
// normalize/upsert path the poller uses.
type Ingester struct {
	users  domain.UserStore
	runs   domain.RunStore
	tokens TokenProvider
	source ActivityFetcher
	logger *log.Logger
}

// NewIngester constructs an Ingester.
func NewIngester(users domain.UserStore, runs domain.RunStore, tokens TokenProvider, source ActivityFetcher) *Ingester {
	return &Ingester{
		users:  users,
		runs:   runs,
		tokens: tokens,
		source: source,
		logger: log.New(log.Writer(), "[webhook] ", log.LstdFlags),
	}
}

// SetLogger overrides the logger, primarily for tests.
func (i *Ingester) SetLogger(logger *log.Logger) { i.logger = logger }

// HandleEvent routes one delivery by object type.
func (i *Ingester) HandleEvent(ctx context.Context, delivery Delivery) error {
	switch delivery.Event.ObjectType {
	case ObjectActivity:
		return i.handleActivity(ctx, delivery)
	case ObjectAthlete:
		return i.handleAthlete(ctx, delivery)
	default:
		// Validation upstream makes this unreachable; guard anyway.
		return &domain.ValidationError{Field: "object_type", Detail: delivery.Event.ObjectType}
	}
}

func (i *Ingester) handleActivity(ctx context.Context, delivery Delivery) error {
	event := delivery.Event

	if event.AspectType == AspectDelete {
		deleted, err := i.runs.DeleteRun(ctx, event.ObjectID)
		if err != nil {
			return fmt.Errorf("delete run %d: %w", event.ObjectID, err)
		}
		if deleted {
			i.logger.Printf("deleted run %d (delivery=%s)", event.ObjectID, delivery.ID)
		}
		return nil
	}

	user, err := i.users.GetByAthleteID(ctx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("resolve owner %d: %w", event.OwnerID, err)
	}
	if user == nil {
		i.logger.Printf("no user for owner %d, ignoring activity %d", event.OwnerID, event.ObjectID)
		return nil
	}

	accessToken, err := i.tokens.EnsureAccessToken(ctx, *user)
	if err != nil {
		return err
	}

	activity, err := i.source.GetActivity(ctx, accessToken, event.ObjectID)
	if err != nil {
		return fmt.Errorf("fetch activity %d: %w", event.ObjectID, err)
	}

	if activity.Type != strava.ActivityTypeRun {
		i.logger.Printf("skipping non-run activity %d (%s)", activity.ID, activity.Type)
		return nil
	}

	run, err := strava.NormalizeActivity(*activity, user.ID)
	if err != nil {
		return err
	}

	if err := i.runs.UpsertRuns(ctx, []domain.Run{run}); err != nil {
		return fmt.Errorf("upsert run %d: %w", run.StravaID, err)
	}

	i.logger.Printf("processed %s for run %d (delivery=%s)", event.AspectType, event.ObjectID, delivery.ID)
	return nil
}

func (i *Ingester) handleAthlete(ctx context.Context, delivery Delivery) error {
	event := delivery.Event

	if !event.Deauthorized() {
		i.logger.Printf("ignoring athlete %s for %d (delivery=%s)", event.AspectType, event.ObjectID, delivery.ID)
		return nil
	}

	deleted, err := i.users.DeleteByAthleteID(ctx, event.ObjectID)
	if err != nil {
		return fmt.Errorf("delete user for athlete %d: %w", event.ObjectID, err)
	}
	if deleted {
		i.logger.Printf("deleted athlete %d and their runs (delivery=%s)", event.ObjectID, delivery.ID)
	}
	return nil
}
