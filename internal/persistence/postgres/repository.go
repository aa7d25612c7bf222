// Package postgres provides pgx-backed persistence for users, runs, and the
// webhook subscription singleton.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/runsync/internal/domain"
	"example.com/runsync/internal/outbox"
)

const subscriptionRowID = 1

// Repository implements the domain store interfaces on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, timezone, strava_athlete_id, strava_access_token, strava_refresh_token, strava_token_expires_at, is_active`

// ListSyncable returns every user holding a refresh token. A stale access
// token does not disqualify a user; the token manager handles that.
func (r *Repository) ListSyncable(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE strava_refresh_token IS NOT NULL`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetByAthleteID resolves the user owning a provider athlete id. Returns
// nil without error when no such user exists.
func (r *Repository) GetByAthleteID(ctx context.Context, athleteID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE strava_athlete_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, athleteID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByID fetches one user by primary key, nil when absent.
func (r *Repository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateTokens persists a refreshed credential set for the user.
func (r *Repository) UpdateTokens(ctx context.Context, userID string, update domain.TokenUpdate) error {
	const stmt = `UPDATE users
        SET strava_access_token = $2, strava_refresh_token = $3, strava_token_expires_at = $4, updated_at = NOW()
        WHERE id = $1`

	_, err := r.pool.Exec(ctx, stmt, userID, update.AccessToken, update.RefreshToken, update.ExpiresAt)
	return err
}

// DeleteByAthleteID removes the user and, via the foreign key cascade, all
// of their runs. It reports whether a user row was actually deleted and
// records the de-authorization event in the same transaction.
func (r *Repository) DeleteByAthleteID(ctx context.Context, athleteID int64) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var userID string
	err = tx.QueryRow(ctx, `DELETE FROM users WHERE strava_athlete_id = $1 RETURNING id`, athleteID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, tx.Commit(ctx)
	}
	if err != nil {
		return false, err
	}

	event := outbox.AthleteDeauthorized{AthleteID: athleteID, UserID: userID}
	if err := insertOutbox(ctx, tx, outbox.EventAthleteDeauthorized, outbox.TopicAthleteEvents, userID, event); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// UpsertRuns writes the batch keyed by strava_id, overwriting every field on
// conflict. The batch is atomic per call; repeating it with identical input
// converges on the same rows.
func (r *Repository) UpsertRuns(ctx context.Context, runs []domain.Run) error {
	if len(runs) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const stmt = `INSERT INTO runs (strava_id, user_id, start_date_local, timezone, distance_km, duration_min, avg_pace_min_km, total_elevation_gain, average_heartrate, max_heartrate, suffer_score, notes, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
        ON CONFLICT (strava_id) DO UPDATE SET
            user_id = EXCLUDED.user_id,
            start_date_local = EXCLUDED.start_date_local,
            timezone = EXCLUDED.timezone,
            distance_km = EXCLUDED.distance_km,
            duration_min = EXCLUDED.duration_min,
            avg_pace_min_km = EXCLUDED.avg_pace_min_km,
            total_elevation_gain = EXCLUDED.total_elevation_gain,
            average_heartrate = EXCLUDED.average_heartrate,
            max_heartrate = EXCLUDED.max_heartrate,
            suffer_score = EXCLUDED.suffer_score,
            notes = EXCLUDED.notes,
            updated_at = NOW()`

	for _, run := range runs {
		_, err = tx.Exec(ctx, stmt,
			run.StravaID,
			run.UserID,
			run.StartDateLocal,
			run.Timezone,
			run.DistanceKm,
			run.DurationMin,
			run.AvgPaceMinKm,
			run.TotalElevationGain,
			run.AverageHeartrate,
			run.MaxHeartrate,
			run.SufferScore,
			run.Notes,
		)
		if err != nil {
			return err
		}

		event := outbox.RunSynced{
			StravaID:       run.StravaID,
			UserID:         run.UserID,
			StartDateLocal: run.StartDateLocal,
			Timezone:       run.Timezone,
			DistanceKm:     run.DistanceKm,
			DurationMin:    run.DurationMin,
			AvgPaceMinKm:   run.AvgPaceMinKm,
			SufferScore:    run.SufferScore,
		}
		if err = insertOutbox(ctx, tx, outbox.EventRunSynced, outbox.TopicRunEvents, run.UserID, event); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// DeleteRun removes the run matching stravaID. A missing row is a no-op,
// not an error, so duplicate delete deliveries converge.
func (r *Repository) DeleteRun(ctx context.Context, stravaID int64) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM runs WHERE strava_id = $1`, stravaID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	event := outbox.RunDeleted{StravaID: stravaID}
	if err := insertOutbox(ctx, tx, outbox.EventRunDeleted, outbox.TopicRunEvents, fmt.Sprintf("%d", stravaID), event); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

// ListRunsByUser returns the user's runs inside [from, to], most recent first.
func (r *Repository) ListRunsByUser(ctx context.Context, userID string, from, to time.Time, limit int) ([]domain.Run, error) {
	const query = `SELECT strava_id, user_id, start_date_local, timezone, distance_km, duration_min, avg_pace_min_km, total_elevation_gain, average_heartrate, max_heartrate, suffer_score, notes
        FROM runs
        WHERE user_id = $1 AND start_date_local >= $2 AND start_date_local <= $3
        ORDER BY start_date_local DESC
        LIMIT $4`

	rows, err := r.pool.Query(ctx, query, userID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]domain.Run, 0, limit)
	for rows.Next() {
		var run domain.Run
		if err := rows.Scan(
			&run.StravaID,
			&run.UserID,
			&run.StartDateLocal,
			&run.Timezone,
			&run.DistanceKm,
			&run.DurationMin,
			&run.AvgPaceMinKm,
			&run.TotalElevationGain,
			&run.AverageHeartrate,
			&run.MaxHeartrate,
			&run.SufferScore,
			&run.Notes,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetSubscriptionID reads the singleton webhook subscription record.
func (r *Repository) GetSubscriptionID(ctx context.Context) (int64, bool, error) {
	var subscriptionID int64
	err := r.pool.QueryRow(ctx,
		`SELECT subscription_id FROM strava_webhook_subscription WHERE id = $1`, subscriptionRowID,
	).Scan(&subscriptionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return subscriptionID, true, nil
}

// SaveSubscriptionID stores the provider-assigned subscription id.
func (r *Repository) SaveSubscriptionID(ctx context.Context, subscriptionID int64) error {
	const stmt = `INSERT INTO strava_webhook_subscription (id, subscription_id)
        VALUES ($1, $2)
        ON CONFLICT (id) DO UPDATE SET subscription_id = EXCLUDED.subscription_id`

	_, err := r.pool.Exec(ctx, stmt, subscriptionRowID, subscriptionID)
	return err
}

// DeleteSubscription removes the singleton record.
func (r *Repository) DeleteSubscription(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM strava_webhook_subscription WHERE id = $1`, subscriptionRowID)
	return err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, topic, partitionKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4)`

	_, err = tx.Exec(ctx, stmt, eventType, topic, partitionKey, body)
	return err
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Timezone,
		&user.AthleteID,
		&user.AccessToken,
		&user.RefreshToken,
		&user.TokenExpiresAt,
		&user.IsActive,
	)
	return user, err
}
