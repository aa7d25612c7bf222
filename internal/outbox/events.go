package outbox

import "time"

// Topics the dispatcher publishes to. The notification layer consumes them.
const (
	TopicRunEvents     = "run_events"
	TopicAthleteEvents = "athlete_events"
)

// Event types recorded by the repository.
const (
	EventRunSynced           = "run.synced"
	EventRunDeleted          = "run.deleted"
	EventAthleteDeauthorized = "athlete.deauthorized"
)

// RunSynced is emitted after a run row is created or overwritten. It carries
// both the run's own timezone and the user id so consumers can pair it with
// the profile timezone; the two are deliberately kept distinct.
type RunSynced struct {
	StravaID       int64     `json:"strava_id"`
	UserID         string    `json:"user_id"`
	StartDateLocal time.Time `json:"start_date_local"`
	Timezone       *string   `json:"timezone,omitempty"`
	DistanceKm     float64   `json:"distance_km"`
	DurationMin    float64   `json:"duration_min"`
	AvgPaceMinKm   *float64  `json:"avg_pace_min_km,omitempty"`
	SufferScore    *int      `json:"suffer_score,omitempty"`
}

// RunDeleted is emitted when an explicit delete event removes a run row.
type RunDeleted struct {
	StravaID int64 `json:"strava_id"`
}

// AthleteDeauthorized is emitted when a de-authorization cascade removes a
// user and their runs.
type AthleteDeauthorized struct {
	AthleteID int64  `json:"athlete_id"`
	UserID    string `json:"user_id"`
}
