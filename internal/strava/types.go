package strava

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ActivityTypeRun is the only activity type this service synchronizes.
const ActivityTypeRun = "Run"

// RawActivity is the provider's wire representation of one activity.
// Metric fields arrive as numbers, numeric strings, or not at all.
type RawActivity struct {
	ID                 int64   `json:"id"`
	Type               string  `json:"type"`
	Name               string  `json:"name"`
	Distance           float64 `json:"distance"`
	MovingTime         float64 `json:"moving_time"`
	Timezone           string  `json:"timezone"`
	StartDateLocal     string  `json:"start_date_local"`
	TotalElevationGain Metric  `json:"total_elevation_gain"`
	AverageHeartrate   Metric  `json:"average_heartrate"`
	MaxHeartrate       Metric  `json:"max_heartrate"`
	SufferScore        Metric  `json:"suffer_score"`
}

// TokenResponse is the provider's refresh-token grant response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Subscription is one provider-side push subscription.
type Subscription struct {
	ID          int64  `json:"id"`
	CallbackURL string `json:"callback_url"`
	CreatedAt   string `json:"created_at"`
}

// Metric tolerates the provider's number-or-string encoding of numeric
// fields. Malformed values resolve to absent rather than a decode error.
type Metric struct {
	value   float64
	present bool
}

// UnmarshalJSON accepts numbers, numeric strings, and null. It never fails.
func (m *Metric) UnmarshalJSON(data []byte) error {
	m.value, m.present = 0, false

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		m.value, m.present = parsed, true
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	m.value, m.present = f, true
	return nil
}

// Rounded returns the metric rounded to the nearest integer, or nil when
// the value was absent or malformed.
func (m Metric) Rounded() *int {
	if !m.present {
		return nil
	}
	rounded := int(math.Round(m.value))
	return &rounded
}
