package strava

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeActivityConvertsUnits(t *testing.T) {
	raw := RawActivity{
		ID:             12345,
		Type:           "Run",
		Name:           "Morning Run",
		Distance:       10000,
		MovingTime:     3000,
		Timezone:       "(GMT-08:00) America/Los_Angeles",
		StartDateLocal: "2025-10-14T06:25:16Z",
	}

	run, err := NormalizeActivity(raw, "user-1")
	require.NoError(t, err)

	require.Equal(t, int64(12345), run.StravaID)
	require.Equal(t, "user-1", run.UserID)
	require.Equal(t, 10.0, run.DistanceKm)
	require.Equal(t, 50.0, run.DurationMin)
	require.NotNil(t, run.AvgPaceMinKm)
	require.Equal(t, 5.0, *run.AvgPaceMinKm)
	require.NotNil(t, run.Timezone)
	require.Equal(t, "America/Los_Angeles", *run.Timezone)
	require.NotNil(t, run.Notes)
	require.Equal(t, "Morning Run", *run.Notes)
}

func TestNormalizeActivityZeroDistanceHasNoPace(t *testing.T) {
	raw := RawActivity{
		ID:             1,
		Type:           "Run",
		Distance:       0,
		MovingTime:     1800,
		StartDateLocal: "2025-10-14T06:25:16Z",
	}

	run, err := NormalizeActivity(raw, "user-1")
	require.NoError(t, err)
	require.Nil(t, run.AvgPaceMinKm)
}

func TestNormalizeActivityStripsLocalTimeMarker(t *testing.T) {
	// Strava suffixes start_date_local with "Z" even though it is local
	// wall-clock time; the stored value must keep the wall-clock reading.
	raw := RawActivity{
		ID:             2,
		Type:           "Run",
		Distance:       5000,
		MovingTime:     1500,
		StartDateLocal: "2025-10-14T06:25:16Z",
	}

	run, err := NormalizeActivity(raw, "user-1")
	require.NoError(t, err)

	want := time.Date(2025, time.October, 14, 6, 25, 16, 0, time.UTC)
	require.True(t, run.StartDateLocal.Equal(want), "got %s", run.StartDateLocal)
}

func TestNormalizeActivityRejectsUnparseableStart(t *testing.T) {
	raw := RawActivity{
		ID:             3,
		Type:           "Run",
		StartDateLocal: "not-a-timestamp",
	}

	_, err := NormalizeActivity(raw, "user-1")
	require.Error(t, err)
}

func TestExtractTimezone(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want *string
	}{
		{"standard composite", "(GMT-08:00) America/Los_Angeles", strPtr("America/Los_Angeles")},
		{"positive offset", "(GMT+10:00) Australia/Sydney", strPtr("Australia/Sydney")},
		{"no parenthetical", "America/Los_Angeles", nil},
		{"empty", "", nil},
		{"offset only", "(GMT-08:00)", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractTimezone(tc.in)
			if tc.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, *tc.want, *got)
		})
	}
}

func TestMetricToleratesNumberOrString(t *testing.T) {
	var activity RawActivity
	payload := []byte(`{
        "id": 9,
        "type": "Run",
        "distance": 1000,
        "moving_time": 300,
        "start_date_local": "2025-10-14T06:25:16Z",
        "total_elevation_gain": 42.6,
        "average_heartrate": "151.2",
        "max_heartrate": "garbage",
        "suffer_score": null
    }`)
	require.NoError(t, json.Unmarshal(payload, &activity))

	run, err := NormalizeActivity(activity, "user-1")
	require.NoError(t, err)

	require.NotNil(t, run.TotalElevationGain)
	require.Equal(t, 43, *run.TotalElevationGain)
	require.NotNil(t, run.AverageHeartrate)
	require.Equal(t, 151, *run.AverageHeartrate)
	require.Nil(t, run.MaxHeartrate, "malformed metric must resolve to nil")
	require.Nil(t, run.SufferScore)
}

func TestNormalizeIsConvergent(t *testing.T) {
	raw := RawActivity{
		ID:             7,
		Type:           "Run",
		Distance:       8000,
		MovingTime:     2400,
		Timezone:       "(GMT+01:00) Europe/London",
		StartDateLocal: "2025-06-01T07:00:00Z",
	}

	first, err := NormalizeActivity(raw, "user-1")
	require.NoError(t, err)
	second, err := NormalizeActivity(raw, "user-1")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func strPtr(s string) *string { return &s }
