package strava

import (
	"regexp"
	"strings"
	"time"

	"example.com/runsync/internal/domain"
)

// Strava's timezone field is a composite like "(GMT-08:00) America/Los_Angeles";
// only the IANA name after the parenthetical offset is useful.
var timezonePattern = regexp.MustCompile(`\([^)]+\)\s*(.+)`)

// Layout of start_date_local once the bogus trailing "Z" is stripped.
const startDateLayout = "2006-01-02T15:04:05"

// ExtractTimezone pulls the IANA zone name out of the composite timezone
// string. It returns nil when the pattern does not match; callers fall back
// to the user's profile timezone.
func ExtractTimezone(raw string) *string {
	match := timezonePattern.FindStringSubmatch(raw)
	if match == nil {
		return nil
	}
	tz := strings.TrimSpace(match[1])
	if tz == "" {
		return nil
	}
	return &tz
}

// NormalizeActivity converts a raw provider activity into the domain
// representation: meters to kilometers, seconds to minutes, derived pace,
// extracted timezone, and integer-or-nil metrics.
//
// start_date_local is a local wall-clock time that Strava suffixes with a
// UTC "Z" marker even though it is not UTC; the suffix is stripped and the
// timestamp kept naive, paired with the separately extracted timezone.
func NormalizeActivity(a RawActivity, userID string) (domain.Run, error) {
	distanceKm := a.Distance / 1000
	durationMin := a.MovingTime / 60

	var pace *float64
	if distanceKm > 0 {
		p := durationMin / distanceKm
		pace = &p
	}

	rawStart := strings.TrimSuffix(a.StartDateLocal, "Z")
	startLocal, err := time.Parse(startDateLayout, rawStart)
	if err != nil {
		return domain.Run{}, &domain.ValidationError{Field: "start_date_local", Detail: err.Error()}
	}

	var notes *string
	if a.Name != "" {
		name := a.Name
		notes = &name
	}

	return domain.Run{
		StravaID:           a.ID,
		UserID:             userID,
		StartDateLocal:     startLocal,
		Timezone:           ExtractTimezone(a.Timezone),
		DistanceKm:         distanceKm,
		DurationMin:        durationMin,
		AvgPaceMinKm:       pace,
		TotalElevationGain: a.TotalElevationGain.Rounded(),
		AverageHeartrate:   a.AverageHeartrate.Rounded(),
		MaxHeartrate:       a.MaxHeartrate.Rounded(),
		SufferScore:        a.SufferScore.Rounded(),
		Notes:              notes,
	}, nil
}
