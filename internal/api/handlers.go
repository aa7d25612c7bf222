// Package api exposes the HTTP query surface consumed by the notification layer.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/runsync/internal/auth"
	"example.com/runsync/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// RunReader is the slice of the store the query API needs.
type RunReader interface {
	ListRunsByUser(ctx context.Context, userID string, from, to time.Time, limit int) ([]domain.Run, error)
}

// UserReader resolves users for the response envelope.
type UserReader interface {
	GetByID(ctx context.Context, userID string) (*domain.User, error)
}

// Handler coordinates HTTP requests with the stores.
type Handler struct {
	runs  RunReader
	users UserReader
}

// NewHandler builds a Handler.
func NewHandler(runs RunReader, users UserReader) *Handler {
	return &Handler{runs: runs, users: users}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/runs", h.listRuns)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeRunsRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope runs:read required")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if strings.TrimSpace(userID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}

	now := time.Now().UTC()
	from, err := parseTimeParam(r.URL.Query().Get("from"), now.AddDate(0, 0, -30))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid from parameter")
		return
	}
	to, err := parseTimeParam(r.URL.Query().Get("to"), now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid to parameter")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > maxListLimit {
				parsed = maxListLimit
			}
			limit = parsed
		}
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}

	runs, err := h.runs.ListRunsByUser(r.Context(), userID, from, to, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]RunView, 0, len(runs))
	for _, run := range runs {
		items = append(items, toRunView(run))
	}

	// The run's own timezone and the user's profile timezone are exposed
	// side by side; which one governs "yesterday" is the consumer's call.
	resp := ListRunsResponse{
		Items:        items,
		UserTimezone: user.Timezone,
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseTimeParam accepts RFC3339 timestamps or bare dates.
func parseTimeParam(raw string, fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", raw)
}

// RunView is the JSON projection of one run.
type RunView struct {
	StravaID           int64     `json:"strava_id"`
	UserID             string    `json:"user_id"`
	StartDateLocal     time.Time `json:"start_date_local"`
	Timezone           *string   `json:"timezone,omitempty"`
	DistanceKm         float64   `json:"distance_km"`
	DurationMin        float64   `json:"duration_min"`
	AvgPaceMinKm       *float64  `json:"avg_pace_min_km,omitempty"`
	TotalElevationGain *int      `json:"total_elevation_gain,omitempty"`
	AverageHeartrate   *int      `json:"average_heartrate,omitempty"`
	MaxHeartrate       *int      `json:"max_heartrate,omitempty"`
	SufferScore        *int      `json:"suffer_score,omitempty"`
	Notes              *string   `json:"notes,omitempty"`
}

// ListRunsResponse packages list results with the owner's profile timezone.
type ListRunsResponse struct {
	Items        []RunView `json:"items"`
	UserTimezone *string   `json:"user_timezone,omitempty"`
}

func toRunView(run domain.Run) RunView {
	return RunView{
		StravaID:           run.StravaID,
		UserID:             run.UserID,
		StartDateLocal:     run.StartDateLocal,
		Timezone:           run.Timezone,
		DistanceKm:         run.DistanceKm,
		DurationMin:        run.DurationMin,
		AvgPaceMinKm:       run.AvgPaceMinKm,
		TotalElevationGain: run.TotalElevationGain,
		AverageHeartrate:   run.AverageHeartrate,
		MaxHeartrate:       run.MaxHeartrate,
		SufferScore:        run.SufferScore,
		Notes:              run.Notes,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
