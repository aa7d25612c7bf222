package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/runsync/internal/auth"
	"example.com/runsync/internal/domain"
)

type fakeRunReader struct {
	runs    []domain.Run
	gotUID  string
	gotFrom time.Time
	gotTo   time.Time
	gotLim  int
}

func (f *fakeRunReader) ListRunsByUser(_ context.Context, userID string, from, to time.Time, limit int) ([]domain.Run, error) {
	f.gotUID, f.gotFrom, f.gotTo, f.gotLim = userID, from, to, limit
	return f.runs, nil
}

type fakeUserReader struct {
	users map[string]*domain.User
}

func (f *fakeUserReader) GetByID(_ context.Context, userID string) (*domain.User, error) {
	return f.users[userID], nil
}

func serveRuns(t *testing.T, h *Handler, target string, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func readerClaims() *auth.Claims {
	return &auth.Claims{
		Subject: "caller",
		Scopes:  map[string]struct{}{auth.ScopeRunsRead: {}},
	}
}

func strPtr(s string) *string { return &s }

func TestListRunsReturnsItemsWithUserTimezone(t *testing.T) {
	start := time.Date(2025, time.October, 14, 6, 25, 16, 0, time.UTC)
	runs := &fakeRunReader{runs: []domain.Run{{
		StravaID:       101,
		UserID:         "u1",
		StartDateLocal: start,
		Timezone:       strPtr("America/Los_Angeles"),
		DistanceKm:     5,
		DurationMin:    25,
	}}}
	users := &fakeUserReader{users: map[string]*domain.User{
		"u1": {ID: "u1", Timezone: strPtr("Europe/Berlin")},
	}}

	rec := serveRuns(t, NewHandler(runs, users), "/v1/runs?user_id=u1", readerClaims())

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ListRunsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(resp.Items))
	}
	if resp.Items[0].StravaID != 101 {
		t.Fatalf("unexpected strava_id %d", resp.Items[0].StravaID)
	}
	if resp.Items[0].Timezone == nil || *resp.Items[0].Timezone != "America/Los_Angeles" {
		t.Fatalf("unexpected run timezone %v", resp.Items[0].Timezone)
	}
	if resp.UserTimezone == nil || *resp.UserTimezone != "Europe/Berlin" {
		t.Fatalf("unexpected user timezone %v", resp.UserTimezone)
	}
}

func TestListRunsDefaultsWindowAndLimit(t *testing.T) {
	runs := &fakeRunReader{}
	users := &fakeUserReader{users: map[string]*domain.User{"u1": {ID: "u1"}}}

	rec := serveRuns(t, NewHandler(runs, users), "/v1/runs?user_id=u1", readerClaims())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if runs.gotLim != defaultListLimit {
		t.Fatalf("expected default limit %d, got %d", defaultListLimit, runs.gotLim)
	}
	window := runs.gotTo.Sub(runs.gotFrom)
	if window < 29*24*time.Hour || window > 31*24*time.Hour {
		t.Fatalf("expected ~30d default window, got %s", window)
	}
}

func TestListRunsParsesExplicitWindow(t *testing.T) {
	runs := &fakeRunReader{}
	users := &fakeUserReader{users: map[string]*domain.User{"u1": {ID: "u1"}}}

	rec := serveRuns(t, NewHandler(runs, users), "/v1/runs?user_id=u1&from=2025-10-01&to=2025-10-14&limit=500", readerClaims())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if got := runs.gotFrom.Format("2006-01-02"); got != "2025-10-01" {
		t.Fatalf("unexpected from %s", got)
	}
	if runs.gotLim != maxListLimit {
		t.Fatalf("expected limit clamped to %d, got %d", maxListLimit, runs.gotLim)
	}
}

func TestListRunsRejectsBadTimeParam(t *testing.T) {
	users := &fakeUserReader{users: map[string]*domain.User{"u1": {ID: "u1"}}}
	rec := serveRuns(t, NewHandler(&fakeRunReader{}, users), "/v1/runs?user_id=u1&from=yesterday", readerClaims())

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListRunsRequiresUserID(t *testing.T) {
	rec := serveRuns(t, NewHandler(&fakeRunReader{}, &fakeUserReader{}), "/v1/runs", readerClaims())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListRunsUnknownUserIs404(t *testing.T) {
	rec := serveRuns(t, NewHandler(&fakeRunReader{}, &fakeUserReader{}), "/v1/runs?user_id=ghost", readerClaims())
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListRunsRequiresClaims(t *testing.T) {
	rec := serveRuns(t, NewHandler(&fakeRunReader{}, &fakeUserReader{}), "/v1/runs?user_id=u1", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestListRunsRequiresScope(t *testing.T) {
	claims := &auth.Claims{Subject: "caller", Scopes: map[string]struct{}{}}
	rec := serveRuns(t, NewHandler(&fakeRunReader{}, &fakeUserReader{}), "/v1/runs?user_id=u1", claims)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	mux := http.NewServeMux()
	NewHandler(&fakeRunReader{}, &fakeUserReader{}).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
