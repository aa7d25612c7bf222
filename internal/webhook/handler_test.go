package webhook

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	deliveries []Delivery
	err        error
}

func (q *recordingQueue) Enqueue(delivery Delivery) error {
	if q.err != nil {
		return q.err
	}
	q.deliveries = append(q.deliveries, delivery)
	return nil
}

func newTestHandler(queue Enqueuer) (*Handler, *http.ServeMux) {
	h := NewHandler("verify-me", queue)
	h.SetLogger(log.New(io.Discard, "", 0))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestHandshakeEchoesChallenge(t *testing.T) {
	_, mux := newTestHandler(&recordingQueue{})

	req := httptest.NewRequest(http.MethodGet, "/strava/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=abc123", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "abc123", body["hub.challenge"])
}

func TestHandshakeRejectsBadToken(t *testing.T) {
	_, mux := newTestHandler(&recordingQueue{})

	req := httptest.NewRequest(http.MethodGet, "/strava/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=abc123", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandshakeRejectsWrongMode(t *testing.T) {
	_, mux := newTestHandler(&recordingQueue{})

	req := httptest.NewRequest(http.MethodGet, "/strava/webhook?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=abc123", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeliverEnqueuesValidEvent(t *testing.T) {
	queue := &recordingQueue{}
	_, mux := newTestHandler(queue)

	payload := `{"object_type":"activity","object_id":123,"aspect_type":"create","owner_id":456,"subscription_id":1,"event_time":1700000000}`
	req := httptest.NewRequest(http.MethodPost, "/strava/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, queue.deliveries, 1)
	require.Equal(t, int64(123), queue.deliveries[0].Event.ObjectID)
	require.NotEmpty(t, queue.deliveries[0].ID)
}

func TestDeliverAcksMalformedBody(t *testing.T) {
	queue := &recordingQueue{}
	_, mux := newTestHandler(queue)

	before := counterValue(t, rejectedCounter.WithLabelValues("malformed"))

	req := httptest.NewRequest(http.MethodPost, "/strava/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, queue.deliveries)
	require.Equal(t, before+1, counterValue(t, rejectedCounter.WithLabelValues("malformed")))
}

func TestDeliverAcksInvalidEvent(t *testing.T) {
	queue := &recordingQueue{}
	_, mux := newTestHandler(queue)

	payload := `{"object_type":"segment","object_id":123,"aspect_type":"create"}`
	req := httptest.NewRequest(http.MethodPost, "/strava/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, queue.deliveries)
}

func TestDeliverAcksWhenQueueFull(t *testing.T) {
	queue := &recordingQueue{err: ErrQueueFull}
	_, mux := newTestHandler(queue)

	before := counterValue(t, rejectedCounter.WithLabelValues("queue_full"))

	payload := `{"object_type":"activity","object_id":123,"aspect_type":"create","owner_id":456}`
	req := httptest.NewRequest(http.MethodPost, "/strava/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, before+1, counterValue(t, rejectedCounter.WithLabelValues("queue_full")))
}

func TestMethodNotAllowed(t *testing.T) {
	_, mux := newTestHandler(&recordingQueue{})

	req := httptest.NewRequest(http.MethodPut, "/strava/webhook", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
