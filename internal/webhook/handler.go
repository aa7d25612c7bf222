package webhook

import (
	"encoding/json"
	"log"
	"net/http"
)

// Enqueuer accepts validated deliveries for asynchronous processing.
type Enqueuer interface {
	Enqueue(delivery Delivery) error
}

// Handler serves the provider-facing webhook endpoint: the GET subscription
// handshake and POST event deliveries. Deliveries are acknowledged 200
// immediately after validation; processing happens off the request path so
// the ack always lands inside the provider's deadline.
type Handler struct {
	verifyToken string
	queue       Enqueuer
	logger      *log.Logger
}

// NewHandler constructs a Handler.
func NewHandler(verifyToken string, queue Enqueuer) *Handler {
	return &Handler{
		verifyToken: verifyToken,
		queue:       queue,
		logger:      log.New(log.Writer(), "[webhook] ", log.LstdFlags),
	}
}

// SetLogger overrides the logger, primarily for tests.
func (h *Handler) SetLogger(logger *log.Logger) { h.logger = logger }

// RegisterRoutes wires the webhook endpoint to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/strava/webhook", h.serve)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handshake(w, r)
	case http.MethodPost:
		h.deliver(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handshake answers the provider's subscription validation request.
func (h *Handler) handshake(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	challenge := query.Get("hub.challenge")
	token := query.Get("hub.verify_token")

	if mode != "subscribe" || token != h.verifyToken {
		h.logger.Printf("handshake rejected (mode=%s)", mode)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	h.logger.Printf("handshake verified, echoing challenge")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"hub.challenge": challenge})
}

// deliver accepts one event. It always acknowledges 200 so the provider does
// not build a retry storm; failures here are logged and left to the poller.
func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	recordReceived()

	var event Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Printf("discarding malformed delivery: %v", err)
		recordRejected("malformed")
		ack(w)
		return
	}

	if err := event.Validate(); err != nil {
		h.logger.Printf("discarding invalid delivery: %v", err)
		recordRejected("invalid")
		ack(w)
		return
	}

	delivery := NewDelivery(event)
	if err := h.queue.Enqueue(delivery); err != nil {
		h.logger.Printf("dropping delivery %s: %v", delivery.ID, err)
		recordRejected("queue_full")
		ack(w)
		return
	}

	recordAccepted(event.ObjectType, event.AspectType)
	ack(w)
}

func ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
