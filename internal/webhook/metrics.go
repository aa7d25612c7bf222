package webhook

import "github.com/prometheus/client_golang/prometheus"

var (
	receivedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsync",
		Subsystem: "webhook",
		Name:      "deliveries_received_total",
		Help:      "Number of POST deliveries received, valid or not.",
	})

	acceptedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runsync",
		Subsystem: "webhook",
		Name:      "deliveries_accepted_total",
		Help:      "Number of deliveries validated and queued.",
	}, []string{"object_type", "aspect_type"})

	rejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runsync",
		Subsystem: "webhook",
		Name:      "deliveries_rejected_total",
		Help:      "Number of deliveries discarded before processing, by reason.",
	}, []string{"reason"})

	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runsync",
		Subsystem: "webhook",
		Name:      "events_processed_total",
		Help:      "Number of queued events processed successfully.",
	}, []string{"object_type", "aspect_type"})

	processingErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "runsync",
		Subsystem: "webhook",
		Name:      "processing_errors_total",
		Help:      "Number of queued events whose processing failed.",
	}, []string{"object_type"})
)

func init() {
	prometheus.MustRegister(receivedCounter, acceptedCounter, rejectedCounter, processedCounter, processingErrorCounter)
}

func recordReceived() {
	receivedCounter.Inc()
}

func recordAccepted(objectType, aspectType string) {
	acceptedCounter.WithLabelValues(objectType, aspectType).Inc()
}

func recordRejected(reason string) {
	rejectedCounter.WithLabelValues(reason).Inc()
}

func recordProcessed(objectType, aspectType string) {
	processedCounter.WithLabelValues(objectType, aspectType).Inc()
}

func recordProcessingError(objectType string) {
	processingErrorCounter.WithLabelValues(objectType).Inc()
}
