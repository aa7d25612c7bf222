package syncer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	usersProcessedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsync",
		Subsystem: "poller",
		Name:      "users_processed_total",
		Help:      "Number of users successfully synchronized across all passes.",
	})

	userErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsync",
		Subsystem: "poller",
		Name:      "user_errors_total",
		Help:      "Number of per-user sync failures.",
	})

	runsSyncedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "runsync",
		Subsystem: "poller",
		Name:      "runs_synced_total",
		Help:      "Number of runs upserted by the poller.",
	})

	lastPassGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "runsync",
		Subsystem: "poller",
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed sync pass.",
	})
)

func init() {
	prometheus.MustRegister(usersProcessedCounter, userErrorCounter, runsSyncedCounter, lastPassGauge)
}

func recordPassCompleted(usersProcessed int) {
	usersProcessedCounter.Add(float64(usersProcessed))
	lastPassGauge.Set(float64(time.Now().Unix()))
}

func recordUserError() {
	userErrorCounter.Inc()
}

func recordRunsSynced(count int) {
	runsSyncedCounter.Add(float64(count))
}
