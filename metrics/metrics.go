package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	// Join session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "join_sessions_active",
		Help: "The current number of live join sessions.",
	})
	JoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "join_success_total",
		Help: "The total number of joins confirmed by server co-location.",
	})
	CancellationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "join_cancellations_total",
		Help: "The total number of join sessions that ended cancelled.",
	})
	MissingTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "join_missing_timeouts_total",
		Help: "The total number of sessions cancelled because the friend stayed missing.",
	})

	// Presence metrics
	PresenceQueryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "presence_query_errors_total",
		Help: "The total number of presence API calls that failed after retries.",
	})

	// Launcher metrics
	LaunchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "protocol_launch_requests_total",
		Help: "The total number of steam protocol URIs handed to the OS.",
	}, []string{"kind"})

	// UI metrics
	UIEventsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ui_events_sent_total",
		Help: "The total number of status events broadcast to UI clients.",
	})
	UIClientsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ui_clients_active",
		Help: "The current number of connected UI websocket clients.",
	})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logrus.Infof("Starting metrics server on %s%s", addr, path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logrus.Fatalf("Failed to start metrics server: %v", err)
		}
	}()
}
