package output

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var messagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "pingpong_messages_sent_total",
	Help: "Total number of sync messages sent",
}, []string{"role"})

var messagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "pingpong_messages_received_total",
	Help: "Total number of sync messages received",
}, []string{"role"})

var roundsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "pingpong_rounds_completed_total",
	Help: "Total number of completed rounds",
}, []string{"role"})

var connectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "pingpong_connect_attempts_total",
	Help: "Total number of connect attempts made by the responder",
})

var failures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "pingpong_failures_total",
	Help: "Total number of failed socket or process operations",
}, []string{"op"})

var childProcesses = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "pingpong_child_processes",
	Help: "Number of responder child processes currently alive",
})

func init() {
	prometheus.MustRegister(messagesSent)
	prometheus.MustRegister(messagesReceived)
	prometheus.MustRegister(roundsCompleted)
	prometheus.MustRegister(connectAttempts)
	prometheus.MustRegister(failures)
	prometheus.MustRegister(childProcesses)
}

func IncrementSent(role string) {
	messagesSent.WithLabelValues(role).Inc()
}

func IncrementReceived(role string) {
	messagesReceived.WithLabelValues(role).Inc()
}

func IncrementRounds(role string) {
	roundsCompleted.WithLabelValues(role).Inc()
}

func IncrementConnectAttempts() {
	connectAttempts.Inc()
}

func IncrementFailures(op string) {
	failures.WithLabelValues(op).Inc()
}

func UpdateChildProcesses(count int) {
	childProcesses.Set(float64(count))
}

func StartMetricsServer(port int) error {
	if port <= 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return nil
}
