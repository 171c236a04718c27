package sshd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdmask",
			Name:      "commands_total",
			Help:      "Commands received over SSH, by whether a rule handled them.",
		},
		[]string{"mocked"},
	)
	sessionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cmdmask",
			Name:      "sessions_total",
			Help:      "SSH connections that completed the handshake.",
		},
	)
	authAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cmdmask",
			Name:      "auth_attempts_total",
			Help:      "SSH authentication attempts, by method.",
		},
		[]string{"method"},
	)
	commandDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cmdmask",
			Name:      "command_duration_seconds",
			Help:      "Time spent producing the answer to a command.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal, sessionsTotal, authAttemptsTotal, commandDuration)
}

// MetricsHandler serves the default prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
