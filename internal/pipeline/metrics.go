package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// readingsTotal counts validated readings written to disk.
	readingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aqi_readings_total",
		Help: "The total number of validated readings persisted.",
	})
	// attemptsTotal counts fetch attempts, including retries.
	attemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aqi_attempts_total",
		Help: "The total number of per-city fetch attempts.",
	})
	// retriesTotal counts attempts that were retried after a transient failure.
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aqi_retries_total",
		Help: "The total number of retries after transient failures.",
	})
	// rejectsTotal counts records dropped by field validation.
	rejectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aqi_rejects_total",
		Help: "The total number of readings rejected by field validation.",
	})
	// failuresTotal counts cities that produced nothing this cycle.
	failuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aqi_failures_total",
		Help: "The total number of cities skipped after exhausting attempts.",
	})
)
