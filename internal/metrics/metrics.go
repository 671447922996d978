package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "subconsole_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultEmpty   = "empty"
)

var (
	registerOnce sync.Once

	pollTotal   *prometheus.CounterVec
	pollLatency *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec

	commandTotal *prometheus.CounterVec

	connectTotal *prometheus.CounterVec
)

// Init registers the console collectors with the default registry.
// Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		pollTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "poll_total",
				Help: "Total resource refreshes by resource and result",
			},
			[]string{"resource", "result"},
		)
		pollLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_latency_seconds",
				Help:    "Resource refresh latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource"},
		)
		lastSuccess = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "poll_last_success_timestamp_seconds",
				Help: "Unix time of the last successful refresh per resource",
			},
			[]string{"resource"},
		)
		commandTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_total",
				Help: "Total operator actions by action and result",
			},
			[]string{"action", "result"},
		)
		connectTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "connect_total",
				Help: "Total connect attempts by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			pollTotal,
			pollLatency,
			lastSuccess,
			commandTotal,
			connectTotal,
		)
	})
}

// ObservePoll records one refresh of resource.
func ObservePoll(resource, result string, latency time.Duration) {
	Init()
	pollTotal.WithLabelValues(resource, result).Inc()
	pollLatency.WithLabelValues(resource).Observe(latency.Seconds())
	if result != ResultError {
		lastSuccess.WithLabelValues(resource).Set(float64(time.Now().Unix()))
	}
}

// ObserveCommand records one operator action outcome.
func ObserveCommand(action string, err error) {
	Init()
	commandTotal.WithLabelValues(action, resultOf(err)).Inc()
}

// ObserveConnect records one connect attempt.
func ObserveConnect(err error) {
	Init()
	connectTotal.WithLabelValues(resultOf(err)).Inc()
}

// PollCount reads the poll counter; used by status reporting and tests.
func PollCount(resource, result string) float64 {
	Init()
	return counterValue(pollTotal.WithLabelValues(resource, result))
}

// CommandCount reads the command counter.
func CommandCount(action, result string) float64 {
	Init()
	return counterValue(commandTotal.WithLabelValues(action, result))
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
