package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesPulled counts messages pulled from the broker per consumer.
	MessagesPulled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamhub_messages_pulled_total",
		Help: "Messages pulled from the broker, per consumer id.",
	}, []string{"consumer_id"})

	// SinkErrors counts per-sink dispatch failures.
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamhub_sink_errors_total",
		Help: "Sink process failures, per sink kind.",
	}, []string{"kind"})

	// ActiveConsumers tracks the number of consumers with a running extractor.
	ActiveConsumers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamhub_active_consumers",
		Help: "Consumers currently in ACTIVE state.",
	})

	// JournalDepth tracks pending journal entries awaiting a sync pass.
	JournalDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamhub_journal_depth",
		Help: "Operation journal entries not yet persisted.",
	})
)

func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}
