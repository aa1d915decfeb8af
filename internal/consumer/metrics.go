package consumer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Number of activity events acknowledged after successful processing.",
	}, []string{"topic"})

	rejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "consumer",
		Name:      "messages_rejected_total",
		Help:      "Number of activity events rejected without requeue.",
	}, []string{"topic"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Number of decode failures per topic.",
	}, []string{"topic"})

	deadLetterCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "consumer",
		Name:      "dead_letters_total",
		Help:      "Number of rejected events recorded in the DLQ.",
	}, []string{"topic"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fitness",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successfully processed message per topic.",
	}, []string{"topic"})

	dlqReplayedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "dlq",
		Name:      "messages_replayed_total",
		Help:      "Number of DLQ entries successfully replayed to Kafka.",
	}, []string{"topic"})

	dlqQuarantinedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "dlq",
		Name:      "messages_quarantined_total",
		Help:      "Number of DLQ entries quarantined after exhausting retries.",
	}, []string{"topic"})

	dlqRetryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "dlq",
		Name:      "retry_scheduled_total",
		Help:      "Number of times a DLQ entry was scheduled for a future retry.",
	}, []string{"topic"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitness",
		Subsystem: "dlq",
		Name:      "queued_messages",
		Help:      "Current number of entries remaining in the DLQ.",
	})
)

func init() {
	prometheus.MustRegister(processedCounter, rejectedCounter, decodeErrorCounter, deadLetterCounter, lastMessageGauge,
		dlqReplayedCounter, dlqQuarantinedCounter, dlqRetryCounter, dlqBacklogGauge)
}

func recordProcessed(topic string, ts time.Time) {
	processedCounter.WithLabelValues(topic).Inc()
	if !ts.IsZero() {
		lastMessageGauge.WithLabelValues(topic).Set(float64(ts.Unix()))
	}
}

func recordRejected(topic string) {
	rejectedCounter.WithLabelValues(topic).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordDeadLettered(topic string) {
	deadLetterCounter.WithLabelValues(topic).Inc()
}

func recordDLQReplayed(topic string) {
	dlqReplayedCounter.WithLabelValues(topic).Inc()
}

func recordDLQQuarantined(topic string) {
	dlqQuarantinedCounter.WithLabelValues(topic).Inc()
}

func recordDLQRetryScheduled(topic string) {
	dlqRetryCounter.WithLabelValues(topic).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	row := pool.QueryRow(ctx, `SELECT COUNT(*) FROM recommendation_dlq WHERE quarantined_at IS NULL`)
	var count int
	if err := row.Scan(&count); err != nil {
		return
	}
	dlqBacklogGauge.Set(float64(count))
}
