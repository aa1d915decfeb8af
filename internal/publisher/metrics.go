package publisher

import "github.com/prometheus/client_golang/prometheus"

var (
	publishedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "publisher",
		Name:      "events_published_total",
		Help:      "Number of activity events successfully published to Kafka.",
	})

	publishFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "publisher",
		Name:      "events_failed_total",
		Help:      "Number of activity events that failed to publish and were dropped.",
	})
)

func init() {
	prometheus.MustRegister(publishedCounter, publishFailedCounter)
}

func recordPublished() { publishedCounter.Inc() }

func recordPublishFailed() { publishFailedCounter.Inc() }
