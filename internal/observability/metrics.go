// Package observability exposes pipeline freshness metrics shared by the
// persistence layer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityWatermark = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitness",
		Subsystem: "persistence",
		Name:      "last_activity_timestamp_seconds",
		Help:      "Unix timestamp of the most recently persisted activity.",
	})

	recommendationWatermark = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitness",
		Subsystem: "persistence",
		Name:      "last_recommendation_timestamp_seconds",
		Help:      "Unix timestamp of the most recently persisted recommendation.",
	})
)

func init() {
	prometheus.MustRegister(activityWatermark, recommendationWatermark)
}

// RecordActivityPersisted advances the activity watermark.
func RecordActivityPersisted(ts time.Time) {
	if !ts.IsZero() {
		activityWatermark.Set(float64(ts.Unix()))
	}
}

// RecordRecommendationPersisted advances the recommendation watermark.
func RecordRecommendationPersisted(ts time.Time) {
	if !ts.IsZero() {
		recommendationWatermark.Set(float64(ts.Unix()))
	}
}
