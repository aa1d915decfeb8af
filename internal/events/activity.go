// Package events defines the wire payloads exchanged over Kafka.
package events

import "time"

// EventTypeActivityTracked labels messages carrying an ActivityTracked payload.
const EventTypeActivityTracked = "activity.tracked"

// ActivityTracked is the message emitted after an activity is durably stored.
// It is immutable once published; identity is the activity ID.
type ActivityTracked struct {
	ActivityID     string         `json:"activity_id"`
	KeycloakID     string         `json:"keycloak_id"`
	ActivityType   string         `json:"activity_type"`
	DurationMin    int            `json:"duration_min"`
	CaloriesBurned int            `json:"calories_burned"`
	StartedAt      time.Time      `json:"started_at"`
	Metrics        map[string]any `json:"metrics,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
