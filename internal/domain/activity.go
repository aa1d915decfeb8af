package domain

import "time"

// ActivityType enumerates the workout categories accepted by the platform.
type ActivityType string

const (
	ActivityRunning        ActivityType = "running"
	ActivityWalking        ActivityType = "walking"
	ActivityCycling        ActivityType = "cycling"
	ActivitySwimming       ActivityType = "swimming"
	ActivityWeightTraining ActivityType = "weight_training"
	ActivityYoga           ActivityType = "yoga"
	ActivityCardio         ActivityType = "cardio"
	ActivityStretching     ActivityType = "stretching"
	ActivityOther          ActivityType = "other"
)

var knownActivityTypes = map[ActivityType]struct{}{
	ActivityRunning:        {},
	ActivityWalking:        {},
	ActivityCycling:        {},
	ActivitySwimming:       {},
	ActivityWeightTraining: {},
	ActivityYoga:           {},
	ActivityCardio:         {},
	ActivityStretching:     {},
	ActivityOther:          {},
}

// Valid reports whether the type is one of the known categories.
func (t ActivityType) Valid() bool {
	_, ok := knownActivityTypes[t]
	return ok
}

// Activity is the canonical workout record stored in PostgreSQL.
type Activity struct {
	ID             string
	KeycloakID     string
	ActivityType   ActivityType
	DurationMin    int
	CaloriesBurned int
	StartedAt      time.Time
	Metrics        map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
