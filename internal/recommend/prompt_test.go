package recommend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fitness/internal/events"
)

func TestBuildPromptIncludesActivityFields(t *testing.T) {
	prompt := BuildPrompt(events.ActivityTracked{
		ActivityID:     "act-1",
		ActivityType:   "running",
		DurationMin:    42,
		CaloriesBurned: 380,
		Metrics:        map[string]any{"distance_km": 7.5, "avg_hr": 152},
	})

	require.Contains(t, prompt, "Activity Type: RUNNING")
	require.Contains(t, prompt, "Duration: 42 minutes")
	require.Contains(t, prompt, "Calories Burned: 380")
	require.Contains(t, prompt, "avg_hr=152, distance_km=7.5")
	require.Contains(t, prompt, "EXACT JSON format")
}

func TestBuildPromptNoMetrics(t *testing.T) {
	prompt := BuildPrompt(events.ActivityTracked{ActivityType: "yoga", DurationMin: 30})
	require.Contains(t, prompt, "Additional Metrics: none")
}

func TestBuildPromptDeterministic(t *testing.T) {
	event := events.ActivityTracked{
		ActivityType: "cycling",
		DurationMin:  60,
		Metrics:      map[string]any{"c": 3, "a": 1, "b": 2},
	}

	first := BuildPrompt(event)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, BuildPrompt(event))
	}
}
