package recommend

import (
	"fmt"
	"sort"
	"strings"

	"example.com/fitness/internal/events"
)

const promptTemplate = `Analyze this fitness activity and provide detailed recommendations in the following EXACT JSON format:
{
  "analysis": {
    "overall": "Overall analysis here",
    "pace": "Pace analysis here",
    "heartRate": "Heart rate analysis here",
    "caloriesBurned": "Calories analysis here"
  },
  "improvements": [
    {
      "area": "Area name",
      "recommendation": "Detailed recommendation"
    }
  ],
  "suggestions": [
    {
      "workout": "Workout name",
      "description": "Detailed workout description"
    }
  ],
  "safety": [
    "Safety point 1",
    "Safety point 2"
  ]
}

Analyze this activity:
Activity Type: %s
Duration: %d minutes
Calories Burned: %d
Additional Metrics: %s

Provide detailed analysis focusing on performance, improvements, next workout suggestions, and safety guidelines.
Ensure the response follows the EXACT JSON format shown above.`

// BuildPrompt renders the fixed analysis prompt for one tracked activity.
// Output is deterministic for a given event: metric keys are sorted.
func BuildPrompt(activity events.ActivityTracked) string {
	return fmt.Sprintf(promptTemplate,
		strings.ToUpper(activity.ActivityType),
		activity.DurationMin,
		activity.CaloriesBurned,
		formatMetrics(activity.Metrics),
	)
}

func formatMetrics(metrics map[string]any) string {
	if len(metrics) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(metrics))
	for key := range metrics {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", key, metrics[key]))
	}
	return strings.Join(pairs, ", ")
}
