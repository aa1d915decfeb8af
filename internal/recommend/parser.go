// Package recommend turns tracked activities into persisted AI recommendations.
package recommend

import (
	"encoding/json"
	"fmt"
	"strings"

	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/events"
)

// Placeholder values substituted when the model output omits a field. The
// literal text is load-bearing: downstream consumers pattern-match on it.
const (
	DefaultOverall     = "No detailed analysis provided"
	DefaultImprovement = "No improvements suggested"
	DefaultSuggestion  = "No workout suggestions provided"
	DefaultSafety      = "Follow general safety guidelines for your activity type"
)

// ParseError reports a response that does not match the expected envelope or
// analysis schema. The generator treats it as terminal: retrying an
// identically malformed response would waste another paid call.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse ai response: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse ai response: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Gemini response envelope: candidates[0].content.parts[0].text.
type responseEnvelope struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Embedded analysis document the model is instructed to produce. Analysis is
// a pointer so a missing section is distinguishable from an empty one.
type analysisPayload struct {
	Analysis *struct {
		Overall string `json:"overall"`
	} `json:"analysis"`
	Improvements []struct {
		Recommendation string `json:"recommendation"`
	} `json:"improvements"`
	Suggestions []struct {
		Description string `json:"description"`
	} `json:"suggestions"`
	Safety []string `json:"safety"`
}

// ParseResponse extracts a structured recommendation from the raw endpoint
// response. It is a pure function of its inputs: identifiers and timestamps
// are assigned later at persistence.
func ParseResponse(raw string, activity events.ActivityTracked) (domain.Recommendation, error) {
	var envelope responseEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return domain.Recommendation{}, &ParseError{Reason: "invalid response envelope", Err: err}
	}
	if len(envelope.Candidates) == 0 {
		return domain.Recommendation{}, &ParseError{Reason: "no completion candidates"}
	}
	candidate := envelope.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return domain.Recommendation{}, &ParseError{Reason: "candidate has no content parts"}
	}

	text := stripCodeFence(candidate.Content.Parts[0].Text)

	var payload analysisPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return domain.Recommendation{}, &ParseError{Reason: "invalid analysis document", Err: err}
	}
	if payload.Analysis == nil {
		return domain.Recommendation{}, &ParseError{Reason: "missing analysis section"}
	}

	overall := strings.TrimSpace(payload.Analysis.Overall)
	if overall == "" {
		overall = DefaultOverall
	}

	improvements := make([]string, 0, len(payload.Improvements))
	for _, item := range payload.Improvements {
		if value := strings.TrimSpace(item.Recommendation); value != "" {
			improvements = append(improvements, value)
		}
	}
	if len(improvements) == 0 {
		improvements = []string{DefaultImprovement}
	}

	suggestions := make([]string, 0, len(payload.Suggestions))
	for _, item := range payload.Suggestions {
		if value := strings.TrimSpace(item.Description); value != "" {
			suggestions = append(suggestions, value)
		}
	}
	if len(suggestions) == 0 {
		suggestions = []string{DefaultSuggestion}
	}

	safety := make([]string, 0, len(payload.Safety))
	for _, item := range payload.Safety {
		if value := strings.TrimSpace(item); value != "" {
			safety = append(safety, value)
		}
	}
	if len(safety) == 0 {
		safety = []string{DefaultSafety}
	}

	return domain.Recommendation{
		ActivityID:     activity.ActivityID,
		KeycloakID:     activity.KeycloakID,
		ActivityType:   domain.ActivityType(activity.ActivityType),
		Recommendation: overall,
		Improvements:   improvements,
		Suggestions:    suggestions,
		Safety:         safety,
	}, nil
}

// stripCodeFence removes a leading ```json or ``` fence and a trailing ```
// fence. It is a prefix/suffix strip, not a markdown parser: unfenced text
// passes through unchanged.
func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
	}

	if strings.HasSuffix(cleaned, "```") {
		cleaned = cleaned[:len(cleaned)-len("```")]
	}

	return strings.TrimSpace(cleaned)
}
