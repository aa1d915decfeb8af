// Package api exposes HTTP handlers for the fitness platform.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/fitness/internal/auth"
	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/persistence"
)

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	activities      *domain.Service
	recommendations *domain.RecommendationService
}

// NewHandler builds a Handler.
func NewHandler(activities *domain.Service, recommendations *domain.RecommendationService) *Handler {
	return &Handler{activities: activities, recommendations: recommendations}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activityCollection)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/recommendations", h.listRecommendations)
	mux.HandleFunc("/v1/recommendations/", h.recommendationByActivity)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activityCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.trackActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) trackActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:write required")
		return
	}

	var req TrackActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	startedAt := time.Now().UTC()
	if req.StartedAt != nil {
		startedAt = *req.StartedAt
	}

	activity, err := h.activities.TrackActivity(r.Context(), domain.TrackActivityInput{
		KeycloakID:     claims.Subject,
		ActivityType:   domain.ActivityType(req.ActivityType),
		DurationMin:    req.DurationMin,
		CaloriesBurned: req.CaloriesBurned,
		StartedAt:      startedAt,
		Metrics:        req.Metrics,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidActivity) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesRead) && !claims.HasScope(auth.ScopeActivitiesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:read required")
		return
	}

	activity, err := h.activities.GetActivity(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "activity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if activity.KeycloakID != claims.Subject {
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
		return
	}

	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeActivitiesRead) && !claims.HasScope(auth.ScopeActivitiesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope activities:read required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.activities.ListActivitiesByUser(r.Context(), claims.Subject, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, toActivityView(activity))
	}

	resp := ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeRecommendationsRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope recommendations:read required")
		return
	}

	recs, err := h.recommendations.UserRecommendations(r.Context(), claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]RecommendationView, 0, len(recs))
	for _, rec := range recs {
		items = append(items, toRecommendationView(rec))
	}
	writeJSON(w, http.StatusOK, ListRecommendationsResponse{Items: items})
}

func (h *Handler) recommendationByActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	activityID := strings.TrimPrefix(r.URL.Path, "/v1/recommendations/")
	if activityID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeRecommendationsRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope recommendations:read required")
		return
	}

	rec, err := h.recommendations.ActivityRecommendation(r.Context(), activityID)
	if err != nil {
		if errors.Is(err, domain.ErrRecommendationNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "recommendation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if rec.KeycloakID != claims.Subject {
		writeError(w, http.StatusNotFound, "not_found", "recommendation not found")
		return
	}

	writeJSON(w, http.StatusOK, toRecommendationView(*rec))
}

// TrackActivityRequest is the payload for POST /v1/activities.
type TrackActivityRequest struct {
	ActivityType   string         `json:"activity_type"`
	DurationMin    int            `json:"duration_min"`
	CaloriesBurned int            `json:"calories_burned"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	Metrics        map[string]any `json:"metrics,omitempty"`
}

// ActivityView exposes full details about a tracked activity.
type ActivityView struct {
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

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// RecommendationView exposes the structured AI analysis for one activity.
type RecommendationView struct {
	RecommendationID string    `json:"recommendation_id"`
	ActivityID       string    `json:"activity_id"`
	KeycloakID       string    `json:"keycloak_id"`
	ActivityType     string    `json:"activity_type"`
	Recommendation   string    `json:"recommendation"`
	Improvements     []string  `json:"improvements"`
	Suggestions      []string  `json:"suggestions"`
	Safety           []string  `json:"safety"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ListRecommendationsResponse packages recommendation list results.
type ListRecommendationsResponse struct {
	Items []RecommendationView `json:"items"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(activity domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:     activity.ID,
		KeycloakID:     activity.KeycloakID,
		ActivityType:   string(activity.ActivityType),
		DurationMin:    activity.DurationMin,
		CaloriesBurned: activity.CaloriesBurned,
		StartedAt:      activity.StartedAt,
		Metrics:        activity.Metrics,
		CreatedAt:      activity.CreatedAt,
		UpdatedAt:      activity.UpdatedAt,
	}
}

func toRecommendationView(rec domain.Recommendation) RecommendationView {
	return RecommendationView{
		RecommendationID: rec.ID,
		ActivityID:       rec.ActivityID,
		KeycloakID:       rec.KeycloakID,
		ActivityType:     string(rec.ActivityType),
		Recommendation:   rec.Recommendation,
		Improvements:     rec.Improvements,
		Suggestions:      rec.Suggestions,
		Safety:           rec.Safety,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}
