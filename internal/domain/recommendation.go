package domain

import (
	"context"
	"time"
)

// Recommendation is the structured AI analysis produced for one activity.
// List fields are never empty: the parser substitutes fixed placeholder
// entries when the model returns nothing usable.
type Recommendation struct {
	ID             string
	ActivityID     string
	KeycloakID     string
	ActivityType   ActivityType
	Recommendation string
	Improvements   []string
	Suggestions    []string
	Safety         []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RecommendationRepository captures persistence operations for recommendations.
// Save upserts on activity_id so redelivered events collapse to a single row.
type RecommendationRepository interface {
	Save(ctx context.Context, rec Recommendation) (Recommendation, error)
	FindByActivityID(ctx context.Context, activityID string) (*Recommendation, error)
	FindByKeycloakID(ctx context.Context, keycloakID string) ([]Recommendation, error)
}

// RecommendationService serves read access to stored recommendations.
type RecommendationService struct {
	repo RecommendationRepository
}

// NewRecommendationService constructs a RecommendationService.
func NewRecommendationService(repo RecommendationRepository) *RecommendationService {
	return &RecommendationService{repo: repo}
}

// UserRecommendations lists recommendations owned by the given Keycloak subject.
func (s *RecommendationService) UserRecommendations(ctx context.Context, keycloakID string) ([]Recommendation, error) {
	recs, err := s.repo.FindByKeycloakID(ctx, keycloakID)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []Recommendation{}
	}
	return recs, nil
}

// ActivityRecommendation fetches the recommendation generated for one activity.
func (s *RecommendationService) ActivityRecommendation(ctx context.Context, activityID string) (*Recommendation, error) {
	rec, err := s.repo.FindByActivityID(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecommendationNotFound
	}
	return rec, nil
}
