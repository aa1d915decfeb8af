// Package domain defines the business logic for the fitness platform.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrRecommendationNotFound is returned when no recommendation exists for an activity.
	ErrRecommendationNotFound = errors.New("recommendation not found")
	// ErrInvalidActivity wraps validation failures on tracked activities.
	ErrInvalidActivity = errors.New("invalid activity")
)

// ActivityRepository captures persistence operations for activities.
type ActivityRepository interface {
	Create(ctx context.Context, activity Activity) error
	Get(ctx context.Context, activityID string) (*Activity, error)
	ListByKeycloakID(ctx context.Context, keycloakID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
}

// ActivityPublisher emits an event for a durably stored activity.
type ActivityPublisher interface {
	Publish(ctx context.Context, activity Activity) error
}

// Service orchestrates activity tracking workflows.
type Service struct {
	repo      ActivityRepository
	publisher ActivityPublisher
	logger    *log.Logger
}

// NewService constructs a Service. The publisher may be nil, in which case
// tracked activities are stored but no event is emitted.
func NewService(repo ActivityRepository, publisher ActivityPublisher) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    log.New(log.Writer(), "[activity] ", log.LstdFlags),
	}
}

// TrackActivityInput captures the payload from the API layer.
type TrackActivityInput struct {
	KeycloakID     string
	ActivityType   ActivityType
	DurationMin    int
	CaloriesBurned int
	StartedAt      time.Time
	Metrics        map[string]any
}

// Cursor models the pagination token.
type Cursor struct {
	StartedAt time.Time
	ID        string
}

// Validate checks the tracked activity fields against the accepted ranges.
func (in TrackActivityInput) Validate() error {
	if in.KeycloakID == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidActivity)
	}
	if !in.ActivityType.Valid() {
		return fmt.Errorf("%w: unknown activity type %q", ErrInvalidActivity, in.ActivityType)
	}
	if in.DurationMin <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidActivity)
	}
	if in.CaloriesBurned < 0 {
		return fmt.Errorf("%w: calories must not be negative", ErrInvalidActivity)
	}
	return nil
}

// TrackActivity persists a workout and publishes the tracked event. Publish
// failures are logged and swallowed: the storage write is already durable and
// must not be rolled back for a broker hiccup.
func (s *Service) TrackActivity(ctx context.Context, input TrackActivityInput) (*Activity, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	activity := Activity{
		ID:             uuid.NewString(),
		KeycloakID:     input.KeycloakID,
		ActivityType:   input.ActivityType,
		DurationMin:    input.DurationMin,
		CaloriesBurned: input.CaloriesBurned,
		StartedAt:      input.StartedAt.UTC(),
		Metrics:        input.Metrics,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, activity); err != nil {
			s.logger.Printf("publish failed for activity=%s: %v", activity.ID, err)
		}
	}

	return &activity, nil
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, activityID string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ListActivitiesByUser fetches activities with cursor pagination.
func (s *Service) ListActivitiesByUser(ctx context.Context, keycloakID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	return s.repo.ListByKeycloakID(ctx, keycloakID, cursor, limit)
}
