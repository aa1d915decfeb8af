package consumer

import (
	"context"
	"errors"
	"log"

	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/events"
	"example.com/fitness/internal/recommend"
)

// RecommendationGenerator produces a recommendation for one activity event,
// owning all bounded retry behaviour.
type RecommendationGenerator interface {
	Generate(ctx context.Context, activity events.ActivityTracked) (domain.Recommendation, error)
}

// RecommendationHandler runs the generator once per delivery, persists the
// result, and converts failures into acknowledgment decisions. It never
// retries: by the time an error reaches this layer the retry budget is spent.
type RecommendationHandler struct {
	generator RecommendationGenerator
	repo      domain.RecommendationRepository
	logger    *log.Logger
}

// NewRecommendationHandler constructs a handler backed by the generator and repository.
func NewRecommendationHandler(generator RecommendationGenerator, repo domain.RecommendationRepository, opts ...HandlerOption) *RecommendationHandler {
	h := &RecommendationHandler{
		generator: generator,
		repo:      repo,
		logger:    log.New(log.Writer(), "[recommendation] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlerOption configures optional behaviour for the RecommendationHandler.
type HandlerOption func(*RecommendationHandler)

// WithHandlerLogger overrides the handler logger.
func WithHandlerLogger(logger *log.Logger) HandlerOption {
	return func(h *RecommendationHandler) {
		h.logger = logger
	}
}

// Handle generates and persists the recommendation for one activity event.
func (h *RecommendationHandler) Handle(ctx context.Context, event events.ActivityTracked) (Outcome, error) {
	rec, err := h.generator.Generate(ctx, event)
	if err != nil {
		var genErr *recommend.GenerationError
		if errors.As(err, &genErr) {
			h.logger.Printf("generation exhausted for activity=%s: %v", event.ActivityID, genErr)
			return OutcomeRejectNoRequeue, err
		}
		// Unexpected failure: requeueing would re-run paid AI calls with no
		// forward progress guarantee, so this is also rejected.
		h.logger.Printf("unexpected generation error for activity=%s: %v", event.ActivityID, err)
		return OutcomeRejectNoRequeue, err
	}

	saved, err := h.repo.Save(ctx, rec)
	if err != nil {
		h.logger.Printf("persist failed for activity=%s: %v", event.ActivityID, err)
		return OutcomeRejectNoRequeue, err
	}

	h.logger.Printf("recommendation %s stored for activity=%s", saved.ID, event.ActivityID)
	return OutcomeAck, nil
}
