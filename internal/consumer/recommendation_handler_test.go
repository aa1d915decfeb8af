package consumer

import (
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/events"
	"example.com/fitness/internal/recommend"
)

type stubGenerator struct {
	rec   domain.Recommendation
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, _ events.ActivityTracked) (domain.Recommendation, error) {
	g.calls++
	return g.rec, g.err
}

type stubRecommendationRepo struct {
	saved   []domain.Recommendation
	saveErr error
}

func (r *stubRecommendationRepo) Save(_ context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
	if r.saveErr != nil {
		return domain.Recommendation{}, r.saveErr
	}
	rec.ID = "rec-1"
	r.saved = append(r.saved, rec)
	return rec, nil
}

func (r *stubRecommendationRepo) FindByActivityID(context.Context, string) (*domain.Recommendation, error) {
	return nil, nil
}

func (r *stubRecommendationRepo) FindByKeycloakID(context.Context, string) ([]domain.Recommendation, error) {
	return nil, nil
}

func newTestHandler(t *testing.T, gen *stubGenerator, repo *stubRecommendationRepo) *RecommendationHandler {
	t.Helper()
	return NewRecommendationHandler(gen, repo, WithHandlerLogger(log.New(testWriter{t}, "", 0)))
}

func TestHandleAcksOnSuccess(t *testing.T) {
	gen := &stubGenerator{rec: domain.Recommendation{ActivityID: "act-1", Recommendation: "good"}}
	repo := &stubRecommendationRepo{}
	handler := newTestHandler(t, gen, repo)

	outcome, err := handler.Handle(context.Background(), events.ActivityTracked{ActivityID: "act-1"})
	require.NoError(t, err)

	require.Equal(t, OutcomeAck, outcome)
	require.Equal(t, 1, gen.calls)
	require.Len(t, repo.saved, 1)
	require.Equal(t, "act-1", repo.saved[0].ActivityID)
}

func TestHandleRejectsOnGenerationError(t *testing.T) {
	genErr := &recommend.GenerationError{ActivityID: "act-2", Attempts: 3, Err: errors.New("overloaded")}
	gen := &stubGenerator{err: genErr}
	repo := &stubRecommendationRepo{}
	handler := newTestHandler(t, gen, repo)

	outcome, err := handler.Handle(context.Background(), events.ActivityTracked{ActivityID: "act-2"})

	require.Equal(t, OutcomeRejectNoRequeue, outcome)
	require.ErrorIs(t, err, genErr)
	require.Empty(t, repo.saved)
}

func TestHandleRejectsOnUnexpectedError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("wiring broken")}
	repo := &stubRecommendationRepo{}
	handler := newTestHandler(t, gen, repo)

	outcome, err := handler.Handle(context.Background(), events.ActivityTracked{ActivityID: "act-3"})

	require.Equal(t, OutcomeRejectNoRequeue, outcome)
	require.Error(t, err)
}

func TestHandleRejectsOnPersistFailure(t *testing.T) {
	gen := &stubGenerator{rec: domain.Recommendation{ActivityID: "act-4"}}
	repo := &stubRecommendationRepo{saveErr: errors.New("connection reset")}
	handler := newTestHandler(t, gen, repo)

	outcome, err := handler.Handle(context.Background(), events.ActivityTracked{ActivityID: "act-4"})

	require.Equal(t, OutcomeRejectNoRequeue, outcome)
	require.Error(t, err)
}
