package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/observability"
)

// RecommendationRepository provides Postgres-backed persistence for AI
// recommendations.
type RecommendationRepository struct {
	pool *pgxpool.Pool
}

// NewRecommendationRepository constructs a RecommendationRepository.
func NewRecommendationRepository(pool *pgxpool.Pool) *RecommendationRepository {
	return &RecommendationRepository{pool: pool}
}

// Save upserts the recommendation keyed on activity_id so that redelivered
// activity events overwrite the prior row instead of duplicating it.
func (r *RecommendationRepository) Save(ctx context.Context, rec domain.Recommendation) (domain.Recommendation, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	const stmt = `INSERT INTO recommendations (recommendation_id, activity_id, keycloak_id, activity_type, recommendation, improvements, suggestions, safety, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8, NOW(), NOW())
        ON CONFLICT (activity_id) DO UPDATE SET
            keycloak_id    = EXCLUDED.keycloak_id,
            activity_type  = EXCLUDED.activity_type,
            recommendation = EXCLUDED.recommendation,
            improvements   = EXCLUDED.improvements,
            suggestions    = EXCLUDED.suggestions,
            safety         = EXCLUDED.safety,
            updated_at     = NOW()
        RETURNING recommendation_id, created_at, updated_at`

	row := r.pool.QueryRow(ctx, stmt,
		rec.ID,
		rec.ActivityID,
		rec.KeycloakID,
		string(rec.ActivityType),
		rec.Recommendation,
		rec.Improvements,
		rec.Suggestions,
		rec.Safety,
	)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.Recommendation{}, err
	}

	observability.RecordRecommendationPersisted(rec.UpdatedAt)
	return rec, nil
}

// FindByActivityID fetches the recommendation for one activity, returning nil
// when no row exists.
func (r *RecommendationRepository) FindByActivityID(ctx context.Context, activityID string) (*domain.Recommendation, error) {
	const query = `SELECT recommendation_id, activity_id, keycloak_id, activity_type, recommendation, improvements, suggestions, safety, created_at, updated_at
        FROM recommendations WHERE activity_id = $1`

	row := r.pool.QueryRow(ctx, query, activityID)
	rec, err := scanRecommendation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// FindByKeycloakID fetches all recommendations for one owner, newest first.
func (r *RecommendationRepository) FindByKeycloakID(ctx context.Context, keycloakID string) ([]domain.Recommendation, error) {
	const query = `SELECT recommendation_id, activity_id, keycloak_id, activity_type, recommendation, improvements, suggestions, safety, created_at, updated_at
        FROM recommendations WHERE keycloak_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, keycloakID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := make([]domain.Recommendation, 0)
	for rows.Next() {
		rec, scanErr := scanRecommendation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		recs = append(recs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func scanRecommendation(row pgx.Row) (*domain.Recommendation, error) {
	var (
		rec      domain.Recommendation
		category string
	)
	if err := row.Scan(&rec.ID, &rec.ActivityID, &rec.KeycloakID, &category, &rec.Recommendation, &rec.Improvements, &rec.Suggestions, &rec.Safety, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.ActivityType = domain.ActivityType(category)
	return &rec, nil
}
