// Package postgres provides pgx-backed persistence for the fitness platform.
package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/observability"
)

// ActivityRepository provides Postgres-backed persistence for activities.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Create persists the activity record.
func (r *ActivityRepository) Create(ctx context.Context, activity domain.Activity) error {
	metrics, err := json.Marshal(activity.Metrics)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO activities (activity_id, keycloak_id, activity_type, duration_min, calories_burned, started_at, metrics, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = r.pool.Exec(ctx, stmt,
		activity.ID,
		activity.KeycloakID,
		string(activity.ActivityType),
		activity.DurationMin,
		activity.CaloriesBurned,
		activity.StartedAt,
		metrics,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return err
	}

	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Get fetches one activity by ID, returning nil when no row exists.
func (r *ActivityRepository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	const query = `SELECT activity_id, keycloak_id, activity_type, duration_min, calories_burned, started_at, metrics, created_at, updated_at
        FROM activities WHERE activity_id = $1`

	row := r.pool.QueryRow(ctx, query, activityID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return activity, nil
}

// ListByKeycloakID fetches activities for one owner, newest first, with
// cursor pagination keyed on (started_at, activity_id).
func (r *ActivityRepository) ListByKeycloakID(ctx context.Context, keycloakID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	if limit <= 0 {
		limit = 20
	}

	const base = `SELECT activity_id, keycloak_id, activity_type, duration_min, calories_burned, started_at, metrics, created_at, updated_at
        FROM activities WHERE keycloak_id = $1`

	var (
		rows pgx.Rows
		err  error
	)
	if cursor != nil {
		rows, err = r.pool.Query(ctx, base+` AND (started_at, activity_id) < ($2, $3)
            ORDER BY started_at DESC, activity_id DESC LIMIT $4`,
			keycloakID, cursor.StartedAt, cursor.ID, limit+1)
	} else {
		rows, err = r.pool.Query(ctx, base+` ORDER BY started_at DESC, activity_id DESC LIMIT $2`,
			keycloakID, limit+1)
	}
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	activities := make([]domain.Activity, 0, limit)
	for rows.Next() {
		activity, scanErr := scanActivity(rows)
		if scanErr != nil {
			return nil, nil, scanErr
		}
		activities = append(activities, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(activities) > limit {
		activities = activities[:limit]
		last := activities[limit-1]
		next = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return activities, next, nil
}

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var (
		activity domain.Activity
		category string
		metrics  []byte
	)
	if err := row.Scan(&activity.ID, &activity.KeycloakID, &category, &activity.DurationMin, &activity.CaloriesBurned, &activity.StartedAt, &metrics, &activity.CreatedAt, &activity.UpdatedAt); err != nil {
		return nil, err
	}
	activity.ActivityType = domain.ActivityType(category)
	if len(metrics) > 0 {
		if err := json.Unmarshal(metrics, &activity.Metrics); err != nil {
			return nil, err
		}
	}
	return &activity, nil
}
