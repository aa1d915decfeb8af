package consumer

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fitness/internal/events"
)

// DLQWriter persists rejected activity events for investigation and replay.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Write records a rejected event in the recommendation DLQ alongside the
// supplied reason.
func (w *DLQWriter) Write(ctx context.Context, topic string, event events.ActivityTracked, payload []byte, reason string) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx,
		`INSERT INTO recommendation_dlq (activity_id, keycloak_id, topic, payload, reason, next_retry_at)
         VALUES ($1,$2,$3,$4,$5, NOW())`,
		event.ActivityID,
		event.KeycloakID,
		topic,
		payload,
		reason,
	)
	return err
}
