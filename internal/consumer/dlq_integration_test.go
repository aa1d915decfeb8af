//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/fitness/internal/events"
)

type recordingPublisher struct {
	messages []kafka.Message
	err      error
}

func (p *recordingPublisher) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msgs...)
	return nil
}

func TestDLQWriteAndReplay(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	writer := NewDLQWriter(pool)
	event := events.ActivityTracked{
		ActivityID:   uuid.NewString(),
		KeycloakID:   uuid.NewString(),
		ActivityType: "running",
		DurationMin:  45,
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, writer.Write(ctx, "activity_events", event, payload, "retries exhausted"))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM recommendation_dlq`).Scan(&count))
	require.Equal(t, 1, count)

	before := counterValue(t, dlqReplayedCounter.WithLabelValues("activity_events"))

	publisher := &recordingPublisher{}
	manager := NewDLQManager(pool, publisher, 5, time.Minute)

	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)
	require.Len(t, publisher.messages, 1)
	require.Equal(t, event.ActivityID, string(publisher.messages[0].Key))
	require.JSONEq(t, string(payload), string(publisher.messages[0].Value))

	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM recommendation_dlq`).Scan(&count))
	require.Equal(t, 0, count)

	after := counterValue(t, dlqReplayedCounter.WithLabelValues("activity_events"))
	require.Equal(t, before+1, after)
}

func TestDLQReplayFailureSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	writer := NewDLQWriter(pool)
	event := events.ActivityTracked{ActivityID: uuid.NewString(), KeycloakID: uuid.NewString(), ActivityType: "yoga"}
	payload, _ := json.Marshal(event)
	require.NoError(t, writer.Write(ctx, "activity_events", event, payload, "boom"))

	publisher := &recordingPublisher{err: errors.New("broker unreachable")}
	manager := NewDLQManager(pool, publisher, 5, time.Minute)

	replayed, err := manager.RunOnce(ctx, 10)
	require.Error(t, err)
	require.Equal(t, 0, replayed)

	var retryCount int
	var nextRetry *time.Time
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT retry_count, next_retry_at FROM recommendation_dlq WHERE activity_id = $1`,
		event.ActivityID,
	).Scan(&retryCount, &nextRetry))
	require.Equal(t, 1, retryCount)
	require.NotNil(t, nextRetry)
	require.True(t, nextRetry.After(time.Now()))
}

func TestDLQQuarantineAfterRetryLimit(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t, ctx)

	writer := NewDLQWriter(pool)
	event := events.ActivityTracked{ActivityID: uuid.NewString(), KeycloakID: uuid.NewString(), ActivityType: "cardio"}
	payload, _ := json.Marshal(event)
	require.NoError(t, writer.Write(ctx, "activity_events", event, payload, "boom"))

	_, err := pool.Exec(ctx,
		`UPDATE recommendation_dlq SET retry_count = 5, next_retry_at = NOW() WHERE activity_id = $1`,
		event.ActivityID,
	)
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	manager := NewDLQManager(pool, publisher, 5, time.Minute)

	_, err = manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, publisher.messages)

	var quarantinedAt *time.Time
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT quarantined_at FROM recommendation_dlq WHERE activity_id = $1`,
		event.ActivityID,
	).Scan(&quarantinedAt))
	require.NotNil(t, quarantinedAt)
}

func counterValue(t *testing.T, counter interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, counter.Write(metric))
	return metric.GetCounter().GetValue()
}

func setupPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("fitness"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	applyMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return pool
}

func applyMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		_, file, _, ok := runtime.Caller(0)
		require.True(t, ok)
		contents, readErr := os.ReadFile(filepath.Join(filepath.Dir(file), rel))
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
