package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
)

type dlqPublisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// DLQManager replays dead-lettered activity events back onto the topic and
// quarantines entries that keep failing. Replay is an explicit operator
// action run by its own binary; the pipeline itself never requeues.
type DLQManager struct {
	pool       *pgxpool.Pool
	publisher  dlqPublisher
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager constructs a DLQManager with the provided pool, publisher,
// and retry configuration.
func NewDLQManager(pool *pgxpool.Pool, publisher dlqPublisher, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQManager{pool: pool, publisher: publisher, maxRetries: maxRetries, baseDelay: baseDelay}
}

// RunOnce processes a batch of DLQ entries and returns the count of
// successfully replayed messages.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT dlq_id, activity_id, keycloak_id, topic, payload, reason, retry_count
                    FROM recommendation_dlq
                   WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
                   ORDER BY created_at
                   LIMIT $1`

	rows, err := m.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	entries := make([]dlqEntry, 0, batchSize)
	for rows.Next() {
		entry, scanErr := scanDLQEntry(rows)
		if scanErr != nil {
			err = errors.Join(err, scanErr)
			continue
		}
		entries = append(entries, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = errors.Join(err, rowsErr)
	}
	rows.Close()

	replayed := 0
	for _, entry := range entries {
		if procErr := m.handleEntry(ctx, entry); procErr != nil {
			err = errors.Join(err, procErr)
		} else {
			replayed++
		}
	}
	updateBacklogGauge(ctx, m.pool)
	return replayed, err
}

// handleEntry applies replay/quarantine logic for a single DLQ entry.
func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) error {
	if entry.RetryCount >= m.maxRetries {
		if _, err := m.pool.Exec(ctx,
			`UPDATE recommendation_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`,
			"retry limit reached", entry.ID,
		); err != nil {
			return err
		}
		recordDLQQuarantined(entry.Topic)
		return nil
	}

	replayErr := m.publisher.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.ActivityID),
		Value: entry.Payload,
		Time:  time.Now().UTC(),
	})
	if replayErr != nil {
		delay := m.backoffDelay(entry.RetryCount + 1)
		if _, err := m.pool.Exec(ctx,
			`UPDATE recommendation_dlq
               SET retry_count = retry_count + 1,
                   last_attempt_at = NOW(),
                   next_retry_at = NOW() + $1::interval,
                   reason = $2
             WHERE dlq_id = $3`,
			delay, replayErr.Error(), entry.ID,
		); err != nil {
			return errors.Join(replayErr, err)
		}
		recordDLQRetryScheduled(entry.Topic)
		return replayErr
	}

	if _, err := m.pool.Exec(ctx, `DELETE FROM recommendation_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
		return err
	}
	recordDLQReplayed(entry.Topic)
	return nil
}

// backoffDelay calculates exponential backoff capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * m.baseDelay
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}

// dlqEntry represents a recommendation_dlq row selected for processing.
type dlqEntry struct {
	ID         int64
	ActivityID string
	KeycloakID string
	Topic      string
	Payload    []byte
	Reason     string
	RetryCount int
}

func scanDLQEntry(rows pgx.Rows) (dlqEntry, error) {
	var entry dlqEntry
	if err := rows.Scan(&entry.ID, &entry.ActivityID, &entry.KeycloakID, &entry.Topic, &entry.Payload, &entry.Reason, &entry.RetryCount); err != nil {
		return dlqEntry{}, err
	}
	return entry, nil
}
