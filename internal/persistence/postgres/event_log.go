package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRecord is one lifecycle event as received from the broker.
type EventRecord struct {
	EventType  string
	ActivityID string
	Payload    []byte
	Topic      string
	Partition  int
	Offset     int64
	ReceivedAt time.Time
}

// EventLog stores received lifecycle events for audit.
type EventLog struct {
	pool *pgxpool.Pool
}

// NewEventLog constructs an EventLog.
func NewEventLog(pool *pgxpool.Pool) *EventLog {
	return &EventLog{pool: pool}
}

// Append records an event. Redelivered messages (same topic, partition and offset) are ignored.
func (l *EventLog) Append(ctx context.Context, rec EventRecord) error {
	const stmt = `INSERT INTO activity_event_log (event_type, activity_id, payload, topic, kafka_partition, kafka_offset, received_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (topic, kafka_partition, kafka_offset) DO NOTHING`

	receivedAt := rec.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	if _, err := l.pool.Exec(ctx, stmt, rec.EventType, rec.ActivityID, rec.Payload, rec.Topic, rec.Partition, rec.Offset, receivedAt); err != nil {
		return storageError("appendEvent", err)
	}
	return nil
}

// ListForActivity returns the events recorded for one activity in arrival order.
func (l *EventLog) ListForActivity(ctx context.Context, activityID string) ([]EventRecord, error) {
	const stmt = `SELECT event_type, activity_id, payload, topic, kafka_partition, kafka_offset, received_at
        FROM activity_event_log WHERE activity_id=$1 ORDER BY log_id`

	rows, err := l.pool.Query(ctx, stmt, activityID)
	if err != nil {
		return nil, storageError("listEvents", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.EventType, &rec.ActivityID, &rec.Payload, &rec.Topic, &rec.Partition, &rec.Offset, &rec.ReceivedAt); err != nil {
			return nil, storageError("listEvents", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("listEvents", err)
	}
	return out, nil
}
