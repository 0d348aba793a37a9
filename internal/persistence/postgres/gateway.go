// Package postgres implements the store gateway and the activity event log over PostgreSQL.
// The activities table mirrors the single-table layout: indexed key columns next to the
// full JSON document.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/activities/internal/domain"
	"example.com/activities/internal/observability"
	"example.com/activities/internal/persistence"
	"example.com/activities/internal/query"
)

//go:embed schema.sql
var schema string

// EnsureSchema creates the activities and event log tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Gateway provides Postgres-backed persistence for activities.
type Gateway struct {
	pool     *pgxpool.Pool
	pageSize int
}

// NewGateway constructs a Gateway. Index queries are fetched pageSize rows at a time.
func NewGateway(pool *pgxpool.Pool, pageSize int) *Gateway {
	if pageSize <= 0 {
		pageSize = persistence.DefaultPageSize
	}
	return &Gateway{pool: pool, pageSize: pageSize}
}

const upsertActivity = `INSERT INTO activities (id, parent_id, activity_type, tester_staff_id, test_station_p_number, start_time, end_time, activity_day, doc, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now())
        ON CONFLICT (id) DO UPDATE SET
            parent_id = EXCLUDED.parent_id,
            activity_type = EXCLUDED.activity_type,
            tester_staff_id = EXCLUDED.tester_staff_id,
            test_station_p_number = EXCLUDED.test_station_p_number,
            start_time = EXCLUDED.start_time,
            end_time = EXCLUDED.end_time,
            activity_day = EXCLUDED.activity_day,
            doc = EXCLUDED.doc,
            updated_at = now()`

func upsertArgs(a domain.Activity) ([]any, error) {
	doc, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	var end any
	if a.EndTime != nil {
		end = *a.EndTime
	}
	return []any{a.ID, nullIfEmpty(a.ParentID), string(a.ActivityType), a.TesterStaffID, a.TestStationPNumber, a.StartTime, end, a.ActivityDay, doc}, nil
}

// Get retrieves an activity by id.
func (g *Gateway) Get(ctx context.Context, id string) (*domain.Activity, error) {
	defer observability.ObserveStore("get", time.Now())

	var doc []byte
	err := g.pool.QueryRow(ctx, `SELECT doc FROM activities WHERE id=$1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageError("get", err)
	}
	return decode("get", doc)
}

// Put upserts the activity and returns the row it replaced, if any.
func (g *Gateway) Put(ctx context.Context, a domain.Activity) (*domain.Activity, error) {
	defer observability.ObserveStore("put", time.Now())

	args, err := upsertArgs(a)
	if err != nil {
		return nil, &domain.StorageError{Op: "put", Code: "MarshalError", Message: err.Error(), Err: err}
	}

	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storageError("put", err)
	}
	defer tx.Rollback(ctx)

	var prev []byte
	err = tx.QueryRow(ctx, `SELECT doc FROM activities WHERE id=$1 FOR UPDATE`, a.ID).Scan(&prev)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, storageError("put", err)
	}
	if _, err := tx.Exec(ctx, upsertActivity, args...); err != nil {
		return nil, storageError("put", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageError("put", err)
	}

	if prev == nil {
		return nil, nil
	}
	return decode("put", prev)
}

// Delete removes the activity and returns it, if any.
func (g *Gateway) Delete(ctx context.Context, id string) (*domain.Activity, error) {
	defer observability.ObserveStore("delete", time.Now())

	var doc []byte
	err := g.pool.QueryRow(ctx, `DELETE FROM activities WHERE id=$1 RETURNING doc`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageError("delete", err)
	}
	return decode("delete", doc)
}

// BatchPut upserts items in one transaction, sending persistence.MaxBatchSize statements per
// round trip. Any failure rolls back the whole batch.
func (g *Gateway) BatchPut(ctx context.Context, items []domain.Activity) error {
	defer observability.ObserveStore("batch_put", time.Now())

	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storageError("batchPut", err)
	}
	defer tx.Rollback(ctx)

	for _, bounds := range persistence.Chunk(len(items), persistence.MaxBatchSize) {
		batch := &pgx.Batch{}
		for _, a := range items[bounds[0]:bounds[1]] {
			args, err := upsertArgs(a)
			if err != nil {
				return &domain.StorageError{Op: "batchPut", Code: "MarshalError", Message: err.Error(), Err: err}
			}
			batch.Queue(upsertActivity, args...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return storageError("batchPut", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storageError("batchPut", err)
	}
	return nil
}

// QueryIndex runs q with keyset pagination over (start_time, id) until a short page is returned.
func (g *Gateway) QueryIndex(ctx context.Context, q query.Query) ([]domain.Activity, error) {
	defer observability.ObserveStore("query", time.Now())

	var (
		out   []domain.Activity
		after *persistence.Key
	)
	for {
		stmt, args, err := buildSelect(q, after, g.pageSize)
		if err != nil {
			return nil, &domain.StorageError{Op: "query", Code: "ValidationException", Message: err.Error(), StatusCode: 400, Err: err}
		}
		page, err := g.queryPage(ctx, stmt, args)
		if err != nil {
			return nil, err
		}
		observability.RecordQueryPage(q.Index)
		out = append(out, page...)

		if len(page) < g.pageSize {
			return out, nil
		}
		last := page[len(page)-1]
		after = &persistence.Key{StartTime: last.StartTime, ID: last.ID}
	}
}

func (g *Gateway) queryPage(ctx context.Context, stmt string, args []any) ([]domain.Activity, error) {
	rows, err := g.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, storageError("query", err)
	}
	defer rows.Close()

	items := make([]domain.Activity, 0, g.pageSize)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, storageError("query", err)
		}
		a, err := decode("query", doc)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("query", err)
	}
	return items, nil
}

var columns = map[string]string{
	query.AttrID:                 "id",
	query.AttrActivityType:       "activity_type",
	query.AttrStartTime:          "start_time",
	query.AttrEndTime:            "end_time",
	query.AttrTestStationPNumber: "test_station_p_number",
	query.AttrTesterStaffID:      "tester_staff_id",
	query.AttrActivityDay:        "activity_day",
}

// buildSelect renders one page of q as SQL.
func buildSelect(q query.Query, after *persistence.Key, limit int) (string, []any, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	partition, ok := columns[q.Key.PartitionAttr]
	if !ok {
		return "", nil, fmt.Errorf("unknown key attribute %q", q.Key.PartitionAttr)
	}
	where = append(where, partition+" = "+arg(q.Key.PartitionValue))

	switch q.Key.Range {
	case query.RangeBetween:
		where = append(where, "start_time BETWEEN "+arg(q.Key.From)+" AND "+arg(q.Key.To))
	case query.RangeAtLeast:
		where = append(where, "start_time >= "+arg(q.Key.From))
	}

	for _, f := range q.Filters {
		col, ok := columns[f.Attr]
		if !ok {
			return "", nil, fmt.Errorf("unknown filter attribute %q", f.Attr)
		}
		switch f.Op {
		case query.Equals:
			where = append(where, col+" = "+arg(f.Value))
		case query.HasNoValue:
			where = append(where, col+" IS NULL")
		}
	}

	if after != nil {
		where = append(where, "(start_time, id) > ("+arg(after.StartTime)+", "+arg(after.ID)+")")
	}

	stmt := "SELECT doc FROM activities WHERE " + strings.Join(where, " AND ") +
		" ORDER BY start_time, id LIMIT " + arg(limit)
	return stmt, args, nil
}

func decode(op string, doc []byte) (*domain.Activity, error) {
	var a domain.Activity
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, &domain.StorageError{Op: op, Code: "UnmarshalError", Message: err.Error(), Err: err}
	}
	return &a, nil
}

func storageError(op string, err error) *domain.StorageError {
	se := &domain.StorageError{Op: op, Message: err.Error(), StatusCode: 500, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		se.Code = pgErr.Code
		se.Message = pgErr.Message
	}
	return se
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
