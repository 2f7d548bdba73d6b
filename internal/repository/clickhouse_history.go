package repository

import (
	"context"
	"fmt"

	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	"StockWatch/pkg/clickhouse"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS watch_runs (
    run_id     String,
    job        String,
    started_at DateTime,
    evaluated  UInt32,
    skipped    UInt32,
    notified   UInt32,
    errored    UInt32
) ENGINE = MergeTree()
ORDER BY (job, started_at)
`

// ClickHouseHistory implements RunHistory on a single MergeTree table.
type ClickHouseHistory struct {
	client *clickhouse.Client
}

func NewClickHouseHistory(ctx context.Context, client *clickhouse.Client) (drepo.RunHistory, error) {
	if err := client.InitSchema(ctx, []string{historySchema}); err != nil {
		return nil, err
	}
	return &ClickHouseHistory{client: client}, nil
}

func (h *ClickHouseHistory) Record(ctx context.Context, rec *models.ExecutionRecord) error {
	_, err := h.client.DB().ExecContext(ctx,
		`INSERT INTO watch_runs (run_id, job, started_at, evaluated, skipped, notified, errored)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Job, rec.StartedAt,
		uint32(rec.Evaluated), uint32(rec.Skipped), uint32(rec.Notified), uint32(rec.Errored),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}
	return nil
}

// List returns runs for job, newest first.
func (h *ClickHouseHistory) List(ctx context.Context, job string) ([]*models.ExecutionRecord, error) {
	rows, err := h.client.DB().QueryContext(ctx,
		`SELECT run_id, job, started_at, evaluated, skipped, notified, errored
		 FROM watch_runs
		 WHERE job = ?
		 ORDER BY started_at DESC`,
		job,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*models.ExecutionRecord
	for rows.Next() {
		var rec models.ExecutionRecord
		var evaluated, skipped, notified, errored uint32
		if err := rows.Scan(&rec.ID, &rec.Job, &rec.StartedAt, &evaluated, &skipped, &notified, &errored); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.Evaluated = int(evaluated)
		rec.Skipped = int(skipped)
		rec.Notified = int(notified)
		rec.Errored = int(errored)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

func (h *ClickHouseHistory) Delete(ctx context.Context, id string) error {
	_, err := h.client.DB().ExecContext(ctx,
		`ALTER TABLE watch_runs DELETE WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}
