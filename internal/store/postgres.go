package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dqmetrics/internal/db"
	"github.com/sells-group/dqmetrics/internal/model"
)

const historyTable = "metrics_history"

// historyColumns is the COPY column order; rows built by copyRow must match it.
var historyColumns = []string{
	"run_id", "dataset", "column_name", "kind", "total_count", "missing_count",
	"completeness_score", "weighted_completeness", "accuracy_score", "error_rate",
	"uniqueness_score", "outliers_count", "adjusted_completeness", "computed_at",
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	schema  string
	closeFn func()
}

// PostgresOptions holds optional pool tuning and the schema holding the history table.
type PostgresOptions struct {
	MaxConns int32
	MinConns int32
	Schema   string
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, opts PostgresOptions) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, db.PoolOptions{MaxConns: opts.MaxConns, MinConns: opts.MinConns})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, schema: opts.Schema, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) table() string {
	if s.schema == "" {
		return pgx.Identifier{historyTable}.Sanitize()
	}
	return pgx.Identifier{s.schema, historyTable}.Sanitize()
}

func (s *PostgresStore) migration() string {
	sql := ""
	if s.schema != "" {
		sql = fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;\n", pgx.Identifier{s.schema}.Sanitize())
	}
	return sql + fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id                    BIGSERIAL PRIMARY KEY,
	run_id                TEXT NOT NULL,
	dataset               TEXT NOT NULL DEFAULT '',
	column_name           TEXT NOT NULL,
	kind                  TEXT NOT NULL,
	total_count           INTEGER NOT NULL,
	missing_count         INTEGER NOT NULL,
	completeness_score    DOUBLE PRECISION NOT NULL,
	weighted_completeness DOUBLE PRECISION NOT NULL,
	accuracy_score        DOUBLE PRECISION NOT NULL,
	error_rate            DOUBLE PRECISION NOT NULL,
	uniqueness_score      DOUBLE PRECISION NOT NULL,
	outliers_count        INTEGER NOT NULL,
	adjusted_completeness DOUBLE PRECISION NOT NULL,
	computed_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_metrics_history_column_time ON %[1]s(column_name, computed_at);
CREATE INDEX IF NOT EXISTS idx_metrics_history_run_id ON %[1]s(run_id);
`, s.table())
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, s.migration())
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) AppendMetrics(ctx context.Context, records []model.MetricRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = copyRow(r)
	}

	var n int64
	var err error
	if s.schema == "" {
		n, err = db.CopyFrom(ctx, s.pool, historyTable, historyColumns, rows)
	} else {
		n, err = db.CopyFromSchema(ctx, s.pool, s.schema, historyTable, historyColumns, rows)
	}
	if err != nil {
		return 0, eris.Wrap(err, "postgres: append metrics")
	}
	return int(n), nil
}

func copyRow(r model.MetricRecord) []any {
	return []any{
		r.RunID, r.Dataset, r.ColumnName, string(r.Kind), r.TotalCount, r.MissingCount,
		r.CompletenessScore, r.WeightedCompleteness, r.AccuracyScore, r.ErrorRate,
		r.UniquenessScore, r.OutliersCount, r.AdjustedCompleteness, r.ComputedAt.UTC(),
	}
}

func (s *PostgresStore) ListHistory(ctx context.Context, filter HistoryFilter) ([]model.MetricRecord, error) {
	query := fmt.Sprintf(`SELECT run_id, dataset, column_name, kind, total_count, missing_count,
	completeness_score, weighted_completeness, accuracy_score, error_rate, uniqueness_score,
	outliers_count, adjusted_completeness, computed_at FROM %s WHERE true`, s.table())
	args := []any{}
	argIdx := 1

	if filter.Column != "" {
		query += fmt.Sprintf(` AND column_name = $%d`, argIdx)
		args = append(args, filter.Column)
		argIdx++
	}
	if filter.Dataset != "" {
		query += fmt.Sprintf(` AND dataset = $%d`, argIdx)
		args = append(args, filter.Dataset)
		argIdx++
	}
	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, argIdx)
		args = append(args, filter.RunID)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND computed_at >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(` AND computed_at <= $%d`, argIdx)
		args = append(args, filter.Until.UTC())
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY computed_at DESC, id DESC LIMIT $%d`, argIdx)
	args = append(args, filter.limit())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list history")
	}
	defer rows.Close()

	var records []model.MetricRecord
	for rows.Next() {
		var r model.MetricRecord
		var kind string
		if err := rows.Scan(&r.RunID, &r.Dataset, &r.ColumnName, &kind, &r.TotalCount, &r.MissingCount,
			&r.CompletenessScore, &r.WeightedCompleteness, &r.AccuracyScore, &r.ErrorRate, &r.UniquenessScore,
			&r.OutliersCount, &r.AdjustedCompleteness, &r.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan metric")
		}
		r.Kind = model.ColumnKind(kind)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list history iterate")
	}
	reverse(records)
	return records, nil
}

func (s *PostgresStore) ListColumns(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT DISTINCT column_name FROM %s ORDER BY column_name`, s.table()))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list columns")
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "postgres: scan column")
		}
		cols = append(cols, c)
	}
	return cols, eris.Wrap(rows.Err(), "postgres: list columns iterate")
}
