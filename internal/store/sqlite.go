package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dqmetrics/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// computed_at holds Unix nanoseconds so range filters compare as integers.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS metrics_history (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id                TEXT NOT NULL,
	dataset               TEXT NOT NULL DEFAULT '',
	column_name           TEXT NOT NULL,
	kind                  TEXT NOT NULL,
	total_count           INTEGER NOT NULL,
	missing_count         INTEGER NOT NULL,
	completeness_score    REAL NOT NULL,
	weighted_completeness REAL NOT NULL,
	accuracy_score        REAL NOT NULL,
	error_rate            REAL NOT NULL,
	uniqueness_score      REAL NOT NULL,
	outliers_count        INTEGER NOT NULL,
	adjusted_completeness REAL NOT NULL,
	computed_at           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metrics_history_column_time ON metrics_history(column_name, computed_at);
CREATE INDEX IF NOT EXISTS idx_metrics_history_run_id ON metrics_history(run_id);
`

const sqliteSelect = `SELECT run_id, dataset, column_name, kind, total_count, missing_count,
	completeness_score, weighted_completeness, accuracy_score, error_rate, uniqueness_score,
	outliers_count, adjusted_completeness, computed_at FROM metrics_history`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AppendMetrics(ctx context.Context, records []model.MetricRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin append")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO metrics_history (run_id, dataset, column_name, kind, total_count, missing_count,
			completeness_score, weighted_completeness, accuracy_score, error_rate, uniqueness_score,
			outliers_count, adjusted_completeness, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare append")
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.RunID, r.Dataset, r.ColumnName, string(r.Kind), r.TotalCount, r.MissingCount,
			r.CompletenessScore, r.WeightedCompleteness, r.AccuracyScore, r.ErrorRate, r.UniquenessScore,
			r.OutliersCount, r.AdjustedCompleteness, r.ComputedAt.UTC().UnixNano(),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert metric %s", r.ColumnName)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit append")
	}
	return len(records), nil
}

func (s *SQLiteStore) ListHistory(ctx context.Context, filter HistoryFilter) ([]model.MetricRecord, error) {
	query := sqliteSelect + ` WHERE 1=1`
	var args []any

	if filter.Column != "" {
		query += ` AND column_name = ?`
		args = append(args, filter.Column)
	}
	if filter.Dataset != "" {
		query += ` AND dataset = ?`
		args = append(args, filter.Dataset)
	}
	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if !filter.Since.IsZero() {
		query += ` AND computed_at >= ?`
		args = append(args, filter.Since.UTC().UnixNano())
	}
	if !filter.Until.IsZero() {
		query += ` AND computed_at <= ?`
		args = append(args, filter.Until.UTC().UnixNano())
	}
	query += ` ORDER BY computed_at DESC, id DESC LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list history")
	}
	defer rows.Close()

	var records []model.MetricRecord
	for rows.Next() {
		r, err := scanMetric(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list history iterate")
	}
	reverse(records)
	return records, nil
}

func (s *SQLiteStore) ListColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT column_name FROM metrics_history ORDER BY column_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list columns")
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan column")
		}
		cols = append(cols, c)
	}
	return cols, eris.Wrap(rows.Err(), "sqlite: list columns iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanMetric(row scannable) (*model.MetricRecord, error) {
	var r model.MetricRecord
	var kind string
	var computedAt int64

	err := row.Scan(&r.RunID, &r.Dataset, &r.ColumnName, &kind, &r.TotalCount, &r.MissingCount,
		&r.CompletenessScore, &r.WeightedCompleteness, &r.AccuracyScore, &r.ErrorRate, &r.UniquenessScore,
		&r.OutliersCount, &r.AdjustedCompleteness, &computedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan metric")
	}
	r.Kind = model.ColumnKind(kind)
	r.ComputedAt = time.Unix(0, computedAt).UTC()
	return &r, nil
}
