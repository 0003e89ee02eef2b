// Package postgres provides a PostgreSQL-backed task record store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/store"
	"github.com/nadmax/failscope/internal/task"
	"github.com/sirupsen/logrus"
)

const schema = `
	CREATE TABLE IF NOT EXISTS task_records (
		task_id       TEXT PRIMARY KEY,
		project_id    TEXT NOT NULL,
		build_id      TEXT NOT NULL DEFAULT '',
		build_variant TEXT NOT NULL DEFAULT '',
		display_name  TEXT NOT NULL DEFAULT '',
		create_time   TIMESTAMPTZ NOT NULL,
		status        TEXT NOT NULL,
		details_type  TEXT,
		timed_out     BOOLEAN NOT NULL DEFAULT FALSE,
		details_desc  TEXT
	);
	CREATE INDEX IF NOT EXISTS task_records_project_time_idx
		ON task_records (project_id, create_time DESC);
`

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(connectionString string) (*Store, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Store{db: db}, nil
}

func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create task_records schema: %w", err)
	}
	return nil
}

func (s *Store) SaveRecord(ctx context.Context, r *task.Record) error {
	query := `
		INSERT INTO task_records (
			task_id, project_id, build_id, build_variant, display_name,
			create_time, status, details_type, timed_out, details_desc
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (task_id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			build_id = EXCLUDED.build_id,
			build_variant = EXCLUDED.build_variant,
			display_name = EXCLUDED.display_name,
			create_time = EXCLUDED.create_time,
			status = EXCLUDED.status,
			details_type = EXCLUDED.details_type,
			timed_out = EXCLUDED.timed_out,
			details_desc = EXCLUDED.details_desc
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		r.TaskID,
		r.ProjectID,
		r.BuildID,
		r.BuildVariant,
		r.DisplayName,
		r.CreateTime,
		string(r.Status),
		nullString(r.StatusDetails.Type),
		r.StatusDetails.TimedOut,
		nullString(r.StatusDetails.Description),
	)
	if err != nil {
		return fmt.Errorf("failed to save task record %s: %w", r.TaskID, err)
	}

	return nil
}

func (s *Store) GetRecord(ctx context.Context, taskID string) (*task.Record, error) {
	query := `
		SELECT
			task_id, project_id, build_id, build_variant, display_name,
			create_time, status, details_type, timed_out, details_desc
		FROM task_records
		WHERE task_id = $1
	`

	r, err := scanRecord(s.db.QueryRowContext(ctx, query, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Store) FindTasks(ctx context.Context, projectID string, p query.Params) ([]task.Record, error) {
	query := `
		SELECT
			task_id, project_id, build_id, build_variant, display_name,
			create_time, status, details_type, timed_out, details_desc
		FROM task_records
		WHERE project_id = $1
		  AND create_time >= $2
		  AND (cardinality($3::text[]) = 0 OR status = ANY($3::text[]))
		ORDER BY create_time DESC
	`

	statuses := p.Statuses
	if statuses == nil {
		statuses = []string{}
	}

	rows, err := s.db.QueryContext(ctx, query, projectID, p.StartedAfter, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("failed to query task records: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close rows")
		}
	}()

	records := []task.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}

	return records, rows.Err()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*task.Record, error) {
	var r task.Record
	var status string
	var detailsType, detailsDesc sql.NullString

	if err := row.Scan(
		&r.TaskID,
		&r.ProjectID,
		&r.BuildID,
		&r.BuildVariant,
		&r.DisplayName,
		&r.CreateTime,
		&status,
		&detailsType,
		&r.StatusDetails.TimedOut,
		&detailsDesc,
	); err != nil {
		return nil, err
	}

	r.Status = task.TaskStatus(status)
	if detailsType.Valid {
		r.StatusDetails.Type = detailsType.String
	}
	if detailsDesc.Valid {
		r.StatusDetails.Description = detailsDesc.String
	}

	return &r, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
