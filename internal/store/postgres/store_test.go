package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/store"
	"github.com/nadmax/failscope/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordColumns = []string{
	"task_id", "project_id", "build_id", "build_variant", "display_name",
	"create_time", "status", "details_type", "timed_out", "details_desc",
}

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Store) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return db, mock, NewWithDB(db)
}

func TestNew(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		t.Skip("Integration test - requires real database")
	})

	t.Run("connection failure", func(t *testing.T) {
		_, err := New("invalid connection string")
		assert.Error(t, err)
	})
}

func TestEnsureSchema(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS task_records").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRecord(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	created := time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)

	t.Run("successful save", func(t *testing.T) {
		r := &task.Record{
			TaskID:        "t1",
			ProjectID:     "evergreen",
			BuildID:       "b1",
			BuildVariant:  "ubuntu2204",
			DisplayName:   "lint",
			CreateTime:    created,
			Status:        task.StatusFailed,
			StatusDetails: task.StatusDetails{Type: task.DetailsTest, TimedOut: true},
		}

		mock.ExpectExec("INSERT INTO task_records").
			WithArgs("t1", "evergreen", "b1", "ubuntu2204", "lint", created, "failed", "test", true, nil).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, s.SaveRecord(ctx, r))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("re-ingest overwrites every column", func(t *testing.T) {
		corrected := created.Add(time.Hour)
		r := &task.Record{
			TaskID:       "t1",
			ProjectID:    "evergreen",
			BuildID:      "b9",
			BuildVariant: "rhel8",
			DisplayName:  "lint",
			CreateTime:   corrected,
			Status:       task.StatusFailed,
		}

		mock.ExpectExec(`(?s)ON CONFLICT \(task_id\) DO UPDATE SET.*`+
			`project_id = EXCLUDED\.project_id.*build_id = EXCLUDED\.build_id.*`+
			`build_variant = EXCLUDED\.build_variant.*display_name = EXCLUDED\.display_name.*`+
			`create_time = EXCLUDED\.create_time.*status = EXCLUDED\.status`).
			WithArgs("t1", "evergreen", "b9", "rhel8", "lint", corrected, "failed", nil, false, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.SaveRecord(ctx, r))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO task_records").
			WillReturnError(errors.New("connection reset"))

		err := s.SaveRecord(ctx, &task.Record{TaskID: "t2"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save task record t2")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetRecord(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	created := time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC)

	t.Run("successful retrieval", func(t *testing.T) {
		rows := sqlmock.NewRows(recordColumns).AddRow(
			"t1", "evergreen", "b1", "rhel8", "compile",
			created, "failed", "system", true, "heartbeat",
		)

		mock.ExpectQuery("SELECT.*FROM task_records WHERE task_id").
			WithArgs("t1").
			WillReturnRows(rows)

		r, err := s.GetRecord(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "t1", r.TaskID)
		assert.Equal(t, "rhel8", r.BuildVariant)
		assert.Equal(t, task.StatusFailed, r.Status)
		assert.Equal(t, task.DetailsSystem, r.StatusDetails.Type)
		assert.True(t, r.StatusDetails.TimedOut)
		assert.Equal(t, task.Heartbeat, r.StatusDetails.Description)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT.*FROM task_records WHERE task_id").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := s.GetRecord(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFindTasks(t *testing.T) {
	db, mock, s := setupMockDB(t)
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	startedAfter := time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC)

	t.Run("filters by project window and status", func(t *testing.T) {
		rows := sqlmock.NewRows(recordColumns).
			AddRow("t2", "evergreen", "b2", "rhel8", "unit", startedAfter.Add(48*time.Hour), "failed", nil, false, nil).
			AddRow("t1", "evergreen", "b1", "rhel8", "lint", startedAfter.Add(24*time.Hour), "failed", "setup", false, nil)

		mock.ExpectQuery("SELECT.*FROM task_records.*WHERE project_id = \\$1.*ORDER BY create_time DESC").
			WithArgs("evergreen", startedAfter, pq.Array([]string{"failed"})).
			WillReturnRows(rows)

		got, err := s.FindTasks(ctx, "evergreen", query.Params{
			StartedAfter: startedAfter,
			Statuses:     []string{"failed"},
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "t2", got[0].TaskID)
		assert.Empty(t, got[0].StatusDetails.Type)
		assert.Equal(t, task.DetailsSetup, got[1].StatusDetails.Type)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows yields empty slice", func(t *testing.T) {
		mock.ExpectQuery("SELECT.*FROM task_records").
			WithArgs("evergreen", sqlmock.AnyArg(), pq.Array([]string{})).
			WillReturnRows(sqlmock.NewRows(recordColumns))

		got, err := s.FindTasks(ctx, "evergreen", query.Params{})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery("SELECT.*FROM task_records").
			WillReturnError(errors.New("timeout"))

		_, err := s.FindTasks(ctx, "evergreen", query.Params{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query task records")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
