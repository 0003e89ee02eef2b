package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nadmax/failscope/internal/dashboard"
	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/store"
	"github.com/nadmax/failscope/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Now().UTC().Truncate(time.Second)

func setupTestAPI(t *testing.T, records ...task.Record) (*API, *store.MockStore) {
	st := store.NewMockStore(records...)
	reg := dashboard.NewRegistry(context.Background(), query.NewStoreClient(st), []string{"p1"})
	t.Cleanup(reg.Wait)
	return NewAPI(st, dashboard.NewDashboard(reg)), st
}

func record(id, project string, status task.TaskStatus, age time.Duration) task.Record {
	return task.Record{
		TaskID:       id,
		ProjectID:    project,
		BuildID:      "build-1",
		BuildVariant: "ubuntu2204",
		DisplayName:  "compile",
		CreateTime:   now.Add(-age),
		Status:       status,
	}
}

func TestGetProjectTasks(t *testing.T) {
	api, st := setupTestAPI(t,
		record("t1", "p1", task.StatusFailed, time.Hour),
		record("t2", "p1", task.StatusSucceeded, time.Hour),
		record("t3", "p1", task.StatusFailed, 48*time.Hour),
		record("t4", "p2", task.StatusFailed, time.Hour),
	)

	after := now.Add(-24 * time.Hour).Format(time.RFC3339)
	req := httptest.NewRequest(http.MethodGet, "/rest/v2/projects/p1/tasks?status=failed&started_after="+after, nil)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var records []task.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "t1", records[0].TaskID)

	require.Len(t, st.FindCalls, 1)
	assert.Equal(t, "p1", st.FindCalls[0].ProjectID)
	assert.Equal(t, []string{"failed"}, st.FindCalls[0].Params.Statuses)
}

func TestGetProjectTasks_EmptyIsArray(t *testing.T) {
	api, _ := setupTestAPI(t)

	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rest/v2/projects/none/tasks", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetProjectTasks_InvalidStartedAfter(t *testing.T) {
	api, st := setupTestAPI(t)

	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rest/v2/projects/p1/tasks?started_after=yesterday", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, st.FindCallCount())
}

func TestGetProjectTasks_StoreError(t *testing.T) {
	api, st := setupTestAPI(t)
	st.FindError = errors.New("db down")

	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rest/v2/projects/p1/tasks", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestCreateRecord(t *testing.T) {
	api, st := setupTestAPI(t)

	body := `{
		"task_id": "t1",
		"project_id": "p1",
		"build_id": "b1",
		"build_variant": "rhel8",
		"display_name": "lint",
		"create_time": "2026-10-16T08:00:00Z",
		"status": "failed",
		"status_details": {"type": "setup", "timed_out": true, "desc": "heartbeat"}
	}`
	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rest/v2/tasks", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, st.SaveCalls, 1)

	saved := st.SaveCalls[0]
	assert.Equal(t, "t1", saved.TaskID)
	assert.Equal(t, "p1", saved.ProjectID)
	assert.Equal(t, task.StatusFailed, saved.Status)
	assert.Equal(t, task.StatusDetails{Type: task.DetailsSetup, TimedOut: true, Description: task.Heartbeat}, saved.StatusDetails)
	assert.True(t, saved.CreateTime.Equal(time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)))
}

func TestCreateRecord_Defaults(t *testing.T) {
	api, st := setupTestAPI(t)

	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rest/v2/tasks", bytes.NewBufferString(`{"project_id":"p1","status":"failed"}`)))

	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, st.SaveCalls, 1)

	saved := st.SaveCalls[0]
	_, err := uuid.Parse(saved.TaskID)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now(), saved.CreateTime, time.Minute)

	var resp task.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, saved.TaskID, resp.TaskID)
}

func TestCreateRecord_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "invalid json", body: `{"project_id":`, message: "Invalid JSON"},
		{name: "missing project", body: `{"status":"failed"}`, message: "project_id is required"},
		{name: "missing status", body: `{"project_id":"p1"}`, message: "status is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, st := setupTestAPI(t)

			w := httptest.NewRecorder()
			api.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rest/v2/tasks", bytes.NewBufferString(tt.body)))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
			assert.Empty(t, st.SaveCalls)
		})
	}
}

func TestCreateRecord_StoreError(t *testing.T) {
	api, st := setupTestAPI(t)
	st.SaveError = errors.New("disk full")

	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/rest/v2/tasks", bytes.NewBufferString(`{"project_id":"p1","status":"failed"}`)))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetRecord(t *testing.T) {
	api, _ := setupTestAPI(t, record("t1", "p1", task.StatusFailed, time.Hour))

	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rest/v2/tasks/t1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var got task.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "t1", got.TaskID)
	assert.Equal(t, "compile", got.DisplayName)
}

func TestGetRecord_NotFound(t *testing.T) {
	api, _ := setupTestAPI(t)

	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rest/v2/tasks/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Task not found")
}

func TestGetRecord_StoreError(t *testing.T) {
	api, st := setupTestAPI(t)
	st.GetError = errors.New("timeout")

	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rest/v2/tasks/t1", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	api, _ := setupTestAPI(t)

	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/rest/v2/tasks/t1", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestDashboardRoutesMounted(t *testing.T) {
	api, _ := setupTestAPI(t, record("t1", "p1", task.StatusFailed, time.Hour))

	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/failures/p1/filters", bytes.NewBufferString(`{"look_back_days":2}`)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"look_back_days":2`)
}

func TestMetricsEndpoint(t *testing.T) {
	api, _ := setupTestAPI(t)

	api.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	w := httptest.NewRecorder()
	api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "failscope_http_requests_total")
}
