// Package api serves the task query service and record ingestion over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nadmax/failscope/internal/dashboard"
	"github.com/nadmax/failscope/internal/httputil"
	"github.com/nadmax/failscope/internal/metrics"
	"github.com/nadmax/failscope/internal/middleware"
	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/store"
	"github.com/nadmax/failscope/internal/task"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type API struct {
	store   store.Store
	mux     *http.ServeMux
	handler http.Handler
}

type CreateRecordRequest struct {
	TaskID        string             `json:"task_id"`
	ProjectID     string             `json:"project_id"`
	BuildID       string             `json:"build_id"`
	BuildVariant  string             `json:"build_variant"`
	DisplayName   string             `json:"display_name"`
	CreateTime    *time.Time         `json:"create_time"`
	Status        task.TaskStatus    `json:"status"`
	StatusDetails task.StatusDetails `json:"status_details"`
}

func NewAPI(s store.Store, dash *dashboard.Dashboard) *API {
	api := &API{
		store: s,
		mux:   http.NewServeMux(),
	}

	api.setupRoutes(dash)
	api.handler = middleware.MetricsMiddleware(api.mux)
	return api
}

func (a *API) setupRoutes(dash *dashboard.Dashboard) {
	a.mux.HandleFunc("GET /rest/v2/projects/{project}/tasks", a.getProjectTasks)
	a.mux.HandleFunc("POST /rest/v2/tasks", a.createRecord)
	a.mux.HandleFunc("GET /rest/v2/tasks/{id}", a.getRecord)
	a.mux.Handle("GET /metrics", promhttp.Handler())
	a.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if dash != nil {
		dash.Register(a.mux)
	}
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

func (a *API) getProjectTasks(w http.ResponseWriter, r *http.Request) {
	params, err := query.ParseParams(r.URL.Query())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	project := r.PathValue("project")
	records, err := a.store.FindTasks(r.Context(), project, params)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"project":    project,
			"request_id": r.Header.Get("X-Request-ID"),
		}).Error("failed to query tasks")
		httputil.WriteJSONError(w, "Failed to query tasks", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []task.Record{}
	}

	httputil.WriteJSON(w, http.StatusOK, records)
}

func (a *API) createRecord(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close request body")
		}
	}()

	var req CreateRecordRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		httputil.WriteJSONError(w, "project_id is required", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		httputil.WriteJSONError(w, "status is required", http.StatusBadRequest)
		return
	}

	rec := task.Record{
		TaskID:        req.TaskID,
		ProjectID:     req.ProjectID,
		BuildID:       req.BuildID,
		BuildVariant:  req.BuildVariant,
		DisplayName:   req.DisplayName,
		CreateTime:    time.Now().UTC(),
		Status:        req.Status,
		StatusDetails: req.StatusDetails,
	}
	if rec.TaskID == "" {
		rec.TaskID = uuid.NewString()
	}
	if req.CreateTime != nil && !req.CreateTime.IsZero() {
		rec.CreateTime = *req.CreateTime
	}

	if err := a.store.SaveRecord(r.Context(), &rec); err != nil {
		logrus.WithError(err).WithField("task_id", rec.TaskID).Error("failed to save record")
		httputil.WriteJSONError(w, "Failed to save record", http.StatusInternalServerError)
		return
	}
	metrics.RecordIngested(rec.ProjectID, string(rec.Status))

	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func (a *API) getRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := a.store.GetRecord(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		httputil.WriteJSONError(w, "Task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logrus.WithError(err).WithField("task_id", id).Error("failed to get record")
		httputil.WriteJSONError(w, "Failed to get record", http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rec)
}
