// Package dashboard exposes failure browser state over JSON for the web interface.
package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nadmax/failscope/internal/grid"
	"github.com/nadmax/failscope/internal/httputil"
	"github.com/nadmax/failscope/internal/task"
	"github.com/nadmax/failscope/internal/viewmodel"
	"github.com/samber/lo"
)

type Dashboard struct {
	registry *Registry
}

type ApplyFiltersRequest struct {
	LookBackDays *int `json:"look_back_days"`
}

type Summary struct {
	Project       string         `json:"project"`
	TotalFailures int            `json:"total_failures"`
	ByKind        map[string]int `json:"by_kind"`
	ByVariant     map[string]int `json:"by_variant"`
	LatestFailure string         `json:"latest_failure,omitempty"`
	IsLoading     bool           `json:"is_loading"`
	LastUpdated   time.Time      `json:"last_updated"`
}

func NewDashboard(r *Registry) *Dashboard {
	return &Dashboard{registry: r}
}

func (d *Dashboard) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/failures", d.ListProjects)
	mux.HandleFunc("GET /api/failures/{project}", d.GetFailures)
	mux.HandleFunc("POST /api/failures/{project}/filters", d.ApplyFilters)
	mux.HandleFunc("GET /api/failures/{project}/summary", d.GetSummary)
}

func (d *Dashboard) ListProjects(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string][]string{"projects": d.registry.Projects()})
}

func (d *Dashboard) browser(w http.ResponseWriter, r *http.Request) (*viewmodel.FailureBrowser, bool) {
	b, ok := d.registry.Get(r.PathValue("project"))
	if !ok {
		httputil.WriteJSONError(w, "Project not found", http.StatusNotFound)
	}
	return b, ok
}

func (d *Dashboard) GetFailures(w http.ResponseWriter, r *http.Request) {
	b, ok := d.browser(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b.Snapshot())
}

func (d *Dashboard) ApplyFilters(w http.ResponseWriter, r *http.Request) {
	var req ApplyFiltersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.LookBackDays == nil || *req.LookBackDays <= 0 {
		httputil.WriteJSONError(w, "look_back_days must be a positive integer", http.StatusBadRequest)
		return
	}

	b, ok := d.browser(w, r)
	if !ok {
		return
	}
	res := <-b.ApplyFilters(r.Context(), *req.LookBackDays)
	if res.Err != nil && !res.Stale {
		httputil.WriteJSONError(w, res.Err.Error(), http.StatusBadGateway)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, b.Snapshot())
}

func (d *Dashboard) GetSummary(w http.ResponseWriter, r *http.Request) {
	b, ok := d.browser(w, r)
	if !ok {
		return
	}
	rows := b.Rows()

	summary := Summary{
		Project:       b.Project(),
		TotalFailures: len(rows),
		ByKind:        lo.CountValuesBy(rows, task.StatusLabel),
		ByVariant:     lo.CountValuesBy(rows, func(r task.Record) string { return r.BuildVariant }),
		IsLoading:     b.IsLoading(),
		LastUpdated:   time.Now(),
	}
	if len(rows) > 0 {
		latest := lo.MaxBy(rows, func(x, y task.Record) bool { return x.CreateTime.After(y.CreateTime) })
		summary.LatestFailure = grid.FormatTime(latest.CreateTime)
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}
