// Package query defines the task query service contract consumed by failure views,
// together with an HTTP client for a remote service and an adapter over a local store.
package query

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/nadmax/failscope/internal/task"
)

// TimeFormat is the textual timestamp convention of the started_after parameter.
const TimeFormat = time.RFC3339

const (
	ParamStartedAfter = "started_after"
	ParamStatus       = "status"
)

type Params struct {
	StartedAfter time.Time
	Statuses     []string
}

// Client returns the tasks of a project that started after p.StartedAfter and
// whose status is one of p.Statuses, newest first.
type Client interface {
	GetProjectTasks(ctx context.Context, projectID string, p Params) ([]task.Record, error)
}

type ClientFunc func(ctx context.Context, projectID string, p Params) ([]task.Record, error)

func (f ClientFunc) GetProjectTasks(ctx context.Context, projectID string, p Params) ([]task.Record, error) {
	return f(ctx, projectID, p)
}

func (p Params) Encode() url.Values {
	v := url.Values{}
	if !p.StartedAfter.IsZero() {
		v.Set(ParamStartedAfter, p.StartedAfter.Format(TimeFormat))
	}
	for _, s := range p.Statuses {
		v.Add(ParamStatus, s)
	}
	return v
}

// Matches reports whether r falls inside the window and status set of p.
// An empty status set matches every status.
func (p Params) Matches(r task.Record) bool {
	if !p.StartedAfter.IsZero() && r.CreateTime.Before(p.StartedAfter) {
		return false
	}
	if len(p.Statuses) == 0 {
		return true
	}
	for _, s := range p.Statuses {
		if string(r.Status) == s {
			return true
		}
	}
	return false
}

func ParseParams(v url.Values) (Params, error) {
	var p Params
	if raw := v.Get(ParamStartedAfter); raw != "" {
		ts, err := time.Parse(TimeFormat, raw)
		if err != nil {
			return Params{}, fmt.Errorf("invalid %s %q: %w", ParamStartedAfter, raw, err)
		}
		p.StartedAfter = ts
	}
	for _, s := range v[ParamStatus] {
		if s != "" {
			p.Statuses = append(p.Statuses, s)
		}
	}
	return p, nil
}

type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
