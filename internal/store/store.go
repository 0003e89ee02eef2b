// Package store defines persistence for task records backing the task query service.
package store

import (
	"context"
	"errors"

	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/task"
)

var ErrNotFound = errors.New("task record not found")

type Store interface {
	SaveRecord(ctx context.Context, r *task.Record) error
	GetRecord(ctx context.Context, taskID string) (*task.Record, error)
	FindTasks(ctx context.Context, projectID string, p query.Params) ([]task.Record, error)
	Close() error
}
