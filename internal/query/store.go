package query

import (
	"context"
	"time"

	"github.com/nadmax/failscope/internal/metrics"
	"github.com/nadmax/failscope/internal/task"
)

const sourceStore = "store"

// Finder is the read side of a record store.
type Finder interface {
	FindTasks(ctx context.Context, projectID string, p Params) ([]task.Record, error)
}

// StoreClient answers task queries from a local record store.
type StoreClient struct {
	finder Finder
}

func NewStoreClient(f Finder) *StoreClient {
	return &StoreClient{finder: f}
}

func (c *StoreClient) GetProjectTasks(ctx context.Context, projectID string, p Params) ([]task.Record, error) {
	start := time.Now()
	records, err := c.finder.FindTasks(ctx, projectID, p)
	metrics.RecordTaskQuery(sourceStore, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []task.Record{}
	}
	return records, nil
}

// NewClient returns an HTTP client when opts names a base URL and a StoreClient
// over f otherwise.
func NewClient(opts HTTPOptions, f Finder) Client {
	if opts.BaseURL != "" {
		return NewHTTPClient(opts)
	}
	return NewStoreClient(f)
}
