package dashboard

import (
	"context"
	"slices"
	"sync"

	"github.com/nadmax/failscope/internal/metrics"
	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/viewmodel"
)

// Registry holds one failure browser per configured project. Browsers are created
// on first use and start their initial load with the registry's context; projects
// outside the configured set are never tracked.
type Registry struct {
	ctx      context.Context
	client   query.Client
	opts     []viewmodel.Option
	projects []string

	mu       sync.Mutex
	browsers map[string]*viewmodel.FailureBrowser
}

func NewRegistry(ctx context.Context, client query.Client, projects []string, opts ...viewmodel.Option) *Registry {
	sorted := slices.Clone(projects)
	slices.Sort(sorted)

	return &Registry{
		ctx:      ctx,
		client:   client,
		opts:     opts,
		projects: slices.Compact(sorted),
		browsers: make(map[string]*viewmodel.FailureBrowser),
	}
}

// Get returns the browser for project, or false when project is not configured.
func (r *Registry) Get(project string) (*viewmodel.FailureBrowser, bool) {
	if _, found := slices.BinarySearch(r.projects, project); !found {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.browsers[project]; ok {
		return b, true
	}

	b := viewmodel.New(project, r.client, r.opts...)
	r.browsers[project] = b
	b.Start(r.ctx)
	return b, true
}

// Projects lists the configured projects in order.
func (r *Registry) Projects() []string {
	return slices.Clone(r.projects)
}

// Wait blocks until every browser's in-flight loads have settled.
func (r *Registry) Wait() {
	r.mu.Lock()
	browsers := make([]*viewmodel.FailureBrowser, 0, len(r.browsers))
	for _, b := range r.browsers {
		browsers = append(browsers, b)
	}
	r.mu.Unlock()

	for _, b := range browsers {
		b.Wait()
	}
}

func (r *Registry) UpdateMetrics() {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make(map[string]int, len(r.browsers))
	for project, b := range r.browsers {
		rows[project] = len(b.Rows())
	}
	metrics.UpdateViewRows(rows)
}
