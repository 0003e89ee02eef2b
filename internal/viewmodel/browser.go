// Package viewmodel implements the failure browser: filter state for one project,
// asynchronous loads of matching task records and the state a grid renderer reads.
//
// Loads never block the caller. Each load is tagged with a generation number and its
// rows are applied only if no newer load was issued in the meantime, so a slow
// response to an old filter cannot overwrite the rows of a newer one. Every load
// reports its outcome on the channel it returns; failures leave rows untouched.
package viewmodel

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nadmax/failscope/internal/grid"
	"github.com/nadmax/failscope/internal/metrics"
	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/task"
	"github.com/sirupsen/logrus"
)

const DefaultLookBackDays = 14

type Filter struct {
	LookBackDays int      `json:"look_back_days"`
	Statuses     []string `json:"statuses"`
}

func DefaultFilter() Filter {
	return Filter{
		LookBackDays: DefaultLookBackDays,
		Statuses:     []string{string(task.StatusFailed)},
	}
}

func (f Filter) clone() Filter {
	f.Statuses = slices.Clone(f.Statuses)
	return f
}

// Result is the outcome of one load. Stale results were superseded by a newer
// load before they settled and were not applied.
type Result struct {
	Generation uint64
	RequestID  string
	Params     query.Params
	Rows       []task.Record
	Err        error
	Stale      bool
}

func (r Result) OK() bool {
	return r.Err == nil
}

type Snapshot struct {
	Project   string            `json:"project"`
	Filter    Filter            `json:"filter"`
	Draft     int               `json:"draft_look_back_days"`
	Pristine  bool              `json:"pristine"`
	IsLoading bool              `json:"is_loading"`
	Rows      []task.Record     `json:"rows"`
	Columns   []grid.Definition `json:"columns"`
	LastError string            `json:"last_error,omitempty"`
}

type Option func(*FailureBrowser)

func WithClock(now func() time.Time) Option {
	return func(b *FailureBrowser) { b.now = now }
}

func WithLogger(log *logrus.Entry) Option {
	return func(b *FailureBrowser) { b.log = log }
}

func WithFilter(f Filter) Option {
	return func(b *FailureBrowser) { b.filter = f.clone() }
}

type FailureBrowser struct {
	project string
	client  query.Client
	columns []grid.Column
	now     func() time.Time
	log     *logrus.Entry
	wg      sync.WaitGroup

	mu         sync.Mutex
	filter     Filter
	draftDays  int
	pristine   bool
	rows       []task.Record
	inFlight   int
	generation uint64
	lastErr    error
}

func New(projectID string, client query.Client, opts ...Option) *FailureBrowser {
	b := &FailureBrowser{
		project:  projectID,
		client:   client,
		columns:  grid.Columns(),
		now:      time.Now,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		filter:   DefaultFilter(),
		pristine: true,
		rows:     []task.Record{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.draftDays = b.filter.LookBackDays
	b.log = b.log.WithField("project", projectID)
	return b
}

// Start issues the initial load for the current filter.
func (b *FailureBrowser) Start(ctx context.Context) <-chan Result {
	return b.Load(ctx)
}

// SetLookBackDays records an edit to the look-back field without applying it.
func (b *FailureBrowser) SetLookBackDays(days int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if days != b.filter.LookBackDays {
		b.pristine = false
	}
	b.draftDays = days
}

// ApplyFilters makes days the active look-back window, marks the form pristine and
// reloads. Days are not validated.
func (b *FailureBrowser) ApplyFilters(ctx context.Context, days int) <-chan Result {
	b.mu.Lock()
	b.filter.LookBackDays = days
	b.draftDays = days
	b.pristine = true
	b.mu.Unlock()

	return b.Load(ctx)
}

// Load queries records that started within the look-back window and match the
// status filter. The returned channel receives exactly one Result.
func (b *FailureBrowser) Load(ctx context.Context) <-chan Result {
	b.mu.Lock()
	b.generation++
	gen := b.generation
	b.inFlight++
	params := query.Params{
		StartedAfter: b.now().AddDate(0, 0, -b.filter.LookBackDays),
		Statuses:     slices.Clone(b.filter.Statuses),
	}
	b.mu.Unlock()

	out := make(chan Result, 1)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(out)
		out <- b.fetch(ctx, gen, uuid.NewString(), params)
	}()
	return out
}

// Reload loads and waits for the outcome.
func (b *FailureBrowser) Reload(ctx context.Context) Result {
	return <-b.Load(ctx)
}

// Wait blocks until every issued load has settled.
func (b *FailureBrowser) Wait() {
	b.wg.Wait()
}

func (b *FailureBrowser) fetch(ctx context.Context, gen uint64, requestID string, params query.Params) Result {
	defer b.finishLoad()

	log := b.log.WithFields(logrus.Fields{"request_id": requestID, "generation": gen})
	log.WithField("started_after", params.StartedAfter.Format(query.TimeFormat)).Debug("loading failures")

	start := time.Now()
	rows, err := b.client.GetProjectTasks(query.WithRequestID(ctx, requestID), b.project, params)

	res := Result{Generation: gen, RequestID: requestID, Params: params, Rows: rows, Err: err}

	b.mu.Lock()
	defer b.mu.Unlock()

	res.Stale = gen != b.generation
	switch {
	case res.Stale:
		metrics.RecordViewLoad(b.project, metrics.OutcomeStale, time.Since(start))
		log.WithField("latest", b.generation).Debug("discarding superseded load")
	case err != nil:
		b.lastErr = err
		metrics.RecordViewLoad(b.project, metrics.OutcomeFailure, time.Since(start))
		log.WithError(err).Warn("failed to load failures")
	default:
		if rows == nil {
			rows = []task.Record{}
			res.Rows = rows
		}
		b.rows = rows
		b.lastErr = nil
		metrics.RecordViewLoad(b.project, metrics.OutcomeSuccess, time.Since(start))
		log.WithField("rows", len(rows)).Debug("failures loaded")
	}

	return res
}

func (b *FailureBrowser) finishLoad() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight--
}

func (b *FailureBrowser) Project() string {
	return b.project
}

// Rows returns the displayed rows. The slice is replaced, never modified, by later loads.
func (b *FailureBrowser) Rows() []task.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rows
}

func (b *FailureBrowser) Columns() []grid.Column {
	return b.columns
}

func (b *FailureBrowser) IsLoading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight > 0
}

func (b *FailureBrowser) Filter() Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter.clone()
}

func (b *FailureBrowser) Pristine() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pristine
}

func (b *FailureBrowser) DraftLookBackDays() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.draftDays
}

// LastError is the error of the latest applied load, nil after a success.
func (b *FailureBrowser) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *FailureBrowser) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		Project:   b.project,
		Filter:    b.filter.clone(),
		Draft:     b.draftDays,
		Pristine:  b.pristine,
		IsLoading: b.inFlight > 0,
		Rows:      b.rows,
		Columns:   grid.Definitions(b.columns),
	}
	if b.lastErr != nil {
		s.LastError = b.lastErr.Error()
	}
	return s
}
