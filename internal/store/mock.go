package store

import (
	"context"
	"slices"
	"sync"

	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/task"
)

type MockStore struct {
	mu        sync.Mutex
	Records   map[string]task.Record
	SaveCalls []task.Record
	FindCalls []FindCall
	SaveError error
	GetError  error
	FindError error
	Closed    bool
}

type FindCall struct {
	ProjectID string
	Params    query.Params
}

func NewMockStore(records ...task.Record) *MockStore {
	m := &MockStore{Records: make(map[string]task.Record)}
	for _, r := range records {
		m.Records[r.TaskID] = r
	}
	return m
}

func (m *MockStore) SaveRecord(ctx context.Context, r *task.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls = append(m.SaveCalls, *r)
	if m.SaveError != nil {
		return m.SaveError
	}

	m.Records[r.TaskID] = *r
	return nil
}

func (m *MockStore) GetRecord(ctx context.Context, taskID string) (*task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetError != nil {
		return nil, m.GetError
	}

	r, ok := m.Records[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MockStore) FindTasks(ctx context.Context, projectID string, p query.Params) ([]task.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindCalls = append(m.FindCalls, FindCall{ProjectID: projectID, Params: p})
	if m.FindError != nil {
		return nil, m.FindError
	}

	out := []task.Record{}
	for _, r := range m.Records {
		if r.ProjectID == projectID && p.Matches(r) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b task.Record) int {
		return b.CreateTime.Compare(a.CreateTime)
	})
	return out, nil
}

func (m *MockStore) FindCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.FindCalls)
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
