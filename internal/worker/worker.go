// Package worker keeps failure browsers fresh in the background and sends digests of newly seen failures.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nadmax/failscope/internal/metrics"
	"github.com/nadmax/failscope/internal/notify"
	"github.com/nadmax/failscope/internal/task"
	"github.com/nadmax/failscope/internal/viewmodel"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

type Worker struct {
	id          string
	browsers    []*viewmodel.FailureBrowser
	notifier    notify.Notifier
	linkBase    string
	interval    time.Duration
	concurrency int
	stop        chan struct{}
	stopOnce    sync.Once
	log         *logrus.Entry

	mu   sync.Mutex
	seen map[string]map[string]struct{}
}

func NewWorker(id string, browsers []*viewmodel.FailureBrowser, n notify.Notifier) *Worker {
	return &Worker{
		id:          id,
		browsers:    browsers,
		notifier:    n,
		interval:    5 * time.Minute,
		concurrency: defaultConcurrency,
		stop:        make(chan struct{}),
		log:         logrus.WithField("worker", id),
		seen:        make(map[string]map[string]struct{}),
	}
}

func (w *Worker) SetInterval(d time.Duration) {
	w.interval = d
}

func (w *Worker) SetConcurrency(n int) {
	w.concurrency = n
}

func (w *Worker) SetLinkBase(base string) {
	w.linkBase = base
}

// Start refreshes immediately and then on every tick until Stop is called or ctx ends.
func (w *Worker) Start(ctx context.Context) {
	w.log.WithFields(logrus.Fields{"projects": len(w.browsers), "interval": w.interval}).Info("worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.RefreshAll(ctx); err != nil {
			w.log.WithError(err).Warn("refresh finished with errors")
		}

		select {
		case <-w.stop:
			w.log.Info("worker stopped")
			return
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// RefreshAll reloads every browser and notifies about failures not seen before.
// The first successful load of a project only records a baseline.
func (w *Worker) RefreshAll(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(w.concurrency)

	for _, b := range w.browsers {
		g.Go(func() error {
			if err := w.refresh(ctx, b); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	rows := make(map[string]int, len(w.browsers))
	for _, b := range w.browsers {
		rows[b.Project()] = len(b.Rows())
	}
	metrics.UpdateViewRows(rows)

	return errors.Join(errs...)
}

func (w *Worker) refresh(ctx context.Context, b *viewmodel.FailureBrowser) error {
	res := b.Reload(ctx)
	if res.Stale {
		return nil
	}
	if res.Err != nil {
		return fmt.Errorf("refresh %s: %w", b.Project(), res.Err)
	}

	fresh := w.markSeen(b.Project(), res.Rows)
	if len(fresh) == 0 {
		return nil
	}

	d := notify.BuildDigest(b.Project(), fresh, w.linkBase)
	if err := w.notifier.Notify(ctx, d); err != nil {
		return fmt.Errorf("notify %s: %w", b.Project(), err)
	}
	return nil
}

func (w *Worker) markSeen(project string, rows []task.Record) []task.Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	seen, primed := w.seen[project]
	if !primed {
		seen = make(map[string]struct{}, len(rows))
		w.seen[project] = seen
	}

	var fresh []task.Record
	for _, r := range rows {
		if _, ok := seen[r.TaskID]; ok {
			continue
		}
		seen[r.TaskID] = struct{}{}
		if primed {
			fresh = append(fresh, r)
		}
	}
	return fresh
}
