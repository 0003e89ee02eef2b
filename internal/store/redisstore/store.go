// Package redisstore keeps task records in Redis: record JSON in a single hash and a
// per-project sorted set scored by creation time for window queries.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nadmax/failscope/internal/query"
	"github.com/nadmax/failscope/internal/store"
	"github.com/nadmax/failscope/internal/task"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const recordsKey = "task_records"

func projectKey(projectID string) string {
	return "project_tasks:" + projectID
}

type Store struct {
	client *redis.Client
}

var _ store.Store = (*Store)(nil)

func New(ctx context.Context, addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) SaveRecord(ctx context.Context, r *task.Record) error {
	recordJSON, err := r.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode task record %s: %w", r.TaskID, err)
	}

	prev, err := s.GetRecord(ctx, r.TaskID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logrus.WithError(err).WithField("task_id", r.TaskID).Warn("overwriting unreadable task record")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != nil && prev.ProjectID != r.ProjectID {
			pipe.ZRem(ctx, projectKey(prev.ProjectID), r.TaskID)
		}
		pipe.HSet(ctx, recordsKey, r.TaskID, recordJSON)
		pipe.ZAdd(ctx, projectKey(r.ProjectID), redis.Z{
			Score:  float64(r.CreateTime.UnixMilli()),
			Member: r.TaskID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save task record %s: %w", r.TaskID, err)
	}

	return nil
}

func (s *Store) GetRecord(ctx context.Context, taskID string) (*task.Record, error) {
	recordJSON, err := s.client.HGet(ctx, recordsKey, taskID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return task.RecordFromJSON(recordJSON)
}

func (s *Store) FindTasks(ctx context.Context, projectID string, p query.Params) ([]task.Record, error) {
	minScore := "-inf"
	if !p.StartedAfter.IsZero() {
		minScore = strconv.FormatInt(p.StartedAfter.UnixMilli(), 10)
	}

	ids, err := s.client.ZRevRangeByScore(ctx, projectKey(projectID), &redis.ZRangeBy{
		Min: minScore,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query project index: %w", err)
	}

	records := []task.Record{}
	if len(ids) == 0 {
		return records, nil
	}

	values, err := s.client.HMGet(ctx, recordsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load task records: %w", err)
	}

	for i, v := range values {
		recordJSON, ok := v.(string)
		if !ok {
			continue
		}
		r, err := task.RecordFromJSON(recordJSON)
		if err != nil {
			logrus.WithError(err).WithField("task_id", ids[i]).Warn("skipping undecodable task record")
			continue
		}
		if p.Matches(*r) {
			records = append(records, *r)
		}
	}

	return records, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
