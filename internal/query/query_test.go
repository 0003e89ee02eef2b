package query

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/nadmax/failscope/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsEncode(t *testing.T) {
	ts := time.Date(2026, 10, 3, 9, 30, 0, 0, time.FixedZone("EDT", -4*60*60))
	p := Params{StartedAfter: ts, Statuses: []string{"failed", "system-failed"}}

	v := p.Encode()

	assert.Equal(t, "2026-10-03T09:30:00-04:00", v.Get(ParamStartedAfter))
	assert.Equal(t, []string{"failed", "system-failed"}, v[ParamStatus])
	assert.Len(t, v, 2)
}

func TestParamsEncode_ZeroTime(t *testing.T) {
	v := Params{Statuses: []string{"failed"}}.Encode()

	assert.Empty(t, v.Get(ParamStartedAfter))
	assert.Equal(t, "failed", v.Get(ParamStatus))
}

func TestParseParams(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ts := time.Date(2026, 10, 3, 9, 30, 0, 0, time.UTC)
		original := Params{StartedAfter: ts, Statuses: []string{"failed"}}

		parsed, err := ParseParams(original.Encode())

		require.NoError(t, err)
		assert.True(t, parsed.StartedAfter.Equal(ts))
		assert.Equal(t, []string{"failed"}, parsed.Statuses)
	})

	t.Run("empty values", func(t *testing.T) {
		parsed, err := ParseParams(url.Values{"status": {""}})

		require.NoError(t, err)
		assert.True(t, parsed.StartedAfter.IsZero())
		assert.Empty(t, parsed.Statuses)
	})

	t.Run("invalid timestamp", func(t *testing.T) {
		_, err := ParseParams(url.Values{"started_after": {"yesterday"}})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid started_after")
	})
}

func TestParamsMatches(t *testing.T) {
	cutoff := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	p := Params{StartedAfter: cutoff, Statuses: []string{"failed"}}

	tests := []struct {
		name string
		rec  task.Record
		want bool
	}{
		{"inside window with status", task.Record{CreateTime: cutoff.Add(time.Hour), Status: task.StatusFailed}, true},
		{"exactly at cutoff", task.Record{CreateTime: cutoff, Status: task.StatusFailed}, true},
		{"before window", task.Record{CreateTime: cutoff.Add(-time.Second), Status: task.StatusFailed}, false},
		{"wrong status", task.Record{CreateTime: cutoff.Add(time.Hour), Status: task.StatusSucceeded}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Matches(tt.rec))
		})
	}

	assert.True(t, Params{}.Matches(task.Record{Status: task.StatusSucceeded}))
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")

	assert.Equal(t, "req-1", RequestIDFrom(ctx))
	assert.Empty(t, RequestIDFrom(context.Background()))
}
