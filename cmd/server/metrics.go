package main

import (
	"context"
	"time"

	"github.com/nadmax/failscope/internal/dashboard"
)

func startMetricsCollector(ctx context.Context, registry *dashboard.Registry) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			registry.UpdateMetrics()
		}
	}
}
