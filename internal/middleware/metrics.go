// Package middleware provides HTTP middleware for metrics collection.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/failscope/internal/metrics"
)

var recordHTTPRequest = metrics.RecordHTTPRequest

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		recordHTTPRequest(r.Method, normalizeEndpoint(r.URL.Path), strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}

// normalizeEndpoint collapses path parameters so label cardinality stays bounded.
func normalizeEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/rest/v2/projects/"):
		parts := strings.Split(strings.TrimPrefix(path, "/rest/v2/projects/"), "/")
		if len(parts) == 2 && parts[1] == "tasks" {
			return "/rest/v2/projects/:project/tasks"
		}
		return path
	case strings.HasPrefix(path, "/rest/v2/tasks/") && !strings.Contains(path[len("/rest/v2/tasks/"):], "/"):
		return "/rest/v2/tasks/:id"
	case strings.HasPrefix(path, "/api/failures/"):
		parts := strings.Split(strings.TrimPrefix(path, "/api/failures/"), "/")
		switch {
		case len(parts) == 1:
			return "/api/failures/:project"
		case len(parts) == 2 && (parts[1] == "filters" || parts[1] == "summary"):
			return "/api/failures/:project/" + parts[1]
		}
		return path
	default:
		return path
	}
}
