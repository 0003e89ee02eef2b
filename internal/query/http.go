package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/nadmax/failscope/internal/metrics"
	"github.com/nadmax/failscope/internal/task"
	"github.com/sirupsen/logrus"
)

const (
	HeaderAPIUser   = "Api-User"
	HeaderAPIKey    = "Api-Key"
	HeaderRequestID = "X-Request-ID"

	sourceHTTP = "http"
)

type HTTPOptions struct {
	BaseURL  string
	User     string
	APIKey   string
	RetryMax int
	// Timeout of zero waits for the service indefinitely.
	Timeout time.Duration
}

type HTTPClient struct {
	baseURL string
	user    string
	apiKey  string
	client  *http.Client
}

type leveledLogger struct{}

func (leveledLogger) format(msg string, kv ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for _, x := range kv {
		b.WriteString(" ")
		b.WriteString(fmt.Sprintf("%v", x))
	}
	return b.String()
}

func (l leveledLogger) Error(msg string, kv ...any) { logrus.Error(l.format(msg, kv...)) }
func (l leveledLogger) Info(msg string, kv ...any)  { logrus.Debug(l.format(msg, kv...)) }
func (l leveledLogger) Debug(msg string, kv ...any) { logrus.Trace(l.format(msg, kv...)) }
func (l leveledLogger) Warn(msg string, kv ...any)  { logrus.Warn(l.format(msg, kv...)) }

var _ retryablehttp.LeveledLogger = leveledLogger{}

func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.Logger = leveledLogger{}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := rc.StandardClient()
	client.Timeout = opts.Timeout

	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		user:    opts.User,
		apiKey:  opts.APIKey,
		client:  client,
	}
}

func (c *HTTPClient) GetProjectTasks(ctx context.Context, projectID string, p Params) (records []task.Record, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordTaskQuery(sourceHTTP, err, time.Since(start))
	}()

	endpoint := fmt.Sprintf("%s/rest/v2/projects/%s/tasks?%s", c.baseURL, url.PathEscape(projectID), p.Encode().Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build task query: %w", err)
	}

	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	if c.user != "" {
		req.Header.Set(HeaderAPIUser, c.user)
	}
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks for project %s: %w", projectID, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close task query response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		var body string
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err != nil {
			logrus.WithError(err).Warn("failed to read task query error body")
		} else {
			body = strings.TrimSpace(string(data))
		}
		return nil, fmt.Errorf("task query for project %s returned http %d: %s", projectID, resp.StatusCode, body)
	}

	var entries []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode task query response: %w", err)
	}

	log := logrus.WithFields(logrus.Fields{"project": projectID, "request_id": requestID})
	records = make([]task.Record, 0, len(entries))
	for i, raw := range entries {
		r, dropped, err := task.DecodeRecord(raw)
		if err != nil {
			log.WithError(err).WithField("index", i).Warn("skipping task query entry that is not a record")
			continue
		}
		if len(dropped) > 0 {
			log.WithFields(logrus.Fields{"task_id": r.TaskID, "fields": dropped}).Warn("task record has undecodable fields")
		}
		records = append(records, r)
	}

	log.WithField("records", len(records)).Debug("task query completed")

	return records, nil
}
