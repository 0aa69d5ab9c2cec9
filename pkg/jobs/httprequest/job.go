// Package httprequest provides a built-in job that performs an HTTP request
// with optional retry.
package httprequest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/venturehq/venture/pkg/registry"
)

const Type = "http_request"

const defaultTimeout = 30 * time.Second

// Schema validates the job parameters before instantiation.
var Schema = []byte(`{
	"type": "object",
	"required": ["url"],
	"properties": {
		"url": {"type": "string", "minLength": 1},
		"method": {"type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"]},
		"headers": {"type": "object", "additionalProperties": {"type": "string"}},
		"body": {"type": "string"},
		"timeout_seconds": {"type": "integer", "minimum": 1},
		"retry": {
			"type": "object",
			"properties": {
				"attempts": {"type": "integer", "minimum": 1},
				"delay_seconds": {"type": "integer", "minimum": 0}
			}
		}
	}
}`)

// RetryConfig defines retry behavior for the request.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

type Job struct {
	url     string
	method  string
	headers map[string]string
	body    string
	retry   RetryConfig
	client  *http.Client
	logger  *slog.Logger
}

// Register adds the http_request job type to the registry.
func Register(reg *registry.Registry, logger *slog.Logger) error {
	return reg.RegisterWithSchema(Type, Schema, func(params map[string]any) (registry.Job, error) {
		return newJob(params, logger)
	})
}

func newJob(params map[string]any, logger *slog.Logger) (*Job, error) {
	url, _ := params["url"].(string)

	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, _ := params["body"].(string)

	headers := make(map[string]string)
	if raw, ok := params["headers"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	timeout := defaultTimeout
	if seconds, ok := params["timeout_seconds"].(float64); ok {
		timeout = time.Duration(seconds) * time.Second
	}

	return &Job{
		url:     url,
		method:  strings.ToUpper(method),
		headers: headers,
		body:    body,
		retry:   parseRetryConfig(params["retry"]),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("job_type", Type),
	}, nil
}

func parseRetryConfig(raw any) RetryConfig {
	retry := RetryConfig{Attempts: 1}

	retryMap, ok := raw.(map[string]any)
	if !ok {
		return retry
	}

	if attempts, ok := retryMap["attempts"].(float64); ok {
		retry.Attempts = int(attempts)
	}

	if delay, ok := retryMap["delay_seconds"].(float64); ok {
		retry.Delay = time.Duration(delay) * time.Second
	}

	return retry
}

// Execute performs the request, retrying on transport errors and 5xx
// responses. A non-2xx final response fails the job.
func (j *Job) Execute(ctx context.Context, input registry.JobInput) error {
	logger := j.logger.With("workflow_id", input.WorkflowID, "job_id", input.JobID)

	var lastErr error

	for attempt := 1; attempt <= j.retry.Attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying HTTP request", "attempt", attempt, "max_attempts", j.retry.Attempts)

			select {
			case <-time.After(j.retry.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = j.do(ctx, logger)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}

func (j *Job) do(ctx context.Context, logger *slog.Logger) error {
	req, err := http.NewRequestWithContext(ctx, j.method, j.url, strings.NewReader(j.body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	for k, v := range j.headers {
		req.Header.Set(k, v)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	logger.InfoContext(ctx, "HTTP request completed", "method", j.method, "url", j.url, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s %s", resp.StatusCode, j.method, j.url)
	}

	return nil
}
