package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client creates tasks on the remote queue. The queue resolves dependency
// semantics by remote task ID, so every ID referenced in a request's
// Dependencies must already exist when the request arrives.
type Client interface {
	CreateTask(ctx context.Context, taskID string, req TaskRequest) error
}

// RequestError is a task-creation failure reported by the queue service.
type RequestError struct {
	TaskID     string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("queue rejected task %s: status %d: %s", e.TaskID, e.StatusCode, e.Body)
}

// Transient reports whether the failure is worth retrying: rate limiting and
// server-side errors are; validation rejections are not.
func (e *RequestError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient classifies an error from CreateTask. Transport-level failures
// (no HTTP status at all) count as transient.
func IsTransient(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Transient()
	}
	return err != nil
}

// HTTPClient talks to the queue service over its REST task-creation
// endpoint: PUT {base}/v1/task/{taskID}.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a queue client against the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateTask implements Client.
func (c *HTTPClient) CreateTask(ctx context.Context, taskID string, req TaskRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", taskID, err)
	}

	url := fmt.Sprintf("%s/v1/task/%s", c.baseURL, taskID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request for task %s: %w", taskID, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("creating task %s: %w", taskID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Keep the response snippet short; the queue's error bodies can be large.
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &RequestError{
		TaskID:     taskID,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
}
