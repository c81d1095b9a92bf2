package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/buildsched/internal/queue"
)

func sampleRequest() queue.TaskRequest {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	return queue.TaskRequest{
		TaskGroupID:  "group-1",
		Dependencies: []string{"dep-1"},
		Created:      now,
		Deadline:     now.Add(2 * time.Hour),
		Payload: queue.Payload{
			Command:    []string{"build.sh"},
			Env:        map[string]string{"IMAGE_NAME": "svc"},
			Image:      "ci-worker:latest",
			MaxRunTime: 3600,
		},
		Routes: []string{"index.project.ci.svc.main"},
		Metadata: queue.Metadata{
			Name:  "svc docker build",
			Owner: "ci@example.com",
		},
	}
}

func TestHTTPClient_CreateTask(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath, gotContentType string
	var gotBody queue.TaskRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := queue.NewHTTPClient(server.URL)
	err := client.CreateTask(context.Background(), "task-123", sampleRequest())

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/v1/task/task-123", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "group-1", gotBody.TaskGroupID)
	assert.Equal(t, []string{"dep-1"}, gotBody.Dependencies)
	assert.Equal(t, "svc docker build", gotBody.Metadata.Name)
}

func TestHTTPClient_Rejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "malformed task definition", http.StatusBadRequest)
	}))
	defer server.Close()

	client := queue.NewHTTPClient(server.URL)
	err := client.CreateTask(context.Background(), "task-123", sampleRequest())

	require.Error(t, err)
	var reqErr *queue.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Equal(t, "task-123", reqErr.TaskID)
	assert.Contains(t, reqErr.Body, "malformed task definition")
	assert.False(t, reqErr.Transient())
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "rate limited",
			err:  &queue.RequestError{StatusCode: http.StatusTooManyRequests},
			want: true,
		},
		{
			name: "server error",
			err:  &queue.RequestError{StatusCode: http.StatusBadGateway},
			want: true,
		},
		{
			name: "validation rejection",
			err:  &queue.RequestError{StatusCode: http.StatusBadRequest},
			want: false,
		},
		{
			name: "transport failure",
			err:  errors.New("connection refused"),
			want: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, queue.IsTransient(tc.err))
		})
	}
}
