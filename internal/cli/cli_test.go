package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/buildsched/internal/app"
	"github.com/vk/buildsched/internal/cli"
)

// writeEventFile writes a minimal event payload and returns its path.
func writeEventFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ref": "refs/heads/main"}`), 0o644))
	return path
}

func TestParse_FullInvocation(t *testing.T) {
	var out bytes.Buffer
	config, shouldExit, err := cli.Parse([]string{
		"--event-action", "github-push",
		"--event-file", writeEventFile(t),
		"--task-group", "group-1",
		"--push-branch", "main",
		"--registry-secret", "secrets/registry",
		"--queue-url", "https://queue.example.com",
		"--now", "2026-08-20T12:00:00Z",
		"--workers", "8",
		"--log-format", "json",
		"--log-level", "debug",
		"/repo/checkout",
	}, &out)

	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, "/repo/checkout", config.RepoPath)
	assert.Equal(t, "github-push", config.EventAction)
	assert.JSONEq(t, `{"ref": "refs/heads/main"}`, string(config.EventPayload))
	assert.Equal(t, "group-1", config.TaskGroupID)
	assert.Equal(t, "main", config.PushBranch)
	assert.Equal(t, "secrets/registry", config.PublishSecretRef)
	assert.Equal(t, "https://queue.example.com", config.QueueURL)
	assert.Equal(t, time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC), config.Now)
	assert.Equal(t, 8, config.WorkerCount)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, app.DefaultRouteNamespace, config.RouteNamespace)
}

func TestParse_EventPayloadFromEnv(t *testing.T) {
	t.Setenv("EVENT_PAYLOAD", `{"ref": "refs/heads/dev"}`)

	var out bytes.Buffer
	config, _, err := cli.Parse([]string{
		"--event-action", "github-push",
		"--task-group", "group-1",
		"--queue-url", "https://queue.example.com",
		"/repo",
	}, &out)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ref": "refs/heads/dev"}`, string(config.EventPayload))
}

func TestParse_MissingRepoPath(t *testing.T) {
	var out bytes.Buffer
	_, _, err := cli.Parse([]string{"--event-action", "github-push"}, &out)

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_CheckMode(t *testing.T) {
	var out bytes.Buffer
	config, shouldExit, err := cli.Parse([]string{"--check", "/repo"}, &out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.True(t, config.CheckOnly)
	assert.Equal(t, "/repo", config.RepoPath)
}

func TestParse_InvalidValues(t *testing.T) {
	// Keep ambient CI environment out of the flag defaults.
	for _, key := range []string{"EVENT_ACTION", "EVENT_PAYLOAD", "TASK_ID", "QUEUE_URL"} {
		t.Setenv(key, "")
	}

	event := writeEventFile(t)

	testCases := []struct {
		name string
		args []string
	}{
		{
			name: "bad log format",
			args: []string{"--log-format", "xml", "--check", "/repo"},
		},
		{
			name: "bad log level",
			args: []string{"--log-level", "loud", "--check", "/repo"},
		},
		{
			name: "bad now timestamp",
			args: []string{"--now", "yesterday", "--check", "/repo"},
		},
		{
			name: "missing event action",
			args: []string{"--event-file", event, "--task-group", "g", "--queue-url", "http://q", "/repo"},
		},
		{
			name: "missing queue url",
			args: []string{"--event-action", "github-push", "--event-file", event, "--task-group", "g", "/repo"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := cli.Parse(tc.args, &out)

			var exitErr *cli.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestParse_HelpExitsCleanly(t *testing.T) {
	var out bytes.Buffer
	_, shouldExit, err := cli.Parse([]string{"--help"}, &out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Contains(t, out.String(), "buildsched")
}
