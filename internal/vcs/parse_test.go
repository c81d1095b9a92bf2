package vcs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/buildsched/internal/vcs"
)

const pushPayload = `{
	"ref": "refs/heads/main",
	"after": "abc123",
	"head_commit": {"message": "fix the build"},
	"repository": {"clone_url": "https://example.com/org/mono.git"},
	"changed_paths": ["svc/Dockerfile", "svc/run.sh"]
}`

func TestParseEvent_Push(t *testing.T) {
	t.Parallel()

	event, err := vcs.ParseEvent(vcs.ActionPush, []byte(pushPayload))
	require.NoError(t, err)

	push, ok := event.(*vcs.Push)
	require.True(t, ok, "expected a *vcs.Push, got %T", event)

	assert.Equal(t, "main", push.Branch)
	assert.Equal(t, "abc123", push.Commit())
	assert.Equal(t, "https://example.com/org/mono.git", push.CloneURL())
	assert.Equal(t, []string{"svc/Dockerfile", "svc/run.sh"}, push.ChangedPaths())
	assert.False(t, push.ForceRebuild())
}

func TestParseEvent_PushForceRebuild(t *testing.T) {
	t.Parallel()

	payload := `{
		"ref": "refs/heads/main",
		"after": "abc123",
		"head_commit": {"message": "rebuild everything\n\n/force-rebuild"},
		"repository": {"clone_url": "https://example.com/org/mono.git"}
	}`

	event, err := vcs.ParseEvent(vcs.ActionPush, []byte(payload))
	require.NoError(t, err)
	assert.True(t, event.ForceRebuild())
}

func TestParseEvent_PullRequest(t *testing.T) {
	t.Parallel()

	payload := `{
		"repository": {"clone_url": "https://example.com/org/mono.git"},
		"pull_request": {"number": 42, "head": {"sha": "def456"}},
		"changed_paths": ["svc/main.go"]
	}`

	event, err := vcs.ParseEvent(vcs.ActionPullRequest, []byte(payload))
	require.NoError(t, err)

	pr, ok := event.(*vcs.PullRequest)
	require.True(t, ok, "expected a *vcs.PullRequest, got %T", event)

	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "def456", pr.Commit())
	assert.Equal(t, []string{"svc/main.go"}, pr.ChangedPaths())
	// Pull requests carry no commit message, so no force rebuild either.
	assert.False(t, pr.ForceRebuild())
}

func TestParseEvent_Release(t *testing.T) {
	t.Parallel()

	payload := `{
		"after": "fed789",
		"head_commit": {"message": "release v1.2.0"},
		"repository": {"clone_url": "https://example.com/org/mono.git"},
		"release": {"tag_name": "v1.2.0", "target_commitish": "main"}
	}`

	event, err := vcs.ParseEvent(vcs.ActionRelease, []byte(payload))
	require.NoError(t, err)

	rel, ok := event.(*vcs.Release)
	require.True(t, ok, "expected a *vcs.Release, got %T", event)

	assert.Equal(t, "v1.2.0", rel.Tag)
	assert.Equal(t, "main", rel.Branch)
	assert.Equal(t, "fed789", rel.Commit())
}

func TestParseEvent_UnknownAction(t *testing.T) {
	t.Parallel()

	_, err := vcs.ParseEvent("github-deploy", []byte(`{}`))
	require.ErrorIs(t, err, vcs.ErrUnknownAction)
}

func TestParseEvent_MalformedPayload(t *testing.T) {
	t.Parallel()

	_, err := vcs.ParseEvent(vcs.ActionPush, []byte(`{not json`))
	require.Error(t, err)
}
