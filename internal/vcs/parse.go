package vcs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Supported event actions, matching the webhook hook names the dispatcher
// passes through.
const (
	ActionPush        = "github-push"
	ActionPullRequest = "github-pull-request"
	ActionRelease     = "github-release"
)

var ErrUnknownAction = errors.New("unknown event action")

// payload is the normalized wire shape handed over by the version-control
// collaborator: the interesting webhook fields plus the resolved diff.
type payload struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	HeadCommit struct {
		Message string `json:"message"`
	} `json:"head_commit"`
	Repository struct {
		CloneURL string `json:"clone_url"`
	} `json:"repository"`
	PullRequest struct {
		Number int `json:"number"`
		Head   struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Release struct {
		TagName         string `json:"tag_name"`
		TargetCommitish string `json:"target_commitish"`
	} `json:"release"`
	ChangedPaths []string `json:"changed_paths"`
}

// ParseEvent decodes a raw event payload into the typed variant named by
// action.
func ParseEvent(action string, raw []byte) (Event, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding event payload: %w", err)
	}

	switch action {
	case ActionPush:
		return &Push{
			Branch:        branchFromRef(p.Ref),
			CommitID:      p.After,
			CommitMessage: p.HeadCommit.Message,
			RepoURL:       p.Repository.CloneURL,
			Changed:       p.ChangedPaths,
		}, nil
	case ActionPullRequest:
		return &PullRequest{
			Number:   p.PullRequest.Number,
			CommitID: p.PullRequest.Head.SHA,
			RepoURL:  p.Repository.CloneURL,
			Changed:  p.ChangedPaths,
		}, nil
	case ActionRelease:
		return &Release{
			Branch:        p.Release.TargetCommitish,
			Tag:           p.Release.TagName,
			CommitID:      p.After,
			CommitMessage: p.HeadCommit.Message,
			RepoURL:       p.Repository.CloneURL,
			Changed:       p.ChangedPaths,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// branchFromRef strips the refs/heads/ prefix from a push ref.
func branchFromRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}
