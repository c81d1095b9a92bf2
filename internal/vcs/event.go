// Package vcs models the source-control event that triggers a scheduling
// run. The version-control collaborator resolves the diff and hands over a
// normalized payload; this package only decodes it into a typed event.
package vcs

import "strings"

// ForceRebuildMarker in a commit message marks every service dirty,
// bypassing changed-path analysis entirely.
const ForceRebuildMarker = "/force-rebuild"

// Event is the trigger of one scheduling invocation. Exactly three variants
// exist: Push, PullRequest and Release. Code that needs variant-specific
// fields switches on the concrete type rather than testing optional fields.
type Event interface {
	// Commit returns the revision the repository checkout is at.
	Commit() string
	// CloneURL returns the source repository URL for the build workers.
	CloneURL() string
	// ChangedPaths returns the repository-relative paths touched by the
	// event, as resolved by the version-control collaborator.
	ChangedPaths() []string
	// ForceRebuild reports whether the event requests an unconditional
	// rebuild of every service.
	ForceRebuild() bool
}

// Push is a direct push to a branch.
type Push struct {
	Branch        string
	CommitID      string
	CommitMessage string
	RepoURL       string
	Changed       []string
}

func (p *Push) Commit() string         { return p.CommitID }
func (p *Push) CloneURL() string       { return p.RepoURL }
func (p *Push) ChangedPaths() []string { return p.Changed }
func (p *Push) ForceRebuild() bool     { return strings.Contains(p.CommitMessage, ForceRebuildMarker) }

// PullRequest is an update to an open pull request. It carries no commit
// message, so it can never force a full rebuild.
type PullRequest struct {
	Number   int
	CommitID string
	RepoURL  string
	Changed  []string
}

func (p *PullRequest) Commit() string         { return p.CommitID }
func (p *PullRequest) CloneURL() string       { return p.RepoURL }
func (p *PullRequest) ChangedPaths() []string { return p.Changed }
func (p *PullRequest) ForceRebuild() bool     { return false }

// Release is a published release on a branch. It schedules like a push but
// additionally names the release tag.
type Release struct {
	Branch        string
	Tag           string
	CommitID      string
	CommitMessage string
	RepoURL       string
	Changed       []string
}

func (r *Release) Commit() string         { return r.CommitID }
func (r *Release) CloneURL() string       { return r.RepoURL }
func (r *Release) ChangedPaths() []string { return r.Changed }
func (r *Release) ForceRebuild() bool {
	return strings.Contains(r.CommitMessage, ForceRebuildMarker)
}
