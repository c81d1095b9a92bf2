package app

import (
	"errors"
	"time"
)

// Defaults for optional configuration fields.
const (
	DefaultPushBranch     = "main"
	DefaultRouteNamespace = "project.ci"
	DefaultWorkerImage    = "buildsched/ci-worker:latest"
	DefaultOwnerEmail     = "ci@buildsched.dev"
	DefaultSourceURL      = "https://github.com/vk/buildsched"
	DefaultWorkerCount    = 4
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// RepoPath is the monorepo checkout to scan for service definitions.
	RepoPath string
	// EventAction names the trigger variant (github-push,
	// github-pull-request, github-release).
	EventAction string
	// EventPayload is the raw normalized event document.
	EventPayload []byte

	// TaskGroupID is the remote task group created tasks join.
	TaskGroupID string
	// PushBranch is the single branch whose successful builds are also
	// published.
	PushBranch string
	// PublishSecretRef names the registry credential secret.
	PublishSecretRef string
	// QueueURL is the base URL of the remote task-queue service.
	QueueURL string
	// Now anchors all task timestamp math.
	Now time.Time

	RouteNamespace string
	WorkerImage    string
	OwnerEmail     string
	SourceURL      string

	// DryRun builds the graph and logs it without submitting anything.
	DryRun bool
	// CheckOnly loads and validates the catalog, then exits. Used as a
	// lint step in the monorepo's own CI.
	CheckOnly bool

	WorkerCount int
	LogFormat   string
	LogLevel    string
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.RepoPath == "" {
		return nil, errors.New("RepoPath is a required configuration field and cannot be empty")
	}
	if !cfg.CheckOnly {
		if cfg.EventAction == "" {
			return nil, errors.New("EventAction is required unless running in check-only mode")
		}
		if len(cfg.EventPayload) == 0 {
			return nil, errors.New("EventPayload is required unless running in check-only mode")
		}
		if cfg.TaskGroupID == "" {
			return nil, errors.New("TaskGroupID is required unless running in check-only mode")
		}
		if cfg.QueueURL == "" && !cfg.DryRun {
			return nil, errors.New("QueueURL is required unless running in dry-run or check-only mode")
		}
	}

	if cfg.PushBranch == "" {
		cfg.PushBranch = DefaultPushBranch
	}
	if cfg.RouteNamespace == "" {
		cfg.RouteNamespace = DefaultRouteNamespace
	}
	if cfg.WorkerImage == "" {
		cfg.WorkerImage = DefaultWorkerImage
	}
	if cfg.OwnerEmail == "" {
		cfg.OwnerEmail = DefaultOwnerEmail
	}
	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultSourceURL
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now().UTC()
	}

	return &cfg, nil
}
