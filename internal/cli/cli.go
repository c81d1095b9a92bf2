// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vk/buildsched/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
// Most options fall back to environment variables so the scheduler can run
// unattended inside a CI task.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("buildsched", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
buildsched - dependency-aware incremental build/publish scheduler.

Decides which services of a monorepo need rebuilding for a source-control
event and submits the ordered build/publish task graph to the remote queue.

Usage:
  buildsched [options] REPO_PATH

Options:
`)
		flagSet.PrintDefaults()
	}

	eventActionFlag := flagSet.String("event-action", os.Getenv("EVENT_ACTION"),
		"Trigger action: github-push, github-pull-request or github-release.")
	eventFileFlag := flagSet.String("event-file", "",
		"Path to the normalized event payload (default: EVENT_PAYLOAD env).")
	taskGroupFlag := flagSet.String("task-group", os.Getenv("TASK_ID"),
		"Create tasks in this task group (default: TASK_ID).")
	pushBranchFlag := flagSet.String("push-branch", envOr("PUSH_BRANCH", app.DefaultPushBranch),
		"Publish images when a push event targets this branch.")
	secretFlag := flagSet.String("registry-secret", os.Getenv("REGISTRY_SECRET"),
		"Secret reference holding registry credentials for publish tasks.")
	queueURLFlag := flagSet.String("queue-url", os.Getenv("QUEUE_URL"),
		"Base URL of the remote task-queue service.")
	nowFlag := flagSet.String("now", os.Getenv("SCHEDULER_NOW"),
		"RFC3339 reference time for task timestamps (default: current time).")
	routeNamespaceFlag := flagSet.String("route-namespace", envOr("ROUTE_NAMESPACE", app.DefaultRouteNamespace),
		"Index namespace for task routes.")
	workerImageFlag := flagSet.String("worker-image", envOr("WORKER_IMAGE", app.DefaultWorkerImage),
		"Image the build and publish tasks run in.")
	dryRunFlag := flagSet.Bool("dry-run", false,
		"Only calculate and log what would be submitted.")
	checkFlag := flagSet.Bool("check", false,
		"Load and validate the service catalog, then exit.")
	workersFlag := flagSet.Int("workers", app.DefaultWorkerCount,
		"Number of concurrent submission workers.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return nil, false, &ExitError{Code: 2, Message: "exactly one REPO_PATH argument is required"}
	}
	repoPath := flagSet.Arg(0)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	var now time.Time
	if *nowFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("invalid --now value: %v", err)}
		}
		now = parsed.UTC()
	}

	payload, err := readEventPayload(*eventFileFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	config, err := app.NewConfig(app.Config{
		RepoPath:         repoPath,
		EventAction:      *eventActionFlag,
		EventPayload:     payload,
		TaskGroupID:      *taskGroupFlag,
		PushBranch:       *pushBranchFlag,
		PublishSecretRef: *secretFlag,
		QueueURL:         *queueURLFlag,
		Now:              now,
		RouteNamespace:   *routeNamespaceFlag,
		WorkerImage:      *workerImageFlag,
		DryRun:           *dryRunFlag,
		CheckOnly:        *checkFlag,
		WorkerCount:      *workersFlag,
		LogFormat:        logFormat,
		LogLevel:         logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}

// readEventPayload loads the event document from the given file, falling
// back to the EVENT_PAYLOAD environment variable.
func readEventPayload(path string) ([]byte, error) {
	if path != "" {
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading event file: %v", err)
		}
		return payload, nil
	}
	if env := os.Getenv("EVENT_PAYLOAD"); env != "" {
		return []byte(env), nil
	}
	return nil, nil
}

// envOr returns the environment value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
