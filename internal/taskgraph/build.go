// Package taskgraph turns a dirty-marked catalog and a trigger event into
// the ordered set of remote tasks to submit: one build task per dirty
// service, plus one publish task per build on the publish branch.
package taskgraph

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/buildsched/internal/catalog"
	"github.com/vk/buildsched/internal/queue"
	"github.com/vk/buildsched/internal/vcs"
)

// Timing constants applied to every created task.
const (
	// Deadline is how long the queue keeps a task schedulable.
	Deadline = 2 * time.Hour
	// MaxRunTime bounds a single execution attempt.
	MaxRunTime = 1 * time.Hour
	// ArtifactsExpire is how long built images stay fetchable. Downstream
	// consumers resolve them through index routes, so the window must cover
	// the longest realistic gap between rebuilds of a quiet service.
	ArtifactsExpire = 180 * 24 * time.Hour
)

const archivePath = "/image.tar"

// ErrMissingPublishSecret is returned when a run requires publish tasks but
// no registry credential reference is configured. It is fatal before
// submission: a half-publishable graph must not be submitted at all.
var ErrMissingPublishSecret = errors.New("publish requested but no registry secret reference configured")

// Options carries the per-invocation knobs of the builder.
type Options struct {
	// TaskGroupID is the remote task group every created task joins.
	TaskGroupID string
	// Now anchors deadline and expiry math.
	Now time.Time
	// ShouldPublish adds a publish task per build. True only for a push to
	// the configured publish branch.
	ShouldPublish bool
	// PublishSecretRef names the registry credential secret; required when
	// ShouldPublish.
	PublishSecretRef string
	// RouteNamespace is the index namespace tasks are routed under.
	RouteNamespace string
	// WorkerImage runs both build and publish tasks.
	WorkerImage string
	// OwnerEmail and SourceURL fill task metadata.
	OwnerEmail string
	SourceURL  string
}

// Validate checks option preconditions that must abort the invocation
// before any task is created.
func (o *Options) Validate() error {
	if o.ShouldPublish && o.PublishSecretRef == "" {
		return ErrMissingPublishSecret
	}
	return nil
}

// Build constructs the task graph for every dirty unit in the catalog. It is
// pure computation over already-validated data and cannot fail; an empty
// graph (nothing dirty) is a valid result.
//
// Build edges exist only between dirty units: a clean dependency contributes
// no task, and its last published artifact is reused by the worker through
// the index route convention.
func Build(cat *catalog.Catalog, event vcs.Event, opts Options) *Graph {
	graph := &Graph{byID: make(map[string]*Node)}

	for _, unit := range cat.Units() {
		if !unit.Dirty {
			continue
		}

		var depIDs []string
		for _, dep := range unit.DependsOn {
			if cat.Get(dep).Dirty {
				depIDs = append(depIDs, buildID(dep))
			}
		}

		graph.add(&Node{
			LocalID:   buildID(unit.Name),
			Kind:      KindBuild,
			UnitName:  unit.Name,
			DependsOn: depIDs,
			Request:   buildRequest(unit, event, opts, len(depIDs) > 0),
		})

		if opts.ShouldPublish {
			graph.add(&Node{
				LocalID:   publishID(unit.Name),
				Kind:      KindPublish,
				UnitName:  unit.Name,
				DependsOn: []string{buildID(unit.Name)},
				Request:   publishRequest(unit, opts),
			})
		}
	}

	return graph
}

// buildRequest assembles the task-creation request for one build node.
func buildRequest(unit *catalog.Unit, event vcs.Event, opts Options, loadDeps bool) queue.TaskRequest {
	env := map[string]string{
		"IMAGE_NAME":     unit.Name,
		"DOCKERFILE":     unit.Dockerfile,
		"ARCHIVE_PATH":   archivePath,
		"GIT_REPOSITORY": event.CloneURL(),
		"GIT_REVISION":   event.Commit(),
		"LOAD_DEPS":      boolFlag(loadDeps),
	}
	// Service-declared env never overrides the reserved build variables.
	for k, v := range unit.Env {
		if _, reserved := env[k]; !reserved {
			env[k] = v
		}
	}

	return queue.TaskRequest{
		TaskGroupID: opts.TaskGroupID,
		Created:     opts.Now,
		Deadline:    opts.Now.Add(Deadline),
		Payload: queue.Payload{
			Command: []string{"build.sh"},
			Env:     env,
			Image:   opts.WorkerImage,
			Features: map[string]bool{
				"privileged": true,
			},
			Artifacts: map[string]queue.Artifact{
				fmt.Sprintf("public/%s.tar", unit.Name): {
					Type:    "file",
					Path:    archivePath,
					Expires: opts.Now.Add(ArtifactsExpire),
				},
			},
			MaxRunTime: int64(MaxRunTime.Seconds()),
		},
		Routes: buildRoutes(unit.Name, event, opts.RouteNamespace),
		Scopes: []string{
			"worker:capability:privileged",
			fmt.Sprintf("queue:route:index.%s.*", opts.RouteNamespace),
		},
		Metadata: queue.Metadata{
			Name:        fmt.Sprintf("%s docker build", unit.Name),
			Description: fmt.Sprintf("Build the docker image for %s tasks", unit.Name),
			Owner:       opts.OwnerEmail,
			Source:      opts.SourceURL,
		},
	}
}

// publishRequest assembles the task-creation request for one publish node.
// Publishing consumes the build's artifact by the index-route convention, so
// it declares no artifacts of its own.
func publishRequest(unit *catalog.Unit, opts Options) queue.TaskRequest {
	return queue.TaskRequest{
		TaskGroupID: opts.TaskGroupID,
		Created:     opts.Now,
		Deadline:    opts.Now.Add(Deadline),
		Payload: queue.Payload{
			Command: []string{"taskboot", "push-artifact"},
			Env: map[string]string{
				"REGISTRY_SECRET": opts.PublishSecretRef,
			},
			Image: opts.WorkerImage,
			Features: map[string]bool{
				"secretsProxy": true,
			},
			MaxRunTime: int64(MaxRunTime.Seconds()),
		},
		Scopes: []string{
			fmt.Sprintf("secrets:get:%s", opts.PublishSecretRef),
		},
		Metadata: queue.Metadata{
			Name:        fmt.Sprintf("%s docker push", unit.Name),
			Description: fmt.Sprintf("Publish the docker image for %s tasks", unit.Name),
			Owner:       opts.OwnerEmail,
			Source:      opts.SourceURL,
		},
	}
}

// buildRoutes computes the index routes downstream consumers use to find the
// latest image for a service without knowing task IDs: always one route per
// revision, plus a branch route for pushes and releases or a pull-request
// route for pull requests.
func buildRoutes(unitName string, event vcs.Event, namespace string) []string {
	prefix := fmt.Sprintf("index.%s.%s", namespace, unitName)
	routes := []string{
		fmt.Sprintf("%s.rev.%s", prefix, event.Commit()),
	}

	switch e := event.(type) {
	case *vcs.Push:
		routes = append(routes, fmt.Sprintf("%s.%s", prefix, e.Branch))
	case *vcs.Release:
		routes = append(routes, fmt.Sprintf("%s.%s", prefix, e.Branch))
	case *vcs.PullRequest:
		routes = append(routes, fmt.Sprintf("%s.pull_request.%d", prefix, e.Number))
	}

	return routes
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
