package app

import (
	"context"
	"fmt"

	"github.com/vk/buildsched/internal/catalog"
	"github.com/vk/buildsched/internal/ctxlog"
	"github.com/vk/buildsched/internal/dirty"
	"github.com/vk/buildsched/internal/submitter"
	"github.com/vk/buildsched/internal/taskgraph"
	"github.com/vk/buildsched/internal/vcs"
)

// Run executes one scheduling invocation. A nil return means the full graph
// was built and accepted (or there was nothing to do); any error maps to a
// non-zero exit.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	cfg := a.config

	cat, err := catalog.Load(ctx, cfg.RepoPath)
	if err != nil {
		return fmt.Errorf("loading service catalog: %w", err)
	}
	a.logger.Info("Service catalog loaded.", "services", cat.Len())

	if cfg.CheckOnly {
		a.logger.Info("Catalog check passed.")
		return nil
	}

	event, err := vcs.ParseEvent(cfg.EventAction, cfg.EventPayload)
	if err != nil {
		return fmt.Errorf("parsing trigger event: %w", err)
	}

	dirty.Mark(ctx, cat, event.ChangedPaths(), event.ForceRebuild())

	opts := taskgraph.Options{
		TaskGroupID:      cfg.TaskGroupID,
		Now:              cfg.Now,
		ShouldPublish:    a.shouldPublish(event),
		PublishSecretRef: cfg.PublishSecretRef,
		RouteNamespace:   cfg.RouteNamespace,
		WorkerImage:      cfg.WorkerImage,
		OwnerEmail:       cfg.OwnerEmail,
		SourceURL:        cfg.SourceURL,
	}
	if !opts.ShouldPublish {
		a.logger.Info("Builds will not be published for this event.", "publishBranch", cfg.PushBranch)
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	graph := taskgraph.Build(cat, event, opts)
	builds, publishes := graph.Counts()
	a.logger.Info("Task graph built.", "buildTasks", builds, "publishTasks", publishes)

	if len(graph.Nodes) == 0 {
		a.logger.Info("No services need rebuilding, nothing to submit.")
		return nil
	}

	if cfg.DryRun {
		for _, node := range graph.Nodes {
			a.logger.Info("Would create task.",
				"node", node.LocalID, "kind", node.Kind, "service", node.UnitName,
				"dependsOn", node.DependsOn, "routes", node.Request.Routes)
		}
		return nil
	}

	result := submitter.New(a.client, cfg.WorkerCount).Submit(ctx, graph)
	a.report(result)

	if !result.OK() {
		return fmt.Errorf("submission incomplete: %d failed, %d skipped",
			len(result.FailedIDs()), len(result.SkippedIDs()))
	}
	return nil
}

// shouldPublish is true only for a push to the configured publish branch.
func (a *App) shouldPublish(event vcs.Event) bool {
	push, ok := event.(*vcs.Push)
	return ok && push.Branch == a.config.PushBranch
}

// report logs per-node outcomes and the run summary.
func (a *App) report(result *submitter.Result) {
	for _, n := range result.Nodes {
		switch n.Outcome {
		case submitter.OutcomeCreated:
			a.logger.Info("Task created.",
				"service", n.UnitName, "kind", n.Kind, "taskID", n.RemoteID)
		case submitter.OutcomeFailed:
			a.logger.Error("Task creation failed.",
				"service", n.UnitName, "kind", n.Kind, "error", n.Err)
		case submitter.OutcomeSkipped:
			a.logger.Warn("Task skipped.",
				"service", n.UnitName, "kind", n.Kind, "cause", n.Err)
		}
	}
	a.logger.Info("Submission finished.",
		"buildsCreated", result.Created(taskgraph.KindBuild),
		"publishesCreated", result.Created(taskgraph.KindPublish),
		"failed", len(result.FailedIDs()),
		"skipped", len(result.SkippedIDs()))
}
