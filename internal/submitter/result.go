package submitter

import (
	"github.com/vk/buildsched/internal/taskgraph"
)

// Outcome is the terminal state of one node after a submission run.
type Outcome string

const (
	// OutcomeCreated: the queue accepted the task.
	OutcomeCreated Outcome = "created"
	// OutcomeFailed: the creation call failed (after retries, if any).
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped: an upstream node failed or the run was cancelled, so
	// the task was never attempted.
	OutcomeSkipped Outcome = "skipped"
)

// NodeResult records what happened to one task node.
type NodeResult struct {
	LocalID  string
	UnitName string
	Kind     taskgraph.Kind
	Outcome  Outcome
	// RemoteID is the queue task ID; set only when created.
	RemoteID string
	// Err is the creation failure; set only when failed.
	Err error
}

// Result enumerates the outcome of every node in graph order.
type Result struct {
	Nodes []NodeResult
}

// OK reports whether every node was accepted by the queue. Skipped nodes
// count as failure too: the graph was not fully submitted.
func (r *Result) OK() bool {
	for _, n := range r.Nodes {
		if n.Outcome != OutcomeCreated {
			return false
		}
	}
	return true
}

// Created counts accepted nodes of the given kind.
func (r *Result) Created(kind taskgraph.Kind) int {
	count := 0
	for _, n := range r.Nodes {
		if n.Kind == kind && n.Outcome == OutcomeCreated {
			count++
		}
	}
	return count
}

// FailedIDs returns the LocalIDs of failed nodes, in graph order.
func (r *Result) FailedIDs() []string {
	return r.idsWith(OutcomeFailed)
}

// SkippedIDs returns the LocalIDs of skipped nodes, in graph order.
func (r *Result) SkippedIDs() []string {
	return r.idsWith(OutcomeSkipped)
}

func (r *Result) idsWith(outcome Outcome) []string {
	var ids []string
	for _, n := range r.Nodes {
		if n.Outcome == outcome {
			ids = append(ids, n.LocalID)
		}
	}
	return ids
}
