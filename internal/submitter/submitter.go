// Package submitter pushes a task graph to the remote queue while
// preserving its dependency partial order. Remote task creation has no
// transactional guarantee across tasks, so every node is submitted only
// after all of its dependencies have been accepted; independent branches
// proceed concurrently on a bounded worker pool.
package submitter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vk/buildsched/internal/ctxlog"
	"github.com/vk/buildsched/internal/queue"
	"github.com/vk/buildsched/internal/taskgraph"
)

// Defaults for retry behavior on transient queue failures.
const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 2 * time.Second
)

// Submitter submits task graphs to a queue client.
type Submitter struct {
	client     queue.Client
	workers    int
	maxRetries int
	backoff    time.Duration
}

// New creates a Submitter with the given worker-pool size, bounded for the
// queue's API rate limits.
func New(client queue.Client, workers int) *Submitter {
	if workers < 1 {
		workers = 1
	}
	return &Submitter{
		client:     client,
		workers:    workers,
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
	}
}

// WithRetry overrides the transient-failure retry policy. A maxRetries of
// zero disables retrying.
func (s *Submitter) WithRetry(maxRetries int, backoff time.Duration) *Submitter {
	s.maxRetries = maxRetries
	s.backoff = backoff
	return s
}

// node state values, stored atomically.
const (
	statePending int32 = iota
	stateCreated
	stateFailed
	stateSkipped
)

// subNode wraps a graph node with the bookkeeping the worker pool needs.
type subNode struct {
	node       *taskgraph.Node
	remoteID   string
	depCount   atomic.Int32
	deps       []*subNode
	dependents []*subNode
	state      atomic.Int32
	err        error
	// once guards the single transition into a terminal state and the
	// matching WaitGroup release; a node can be skipped from several
	// failing upstream branches at the same time.
	once sync.Once
}

// Submit pushes the whole graph and reports per-node outcomes. Remote task
// IDs are allocated client-side up front, so every node's dependency list
// is computable before any network round-trip. On a per-node failure the
// node's transitive dependents are skipped and everything else continues;
// when ctx is cancelled, in-flight creations finish but no new ones start.
func (s *Submitter) Submit(ctx context.Context, graph *taskgraph.Graph) *Result {
	logger := ctxlog.FromContext(ctx)

	nodes := make(map[string]*subNode, len(graph.Nodes))
	for _, n := range graph.Nodes {
		nodes[n.LocalID] = &subNode{node: n, remoteID: uuid.NewString()}
	}
	for _, sn := range nodes {
		sn.depCount.Store(int32(len(sn.node.DependsOn)))
		for _, dep := range sn.node.DependsOn {
			depNode := nodes[dep]
			sn.deps = append(sn.deps, depNode)
			depNode.dependents = append(depNode.dependents, sn)
		}
	}

	readyChan := make(chan *subNode, len(graph.Nodes))
	rootCount := 0
	for _, n := range graph.Nodes {
		if sn := nodes[n.LocalID]; sn.depCount.Load() == 0 {
			readyChan <- sn
			rootCount++
		}
	}
	logger.Debug("Submitter initialized.", "nodes", len(graph.Nodes), "roots", rootCount, "workers", s.workers)

	var wg sync.WaitGroup
	wg.Add(len(graph.Nodes))

	for i := 0; i < s.workers; i++ {
		go s.worker(ctx, readyChan, &wg, i)
	}

	wg.Wait()
	close(readyChan)

	result := &Result{Nodes: make([]NodeResult, 0, len(graph.Nodes))}
	for _, n := range graph.Nodes {
		sn := nodes[n.LocalID]
		nr := NodeResult{
			LocalID:  n.LocalID,
			UnitName: n.UnitName,
			Kind:     n.Kind,
		}
		switch sn.state.Load() {
		case stateCreated:
			nr.Outcome = OutcomeCreated
			nr.RemoteID = sn.remoteID
		case stateFailed:
			nr.Outcome = OutcomeFailed
			nr.Err = sn.err
		default:
			nr.Outcome = OutcomeSkipped
			nr.Err = sn.err
		}
		result.Nodes = append(result.Nodes, nr)
	}
	return result
}

// worker is the processing loop of one pool member.
func (s *Submitter) worker(ctx context.Context, readyChan chan *subNode, wg *sync.WaitGroup, workerID int) {
	logger := ctxlog.FromContext(ctx)

	for sn := range readyChan {
		workerLogger := logger.With("workerID", workerID, "node", sn.node.LocalID)

		// A node can reach the ready channel after a different upstream
		// branch already skipped it; never submit a settled node.
		if sn.state.Load() != statePending {
			continue
		}

		if ctx.Err() != nil {
			s.skip(ctx, sn, wg, ctx.Err())
			continue
		}

		workerLogger.Debug("Submitting task.", "taskID", sn.remoteID)
		err := s.createWithRetry(ctx, sn)

		if err != nil {
			workerLogger.Error("Task creation failed.", "taskID", sn.remoteID, "error", err)
			sn.once.Do(func() {
				sn.state.Store(stateFailed)
				sn.err = err
				wg.Done()
			})
			for _, dependent := range sn.dependents {
				s.skip(ctx, dependent, wg, err)
			}
			continue
		}

		workerLogger.Debug("Task accepted by queue.", "taskID", sn.remoteID)
		sn.once.Do(func() {
			sn.state.Store(stateCreated)
			wg.Done()
		})

		for _, dependent := range sn.dependents {
			if dependent.depCount.Add(-1) == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependent", dependent.node.LocalID)
				readyChan <- dependent
			}
		}
	}
}

// createWithRetry calls the queue, retrying transient failures a bounded
// number of times with linear backoff. The node's dependency list is mapped
// from local IDs to the pre-allocated remote IDs of its dependencies, which
// are all accepted by the time the node becomes ready.
func (s *Submitter) createWithRetry(ctx context.Context, sn *subNode) error {
	req := sn.node.Request
	if len(sn.deps) > 0 {
		req.Dependencies = make([]string, len(sn.deps))
		for i, dep := range sn.deps {
			req.Dependencies[i] = dep.remoteID
		}
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = s.client.CreateTask(ctx, sn.remoteID, req)
		if err == nil {
			return nil
		}
		if !queue.IsTransient(err) || attempt >= s.maxRetries || ctx.Err() != nil {
			return err
		}

		delay := s.backoff * time.Duration(attempt+1)
		ctxlog.FromContext(ctx).Warn("Transient queue failure, retrying.",
			"node", sn.node.LocalID, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
}

// skip marks a node and its transitive dependents as skipped. A node may be
// reachable from several failed branches; the sync.Once keeps the WaitGroup
// balanced.
func (s *Submitter) skip(ctx context.Context, sn *subNode, wg *sync.WaitGroup, cause error) {
	sn.once.Do(func() {
		ctxlog.FromContext(ctx).Warn("Skipping task, upstream unsatisfiable.",
			"node", sn.node.LocalID, "cause", cause)
		sn.state.Store(stateSkipped)
		sn.err = cause
		wg.Done()
		for _, dependent := range sn.dependents {
			s.skip(ctx, dependent, wg, cause)
		}
	})
}
