package taskgraph

import (
	"fmt"

	"github.com/vk/buildsched/internal/queue"
)

// Kind distinguishes the two task flavors a scheduling run can create.
type Kind string

const (
	KindBuild   Kind = "build"
	KindPublish Kind = "publish"
)

// Node is one planned remote task. Nodes are created once by Build and are
// read-only afterwards; the submitter assigns remote IDs separately and
// never mutates the node.
type Node struct {
	// LocalID identifies the node within this graph only. The remote task
	// ID is assigned at submission time.
	LocalID string
	// Kind is build or publish.
	Kind Kind
	// UnitName is the service this task belongs to.
	UnitName string
	// DependsOn lists the LocalIDs of nodes that must be accepted by the
	// queue before this one may be submitted.
	DependsOn []string
	// Request is the task-creation request, complete except for the remote
	// dependency IDs.
	Request queue.TaskRequest
}

// Graph is the complete ordered set of nodes for one invocation. Node order
// is deterministic: build nodes in service-name order, each publish node
// directly after its build node.
type Graph struct {
	Nodes []*Node

	byID map[string]*Node
}

// Node returns the node with the given LocalID, or nil.
func (g *Graph) Node(localID string) *Node {
	return g.byID[localID]
}

// Counts returns how many build and publish nodes the graph holds.
func (g *Graph) Counts() (builds, publishes int) {
	for _, n := range g.Nodes {
		switch n.Kind {
		case KindBuild:
			builds++
		case KindPublish:
			publishes++
		}
	}
	return builds, publishes
}

func (g *Graph) add(n *Node) {
	g.Nodes = append(g.Nodes, n)
	g.byID[n.LocalID] = n
}

// buildID returns the graph-scoped ID of a service's build node.
func buildID(unit string) string {
	return fmt.Sprintf("%s.%s", KindBuild, unit)
}

// publishID returns the graph-scoped ID of a service's publish node.
func publishID(unit string) string {
	return fmt.Sprintf("%s.%s", KindPublish, unit)
}
