package graph

import (
	"github.com/venturehq/venture/pkg/models"
)

// Graph is an insertion-ordered collection of job nodes with adjacency
// derived from each node's direct dependencies. A graph is built once via
// the Builder and sealed before the workflow starts; after sealing, only
// the nodes' run-state fields change.
type Graph struct {
	nodes  []*models.JobNode
	index  map[string]*models.JobNode
	sealed bool
}

func newGraph(nodes []*models.JobNode) *Graph {
	index := make(map[string]*models.JobNode, len(nodes))
	for _, node := range nodes {
		index[node.ID] = node
	}

	return &Graph{nodes: nodes, index: index}
}

// FromJobs rebuilds a sealed graph from persisted job records, ordered by
// position. Used when resuming a run in a process that did not define it.
func FromJobs(jobs []*models.JobNode) *Graph {
	g := newGraph(jobs)
	g.sealed = true

	return g
}

// Seal freezes the graph structure. Sealing is idempotent.
func (g *Graph) Seal() {
	g.sealed = true
}

func (g *Graph) IsSealed() bool {
	return g.sealed
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

// Jobs returns the nodes in insertion order. The slice is a copy; the nodes
// are shared.
func (g *Graph) Jobs() []*models.JobNode {
	jobs := make([]*models.JobNode, len(g.nodes))
	copy(jobs, g.nodes)

	return jobs
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *models.JobNode {
	return g.index[id]
}

func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]

	return ok
}

// Roots returns every node with no dependencies, in insertion order. These
// form the initial dispatch frontier.
func (g *Graph) Roots() []*models.JobNode {
	var roots []*models.JobNode

	for _, node := range g.nodes {
		if len(node.Dependencies) == 0 {
			roots = append(roots, node)
		}
	}

	return roots
}

// Terminals returns every node nothing else depends on, in insertion order.
func (g *Graph) Terminals() []*models.JobNode {
	hasDependent := make(map[string]bool, len(g.nodes))

	for _, node := range g.nodes {
		for _, dep := range node.Dependencies {
			hasDependent[dep] = true
		}
	}

	var terminals []*models.JobNode

	for _, node := range g.nodes {
		if !hasDependent[node.ID] {
			terminals = append(terminals, node)
		}
	}

	return terminals
}

// DirectDependents returns the nodes that list id as a direct dependency,
// in insertion order.
func (g *Graph) DirectDependents(id string) []*models.JobNode {
	var dependents []*models.JobNode

	for _, node := range g.nodes {
		if node.DependsOn(id) {
			dependents = append(dependents, node)
		}
	}

	return dependents
}

// Descendants returns every node that transitively depends on id. A failed
// node's descendants are permanently excluded from dispatch for the run.
func (g *Graph) Descendants(id string) []*models.JobNode {
	reached := map[string]bool{id: true}

	// Iterate to a fixpoint: conditional dependencies may point at nodes
	// added after their dependents, so insertion order alone is not enough.
	for changed := true; changed; {
		changed = false

		for _, node := range g.nodes {
			if reached[node.ID] {
				continue
			}

			for _, dep := range node.Dependencies {
				if reached[dep] {
					reached[node.ID] = true
					changed = true

					break
				}
			}
		}
	}

	var descendants []*models.JobNode

	for _, node := range g.nodes {
		if node.ID != id && reached[node.ID] {
			descendants = append(descendants, node)
		}
	}

	return descendants
}
