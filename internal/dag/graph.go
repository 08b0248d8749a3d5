// Package dag models the research plan as a typed directed acyclic graph and
// enforces its structural invariants.
package dag

import (
	"fmt"
)

// MaxDepth bounds node depth; nodes at depth >= MaxDepth are never created.
const MaxDepth = 3

// NodeType identifies the role a node plays during execution.
type NodeType string

const (
	TypeResearcher  NodeType = "researcher"
	TypeCritic      NodeType = "critic"
	TypeSynthesizer NodeType = "synthesizer"
)

// NodeStatus is the execution state of a node.
type NodeStatus string

const (
	StatusCreated   NodeStatus = "CREATED"
	StatusRunning   NodeStatus = "RUNNING"
	StatusSucceeded NodeStatus = "SUCCEEDED"
	StatusFailed    NodeStatus = "FAILED"
	StatusSkipped   NodeStatus = "SKIPPED"
)

// Node is a unit of work in the plan.
type Node struct {
	ID             string            `json:"id"`
	Type           NodeType          `json:"type"`
	Config         map[string]string `json:"config"`
	Depth          int               `json:"depth"`
	Status         NodeStatus        `json:"status"`
	RelevanceScore float64           `json:"relevance_score"`
}

// Edge is a dependency: To cannot start before From completes.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Metadata records how the plan was produced.
type Metadata struct {
	Goal                string `json:"goal"`
	RunID               string `json:"run_id"`
	DecompositionMethod string `json:"decomposition_method"` // llm or fallback_linear
}

// Graph is the research plan. Node insertion order is preserved so
// scheduling is deterministic.
type Graph struct {
	ID       string           `json:"id"`
	Nodes    map[string]*Node `json:"nodes"`
	Edges    []Edge           `json:"edges"`
	Metadata Metadata         `json:"metadata"`

	order []string
}

// New creates an empty graph whose id is the run id.
func New(runID string) *Graph {
	return &Graph{
		ID:    runID,
		Nodes: make(map[string]*Node),
		Metadata: Metadata{
			RunID: runID,
		},
	}
}

// AddNode inserts a node. Depth must satisfy 0 <= depth < MaxDepth and ids
// must be unique.
func (g *Graph) AddNode(id string, typ NodeType, depth int, config map[string]string) (*Node, error) {
	if id == "" {
		return nil, fmt.Errorf("node id must not be empty")
	}
	if _, exists := g.Nodes[id]; exists {
		return nil, fmt.Errorf("duplicate node id %q", id)
	}
	if depth < 0 || depth >= MaxDepth {
		return nil, fmt.Errorf("node %q depth %d out of range [0,%d)", id, depth, MaxDepth)
	}
	switch typ {
	case TypeResearcher, TypeCritic, TypeSynthesizer:
	default:
		return nil, fmt.Errorf("node %q has unknown type %q", id, typ)
	}
	if config == nil {
		config = make(map[string]string)
	}
	n := &Node{
		ID:             id,
		Type:           typ,
		Config:         config,
		Depth:          depth,
		Status:         StatusCreated,
		RelevanceScore: 1.0,
	}
	g.Nodes[id] = n
	g.order = append(g.order, id)
	return n, nil
}

// AddEdge inserts a dependency edge. Self-loops, unknown endpoints,
// duplicates and cycles are rejected.
func (g *Graph) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("self-loop on node %q", from)
	}
	if _, ok := g.Nodes[from]; !ok {
		return fmt.Errorf("edge source %q does not exist", from)
	}
	if _, ok := g.Nodes[to]; !ok {
		return fmt.Errorf("edge target %q does not exist", to)
	}
	for _, e := range g.Edges {
		if e.From == from && e.To == to {
			return fmt.Errorf("duplicate edge %s -> %s", from, to)
		}
	}
	if g.pathExists(to, from) {
		return fmt.Errorf("edge %s -> %s would create a cycle", from, to)
	}
	g.Edges = append(g.Edges, Edge{From: from, To: to})
	return nil
}

// pathExists reports whether target is reachable from start.
func (g *Graph) pathExists(start, target string) bool {
	visited := make(map[string]bool)
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, e := range g.Edges {
			if e.From == cur {
				stack = append(stack, e.To)
			}
		}
	}
	return false
}

// Order returns node ids in insertion order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Parents returns the ids of nodes with an edge into id, in edge order.
func (g *Graph) Parents(id string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.To == id {
			out = append(out, e.From)
		}
	}
	return out
}

// Children returns the ids of nodes id has an edge to, in edge order.
func (g *Graph) Children(id string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	return out
}

// Indegrees returns the incoming edge count per node.
func (g *Graph) Indegrees() map[string]int {
	in := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		in[id] = 0
	}
	for _, e := range g.Edges {
		in[e.To]++
	}
	return in
}

// ResearcherLeaves returns researcher nodes with no outgoing edge to
// another researcher, in insertion order.
func (g *Graph) ResearcherLeaves() []string {
	hasResearcherChild := make(map[string]bool)
	for _, e := range g.Edges {
		if from, to := g.Nodes[e.From], g.Nodes[e.To]; from != nil && to != nil &&
			from.Type == TypeResearcher && to.Type == TypeResearcher {
			hasResearcherChild[e.From] = true
		}
	}
	var out []string
	for _, id := range g.order {
		n := g.Nodes[id]
		if n.Type == TypeResearcher && !hasResearcherChild[id] {
			out = append(out, id)
		}
	}
	return out
}

// NodesOfType returns nodes of the given type in insertion order.
func (g *Graph) NodesOfType(typ NodeType) []*Node {
	var out []*Node
	for _, id := range g.order {
		if n := g.Nodes[id]; n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// statusTransitions is the node lifecycle. SUCCEEDED, FAILED and SKIPPED
// are terminal and have no successors, so a node settles exactly once.
var statusTransitions = map[NodeStatus][]NodeStatus{
	StatusCreated: {StatusRunning, StatusSkipped},
	StatusRunning: {StatusSucceeded, StatusFailed},
}

// SetStatus advances a node's execution state, rejecting transitions the
// lifecycle does not allow.
func (g *Graph) SetStatus(id string, status NodeStatus) error {
	n, ok := g.Nodes[id]
	if !ok {
		return fmt.Errorf("unknown node %q", id)
	}
	for _, next := range statusTransitions[n.Status] {
		if next == status {
			n.Status = status
			return nil
		}
	}
	return fmt.Errorf("illegal status transition %s -> %s on node %q", n.Status, status, id)
}
