package dag

import (
	"fmt"
)

// Validate checks the whole-graph invariants:
//
//   - at least one node, acyclic (guaranteed incrementally by AddEdge but
//     re-checked here), every non-root node has an incoming edge
//   - exactly one synthesiser and it is the unique sink
//   - exactly one critic, it feeds the synthesiser, and its incoming edges
//     come only from researcher leaves
func (g *Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}

	if err := g.checkAcyclic(); err != nil {
		return err
	}

	in := g.Indegrees()
	for _, id := range g.order {
		n := g.Nodes[id]
		if in[id] == 0 && n.Depth > 0 {
			return fmt.Errorf("non-root node %q has no incoming edge", id)
		}
	}

	synths := g.NodesOfType(TypeSynthesizer)
	if len(synths) != 1 {
		return fmt.Errorf("graph must have exactly one synthesizer, found %d", len(synths))
	}
	synth := synths[0]

	for _, id := range g.order {
		children := g.Children(id)
		if len(children) == 0 && id != synth.ID {
			return fmt.Errorf("node %q is a sink but is not the synthesizer", id)
		}
	}
	if len(g.Children(synth.ID)) != 0 {
		return fmt.Errorf("synthesizer %q must be a sink", synth.ID)
	}

	critics := g.NodesOfType(TypeCritic)
	if len(critics) != 1 {
		return fmt.Errorf("graph must have exactly one critic, found %d", len(critics))
	}
	critic := critics[0]

	synthParents := g.Parents(synth.ID)
	if len(synthParents) != 1 || synthParents[0] != critic.ID {
		return fmt.Errorf("synthesizer %q must have exactly one parent, the critic", synth.ID)
	}

	leaves := make(map[string]bool)
	for _, id := range g.ResearcherLeaves() {
		leaves[id] = true
	}
	criticParents := g.Parents(critic.ID)
	if len(criticParents) == 0 {
		return fmt.Errorf("critic %q has no incoming edges", critic.ID)
	}
	for _, p := range criticParents {
		if !leaves[p] {
			return fmt.Errorf("critic %q has incoming edge from %q which is not a researcher leaf", critic.ID, p)
		}
	}

	return nil
}

// checkAcyclic runs Kahn's algorithm and fails if any node is unreachable
// from the zero-indegree frontier.
func (g *Graph) checkAcyclic() error {
	in := g.Indegrees()
	queue := make([]string, 0, len(g.Nodes))
	for _, id := range g.order {
		if in[id] == 0 {
			queue = append(queue, id)
		}
	}
	processed := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		processed++
		for _, child := range g.Children(cur) {
			in[child]--
			if in[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	if processed != len(g.Nodes) {
		return fmt.Errorf("graph contains a cycle")
	}
	return nil
}
