// Package planner decomposes a research query into an executable DAG. The
// primary path asks an LLM for a subtask decomposition; any failure along
// that path degrades to a deterministic linear plan, so planning itself
// never fails a run.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hdrp/internal/dag"
	"hdrp/internal/llm"
)

const (
	planTemperature = 0.3
	planMaxTokens   = 1024
)

// Planner builds research plans.
type Planner struct {
	client  llm.Client
	log     *zap.Logger
	timeout time.Duration
}

// New creates a Planner. A nil client forces the fallback path.
func New(client llm.Client, timeout time.Duration, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Planner{client: client, log: log, timeout: timeout}
}

// rawPlan mirrors the JSON contract with the model.
type rawPlan struct {
	Subtasks  []rawSubtask `json:"subtasks"`
	Reasoning string       `json:"reasoning"`
}

type rawSubtask struct {
	ID           string   `json:"id"`
	Query        string   `json:"query"`
	Dependencies []string `json:"dependencies"`
	Entities     []string `json:"entities"`
}

// Plan produces a validated graph for query. It never returns an error:
// every failure mode falls back to the linear three-node plan.
func (p *Planner) Plan(ctx context.Context, runID, query string) *dag.Graph {
	if p.client == nil {
		p.log.Info("no llm client configured, using linear fallback", zap.String("run_id", runID))
		return p.fallbackLinear(runID, query)
	}

	plan, err := p.proposePlan(ctx, query)
	if err != nil {
		p.log.Warn("llm decomposition failed, using linear fallback",
			zap.String("run_id", runID), zap.Error(err))
		return p.fallbackLinear(runID, query)
	}

	g, err := p.buildGraph(runID, query, plan)
	if err != nil {
		p.log.Warn("decomposed plan rejected, using linear fallback",
			zap.String("run_id", runID), zap.Error(err))
		return p.fallbackLinear(runID, query)
	}

	p.log.Info("query decomposed",
		zap.String("run_id", runID),
		zap.Int("subtasks", len(plan.Subtasks)),
		zap.Int("nodes", len(g.Nodes)),
		zap.String("reasoning", plan.Reasoning))
	return g
}

// proposePlan runs the decomposition prompt and parses the response.
func (p *Planner) proposePlan(ctx context.Context, query string) (*rawPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	response, err := p.client.Complete(ctx, llm.Request{
		Messages:    buildDecompositionMessages(query),
		Temperature: planTemperature,
		MaxTokens:   planMaxTokens,
		JSONOutput:  true,
	})
	if err != nil {
		return nil, err
	}

	var plan rawPlan
	if err := json.Unmarshal([]byte(cleanJSONResponse(response)), &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	if len(plan.Subtasks) == 0 {
		return nil, fmt.Errorf("plan contains no subtasks")
	}
	return &plan, nil
}

// buildGraph turns a parsed plan into a validated DAG: dedupe subtasks,
// compute depths, drop out-of-budget nodes, then attach the critic and
// synthesiser stages.
func (p *Planner) buildGraph(runID, query string, plan *rawPlan) (*dag.Graph, error) {
	subtasks := dedupeSubtasks(plan.Subtasks, p.log)

	depths, err := computeDepths(subtasks)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]rawSubtask)
	var keptOrder []string
	for _, st := range subtasks {
		if depths[st.ID] >= dag.MaxDepth {
			p.log.Warn("depth_exceeded: dropping subtask",
				zap.String("run_id", runID),
				zap.String("subtask", st.ID),
				zap.Int("depth", depths[st.ID]))
			continue
		}
		kept[st.ID] = st
		keptOrder = append(keptOrder, st.ID)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("all subtasks exceeded the depth budget")
	}

	g := dag.New(runID)
	g.Metadata.Goal = query
	g.Metadata.DecompositionMethod = "llm"

	maxResearcherDepth := 0
	for _, id := range keptOrder {
		st := kept[id]
		if _, err := g.AddNode(researcherID(id), dag.TypeResearcher, depths[id], map[string]string{
			"query": st.Query,
		}); err != nil {
			return nil, err
		}
		if depths[id] > maxResearcherDepth {
			maxResearcherDepth = depths[id]
		}
	}
	for _, id := range keptOrder {
		for _, dep := range kept[id].Dependencies {
			if _, ok := kept[dep]; !ok {
				continue
			}
			if err := g.AddEdge(researcherID(dep), researcherID(id)); err != nil {
				return nil, err
			}
		}
	}

	criticDepth := min(maxResearcherDepth+1, dag.MaxDepth-1)
	if _, err := g.AddNode("critic_1", dag.TypeCritic, criticDepth, map[string]string{
		"task": query,
	}); err != nil {
		return nil, err
	}
	for _, leaf := range g.ResearcherLeaves() {
		if err := g.AddEdge(leaf, "critic_1"); err != nil {
			return nil, err
		}
	}

	synthDepth := min(criticDepth+1, dag.MaxDepth-1)
	if _, err := g.AddNode("synthesizer_1", dag.TypeSynthesizer, synthDepth, map[string]string{
		"query": query,
	}); err != nil {
		return nil, err
	}
	if err := g.AddEdge("critic_1", "synthesizer_1"); err != nil {
		return nil, err
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// fallbackLinear is the deterministic three-node plan used whenever LLM
// decomposition is unavailable or unusable.
func (p *Planner) fallbackLinear(runID, query string) *dag.Graph {
	g := dag.New(runID)
	g.Metadata.Goal = query
	g.Metadata.DecompositionMethod = "fallback_linear"

	// These cannot fail on a fresh graph.
	g.AddNode("researcher_1", dag.TypeResearcher, 0, map[string]string{"query": query})
	g.AddNode("critic_1", dag.TypeCritic, 1, map[string]string{"task": query})
	g.AddNode("synthesizer_1", dag.TypeSynthesizer, 2, map[string]string{"query": query})
	g.AddEdge("researcher_1", "critic_1")
	g.AddEdge("critic_1", "synthesizer_1")
	return g
}

func researcherID(subtaskID string) string {
	return "researcher_" + subtaskID
}

// dedupeSubtasks keeps the first occurrence of each id.
func dedupeSubtasks(subtasks []rawSubtask, log *zap.Logger) []rawSubtask {
	seen := make(map[string]bool, len(subtasks))
	out := make([]rawSubtask, 0, len(subtasks))
	for _, st := range subtasks {
		if st.ID == "" || st.Query == "" {
			continue
		}
		if seen[st.ID] {
			log.Debug("dropping duplicate subtask", zap.String("subtask", st.ID))
			continue
		}
		seen[st.ID] = true
		out = append(out, st)
	}
	return out
}

// computeDepths assigns each subtask the longest dependency chain length,
// memoised. Dependencies on unknown ids are ignored; cyclic dependencies
// are an error.
func computeDepths(subtasks []rawSubtask) (map[string]int, error) {
	byID := make(map[string]rawSubtask, len(subtasks))
	for _, st := range subtasks {
		byID[st.ID] = st
	}

	depths := make(map[string]int, len(subtasks))
	visiting := make(map[string]bool)

	var depth func(id string) (int, error)
	depth = func(id string) (int, error) {
		if d, ok := depths[id]; ok {
			return d, nil
		}
		if visiting[id] {
			return 0, fmt.Errorf("cyclic dependency involving subtask %q", id)
		}
		visiting[id] = true
		defer delete(visiting, id)

		d := 0
		for _, dep := range byID[id].Dependencies {
			if _, known := byID[dep]; !known {
				continue
			}
			pd, err := depth(dep)
			if err != nil {
				return 0, err
			}
			if pd+1 > d {
				d = pd + 1
			}
		}
		depths[id] = d
		return d, nil
	}

	for _, st := range subtasks {
		if _, err := depth(st.ID); err != nil {
			return nil, err
		}
	}
	return depths, nil
}

// cleanJSONResponse strips markdown code fences some models wrap around
// JSON output.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(strings.TrimSpace(response), "```")
	return strings.TrimSpace(response)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
