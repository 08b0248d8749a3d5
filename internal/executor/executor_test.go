package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"hdrp/internal/claims"
	"hdrp/internal/dag"
	"hdrp/internal/hdrperr"
	"hdrp/internal/synthesizer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeResearch implements ResearchRunner with a func field.
type fakeResearch struct {
	mu      sync.Mutex
	ran     []string
	runFunc func(ctx context.Context, node *dag.Node) ([]claims.AtomicClaim, error)
}

func (f *fakeResearch) Run(ctx context.Context, node *dag.Node) ([]claims.AtomicClaim, error) {
	f.mu.Lock()
	f.ran = append(f.ran, node.ID)
	f.mu.Unlock()
	if f.runFunc != nil {
		return f.runFunc(ctx, node)
	}
	return []claims.AtomicClaim{{
		ClaimID:      node.ID + "-claim",
		Statement:    "A finding from " + node.ID + " about the topic.",
		SupportText:  "A finding from " + node.ID + " about the topic.",
		SourceURL:    "https://example.com/" + node.ID,
		SourceNodeID: node.ID,
	}}, nil
}

// passCritic marks every claim verified.
type passCritic struct{}

func (passCritic) Critique(_ context.Context, _ string, input []claims.AtomicClaim) []claims.CritiqueResult {
	out := make([]claims.CritiqueResult, 0, len(input))
	for _, c := range input {
		out = append(out, claims.CritiqueResult{Claim: c, IsValid: true, Reasoning: "ok", EntailmentScore: 0.9})
	}
	return out
}

func newExec(research ResearchRunner) *Executor {
	return New(research, passCritic{}, synthesizer.New(zap.NewNop()), 4, zap.NewNop())
}

func linearGraph(t *testing.T) *dag.Graph {
	t.Helper()
	g := dag.New("run-1")
	g.Metadata.Goal = "the goal"
	mustNode(t, g, "researcher_1", dag.TypeResearcher, 0, map[string]string{"query": "the goal"})
	mustNode(t, g, "critic_1", dag.TypeCritic, 1, map[string]string{"task": "the goal"})
	mustNode(t, g, "synthesizer_1", dag.TypeSynthesizer, 2, map[string]string{"query": "the goal"})
	require.NoError(t, g.AddEdge("researcher_1", "critic_1"))
	require.NoError(t, g.AddEdge("critic_1", "synthesizer_1"))
	return g
}

func fanGraph(t *testing.T) *dag.Graph {
	t.Helper()
	g := dag.New("run-2")
	g.Metadata.Goal = "compare things"
	mustNode(t, g, "researcher_a", dag.TypeResearcher, 0, map[string]string{"query": "side a"})
	mustNode(t, g, "researcher_b", dag.TypeResearcher, 0, map[string]string{"query": "side b"})
	mustNode(t, g, "researcher_join", dag.TypeResearcher, 1, map[string]string{"query": "join"})
	mustNode(t, g, "critic_1", dag.TypeCritic, 2, map[string]string{"task": "compare things"})
	mustNode(t, g, "synthesizer_1", dag.TypeSynthesizer, 2, map[string]string{"query": "compare things"})
	require.NoError(t, g.AddEdge("researcher_a", "researcher_join"))
	require.NoError(t, g.AddEdge("researcher_b", "researcher_join"))
	require.NoError(t, g.AddEdge("researcher_join", "critic_1"))
	require.NoError(t, g.AddEdge("critic_1", "synthesizer_1"))
	return g
}

func mustNode(t *testing.T, g *dag.Graph, id string, typ dag.NodeType, depth int, cfg map[string]string) {
	t.Helper()
	_, err := g.AddNode(id, typ, depth, cfg)
	require.NoError(t, err)
}

func TestExecuteLinear(t *testing.T) {
	g := linearGraph(t)
	report, err := newExec(&fakeResearch{}).Execute(context.Background(), g)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Contains(t, report.Markdown, "A finding from researcher_1")

	for _, id := range g.Order() {
		assert.Equal(t, dag.StatusSucceeded, g.Nodes[id].Status, id)
	}
}

func TestExecuteFanRunsAllResearchers(t *testing.T) {
	research := &fakeResearch{}
	g := fanGraph(t)
	report, err := newExec(research).Execute(context.Background(), g)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.ElementsMatch(t, []string{"researcher_a", "researcher_b", "researcher_join"}, research.ran)
	// Only the leaf researcher feeds the critic.
	assert.Contains(t, report.Markdown, "researcher_join")
	assert.NotContains(t, report.Markdown, "researcher_a about")
}

func TestResearcherFailureDoesNotCancelSuccessors(t *testing.T) {
	research := &fakeResearch{
		runFunc: func(ctx context.Context, node *dag.Node) ([]claims.AtomicClaim, error) {
			if node.ID == "researcher_a" {
				return nil, errors.New("search broke")
			}
			return []claims.AtomicClaim{{
				Statement:    "Finding from " + node.ID + " about things.",
				SupportText:  "Finding from " + node.ID + " about things.",
				SourceURL:    "https://example.com/" + node.ID,
				SourceNodeID: node.ID,
			}}, nil
		},
	}
	g := fanGraph(t)
	report, err := newExec(research).Execute(context.Background(), g)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, dag.StatusFailed, g.Nodes["researcher_a"].Status)
	assert.Equal(t, dag.StatusSucceeded, g.Nodes["researcher_join"].Status)
	assert.Equal(t, dag.StatusSucceeded, g.Nodes["synthesizer_1"].Status)
}

func TestAllResearchersFailStillSucceedsWithEmptyReport(t *testing.T) {
	research := &fakeResearch{
		runFunc: func(ctx context.Context, node *dag.Node) ([]claims.AtomicClaim, error) {
			return nil, errors.New("every search broke")
		},
	}
	g := linearGraph(t)
	report, err := newExec(research).Execute(context.Background(), g)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Contains(t, report.Markdown, "No information found for this query.")
	assert.Equal(t, dag.StatusFailed, g.Nodes["researcher_1"].Status)
	assert.Equal(t, dag.StatusSucceeded, g.Nodes["synthesizer_1"].Status)
}

func TestCriticFailureDegradesReport(t *testing.T) {
	g := dag.New("run-3")
	mustNode(t, g, "researcher_1", dag.TypeResearcher, 0, map[string]string{"query": "q"})
	// No task config: the critic node fails at execution time.
	mustNode(t, g, "critic_1", dag.TypeCritic, 1, nil)
	mustNode(t, g, "synthesizer_1", dag.TypeSynthesizer, 2, map[string]string{"query": "q"})
	require.NoError(t, g.AddEdge("researcher_1", "critic_1"))
	require.NoError(t, g.AddEdge("critic_1", "synthesizer_1"))

	report, err := newExec(&fakeResearch{}).Execute(context.Background(), g)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, dag.StatusFailed, g.Nodes["critic_1"].Status)
	assert.Contains(t, report.Markdown, "No information found for this query.")
}

func TestSynthesizerFailureIsFatal(t *testing.T) {
	g := dag.New("run-4")
	mustNode(t, g, "researcher_1", dag.TypeResearcher, 0, map[string]string{"query": "q"})
	mustNode(t, g, "critic_1", dag.TypeCritic, 1, map[string]string{"task": "q"})
	// No query config: the synthesiser node fails at execution time.
	mustNode(t, g, "synthesizer_1", dag.TypeSynthesizer, 2, nil)
	require.NoError(t, g.AddEdge("researcher_1", "critic_1"))
	require.NoError(t, g.AddEdge("critic_1", "synthesizer_1"))

	_, err := newExec(&fakeResearch{}).Execute(context.Background(), g)
	require.Error(t, err)
	assert.Equal(t, hdrperr.KindInternal, hdrperr.KindOf(err))
	assert.Equal(t, dag.StatusFailed, g.Nodes["synthesizer_1"].Status)
}

func TestCancellationMarksRemainingSkipped(t *testing.T) {
	research := &fakeResearch{
		runFunc: func(ctx context.Context, node *dag.Node) ([]claims.AtomicClaim, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	exec := newExec(research)
	exec.grace = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	g := linearGraph(t)
	_, err := exec.Execute(ctx, g)
	require.Error(t, err)
	assert.Equal(t, hdrperr.KindTimeout, hdrperr.KindOf(err))

	assert.Equal(t, dag.StatusFailed, g.Nodes["researcher_1"].Status)
	assert.Equal(t, dag.StatusSkipped, g.Nodes["critic_1"].Status)
	assert.Equal(t, dag.StatusSkipped, g.Nodes["synthesizer_1"].Status)
}

func TestExecuteRejectsInvalidGraph(t *testing.T) {
	g := dag.New("run-5")
	mustNode(t, g, "researcher_1", dag.TypeResearcher, 0, map[string]string{"query": "q"})
	_, err := newExec(&fakeResearch{}).Execute(context.Background(), g)
	require.Error(t, err)
	assert.Equal(t, hdrperr.KindInvalidArgument, hdrperr.KindOf(err))
}

func TestStats(t *testing.T) {
	g := linearGraph(t)
	_, err := newExec(&fakeResearch{}).Execute(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"SUCCEEDED": 3}, Stats(g))
}
