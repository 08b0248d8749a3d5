// Package executor runs a research plan on a bounded worker pool. A single
// dispatcher goroutine owns all scheduling state; workers only execute
// nodes and report completions, so no lock covers the graph.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hdrp/internal/claims"
	"hdrp/internal/dag"
	"hdrp/internal/hdrperr"
	"hdrp/internal/synthesizer"
)

const (
	// DefaultWorkers is the worker pool size when none is configured.
	DefaultWorkers = 4

	// shutdownGrace is how long the dispatcher waits for inflight nodes
	// after cancellation before marking them failed.
	shutdownGrace = 2 * time.Second
)

// ResearchRunner executes researcher nodes.
type ResearchRunner interface {
	Run(ctx context.Context, node *dag.Node) ([]claims.AtomicClaim, error)
}

// CritiqueRunner verifies claims against the task.
type CritiqueRunner interface {
	Critique(ctx context.Context, task string, input []claims.AtomicClaim) []claims.CritiqueResult
}

// SynthesisRunner builds the report from critique results.
type SynthesisRunner interface {
	Synthesize(query string, results []claims.CritiqueResult) *synthesizer.Report
}

// Executor schedules and runs graph nodes.
type Executor struct {
	research ResearchRunner
	critic   CritiqueRunner
	synth    SynthesisRunner
	workers  int
	grace    time.Duration
	log      *zap.Logger
}

// New creates an Executor. workers <= 0 selects DefaultWorkers.
func New(research ResearchRunner, critic CritiqueRunner, synth SynthesisRunner, workers int, log *zap.Logger) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		research: research,
		critic:   critic,
		synth:    synth,
		workers:  workers,
		grace:    shutdownGrace,
		log:      log,
	}
}

// nodeResult is what a worker hands back for one node.
type nodeResult struct {
	claims    []claims.AtomicClaim
	critiques []claims.CritiqueResult
	report    *synthesizer.Report
	err       error
	duration  time.Duration
}

// task is a node plus the inputs the dispatcher gathered for it. Inputs
// are snapshotted at dispatch time so workers never touch shared state.
type task struct {
	node      *dag.Node
	claims    []claims.AtomicClaim
	critiques []claims.CritiqueResult
}

type completion struct {
	id  string
	res *nodeResult
}

// Execute runs the graph to completion and returns the synthesiser's
// report. Researcher failures degrade the run; a critic failure produces a
// degraded report; a synthesiser failure or cancellation fails the run.
func (e *Executor) Execute(ctx context.Context, g *dag.Graph) (*synthesizer.Report, error) {
	if err := g.Validate(); err != nil {
		return nil, hdrperr.Wrap(hdrperr.KindInvalidArgument, err, "invalid graph")
	}

	total := len(g.Nodes)
	tasks := make(chan *task, total)
	completions := make(chan completion, total)

	eg, workerCtx := errgroup.WithContext(ctx)
	for i := 0; i < e.workers; i++ {
		eg.Go(func() error {
			return e.worker(workerCtx, tasks, completions)
		})
	}

	results := make(map[string]*nodeResult, total)
	indegree := g.Indegrees()
	var ready []string
	for _, id := range g.Order() {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	pending := total
	inflight := 0
	var fatal error

loop:
	for pending > 0 {
		// The deadline wins over any completion that raced it: nothing new
		// is dispatched once the context is done.
		if ctxErr := ctx.Err(); ctxErr != nil {
			close(tasks)
			e.drainWithGrace(g, completions, inflight, results)
			eg.Wait()
			return nil, hdrperr.Wrap(hdrperr.KindTimeout, ctxErr, "run cancelled")
		}

		for len(ready) > 0 {
			id := ready[0]
			ready = ready[1:]
			node := g.Nodes[id]
			g.SetStatus(id, dag.StatusRunning)
			tasks <- e.buildTask(g, node, results)
			inflight++
		}

		select {
		case c := <-completions:
			pending--
			inflight--
			results[c.id] = c.res
			node := g.Nodes[c.id]

			if c.res.err != nil {
				g.SetStatus(c.id, dag.StatusFailed)
				e.log.Warn("node failed",
					zap.String("node", c.id),
					zap.String("type", string(node.Type)),
					zap.Duration("duration", c.res.duration),
					zap.Error(c.res.err))
				if node.Type == dag.TypeSynthesizer {
					fatal = hdrperr.Wrap(hdrperr.KindInternal, c.res.err, "synthesizer failed")
					break loop
				}
			} else {
				g.SetStatus(c.id, dag.StatusSucceeded)
				e.log.Debug("node succeeded",
					zap.String("node", c.id),
					zap.String("type", string(node.Type)),
					zap.Duration("duration", c.res.duration))
			}

			for _, child := range g.Children(c.id) {
				indegree[child]--
				if indegree[child] == 0 {
					ready = append(ready, child)
				}
			}

		case <-ctx.Done():
			// Handled at the top of the next iteration.
		}
	}

	close(tasks)
	eg.Wait()

	if fatal != nil {
		return nil, fatal
	}
	return e.extractReport(g, results)
}

// buildTask snapshots the inputs a node needs from its parents' results.
func (e *Executor) buildTask(g *dag.Graph, node *dag.Node, results map[string]*nodeResult) *task {
	t := &task{node: node}
	switch node.Type {
	case dag.TypeCritic:
		for _, parent := range g.Parents(node.ID) {
			if res := results[parent]; res != nil && res.err == nil {
				t.claims = append(t.claims, res.claims...)
			}
		}
	case dag.TypeSynthesizer:
		for _, parent := range g.Parents(node.ID) {
			if res := results[parent]; res != nil && res.err == nil {
				t.critiques = append(t.critiques, res.critiques...)
			}
		}
	}
	return t
}

func (e *Executor) worker(ctx context.Context, tasks <-chan *task, completions chan<- completion) error {
	for t := range tasks {
		start := time.Now()
		res := e.runNode(ctx, t)
		res.duration = time.Since(start)
		select {
		case completions <- completion{id: t.node.ID, res: res}:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func (e *Executor) runNode(ctx context.Context, t *task) *nodeResult {
	switch t.node.Type {
	case dag.TypeResearcher:
		cls, err := e.research.Run(ctx, t.node)
		return &nodeResult{claims: cls, err: err}

	case dag.TypeCritic:
		taskText := t.node.Config["task"]
		if taskText == "" {
			return &nodeResult{err: hdrperr.New(hdrperr.KindInvalidArgument, "critic node %q has no task", t.node.ID)}
		}
		return &nodeResult{critiques: e.critic.Critique(ctx, taskText, t.claims)}

	case dag.TypeSynthesizer:
		query := t.node.Config["query"]
		if query == "" {
			return &nodeResult{err: hdrperr.New(hdrperr.KindInvalidArgument, "synthesizer node %q has no query", t.node.ID)}
		}
		return &nodeResult{report: e.synth.Synthesize(query, t.critiques)}

	default:
		return &nodeResult{err: hdrperr.New(hdrperr.KindInternal, "unknown node type %q", t.node.Type)}
	}
}

// drainWithGrace gives inflight workers a short window to report, then
// marks whatever is left: RUNNING nodes failed, undispatched nodes skipped.
func (e *Executor) drainWithGrace(g *dag.Graph, completions <-chan completion, inflight int, results map[string]*nodeResult) {
	deadline := time.After(e.grace)
	for inflight > 0 {
		select {
		case c := <-completions:
			inflight--
			results[c.id] = c.res
			if c.res.err != nil {
				g.SetStatus(c.id, dag.StatusFailed)
			} else {
				g.SetStatus(c.id, dag.StatusSucceeded)
			}
		case <-deadline:
			inflight = 0
		}
	}

	skipped := 0
	for _, id := range g.Order() {
		switch g.Nodes[id].Status {
		case dag.StatusRunning:
			g.SetStatus(id, dag.StatusFailed)
		case dag.StatusCreated:
			g.SetStatus(id, dag.StatusSkipped)
			skipped++
		}
	}
	e.log.Warn("run cancelled", zap.Int("skipped_nodes", skipped))
}

// extractReport finds the succeeded synthesiser node's report.
func (e *Executor) extractReport(g *dag.Graph, results map[string]*nodeResult) (*synthesizer.Report, error) {
	for _, n := range g.NodesOfType(dag.TypeSynthesizer) {
		if n.Status != dag.StatusSucceeded {
			continue
		}
		if res := results[n.ID]; res != nil && res.report != nil {
			return res.report, nil
		}
	}
	return nil, hdrperr.New(hdrperr.KindInternal, "no synthesizer produced a report")
}

// Stats summarises node outcomes for logging.
func Stats(g *dag.Graph) map[string]int {
	out := make(map[string]int)
	for _, id := range g.Order() {
		out[string(g.Nodes[id].Status)]++
	}
	return out
}
