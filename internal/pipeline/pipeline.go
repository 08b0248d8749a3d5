// Package pipeline wires the stages together and owns the lifecycle of a
// run: validate the request, plan, execute, synthesise, persist.
package pipeline

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hdrp/internal/artifacts"
	"hdrp/internal/config"
	"hdrp/internal/critic"
	"hdrp/internal/executor"
	"hdrp/internal/hdrperr"
	"hdrp/internal/llm"
	"hdrp/internal/nli"
	"hdrp/internal/planner"
	"hdrp/internal/researcher"
	"hdrp/internal/runlog"
	"hdrp/internal/search"
	"hdrp/internal/synthesizer"
)

// maxQueryLen is the inclusive rune limit for a research query.
const maxQueryLen = 500

// ExecuteRequest is a single research run request.
type ExecuteRequest struct {
	Query    string `json:"query"`
	Provider string `json:"provider,omitempty"`
	RunID    string `json:"run_id,omitempty"`
}

// ExecuteResponse is the outcome of a run. Logical failures set Success to
// false and ErrorMessage; they are not transport errors.
type ExecuteResponse struct {
	Success      bool   `json:"success"`
	RunID        string `json:"run_id"`
	Report       string `json:"report,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RunContext carries the identity of one run through the stages.
type RunContext struct {
	RunID     string
	Query     string
	Provider  string
	StartedAt time.Time
}

// Pipeline executes research runs.
type Pipeline struct {
	cfg       *config.Config
	llmClient llm.Client
	log       *zap.Logger
}

// New creates a Pipeline. The LLM client is built from config; when the
// provider has no key the planner silently uses the linear fallback.
func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	var client llm.Client
	if cfg.LLM.APIKey != "" {
		c, err := llm.New(cfg.LLM)
		if err != nil {
			log.Warn("llm client unavailable, planner will use linear fallback", zap.Error(err))
		} else {
			client = c
		}
	}
	return &Pipeline{cfg: cfg, llmClient: client, log: log}
}

// Execute runs the full pipeline for req. It always returns a response;
// the error return is reserved for request validation problems, which the
// HTTP layer also reports with success=false.
func (p *Pipeline) Execute(ctx context.Context, req ExecuteRequest) ExecuteResponse {
	query, err := ValidateQuery(req.Query)
	if err != nil {
		return ExecuteResponse{
			Success:      false,
			RunID:        req.RunID,
			ErrorMessage: err.Error(),
		}
	}
	if err := ValidateRunID(req.RunID); err != nil {
		return ExecuteResponse{
			Success:      false,
			RunID:        req.RunID,
			ErrorMessage: err.Error(),
		}
	}

	run := RunContext{
		RunID:     req.RunID,
		Query:     query,
		Provider:  req.Provider,
		StartedAt: time.Now().UTC(),
	}
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}

	log := p.log.With(zap.String("run_id", run.RunID))

	audit, auditErr := runlog.Open(p.cfg.Run.LogsDir, run.RunID)
	if auditErr != nil {
		// The audit trail is best effort; the run proceeds without it.
		log.Warn("failed to open run log", zap.Error(auditErr))
	}
	defer audit.Close()

	audit.Event("pipeline", "run_started", map[string]any{
		"query":    query,
		"provider": run.Provider,
	})

	provider, err := search.New(run.Provider, p.cfg.Search, log)
	if err != nil {
		audit.Error("pipeline", "provider_init_failed", map[string]any{"error": err.Error()})
		return ExecuteResponse{
			Success:      false,
			RunID:        run.RunID,
			ErrorMessage: err.Error(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.RunDeadline())
	defer cancel()

	plan := planner.New(p.llmClient, p.cfg.LLMTimeout(), log).Plan(ctx, run.RunID, query)
	audit.Event("planner", "plan_ready", map[string]any{
		"method": plan.Metadata.DecompositionMethod,
		"nodes":  len(plan.Nodes),
	})

	exec := executor.New(
		researcher.New(provider, p.cfg.SearchTimeout(), log),
		critic.New(nli.NewClient(p.cfg.NLI.Endpoint, p.cfg.NLITimeout()), p.cfg.NLI, log),
		synthesizer.New(log),
		p.cfg.Run.WorkerPoolSize,
		log,
	)

	report, err := exec.Execute(ctx, plan)
	audit.Event("executor", "execution_finished", map[string]any{
		"statuses": executor.Stats(plan),
	})
	if err != nil {
		return p.failRun(audit, log, run, err)
	}

	// Artefact persistence is best effort: a full report still counts as a
	// successful run if the disk write fails.
	bundleDir, saveErr := artifacts.Save(p.cfg.Run.ArtifactsDir, run.RunID, query, report, report.Results)
	if saveErr != nil {
		audit.Error("artifacts", "bundle_write_failed", map[string]any{"error": saveErr.Error()})
		log.Warn("failed to persist artifact bundle", zap.Error(saveErr))
	} else {
		audit.Event("artifacts", "bundle_written", map[string]any{"dir": bundleDir})
	}

	audit.Event("pipeline", "run_succeeded", map[string]any{
		"verified_claims": len(report.Verified),
		"total_claims":    len(report.Results),
		"duration_ms":     time.Since(run.StartedAt).Milliseconds(),
	})
	log.Info("run succeeded",
		zap.Int("verified_claims", len(report.Verified)),
		zap.Duration("duration", time.Since(run.StartedAt)))

	return ExecuteResponse{
		Success: true,
		RunID:   run.RunID,
		Report:  report.Markdown,
	}
}

// failRun records the failure and answers with success=false. A timed-out
// run persists nothing; any other execution failure leaves a stub report
// so the bundle directory still names the run and the error.
func (p *Pipeline) failRun(audit *runlog.Log, log *zap.Logger, run RunContext, err error) ExecuteResponse {
	kind := hdrperr.KindOf(err)
	audit.Error("executor", "run_failed", map[string]any{
		"kind":  kind.String(),
		"error": err.Error(),
	})
	log.Error("run failed", zap.String("kind", kind.String()), zap.Error(err))

	if kind != hdrperr.KindTimeout {
		dir, saveErr := artifacts.SavePartial(p.cfg.Run.ArtifactsDir, run.RunID, run.Query, err.Error())
		if saveErr != nil {
			log.Warn("failed to persist partial bundle", zap.Error(saveErr))
		} else {
			audit.Event("artifacts", "partial_bundle_written", map[string]any{"dir": dir})
		}
	}

	return ExecuteResponse{
		Success:      false,
		RunID:        run.RunID,
		ErrorMessage: err.Error(),
	}
}

// ValidateRunID rejects caller-supplied run ids that are not a single
// path component; the id names the bundle directory and the log file.
func ValidateRunID(id string) error {
	if id == "" {
		return nil
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return hdrperr.New(hdrperr.KindInvalidArgument, "run_id %q must not contain path separators", id)
	}
	return nil
}

// ValidateQuery trims and bounds the research query.
func ValidateQuery(raw string) (string, error) {
	query := strings.TrimSpace(raw)
	if query == "" {
		return "", hdrperr.New(hdrperr.KindInvalidArgument, "query must not be empty")
	}
	if n := utf8.RuneCountInString(query); n > maxQueryLen {
		return "", hdrperr.New(hdrperr.KindInvalidArgument, "query is %d characters, limit is %d", n, maxQueryLen)
	}
	return query, nil
}
