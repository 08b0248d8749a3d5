// Package critic verifies atomic claims with a two-test rule: the claim
// must be entailed by its own source text, and it must be relevant to the
// research task. NLI outages degrade to lexical overlap rather than
// failing the run.
package critic

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hdrp/internal/claims"
	"hdrp/internal/config"
	"hdrp/internal/nli"
)

// Verifier scores and filters claims.
type Verifier struct {
	scorer  nli.Scorer
	cache   *scoreCache
	cfg     config.NLIConfig
	variant string
	log     *zap.Logger
}

// New creates a Verifier. A nil scorer means every claim goes through the
// lexical fallback (or is rejected when the fallback is disabled too).
func New(scorer nli.Scorer, cfg config.NLIConfig, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		scorer:  scorer,
		cache:   newScoreCache(defaultCacheSize),
		cfg:     cfg,
		variant: cfg.DefaultVariant,
		log:     log,
	}
}

// Critique verifies each claim against the task. The result slice has
// exactly one entry per input claim, in input order.
func (v *Verifier) Critique(ctx context.Context, task string, input []claims.AtomicClaim) []claims.CritiqueResult {
	results := make([]claims.CritiqueResult, 0, len(input))
	for _, claim := range input {
		results = append(results, v.verifyClaim(ctx, task, claim))
	}

	hits, misses, rate := v.cache.stats()
	v.log.Info("critique batch complete",
		zap.Int("claims", len(input)),
		zap.Int("verified", len(claims.Verified(results))),
		zap.Int("cache_hits", hits),
		zap.Int("cache_misses", misses),
		zap.Float64("cache_hit_rate", rate))
	return results
}

func (v *Verifier) verifyClaim(ctx context.Context, task string, claim claims.AtomicClaim) claims.CritiqueResult {
	if err := claim.Validate(); err != nil {
		return claims.CritiqueResult{
			Claim:     claim,
			IsValid:   false,
			Reasoning: fmt.Sprintf("malformed claim: %v", err),
		}
	}

	// Test 1: the source text must entail the claim.
	grounded, score, reason := v.checkGrounding(ctx, claim)
	if !grounded {
		return claims.CritiqueResult{
			Claim:           claim,
			IsValid:         false,
			Reasoning:       reason,
			EntailmentScore: score,
		}
	}

	// Test 2: the claim must be relevant to the research task.
	relevant, relReason := v.checkRelevance(ctx, task, claim)
	if !relevant {
		return claims.CritiqueResult{
			Claim:           claim,
			IsValid:         false,
			Reasoning:       relReason,
			EntailmentScore: score,
		}
	}

	return claims.CritiqueResult{
		Claim:           claim,
		IsValid:         true,
		Reasoning:       reason,
		EntailmentScore: score,
	}
}

// checkGrounding runs the entailment test of support text against the
// claim statement, with the lexical fallback on NLI failure.
func (v *Verifier) checkGrounding(ctx context.Context, claim claims.AtomicClaim) (bool, float64, string) {
	rel, err := v.relation(ctx, claim.SupportText, claim.Statement)
	if err != nil {
		if v.lexicalEnabled() {
			overlap := jaccard(claim.SupportText, claim.Statement)
			if overlap >= v.cfg.LexicalOverlap {
				return true, overlap, fmt.Sprintf("nli unavailable, lexically grounded (overlap=%.2f)", overlap)
			}
			return false, overlap, fmt.Sprintf("nli unavailable, lexical overlap %.2f below %.2f", overlap, v.cfg.LexicalOverlap)
		}
		return false, 0, "verifier_unavailable"
	}

	if rel.Contradiction > v.cfg.ContradictionCeiling {
		return false, rel.Entailment, fmt.Sprintf("source text contradicts claim (contradiction=%.2f)", rel.Contradiction)
	}
	if rel.Entailment < v.cfg.GroundingEntailment {
		return false, rel.Entailment, fmt.Sprintf("claim not entailed by source text (entailment=%.2f)", rel.Entailment)
	}
	return true, rel.Entailment, fmt.Sprintf("entailed by source text (entailment=%.2f)", rel.Entailment)
}

// checkRelevance accepts a claim when NLI entailment against the task
// clears the threshold, or when plain token overlap does.
func (v *Verifier) checkRelevance(ctx context.Context, task string, claim claims.AtomicClaim) (bool, string) {
	overlap := jaccard(claim.Statement, task)
	if overlap > v.cfg.RelevanceOverlap {
		return true, fmt.Sprintf("lexically relevant to task (overlap=%.2f)", overlap)
	}

	rel, err := v.relation(ctx, claim.Statement, task)
	if err == nil && rel.Entailment >= v.cfg.RelevanceEntailment {
		return true, fmt.Sprintf("relevant to task (entailment=%.2f)", rel.Entailment)
	}
	if err != nil {
		return false, fmt.Sprintf("not relevant to task (nli unavailable, overlap=%.2f)", overlap)
	}
	return false, fmt.Sprintf("not relevant to task (entailment=%.2f, overlap=%.2f)", rel.Entailment, overlap)
}

// relation scores a pair through the cache.
func (v *Verifier) relation(ctx context.Context, premise, hypothesis string) (nli.Relation, error) {
	if v.scorer == nil {
		return nli.Relation{}, fmt.Errorf("no nli scorer configured")
	}
	if rel, ok := v.cache.get(premise, hypothesis, v.variant); ok {
		return rel, nil
	}
	rel, err := v.scorer.Score(ctx, premise, hypothesis, v.variant)
	if err != nil {
		return nli.Relation{}, err
	}
	v.cache.put(premise, hypothesis, v.variant, rel)
	return rel, nil
}

func (v *Verifier) lexicalEnabled() bool {
	return v.cfg.LexicalFallback == nil || *v.cfg.LexicalFallback
}
