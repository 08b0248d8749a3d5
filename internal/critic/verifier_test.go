package critic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hdrp/internal/claims"
	"hdrp/internal/config"
	"hdrp/internal/nli"
)

// mockScorer implements nli.Scorer for tests.
type mockScorer struct {
	scoreFunc func(ctx context.Context, premise, hypothesis, variant string) (nli.Relation, error)
	calls     int
}

func (m *mockScorer) Score(ctx context.Context, premise, hypothesis, variant string) (nli.Relation, error) {
	m.calls++
	return m.scoreFunc(ctx, premise, hypothesis, variant)
}

func testNLIConfig() config.NLIConfig {
	lexical := true
	return config.NLIConfig{
		GroundingEntailment:  0.65,
		ContradictionCeiling: 0.35,
		RelevanceEntailment:  0.45,
		RelevanceOverlap:     0.6,
		LexicalOverlap:       0.5,
		LexicalFallback:      &lexical,
	}
}

func testClaim(statement, support string) claims.AtomicClaim {
	return claims.AtomicClaim{
		ClaimID:     "c1",
		Statement:   statement,
		SupportText: support,
		SourceURL:   "https://example.com/src",
	}
}

func TestCritiqueAcceptsGroundedRelevantClaim(t *testing.T) {
	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, premise, hypothesis, variant string) (nli.Relation, error) {
			return nli.Relation{Entailment: 0.9, Contradiction: 0.05, Neutral: 0.05}, nil
		},
	}
	v := New(scorer, testNLIConfig(), zap.NewNop())

	results := v.Critique(context.Background(), "history of Go", []claims.AtomicClaim{
		testClaim("Go was released in 2009.", "The Go language was first released in November 2009."),
	})
	require.Len(t, results, 1)
	assert.True(t, results[0].IsValid)
	assert.InDelta(t, 0.9, results[0].EntailmentScore, 1e-9)
	assert.NotEmpty(t, results[0].Reasoning)
}

func TestCritiqueRejectsLowEntailment(t *testing.T) {
	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, premise, hypothesis, variant string) (nli.Relation, error) {
			return nli.Relation{Entailment: 0.4, Contradiction: 0.1}, nil
		},
	}
	v := New(scorer, testNLIConfig(), zap.NewNop())

	results := v.Critique(context.Background(), "task", []claims.AtomicClaim{
		testClaim("Unsupported claim text here.", "Unrelated source passage."),
	})
	require.Len(t, results, 1)
	assert.False(t, results[0].IsValid)
	assert.Contains(t, results[0].Reasoning, "not entailed")
}

func TestCritiqueRejectsContradiction(t *testing.T) {
	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, premise, hypothesis, variant string) (nli.Relation, error) {
			return nli.Relation{Entailment: 0.7, Contradiction: 0.6}, nil
		},
	}
	v := New(scorer, testNLIConfig(), zap.NewNop())

	results := v.Critique(context.Background(), "task", []claims.AtomicClaim{
		testClaim("A contradicted claim.", "A source that says the opposite."),
	})
	require.Len(t, results, 1)
	assert.False(t, results[0].IsValid)
	assert.Contains(t, results[0].Reasoning, "contradicts")
}

func TestCritiqueRejectsIrrelevantClaim(t *testing.T) {
	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, premise, hypothesis, variant string) (nli.Relation, error) {
			// Grounding passes, relevance entailment fails.
			if hypothesis == "quantum computing advances" {
				return nli.Relation{Entailment: 0.1}, nil
			}
			return nli.Relation{Entailment: 0.9, Contradiction: 0.05}, nil
		},
	}
	v := New(scorer, testNLIConfig(), zap.NewNop())

	results := v.Critique(context.Background(), "quantum computing advances", []claims.AtomicClaim{
		testClaim("Bananas are rich in potassium.", "Bananas contain significant potassium."),
	})
	require.Len(t, results, 1)
	assert.False(t, results[0].IsValid)
	assert.Contains(t, results[0].Reasoning, "not relevant")
}

func TestLexicalFallbackOnNLIFailure(t *testing.T) {
	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, premise, hypothesis, variant string) (nli.Relation, error) {
			return nli.Relation{}, errors.New("connection refused")
		},
	}
	v := New(scorer, testNLIConfig(), zap.NewNop())

	// Statement repeats the support text, so overlap is 1.0 and the task
	// shares enough vocabulary to pass relevance by overlap.
	claim := testClaim(
		"Quantum computers use qubits for computation.",
		"Quantum computers use qubits for computation.",
	)
	results := v.Critique(context.Background(), "quantum computers qubits computation", []claims.AtomicClaim{claim})
	require.Len(t, results, 1)
	assert.True(t, results[0].IsValid)
	assert.Contains(t, results[0].Reasoning, "lexically")
}

func TestVerifierUnavailable(t *testing.T) {
	cfg := testNLIConfig()
	lexical := false
	cfg.LexicalFallback = &lexical

	v := New(nil, cfg, zap.NewNop())
	results := v.Critique(context.Background(), "task", []claims.AtomicClaim{
		testClaim("Some claim statement here.", "Some support text here."),
	})
	require.Len(t, results, 1)
	assert.False(t, results[0].IsValid)
	assert.Equal(t, "verifier_unavailable", results[0].Reasoning)
}

func TestOnePerClaimInOrder(t *testing.T) {
	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, premise, hypothesis, variant string) (nli.Relation, error) {
			return nli.Relation{Entailment: 0.9}, nil
		},
	}
	v := New(scorer, testNLIConfig(), zap.NewNop())

	input := []claims.AtomicClaim{
		testClaim("First statement about widgets.", "First statement about widgets."),
		{ClaimID: "bad", Statement: "No support text."},
		testClaim("Third statement about widgets.", "Third statement about widgets."),
	}
	results := v.Critique(context.Background(), "widgets", input)
	require.Len(t, results, 3)
	assert.Equal(t, "First statement about widgets.", results[0].Claim.Statement)
	assert.False(t, results[1].IsValid)
	assert.Contains(t, results[1].Reasoning, "malformed")
	assert.Equal(t, "Third statement about widgets.", results[2].Claim.Statement)
}

func TestScoreCacheAvoidsRepeatCalls(t *testing.T) {
	scorer := &mockScorer{
		scoreFunc: func(ctx context.Context, premise, hypothesis, variant string) (nli.Relation, error) {
			return nli.Relation{Entailment: 0.9}, nil
		},
	}
	v := New(scorer, testNLIConfig(), zap.NewNop())

	claim := testClaim("Repeated claim statement.", "Repeated claim statement.")
	v.Critique(context.Background(), "repeated claim statement", []claims.AtomicClaim{claim, claim})

	hits, _, rate := v.cache.stats()
	assert.Greater(t, hits, 0)
	assert.Greater(t, rate, 0.0)
	// Two identical claims against the same task need at most two distinct
	// NLI pairs.
	assert.LessOrEqual(t, scorer.calls, 2)
}

func TestCacheFIFOEviction(t *testing.T) {
	c := newScoreCache(2)
	c.put("p1", "h1", "", nli.Relation{Entailment: 0.1})
	c.put("p2", "h2", "", nli.Relation{Entailment: 0.2})
	c.put("p3", "h3", "", nli.Relation{Entailment: 0.3})

	_, ok := c.get("p1", "h1", "")
	assert.False(t, ok, "oldest entry should be evicted")
	rel, ok := c.get("p3", "h3", "")
	assert.True(t, ok)
	assert.InDelta(t, 0.3, rel.Entailment, 1e-9)
}

func TestCacheKeySeparatesFields(t *testing.T) {
	// premise="a", hypothesis="b\x00c" must not collide with
	// premise="a\x00b", hypothesis="c".
	k1 := makeKey("a", "b\x00c", "")
	k2 := makeKey("a\x00b", "c", "")
	assert.NotEqual(t, k1, k2)

	k3 := makeKey("p", "h", "base")
	k4 := makeKey("p", "h", "large")
	assert.NotEqual(t, k3, k4)
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, jaccard("quantum computers use qubits", "Quantum computers use qubits."), 1e-9)
	assert.InDelta(t, 0.0, jaccard("entirely different words", "nothing shared whatsoever"), 1e-9)
	// Stop words do not count toward overlap.
	assert.InDelta(t, 0.0, jaccard("the of and", "research find identify"), 1e-9)
}
