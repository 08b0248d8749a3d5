// Package claims defines the atomic claim data model shared by the
// researcher, critic and synthesiser stages.
package claims

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AtomicClaim is a single factual statement tied to the exact source text
// that supports it. SupportText is mandatory: a claim without its supporting
// passage cannot be verified and is rejected at construction time.
type AtomicClaim struct {
	ClaimID      string    `json:"claim_id"`
	Statement    string    `json:"statement"`
	SupportText  string    `json:"support_text"`
	SourceURL    string    `json:"source_url"`
	SourceNodeID string    `json:"source_node_id"`
	SourceTitle  string    `json:"source_title,omitempty"`
	SourceRank   int       `json:"source_rank,omitempty"`
	Confidence   float64   `json:"confidence"`
	Entities     []string  `json:"discovered_entities,omitempty"`
	ExtractedAt  time.Time `json:"extracted_at"`
}

// NewClaim builds a claim with a fresh id and timestamp.
func NewClaim(statement, supportText, sourceURL, sourceNodeID string) (AtomicClaim, error) {
	c := AtomicClaim{
		ClaimID:      uuid.NewString(),
		Statement:    statement,
		SupportText:  supportText,
		SourceURL:    sourceURL,
		SourceNodeID: sourceNodeID,
		Confidence:   baseConfidence,
		ExtractedAt:  time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return AtomicClaim{}, err
	}
	return c, nil
}

// Validate enforces the structural requirements of a claim.
func (c AtomicClaim) Validate() error {
	if c.Statement == "" {
		return fmt.Errorf("claim statement must not be empty")
	}
	if c.SupportText == "" {
		return fmt.Errorf("claim %q has no support text", truncate(c.Statement, 60))
	}
	if c.SourceURL == "" {
		return fmt.Errorf("claim %q has no source url", truncate(c.Statement, 60))
	}
	return nil
}

// CritiqueResult is the verifier's verdict on one claim. Reasoning is always
// populated so rejected claims are auditable.
type CritiqueResult struct {
	Claim           AtomicClaim `json:"claim"`
	IsValid         bool        `json:"is_valid"`
	Reasoning       string      `json:"reasoning"`
	EntailmentScore float64     `json:"entailment_score"`
}

// Verified filters results down to the claims that passed verification,
// preserving order.
func Verified(results []CritiqueResult) []CritiqueResult {
	out := make([]CritiqueResult, 0, len(results))
	for _, r := range results {
		if r.IsValid {
			out = append(out, r)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
