// Package synthesizer turns verified claims into a cited markdown report.
package synthesizer

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"hdrp/internal/claims"
)

const introduction = "This report was generated by the Hierarchical Deep Research Planner (HDRP) " +
	"pipeline using structured claims with explicit source traceability."

const noResultsBody = "No information found for this query.\n\n" +
	"The research pipeline completed, but no claim survived verification. " +
	"This can happen when sources are unavailable, when extracted statements " +
	"fail the entailment checks, or when nothing retrieved was relevant to the task."

// Citation is one numbered bibliography entry.
type Citation struct {
	Number int
	URL    string
	Title  string
	Rank   int
	Claims int
}

// Report is the synthesised output plus the citation index the artefact
// writer reuses.
type Report struct {
	Title     string
	Markdown  string
	Citations []Citation
	Results   []claims.CritiqueResult // every critique, input order
	Verified  []claims.CritiqueResult
}

// Synthesizer assembles reports.
type Synthesizer struct {
	log *zap.Logger
}

// New creates a Synthesizer.
func New(log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{log: log}
}

// Synthesize builds the report for query from the critic's results. Claim
// order is preserved; citation numbers are assigned densely by first
// occurrence of each distinct source url.
func (s *Synthesizer) Synthesize(query string, results []claims.CritiqueResult) *Report {
	verified := claims.Verified(results)
	title := "HDRP Research Report: " + query

	report := &Report{
		Title:    title,
		Results:  results,
		Verified: verified,
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	sb.WriteString(introduction)
	sb.WriteString("\n\n")

	if len(verified) == 0 {
		sb.WriteString(noResultsBody)
		sb.WriteString("\n")
		report.Markdown = sb.String()
		s.log.Info("synthesized empty report", zap.String("query", query))
		return report
	}

	numberByURL := make(map[string]int)
	sb.WriteString("## Key Findings\n\n")
	for _, r := range verified {
		c := r.Claim
		n, seen := numberByURL[c.SourceURL]
		if !seen {
			n = len(report.Citations) + 1
			numberByURL[c.SourceURL] = n
			report.Citations = append(report.Citations, Citation{
				Number: n,
				URL:    c.SourceURL,
				Title:  c.SourceTitle,
				Rank:   c.SourceRank,
			})
		}
		report.Citations[n-1].Claims++
		fmt.Fprintf(&sb, "- %s [%d]\n", c.Statement, n)
	}

	sb.WriteString("\n## Bibliography\n\n")
	for _, cit := range report.Citations {
		label := cit.Title
		if label == "" {
			label = cit.URL
		}
		fmt.Fprintf(&sb, "[%d] %s — %s\n", cit.Number, label, cit.URL)
	}

	report.Markdown = sb.String()
	s.log.Info("synthesized report",
		zap.String("query", query),
		zap.Int("verified_claims", len(verified)),
		zap.Int("sources", len(report.Citations)))
	return report
}
