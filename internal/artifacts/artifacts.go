// Package artifacts persists the auditable output bundle of a run: the
// rendered report and a metadata document tying every statistic back to
// the verified claims.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"hdrp/internal/claims"
	"hdrp/internal/synthesizer"
)

const (
	systemName    = "HDRP"
	systemVersion = "1.0.0"
)

// Metadata is the machine-readable side of the bundle.
type Metadata struct {
	BundleInfo BundleInfo    `json:"bundle_info"`
	Statistics Statistics    `json:"statistics"`
	Sources    []SourceEntry `json:"sources"`
	Provenance Provenance    `json:"provenance"`
}

// BundleInfo identifies the run.
type BundleInfo struct {
	RunID       string `json:"run_id"`
	GeneratedAt string `json:"generated_at"`
	Query       string `json:"query"`
	ReportTitle string `json:"report_title"`
}

// Statistics summarises verification outcomes.
type Statistics struct {
	TotalClaims    int           `json:"total_claims"`
	VerifiedClaims int           `json:"verified_claims"`
	RejectedClaims int           `json:"rejected_claims"`
	UniqueSources  int           `json:"unique_sources"`
	Entailment     *ScoreSummary `json:"entailment,omitempty"`
}

// ScoreSummary describes the entailment score distribution of the
// verified claims.
type ScoreSummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// SourceEntry is one cited source, in citation order.
type SourceEntry struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Rank   int    `json:"rank"`
	Claims int    `json:"claims"`
}

// Provenance records what produced the bundle.
type Provenance struct {
	System              string   `json:"system"`
	Version             string   `json:"version"`
	Pipeline            []string `json:"pipeline"`
	VerificationEnabled bool     `json:"verification_enabled"`
}

// Save writes artifacts/<run_id>/report.md and metadata.json and returns
// the bundle directory.
func Save(baseDir, runID, query string, report *synthesizer.Report, results []claims.CritiqueResult) (string, error) {
	bundleDir, err := makeBundleDir(baseDir, runID)
	if err != nil {
		return "", err
	}

	reportPath := filepath.Join(bundleDir, "report.md")
	if err := os.WriteFile(reportPath, []byte(report.Markdown), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	meta := buildMetadata(runID, query, report, results)
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metaPath := filepath.Join(bundleDir, "metadata.json")
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}
	return bundleDir, nil
}

// SavePartial writes a stub report.md for a run that failed before
// synthesis completed, so the bundle still records the run id and what
// went wrong. No metadata document is produced.
func SavePartial(baseDir, runID, query, note string) (string, error) {
	bundleDir, err := makeBundleDir(baseDir, runID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# HDRP Research Report: %s\n\n", query)
	fmt.Fprintf(&sb, "Run `%s` did not complete.\n\nError: %s\n", runID, note)

	reportPath := filepath.Join(bundleDir, "report.md")
	if err := os.WriteFile(reportPath, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return bundleDir, nil
}

// makeBundleDir creates <baseDir>/<runID>. The run id names the directory
// and must be a single path component.
func makeBundleDir(baseDir, runID string) (string, error) {
	if strings.ContainsAny(runID, `/\`) || strings.Contains(runID, "..") {
		return "", fmt.Errorf("run id %q is not a valid directory name", runID)
	}
	bundleDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bundle dir: %w", err)
	}
	return bundleDir, nil
}

func buildMetadata(runID, query string, report *synthesizer.Report, results []claims.CritiqueResult) Metadata {
	verified := claims.Verified(results)

	sources := make([]SourceEntry, 0, len(report.Citations))
	for _, c := range report.Citations {
		sources = append(sources, SourceEntry{
			URL:    c.URL,
			Title:  c.Title,
			Rank:   c.Rank,
			Claims: c.Claims,
		})
	}

	return Metadata{
		BundleInfo: BundleInfo{
			RunID:       runID,
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
			Query:       query,
			ReportTitle: report.Title,
		},
		Statistics: Statistics{
			TotalClaims:    len(results),
			VerifiedClaims: len(verified),
			RejectedClaims: len(results) - len(verified),
			UniqueSources:  len(sources),
			Entailment:     summariseScores(verified),
		},
		Sources: sources,
		Provenance: Provenance{
			System:              systemName,
			Version:             systemVersion,
			Pipeline:            []string{"Planner", "Researcher", "Critic", "Synthesiser"},
			VerificationEnabled: true,
		},
	}
}

// summariseScores computes the entailment distribution of the verified
// claims; nil when there are none.
func summariseScores(verified []claims.CritiqueResult) *ScoreSummary {
	if len(verified) == 0 {
		return nil
	}
	scores := make([]float64, 0, len(verified))
	for _, r := range verified {
		scores = append(scores, r.EntailmentScore)
	}
	mean, _ := stats.Mean(scores)
	median, _ := stats.Median(scores)
	minScore, _ := stats.Min(scores)
	maxScore, _ := stats.Max(scores)
	return &ScoreSummary{Mean: mean, Median: median, Min: minScore, Max: maxScore}
}
