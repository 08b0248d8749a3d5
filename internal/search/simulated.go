package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Simulated is the default offline provider. Results are derived
// deterministically from the query so runs are reproducible and tests never
// touch the network.
type Simulated struct {
	maxResults int
}

// NewSimulated creates the simulated provider.
func NewSimulated(maxResults int) *Simulated {
	if maxResults <= 0 || maxResults > 5 {
		maxResults = 3
	}
	return &Simulated{maxResults: maxResults}
}

func (s *Simulated) Name() string { return "simulated" }

// snippetTemplates produce declarative sentences long enough to survive
// claim extraction.
var snippetTemplates = []string{
	"Research on %s has grown steadily over the last decade. Multiple independent studies document measurable progress in %s across academic and industrial settings.",
	"A 2024 survey found that practitioners consider %s a maturing field. Funding for %s increased in most of the surveyed regions during that period.",
	"Technical reports describe the main open problems in %s in detail. The reports also list the institutions most active in %s worldwide.",
	"Standardisation efforts around %s began attracting broad industry participation. Several working groups published guidance documents covering %s practices.",
	"Long-term evaluations of %s show consistent results across replications. The evaluations compare %s against established baseline approaches.",
}

// Search returns deterministic pseudo-results for query.
func (s *Simulated) Search(_ context.Context, query string) ([]Result, error) {
	topic := strings.TrimSpace(query)
	if topic == "" {
		return nil, nil
	}

	digest := blake3.Sum256([]byte(topic))
	results := make([]Result, 0, s.maxResults)
	for i := 0; i < s.maxResults; i++ {
		tmpl := snippetTemplates[(int(digest[i])+i)%len(snippetTemplates)]
		results = append(results, Result{
			URL:     fmt.Sprintf("https://research.example.org/%x/doc-%d", digest[:4], i+1),
			Title:   fmt.Sprintf("Overview of %s (part %d)", topic, i+1),
			Rank:    i + 1,
			Snippet: fmt.Sprintf(tmpl, topic, topic),
		})
	}
	return results, nil
}
