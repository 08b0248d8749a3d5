// Package researcher executes researcher nodes: run the node's query
// against the search provider and extract atomic claims from the hits.
package researcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hdrp/internal/claims"
	"hdrp/internal/dag"
	"hdrp/internal/hdrperr"
	"hdrp/internal/search"
)

// Researcher runs search-and-extract for one node at a time.
type Researcher struct {
	provider  search.Provider
	extractor *claims.Extractor
	timeout   time.Duration
	log       *zap.Logger
}

// New creates a Researcher.
func New(provider search.Provider, timeout time.Duration, log *zap.Logger) *Researcher {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Researcher{
		provider:  provider,
		extractor: claims.NewExtractor(),
		timeout:   timeout,
		log:       log,
	}
}

// Run executes one researcher node and returns the claims extracted from
// its search results.
func (r *Researcher) Run(ctx context.Context, node *dag.Node) ([]claims.AtomicClaim, error) {
	query := node.Config["query"]
	if query == "" {
		return nil, hdrperr.New(hdrperr.KindInvalidArgument, "researcher node %q has no query", node.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results, err := r.provider.Search(ctx, query)
	if err != nil {
		return nil, hdrperr.Wrap(hdrperr.KindExternalUnavailable, err, "search failed")
	}

	var out []claims.AtomicClaim
	for _, res := range results {
		extracted := r.extractor.Extract(res.Snippet, claims.Source{
			URL:    res.URL,
			Title:  res.Title,
			Rank:   res.Rank,
			NodeID: node.ID,
		})
		out = append(out, extracted...)
	}

	r.log.Debug("researcher node complete",
		zap.String("node", node.ID),
		zap.String("provider", r.provider.Name()),
		zap.Int("results", len(results)),
		zap.Int("claims", len(out)))
	return out, nil
}
