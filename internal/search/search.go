// Package search abstracts the web search backends the researcher uses.
package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"hdrp/internal/config"
)

// Result is a single ranked search hit. Rank starts at 1.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Rank    int    `json:"rank"`
	Snippet string `json:"snippet"`
}

// Provider performs a web search.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
	Name() string
}

// New builds the named provider. An empty name selects the configured
// default.
func New(name string, cfg config.SearchConfig, log *zap.Logger) (Provider, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if name == "" {
		name = cfg.Provider
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	switch name {
	case "simulated":
		return NewSimulated(cfg.MaxResults), nil
	case "google":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("google search requires an api key")
		}
		return NewGoogle(cfg.APIKey, cfg.GoogleCX, cfg.MaxResults, httpClient, log), nil
	case "tavily":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("tavily search requires an api key")
		}
		return NewTavily(cfg.APIKey, cfg.MaxResults, httpClient, log), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", name)
	}
}
