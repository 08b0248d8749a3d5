package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"hdrp/internal/hdrperr"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Tavily queries the Tavily search API.
type Tavily struct {
	apiKey     string
	maxResults int
	httpClient *http.Client
	log        *zap.Logger
	endpoint   string
}

// NewTavily creates the Tavily provider.
func NewTavily(apiKey string, maxResults int, httpClient *http.Client, log *zap.Logger) *Tavily {
	if maxResults <= 0 || maxResults > 20 {
		maxResults = 10
	}
	return &Tavily{
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: httpClient,
		log:        log,
		endpoint:   tavilyEndpoint,
	}
}

func (t *Tavily) Name() string { return "tavily" }

type tavilyRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search posts one search request and normalises the hits.
func (t *Tavily) Search(ctx context.Context, query string) ([]Result, error) {
	payload, err := json.Marshal(tavilyRequest{Query: query, MaxResults: t.maxResults})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, hdrperr.Wrap(hdrperr.KindExternalUnavailable, err, "tavily request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, hdrperr.New(hdrperr.KindExternalUnavailable, "tavily returned HTTP %d", resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, hdrperr.Wrap(hdrperr.KindParse, err, "tavily response")
	}

	results := make([]Result, 0, len(parsed.Results))
	for i, item := range parsed.Results {
		results = append(results, Result{
			URL:     item.URL,
			Title:   item.Title,
			Rank:    i + 1,
			Snippet: item.Content,
		})
	}
	t.log.Debug("tavily search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}
