package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"hdrp/internal/hdrperr"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// Google queries the Custom Search JSON API.
type Google struct {
	apiKey     string
	cx         string
	maxResults int
	httpClient *http.Client
	log        *zap.Logger
	endpoint   string
}

// NewGoogle creates the Google provider.
func NewGoogle(apiKey, cx string, maxResults int, httpClient *http.Client, log *zap.Logger) *Google {
	if maxResults <= 0 || maxResults > 10 {
		maxResults = 10 // API page size limit
	}
	return &Google{
		apiKey:     apiKey,
		cx:         cx,
		maxResults: maxResults,
		httpClient: httpClient,
		log:        log,
		endpoint:   googleEndpoint,
	}
}

func (g *Google) Name() string { return "google" }

type googleResponse struct {
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Snippet     string `json:"snippet"`
		HTMLSnippet string `json:"htmlSnippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Search runs one Custom Search request and normalises the hits.
func (g *Google) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(g.maxResults))

	req, err := http.NewRequestWithContext(ctx, "GET", g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, hdrperr.Wrap(hdrperr.KindExternalUnavailable, err, "google search request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, hdrperr.New(hdrperr.KindExternalUnavailable, "google search returned HTTP %d", resp.StatusCode)
	}

	var parsed googleResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, hdrperr.Wrap(hdrperr.KindParse, err, "google search response")
	}
	if parsed.Error != nil {
		return nil, hdrperr.New(hdrperr.KindExternalUnavailable, "google search error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	results := make([]Result, 0, len(parsed.Items))
	for i, item := range parsed.Items {
		snippet := item.Snippet
		if item.HTMLSnippet != "" {
			snippet = htmlToText(item.HTMLSnippet)
		}
		results = append(results, Result{
			URL:     item.Link,
			Title:   item.Title,
			Rank:    i + 1,
			Snippet: snippet,
		})
	}
	g.log.Debug("google search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}
