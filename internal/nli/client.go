// Package nli is the client for the natural language inference service used
// to score entailment between text pairs.
package nli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hdrp/internal/hdrperr"
)

// Relation holds the three-way classification scores for a premise and
// hypothesis pair. Scores sum to roughly 1.
type Relation struct {
	Entailment    float64 `json:"entailment"`
	Contradiction float64 `json:"contradiction"`
	Neutral       float64 `json:"neutral"`
	Variant       string  `json:"variant"`
}

// Scorer is the interface the verifier depends on.
type Scorer interface {
	Score(ctx context.Context, premise, hypothesis, variant string) (Relation, error)
}

// Client talks to the NLI HTTP service.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for the service at endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type relationRequest struct {
	Premise    string `json:"premise"`
	Hypothesis string `json:"hypothesis"`
}

// Score classifies the relation between premise and hypothesis. A non-empty
// variant selects the model variant via the X-Model-Variant header; unknown
// variants are rejected by the service with HTTP 400.
func (c *Client) Score(ctx context.Context, premise, hypothesis, variant string) (Relation, error) {
	payload, err := json.Marshal(relationRequest{Premise: premise, Hypothesis: hypothesis})
	if err != nil {
		return Relation{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/relation", bytes.NewReader(payload))
	if err != nil {
		return Relation{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if variant != "" {
		req.Header.Set("X-Model-Variant", variant)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Relation{}, hdrperr.Wrap(hdrperr.KindExternalUnavailable, err, "nli request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Relation{}, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return Relation{}, hdrperr.New(hdrperr.KindInvalidArgument, "nli rejected request: %s", string(body))
	case resp.StatusCode != http.StatusOK:
		return Relation{}, hdrperr.New(hdrperr.KindExternalUnavailable, "nli returned HTTP %d", resp.StatusCode)
	}

	var rel Relation
	if err := json.Unmarshal(body, &rel); err != nil {
		return Relation{}, hdrperr.Wrap(hdrperr.KindParse, err, "nli response")
	}
	return rel, nil
}
