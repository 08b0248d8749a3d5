package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"hdrp/internal/config"
	"hdrp/internal/hdrperr"
)

// GeminiClient backs the planner with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	model := cfg.Model
	if model == "" || model == "gpt-4o-mini" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Complete maps the chat request onto a single Gemini generation. System and
// assistant turns are folded into the generation config and content list.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONOutput {
		genCfg.ResponseMIMEType = "application/json"
	}

	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			genCfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		return "", hdrperr.Wrap(hdrperr.KindExternalUnavailable, err, "gemini request failed")
	}
	text := resp.Text()
	if text == "" {
		return "", hdrperr.New(hdrperr.KindParse, "gemini returned empty response")
	}
	return text, nil
}
