// Package enrich improves generated tool schemas with model-written
// descriptions. Enrichment is best-effort: any failure leaves the structural
// schema untouched.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/toolbridge/sdk-mcp/pkg/schema"
)

const defaultModel = openai.GPT4oMini

const systemPrompt = `You document SDK operations exposed as remote tools.
Given a tool name and its JSON Schema, reply with a JSON object containing:
"description" (one sentence, imperative), "param_descriptions" (object mapping
parameter names to one-line descriptions), and optionally "enums" (object
mapping parameter names to arrays of known valid values). Only describe
parameters that appear in the schema. Reply with JSON only.`

// Config configures the enrichment client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client asks a chat model for schema documentation. It implements
// schema.Enricher.
type Client struct {
	api   *openai.Client
	model string
}

// New creates an enrichment client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("enrich: API key is required")
	}
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{api: openai.NewClientWithConfig(apiCfg), model: model}, nil
}

// Enrich requests a documentation patch for one tool schema.
func (c *Client) Enrich(ctx context.Context, s *schema.ToolSchema) (*schema.Patch, error) {
	input, err := s.RawJSON()
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Tool: %s\nSchema: %s", s.Name, input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("enrich %s: %w", s.Name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("enrich %s: empty completion", s.Name)
	}

	return parsePatch(resp.Choices[0].Message.Content)
}

// parsePatch decodes the model reply, tolerating a fenced code block around
// the JSON.
func parsePatch(content string) (*schema.Patch, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var patch schema.Patch
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &patch); err != nil {
		return nil, fmt.Errorf("enrich: unparseable completion: %w", err)
	}
	return &patch, nil
}
