// Package vision invokes the external vision model spec.md §4.5 leaves
// unnamed, for the instant (per-object) OCR path. The batch path submits
// the same airlock.Prompt through Bedrock's control-plane batch-inference
// API (components/gateway/internal/batch.BedrockVendor); this package
// calls the data-plane single-invocation API instead, since a single
// receipt can't wait for a batch job to fill up.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/yorutsuke/yorutsuke/internal/core/airlock"
)

// anthropicVersion is the Bedrock Messages API envelope version Anthropic
// models on Bedrock require.
const anthropicVersion = "bedrock-2023-05-31"

// maxResponseTokens bounds the model's reply — the OCR schema is a single
// flat JSON object, never more than a few hundred tokens.
const maxResponseTokens = 1024

// Model invokes a single-image vision model and returns its raw text
// response (still fenced, still unvalidated — airlock.Parse handles that).
type Model interface {
	Describe(ctx context.Context, image []byte, contentType string) (string, error)
}

// BedrockModel implements Model against Bedrock Runtime's InvokeModel API,
// using the Anthropic Messages request/response envelope.
type BedrockModel struct {
	Client  *bedrockruntime.Client
	ModelID string
}

type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []message `json:"messages"`
}

type message struct {
	Role    string  `json:"role"`
	Content []block `json:"content"`
}

type block struct {
	Type   string  `json:"type"`
	Text   string  `json:"text,omitempty"`
	Source *source `json:"source,omitempty"`
}

type source struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Describe sends image (with contentType, e.g. "image/webp") alongside
// airlock.Prompt and returns the model's text reply.
func (m *BedrockModel) Describe(ctx context.Context, image []byte, contentType string) (string, error) {
	body := messagesRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxResponseTokens,
		Messages: []message{{
			Role: "user",
			Content: []block{
				{Type: "image", Source: &source{Type: "base64", MediaType: contentType, Data: base64.StdEncoding.EncodeToString(image)}},
				{Type: "text", Text: airlock.Prompt},
			},
		}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("vision: encode request: %w", err)
	}

	out, err := m.Client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &m.ModelID,
		Body:        payload,
		ContentType: strPtr("application/json"),
		Accept:      strPtr("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("vision: invoke model: %w", err)
	}

	var resp messagesResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("vision: decode response: %w", err)
	}

	if len(resp.Content) == 0 {
		return "", fmt.Errorf("vision: empty response content")
	}

	return resp.Content[0].Text, nil
}

func strPtr(s string) *string { return &s }
