// api/schemas/llm.go
package schemas

import "context"

// GenerationOptions tunes a single generation request.
type GenerationOptions struct {
	Temperature     float32 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
}

// GenerationRequest carries one prompt to a model endpoint. Prompts embed a
// live DOM snapshot, so requests are assumed novel and never cached.
type GenerationRequest struct {
	Prompt  string            `json:"prompt"`
	Options GenerationOptions `json:"options"`
}

// LLMClient is the minimal contract for a single model endpoint. Retry and
// fallback across endpoints belong to the gateway, not to implementations.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
