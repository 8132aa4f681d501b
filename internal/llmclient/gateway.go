// internal/llmclient/gateway.go
package llmclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/EasyByteRu/adpilot/api/schemas"
	"github.com/EasyByteRu/adpilot/internal/config"
	"github.com/EasyByteRu/adpilot/internal/llmutil"
)

// retryBaseDelay spaces out primary retries linearly: the Nth retry waits
// N times this long.
const retryBaseDelay = 700 * time.Millisecond

// Gateway multiplexes a primary and an optional fallback model endpoint
// behind a single generation surface. The policy is fixed: retries+1 attempts
// against the primary with a linearly growing pause between them, then
// exactly one attempt against the fallback. Callers see a single aggregated
// error when everything fails.
type Gateway struct {
	primary     schemas.LLMClient
	fallback    schemas.LLMClient
	retries     int
	temperature float32
	logger      *zap.Logger
}

// NewGateway assembles a gateway from pre-built clients. fallback may be nil.
func NewGateway(primary, fallback schemas.LLMClient, cfg config.LLMConfig, logger *zap.Logger) *Gateway {
	return &Gateway{
		primary:     primary,
		fallback:    fallback,
		retries:     cfg.Retries,
		temperature: cfg.Temperature,
		logger:      logger.Named("llmclient.gateway"),
	}
}

// NewGatewayFromConfig builds Gemini clients for the configured primary and
// fallback models and wraps them in a gateway.
func NewGatewayFromConfig(cfg config.LLMConfig, logger *zap.Logger) (*Gateway, error) {
	primary, err := NewGeminiClient(cfg.PrimaryModel, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building primary client: %w", err)
	}

	var fallback schemas.LLMClient
	if cfg.FallbackModel != "" && cfg.FallbackModel != cfg.PrimaryModel {
		fb, err := NewGeminiClient(cfg.FallbackModel, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("building fallback client: %w", err)
		}
		fallback = fb
	}

	return NewGateway(primary, fallback, cfg, logger), nil
}

// GenerateText runs the retry-then-fallback policy and returns the raw model
// text. The returned error wraps the last underlying cause.
func (g *Gateway) GenerateText(ctx context.Context, prompt string, forceJSON bool) (string, error) {
	req := schemas.GenerationRequest{
		Prompt: llmutil.SafeString(prompt),
		Options: schemas.GenerationOptions{
			Temperature:     g.temperature,
			ForceJSONFormat: forceJSON,
		},
	}

	var lastErr error
	for attempt := 0; attempt <= g.retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, time.Duration(attempt)*retryBaseDelay); err != nil {
				return "", err
			}
		}
		text, err := g.primary.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		g.logger.Warn("Primary model attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", g.retries+1),
			zap.Error(err),
		)
	}

	if g.fallback != nil {
		g.logger.Info("Primary model exhausted, trying fallback")
		text, err := g.fallback.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		g.logger.Warn("Fallback model attempt failed", zap.Error(err))
	}

	return "", fmt.Errorf("all model endpoints failed: %w", lastErr)
}

// GenerateJSON generates text and extracts the first JSON container from it.
// A response with no parseable JSON returns (nil, nil): malformed model
// output is an expected outcome the caller normalizes, not an error.
// Transport-level failure still returns an error.
func (g *Gateway) GenerateJSON(ctx context.Context, prompt string) (any, error) {
	text, err := g.GenerateText(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	v := llmutil.ExtractFirstJSON(text)
	if v == nil {
		g.logger.Warn("Model response contained no parseable JSON",
			zap.Int("response_len", len(text)),
		)
	}
	return v, nil
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
