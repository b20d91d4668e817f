package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/generative-ai-go/genai"
)

const (
	maxRetries     = 3
	initialBackoff = time.Second
)

// GeminiReasoner calls a Gemini model through the generative-ai-go client
type GeminiReasoner struct {
	client      *genai.Client
	model       string
	temperature float32
	backoff     time.Duration
	log         logr.Logger
}

// NewGeminiReasoner wraps an existing client; the caller owns and closes it
func NewGeminiReasoner(client *genai.Client, model string, temperature float32, logger logr.Logger) *GeminiReasoner {
	return &GeminiReasoner{
		client:      client,
		model:       model,
		temperature: temperature,
		backoff:     initialBackoff,
		log:         logger.WithName("gemini"),
	}
}

// Generate sends the prompt, retrying with exponential backoff
func (g *GeminiReasoner) Generate(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("%w: gemini client not configured", ErrReasoningUnavailable)
	}
	return retry(ctx, g.backoff, func() (string, error) {
		return g.generateOnce(ctx, prompt)
	}, func(attempt int, err error) {
		g.log.Error(err, "gemini call failed", "attempt", attempt+1, "maxRetries", maxRetries)
	})
}

func (g *GeminiReasoner) generateOnce(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("model returned no candidates")
	}

	var out strings.Builder
	for i, candidate := range resp.Candidates {
		if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
			g.log.Info("candidate finished early", "candidate", i, "reason", candidate.FinishReason.String())
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
	}
	if out.Len() == 0 {
		return "", errors.New("model returned empty content")
	}
	return out.String(), nil
}

// retry runs fn up to maxRetries times, doubling the wait between attempts.
// Every failure ends up wrapped in ErrReasoningUnavailable.
func retry(ctx context.Context, backoff time.Duration, fn func() (string, error), onError func(int, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrReasoningUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		content, err := fn()
		if err == nil {
			return content, nil
		}
		lastErr = err
		if onError != nil {
			onError(attempt, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: failed after %d attempts: %v", ErrReasoningUnavailable, maxRetries, lastErr)
}
