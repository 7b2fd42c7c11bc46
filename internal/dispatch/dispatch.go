// Package dispatch sequences validated user requests through the hosted API
// and records the results on the session. All input validation happens here,
// before any network call.
package dispatch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"aistudio/internal/config"
	"aistudio/internal/counter"
	"aistudio/internal/domain"
	"aistudio/internal/openai"
	"aistudio/internal/telemetry"
)

// ChatClient is the slice of the API client the chat path needs.
type ChatClient interface {
	StreamChat(ctx context.Context, credential string, req openai.ChatRequest) (openai.Stream, error)
}

// ImageClient is the slice of the API client the image path needs.
type ImageClient interface {
	GenerateImage(ctx context.Context, credential string, req openai.ImageRequest) (string, error)
}

const responseCacheSize = 256

// Dispatcher validates input, calls the hosted endpoints, and appends
// results to sessions. One instance serves all sessions.
type Dispatcher struct {
	chat     ChatClient
	images   ImageClient
	counters *counter.Store
	actions  *telemetry.ActionLogger
	tracer   trace.Tracer
	cache    *lru.Cache[string, string]

	video           VideoClient
	videoCredential string
}

// New creates a dispatcher. tracer may be nil; counters and actions must not be.
func New(chat ChatClient, images ImageClient, counters *counter.Store, actions *telemetry.ActionLogger, tracer trace.Tracer) (*Dispatcher, error) {
	cache, err := lru.New[string, string](responseCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("dispatch")
	}
	return &Dispatcher{
		chat:     chat,
		images:   images,
		counters: counters,
		actions:  actions,
		tracer:   tracer,
		cache:    cache,
	}, nil
}

// cacheKey hashes the full conversation so identical histories reuse the
// identical answer.
func cacheKey(model string, temperature float64, messages []openai.ChatMessage) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%.2f|", model, temperature)
	for _, msg := range messages {
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func validatePrompt(prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if len(prompt) < config.MinPromptLength {
		return "", &domain.ValidationError{Field: "prompt", Reason: "prompt cannot be empty"}
	}
	if len(prompt) > config.MaxPromptLength {
		return "", &domain.ValidationError{
			Field:  "prompt",
			Reason: fmt.Sprintf("prompt must be less than %d characters long", config.MaxPromptLength),
		}
	}
	return prompt, nil
}
