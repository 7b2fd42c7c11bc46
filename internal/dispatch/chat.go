package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"aistudio/internal/auth"
	"aistudio/internal/config"
	"aistudio/internal/domain"
	"aistudio/internal/openai"
	"aistudio/internal/session"
)

// ChatResult is the outcome of one successful chat turn.
type ChatResult struct {
	UserMessage      domain.Message
	AssistantMessage domain.Message
	FromCache        bool
	GlobalChatCount  int64
}

// Chat runs one chat turn: it validates the input, streams the completion,
// and on success appends the user and assistant messages to the session in
// that order. onFragment, when non-nil, is called for each fragment as it
// arrives. On any failure the session is left unchanged; partial streamed
// text is discarded.
func (d *Dispatcher) Chat(ctx context.Context, sess *session.Session, model string, temperature float64, prompt string, onFragment func(string)) (*ChatResult, error) {
	prompt, err := validatePrompt(prompt)
	if err != nil {
		return nil, err
	}
	if !config.IsChatModel(model) {
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotFound, model)
	}
	if temperature < config.MinTemperature || temperature > config.MaxTemperature {
		return nil, &domain.ValidationError{
			Field:  "temperature",
			Reason: fmt.Sprintf("temperature must be between %.1f and %.1f", config.MinTemperature, config.MaxTemperature),
		}
	}

	credential := sess.Credential()
	if err := auth.Validate(credential); err != nil {
		return nil, err
	}

	if !sess.TryBegin() {
		return nil, domain.ErrActiveRequest
	}
	defer sess.End()

	// Conversation sent upstream: existing history plus the new prompt. The
	// session itself is updated only after the stream completes.
	history := sess.Messages()
	reqMessages := make([]openai.ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		reqMessages = append(reqMessages, openai.ChatMessage{Role: string(msg.Role), Content: msg.Text})
	}
	reqMessages = append(reqMessages, openai.ChatMessage{Role: string(domain.RoleUser), Content: prompt})

	key := cacheKey(model, temperature, reqMessages)
	if cached, ok := d.cache.Get(key); ok {
		if onFragment != nil {
			onFragment(cached)
		}
		return d.finishChat(sess, model, prompt, cached, true)
	}

	ctx, span := d.tracer.Start(ctx, "chat_api_call")
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.message_count", len(reqMessages)),
	)
	defer span.End()

	start := time.Now()
	stream, err := d.chat.StreamChat(ctx, credential, openai.ChatRequest{
		Model:       model,
		Messages:    reqMessages,
		Temperature: &temperature,
		MaxTokens:   config.MaxTokens,
	})
	if err != nil {
		d.actions.APICall(ctx, sess.ID, "openai", model, len(prompt), time.Since(start), err)
		return nil, err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		fragment, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			d.actions.APICall(ctx, sess.ID, "openai", model, len(prompt), time.Since(start), err)
			return nil, err
		}
		sb.WriteString(fragment)
		if onFragment != nil {
			onFragment(fragment)
		}
	}

	response := sb.String()
	if response == "" {
		err := fmt.Errorf("%w: empty response", domain.ErrUnknownService)
		d.actions.APICall(ctx, sess.ID, "openai", model, len(prompt), time.Since(start), err)
		return nil, err
	}

	d.actions.APICall(ctx, sess.ID, "openai", model, len(prompt), time.Since(start), nil)
	d.cache.Add(key, response)

	return d.finishChat(sess, model, prompt, response, false)
}

// finishChat appends both messages and bumps the global counter.
func (d *Dispatcher) finishChat(sess *session.Session, model, prompt, response string, fromCache bool) (*ChatResult, error) {
	userMsg := sess.AppendMessage(domain.RoleUser, prompt)
	assistantMsg := sess.AppendMessage(domain.RoleAssistant, response)

	count, err := d.counters.IncrementChats()
	if err != nil {
		// The turn itself succeeded; a counter failure is not surfaced to
		// the user.
		d.actions.Error(sess.ID, "counter_error", err.Error(), map[string]any{"counter": "chats"})
	}

	d.actions.UserAction(sess.ID, "", "chat_response_received", map[string]any{
		"model":             model,
		"response_length":   len(response),
		"from_cache":        fromCache,
		"global_chat_count": count,
	})

	return &ChatResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		FromCache:        fromCache,
		GlobalChatCount:  count,
	}, nil
}

// ErrorKind names the error category for the UI layer.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case domain.IsValidation(err):
		return "validation_error"
	case errors.Is(err, domain.ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrContentPolicy):
		return "content_policy_rejection"
	case errors.Is(err, domain.ErrNetwork):
		return "network_error"
	case errors.Is(err, domain.ErrActiveRequest):
		return "active_request"
	case errors.Is(err, domain.ErrModelNotFound):
		return "model_not_found"
	default:
		return "unknown_service_error"
	}
}
