package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"aistudio/internal/auth"
	"aistudio/internal/config"
	"aistudio/internal/domain"
	"aistudio/internal/openai"
	"aistudio/internal/session"
)

// GenerateImage runs one image generation: validate, call the endpoint,
// append the ImageResult to the session. On failure the image sequence is
// unchanged.
func (d *Dispatcher) GenerateImage(ctx context.Context, sess *session.Session, prompt string, size domain.ImageSize, quality domain.ImageQuality) (*domain.ImageResult, error) {
	prompt, err := validatePrompt(prompt)
	if err != nil {
		return nil, err
	}
	if !config.IsImageSize(size) {
		return nil, &domain.ValidationError{Field: "size", Reason: "unsupported image size"}
	}
	if !config.IsImageQuality(quality) {
		return nil, &domain.ValidationError{Field: "quality", Reason: "unsupported image quality"}
	}

	credential := sess.Credential()
	if err := auth.Validate(credential); err != nil {
		return nil, err
	}

	if !sess.TryBegin() {
		return nil, domain.ErrActiveRequest
	}
	defer sess.End()

	ctx, span := d.tracer.Start(ctx, "image_api_call")
	span.SetAttributes(
		attribute.String("image.model", config.ImageModel),
		attribute.String("image.size", string(size)),
		attribute.String("image.quality", string(quality)),
	)
	defer span.End()

	start := time.Now()
	url, err := d.images.GenerateImage(ctx, credential, openai.ImageRequest{
		Model:   config.ImageModel,
		Prompt:  prompt,
		N:       1,
		Size:    string(size),
		Quality: string(quality),
	})
	d.actions.APICall(ctx, sess.ID, "dalle", config.ImageModel, len(prompt), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	number, cerr := d.counters.IncrementImages()
	if cerr != nil {
		d.actions.Error(sess.ID, "counter_error", cerr.Error(), map[string]any{"counter": "images"})
	}

	result := domain.ImageResult{
		Prompt:       prompt,
		URL:          url,
		Size:         size,
		Quality:      quality,
		GlobalNumber: number,
		Timestamp:    time.Now(),
	}
	sess.AppendImage(result)

	d.actions.UserAction(sess.ID, "", "image_generated", map[string]any{
		"model":              config.ImageModel,
		"size":               string(size),
		"quality":            string(quality),
		"prompt_length":      len(prompt),
		"global_image_count": number,
	})

	return &result, nil
}
