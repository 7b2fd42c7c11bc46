package dispatch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"aistudio/internal/auth"
	"aistudio/internal/config"
	"aistudio/internal/domain"
	"aistudio/internal/session"
)

// VideoClient is the slice of the video client the dispatcher needs.
type VideoClient interface {
	Generate(ctx context.Context, credential, prompt string, durationSeconds, resolution int) (string, error)
}

// WithVideo attaches a video client. Video generation is optional; without
// it GenerateVideo rejects requests.
func (d *Dispatcher) WithVideo(client VideoClient, credential string) {
	d.video = client
	d.videoCredential = credential
}

// GenerateVideo runs one video generation. Video uses a separate,
// server-configured credential; sessions still gate on their own credential
// being valid so unauthenticated users cannot drive it.
func (d *Dispatcher) GenerateVideo(ctx context.Context, sess *session.Session, prompt string, durationSeconds, resolution int) (*domain.VideoResult, error) {
	if d.video == nil || d.videoCredential == "" {
		return nil, &domain.ValidationError{Field: "video", Reason: "video generation is not configured"}
	}
	prompt, err := validatePrompt(prompt)
	if err != nil {
		return nil, err
	}
	if !config.IsVideoDuration(durationSeconds) {
		return nil, &domain.ValidationError{Field: "duration", Reason: "unsupported video duration"}
	}
	if !config.IsVideoResolution(resolution) {
		return nil, &domain.ValidationError{Field: "resolution", Reason: "unsupported video resolution"}
	}
	if err := auth.Validate(sess.Credential()); err != nil {
		return nil, err
	}

	if !sess.TryBegin() {
		return nil, domain.ErrActiveRequest
	}
	defer sess.End()

	ctx, span := d.tracer.Start(ctx, "video_api_call")
	span.SetAttributes(
		attribute.String("video.model", config.VideoModel),
		attribute.Int("video.duration_seconds", durationSeconds),
	)
	defer span.End()

	start := time.Now()
	url, err := d.video.Generate(ctx, d.videoCredential, prompt, durationSeconds, resolution)
	d.actions.APICall(ctx, sess.ID, "veo", config.VideoModel, len(prompt), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	count, cerr := d.counters.IncrementVideos(durationSeconds)
	if cerr != nil {
		d.actions.Error(sess.ID, "counter_error", cerr.Error(), map[string]any{"counter": "videos"})
	}

	result := domain.VideoResult{
		Prompt:     prompt,
		URL:        url,
		Duration:   durationSeconds,
		Resolution: resolution,
		Timestamp:  time.Now(),
	}
	sess.AppendVideo(result)

	d.actions.UserAction(sess.ID, "", "video_generated", map[string]any{
		"model":              config.VideoModel,
		"duration_seconds":   durationSeconds,
		"resolution":         resolution,
		"prompt_length":      len(prompt),
		"global_video_count": count,
	})

	return &result, nil
}
