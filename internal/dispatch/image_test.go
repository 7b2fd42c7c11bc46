package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"aistudio/internal/domain"
	"aistudio/internal/session"
)

func TestGenerateImageAppendsResult(t *testing.T) {
	images := &fakeImageClient{url: "https://img.example/1.png"}
	d := newTestDispatcher(t, &fakeChatClient{}, images)
	sess := newTestSession()

	result, err := d.GenerateImage(context.Background(), sess, "a lighthouse at dusk", domain.SizeSquare, domain.QualityStandard)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if result.URL != "https://img.example/1.png" {
		t.Errorf("unexpected URL: %q", result.URL)
	}
	if result.GlobalNumber != 1 {
		t.Errorf("expected global number 1, got %d", result.GlobalNumber)
	}

	stored := sess.Images()
	if len(stored) != 1 {
		t.Fatalf("expected 1 image on the session, got %d", len(stored))
	}
	if stored[0].Prompt != "a lighthouse at dusk" {
		t.Errorf("stored prompt mismatch: %q", stored[0].Prompt)
	}
}

func TestGenerateImageGlobalNumberIncrements(t *testing.T) {
	images := &fakeImageClient{url: "https://img.example/x.png"}
	d := newTestDispatcher(t, &fakeChatClient{}, images)

	a := newTestSession()
	b := newTestSession()

	r1, err := d.GenerateImage(context.Background(), a, "first", domain.SizeSquare, domain.QualityStandard)
	if err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	r2, err := d.GenerateImage(context.Background(), b, "second", domain.SizeSquare, domain.QualityStandard)
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if r2.GlobalNumber != r1.GlobalNumber+1 {
		t.Errorf("global numbering should span sessions: %d then %d", r1.GlobalNumber, r2.GlobalNumber)
	}
}

func TestGenerateImageValidation(t *testing.T) {
	images := &fakeImageClient{url: "https://img.example/x.png"}
	d := newTestDispatcher(t, &fakeChatClient{}, images)
	sess := newTestSession()

	cases := []struct {
		name    string
		prompt  string
		size    domain.ImageSize
		quality domain.ImageQuality
	}{
		{"empty prompt", "", domain.SizeSquare, domain.QualityStandard},
		{"bad size", "a cat", domain.ImageSize("640x480"), domain.QualityStandard},
		{"bad quality", "a cat", domain.SizeSquare, domain.ImageQuality("ultra")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.GenerateImage(context.Background(), sess, tc.prompt, tc.size, tc.quality)
			if !domain.IsValidation(err) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}

	if images.calls != 0 {
		t.Errorf("validation failures must not reach the network, got %d calls", images.calls)
	}
	if len(sess.Images()) != 0 {
		t.Error("failed generations must not be appended")
	}
}

func TestGenerateImageServiceFailure(t *testing.T) {
	images := &fakeImageClient{err: domain.ErrRateLimited}
	d := newTestDispatcher(t, &fakeChatClient{}, images)
	sess := newTestSession()

	_, err := d.GenerateImage(context.Background(), sess, "a cat", domain.SizeSquare, domain.QualityHD)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if len(sess.Images()) != 0 {
		t.Error("failed generation must leave the image sequence unchanged")
	}
}

func TestGenerateImageContentPolicyRejection(t *testing.T) {
	images := &fakeImageClient{err: domain.ErrContentPolicy}
	d := newTestDispatcher(t, &fakeChatClient{}, images)
	sess := newTestSession()

	_, err := d.GenerateImage(context.Background(), sess, "something disallowed", domain.SizeSquare, domain.QualityStandard)
	if !errors.Is(err, domain.ErrContentPolicy) {
		t.Fatalf("expected ErrContentPolicy, got %v", err)
	}
	if got := ErrorKind(err); got != "content_policy_rejection" {
		t.Errorf("unexpected kind: %q", got)
	}
}

type fakeVideoClient struct {
	url   string
	err   error
	calls int
}

func (f *fakeVideoClient) Generate(ctx context.Context, credential, prompt string, durationSeconds, resolution int) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func TestGenerateVideoUnconfigured(t *testing.T) {
	d := newTestDispatcher(t, &fakeChatClient{}, &fakeImageClient{})
	sess := newTestSession()

	_, err := d.GenerateVideo(context.Background(), sess, "a river", 5, 720)
	if !domain.IsValidation(err) {
		t.Fatalf("expected a validation error without a video client, got %v", err)
	}
}

func TestGenerateVideoAppendsResult(t *testing.T) {
	d := newTestDispatcher(t, &fakeChatClient{}, &fakeImageClient{})
	video := &fakeVideoClient{url: "https://video.example/v.mp4"}
	d.WithVideo(video, "server-key")
	sess := newTestSession()

	result, err := d.GenerateVideo(context.Background(), sess, "a river", 5, 720)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result.Duration != 5 || result.Resolution != 720 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(sess.Videos()) != 1 {
		t.Errorf("expected 1 video on the session, got %d", len(sess.Videos()))
	}
}

func TestGenerateVideoRequiresSessionCredential(t *testing.T) {
	d := newTestDispatcher(t, &fakeChatClient{}, &fakeImageClient{})
	video := &fakeVideoClient{url: "https://video.example/v.mp4"}
	d.WithVideo(video, "server-key")

	m := session.NewManager(0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sess := m.Create()

	_, err := d.GenerateVideo(context.Background(), sess, "a river", 5, 720)
	if err == nil {
		t.Fatal("expected an error for a session without a credential")
	}
	if !domain.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if video.calls != 0 {
		t.Error("unauthenticated session must not drive the video service")
	}
	if len(sess.Videos()) != 0 {
		t.Error("failed generation must leave the video sequence unchanged")
	}
}

func TestGenerateVideoValidation(t *testing.T) {
	d := newTestDispatcher(t, &fakeChatClient{}, &fakeImageClient{})
	video := &fakeVideoClient{url: "https://video.example/v.mp4"}
	d.WithVideo(video, "server-key")
	sess := newTestSession()

	if _, err := d.GenerateVideo(context.Background(), sess, "a river", 9, 720); !domain.IsValidation(err) {
		t.Errorf("expected a validation error for duration, got %v", err)
	}
	if _, err := d.GenerateVideo(context.Background(), sess, "a river", 5, 480); !domain.IsValidation(err) {
		t.Errorf("expected a validation error for resolution, got %v", err)
	}
	if video.calls != 0 {
		t.Errorf("validation failures must not reach the network, got %d calls", video.calls)
	}
}
