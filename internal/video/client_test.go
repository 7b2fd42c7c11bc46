package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"aistudio/internal/domain"
)

func TestGeneratePollsUntilDone(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			var req generateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad request body: %v", err)
			}
			if req.Config.DurationSeconds != 5 {
				t.Errorf("expected duration 5, got %d", req.Config.DurationSeconds)
			}
			fmt.Fprint(w, `{"name":"operations/op-1","done":false}`)
		case polls.Add(1) < 3:
			fmt.Fprint(w, `{"name":"operations/op-1","done":false}`)
		default:
			fmt.Fprint(w, `{
				"name": "operations/op-1",
				"done": true,
				"response": {"generatedVideos": [{"video": {"uri": "https://video.example/out.mp4"}}]}
			}`)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model", time.Millisecond, 10)
	uri, err := client.Generate(context.Background(), "key", "a river", 5, 720)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if uri != "https://video.example/out.mp4" {
		t.Errorf("unexpected uri %q", uri)
	}
	if polls.Load() < 3 {
		t.Errorf("expected at least 3 polls, got %d", polls.Load())
	}
}

func TestGenerateTimesOutAfterMaxPolls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"operations/op-1","done":false}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model", time.Millisecond, 3)
	_, err := client.Generate(context.Background(), "key", "a river", 5, 720)
	if !errors.Is(err, domain.ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService on poll timeout, got %v", err)
	}
}

func TestGenerateReportsOperationError(t *testing.T) {
	started := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !started {
			started = true
			fmt.Fprint(w, `{"name":"operations/op-1","done":false}`)
			return
		}
		fmt.Fprint(w, `{"name":"operations/op-1","done":true,"error":{"code":3,"message":"prompt rejected"}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model", time.Millisecond, 10)
	_, err := client.Generate(context.Background(), "key", "a river", 5, 720)
	if !errors.Is(err, domain.ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService, got %v", err)
	}
}

func TestGenerateInvalidCredentialIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-model", time.Millisecond, 10)
	_, err := client.Generate(context.Background(), "bad-key", "a river", 5, 720)
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("credential failures must not be retried, got %d calls", calls.Load())
	}
}

func TestGeneratePollFailuresKeepTypedKind(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"credential revoked mid-poll", http.StatusUnauthorized, domain.ErrInvalidCredential},
		{"rate limited mid-poll", http.StatusTooManyRequests, domain.ErrRateLimited},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			started := false
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !started {
					started = true
					fmt.Fprint(w, `{"name":"operations/op-1","done":false}`)
					return
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "test-model", time.Millisecond, 10)
			_, err := client.Generate(context.Background(), "key", "a river", 5, 720)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v from the poll path, got %v", tc.want, err)
			}
		})
	}
}

func TestGenerateCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name":"operations/op-1","done":false}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(srv.URL, "test-model", time.Hour, 10)
	_, err := client.Generate(ctx, "key", "a river", 5, 720)
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
