// Package video is a client for the hosted video-generation service. A
// generation is a long-running operation: one call starts it, then the
// operation is polled until it completes or the poll budget runs out.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"aistudio/internal/domain"
)

// Client calls the video-generation endpoint.
type Client struct {
	baseURL      string
	model        string
	httpClient   *http.Client
	pollInterval time.Duration
	maxPolls     int
}

// NewClient creates a video client for the given base URL and model.
func NewClient(baseURL, model string, pollInterval time.Duration, maxPolls int) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		model:        model,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
	}
}

type generateRequest struct {
	Prompt string         `json:"prompt"`
	Config generateConfig `json:"config"`
}

type generateConfig struct {
	DurationSeconds  int    `json:"durationSeconds"`
	AspectRatio      string `json:"aspectRatio"`
	PersonGeneration string `json:"personGeneration"`
}

type operation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Response *struct {
		GeneratedVideos []struct {
			Video struct {
				URI string `json:"uri"`
			} `json:"video"`
		} `json:"generatedVideos"`
	} `json:"response"`
}

// Generate starts a video generation and blocks until the operation
// completes, polling at the configured interval. Transient poll failures are
// retried with exponential backoff inside a single poll slot; the overall
// operation is never restarted.
func (c *Client) Generate(ctx context.Context, credential, prompt string, durationSeconds, resolution int) (string, error) {
	op, err := c.start(ctx, credential, prompt, durationSeconds)
	if err != nil {
		return "", err
	}

	polls := 0
	for !op.Done && polls < c.maxPolls {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", domain.ErrNetwork, ctx.Err())
		case <-time.After(c.pollInterval):
		}
		polls++

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 5 * time.Second
		b.MaxElapsedTime = 15 * time.Second
		err := backoff.Retry(func() error {
			next, perr := c.poll(ctx, credential, op.Name)
			if perr != nil {
				return perr
			}
			op = next
			return nil
		}, backoff.WithContext(b, ctx))
		if err != nil {
			// Keep typed kinds raised inside the retry loop; only plain
			// transport failures become network errors.
			if errors.Is(err, domain.ErrInvalidCredential) || errors.Is(err, domain.ErrRateLimited) {
				return "", err
			}
			return "", fmt.Errorf("%w: poll operation: %v", domain.ErrNetwork, err)
		}

		if op.Error != nil {
			return "", fmt.Errorf("%w: %s", domain.ErrUnknownService, op.Error.Message)
		}
	}

	if !op.Done {
		return "", fmt.Errorf("%w: video generation timed out after %d polls", domain.ErrUnknownService, polls)
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		return "", fmt.Errorf("%w: no videos in response", domain.ErrUnknownService)
	}
	uri := op.Response.GeneratedVideos[0].Video.URI
	if uri == "" {
		return "", fmt.Errorf("%w: generated video has no file", domain.ErrUnknownService)
	}
	return uri, nil
}

func (c *Client) start(ctx context.Context, credential, prompt string, durationSeconds int) (*operation, error) {
	payload, err := json.Marshal(generateRequest{
		Prompt: prompt,
		Config: generateConfig{
			DurationSeconds:  durationSeconds,
			AspectRatio:      "16:9",
			PersonGeneration: "dont_allow",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateVideos", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")

	return c.doOperation(req)
}

func (c *Client) poll(ctx context.Context, credential, name string) (*operation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	return c.doOperation(req)
}

func (c *Client) doOperation(req *http.Request) (*operation, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrInvalidCredential, resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrRateLimited, resp.Status))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %s: %s", domain.ErrUnknownService, resp.Status, strings.TrimSpace(string(body)))
	}

	var op operation
	if err := json.Unmarshal(body, &op); err != nil {
		return nil, fmt.Errorf("%w: parse operation: %v", domain.ErrUnknownService, err)
	}
	return &op, nil
}
