// Package openai is a thin client for the hosted text-generation and
// image-generation endpoints. Service failures are mapped onto the typed
// errors in the domain package so callers never inspect HTTP statuses.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aistudio/internal/domain"
)

// Client calls the hosted API. The credential is supplied per call because
// each session carries its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path, credential string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Complete performs a single non-streaming chat completion.
func (c *Client) Complete(ctx context.Context, credential string, chatReq ChatRequest) (string, domain.Usage, error) {
	chatReq.Stream = false
	req, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", credential, chatReq)
	if err != nil {
		return "", domain.Usage{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.Usage{}, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.Usage{}, mapStatusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.Usage{}, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", domain.Usage{}, fmt.Errorf("%w: parse response: %v", domain.ErrUnknownService, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", domain.Usage{}, fmt.Errorf("%w: empty response", domain.ErrUnknownService)
	}
	return chatResp.Choices[0].Message.Content, chatResp.Usage, nil
}

// StreamChat starts a streaming chat completion and returns the fragment
// stream. The caller must drain or close the stream.
func (c *Client) StreamChat(ctx context.Context, credential string, chatReq ChatRequest) (Stream, error) {
	chatReq.Stream = true
	req, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", credential, chatReq)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, mapStatusError(resp)
	}
	return newChatStream(resp.Body), nil
}

// GenerateImage performs a single synchronous image generation and returns
// the hosted URL of the result.
func (c *Client) GenerateImage(ctx context.Context, credential string, imgReq ImageRequest) (string, error) {
	if imgReq.N == 0 {
		imgReq.N = 1
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/images/generations", credential, imgReq)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", mapStatusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	var imgResp ImageResponse
	if err := json.Unmarshal(body, &imgResp); err != nil {
		return "", fmt.Errorf("%w: parse response: %v", domain.ErrUnknownService, err)
	}
	if len(imgResp.Data) == 0 || imgResp.Data[0].URL == "" {
		return "", fmt.Errorf("%w: no image in response", domain.ErrUnknownService)
	}
	return imgResp.Data[0].URL, nil
}

// ListModels returns the model IDs visible to the credential. Used for
// remote credential verification.
func (c *Client) ListModels(ctx context.Context, credential string) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/models", credential, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, mapStatusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	var models modelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", domain.ErrUnknownService, err)
	}
	ids := make([]string, len(models.Data))
	for i, m := range models.Data {
		ids[i] = m.ID
	}
	return ids, nil
}

// Download fetches generated content (an image URL) for the browser's
// download button.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download status %s", domain.ErrUnknownService, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// mapStatusError converts a non-200 response into a typed domain error,
// keeping the service's own message for the UI.
func mapStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope apiError
	_ = json.Unmarshal(body, &envelope)
	msg := envelope.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrInvalidCredential, msg)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case isContentPolicy(resp.StatusCode, envelope):
		return fmt.Errorf("%w: %s", domain.ErrContentPolicy, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", domain.ErrUnknownService, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrUnknownService, resp.StatusCode, msg)
	}
}

func isContentPolicy(status int, envelope apiError) bool {
	if status != http.StatusBadRequest {
		return false
	}
	return envelope.Error.Code == "content_policy_violation" ||
		strings.Contains(strings.ToLower(envelope.Error.Message), "content policy")
}
