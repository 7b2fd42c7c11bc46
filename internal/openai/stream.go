package openai

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"aistudio/internal/domain"
)

// Stream is a lazy, finite, non-restartable sequence of text fragments.
// Recv returns io.EOF after the final fragment.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// chatStream decodes the server-sent event lines of a streaming chat
// completion into content fragments.
type chatStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newChatStream(body io.ReadCloser) *chatStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &chatStream{body: body, scanner: scanner}
}

// Recv returns the next non-empty content fragment. Chunks without content
// (role headers, finish markers) are skipped.
func (s *chatStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", fmt.Errorf("%w: parse stream chunk: %v", domain.ErrUnknownService, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	// Stream ended without a [DONE] marker.
	s.done = true
	return "", io.EOF
}

func (s *chatStream) Close() error {
	s.done = true
	return s.body.Close()
}
