package session

import (
	"sync"
	"time"

	"aistudio/internal/domain"
)

// Session represents one user's in-memory interaction context. Message and
// image sequences are append-only; insertion order is the only ordering
// guarantee. Nothing here is persisted.
type Session struct {
	ID        string
	StartTime time.Time

	mu         sync.Mutex
	credential string
	messages   []domain.Message
	images     []domain.ImageResult
	videos     []domain.VideoResult
	lastActive time.Time
	inFlight   bool
}

// Stats summarizes what a session holds.
type Stats struct {
	Messages int `json:"total_messages"`
	Chats    int `json:"chat_messages"`
	Images   int `json:"image_generations"`
	Videos   int `json:"video_generations"`
}

func newSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		StartTime:  now,
		lastActive: now,
	}
}

// SetCredential stores the validated API credential for this session only.
func (s *Session) SetCredential(credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
}

// Credential returns the session's API credential, or "" when not set.
func (s *Session) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential
}

// AppendMessage appends a chat message and returns it.
func (s *Session) AppendMessage(role domain.Role, text string) domain.Message {
	msg := domain.Message{Role: role, Text: text, Timestamp: time.Now()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.lastActive = msg.Timestamp
	return msg
}

// Messages returns a copy of the message sequence in insertion order.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AppendImage appends an image result.
func (s *Session) AppendImage(res domain.ImageResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, res)
	s.lastActive = time.Now()
}

// Images returns a copy of the image result sequence in insertion order.
func (s *Session) Images() []domain.ImageResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ImageResult, len(s.images))
	copy(out, s.images)
	return out
}

// AppendVideo appends a video result.
func (s *Session) AppendVideo(res domain.VideoResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos = append(s.videos, res)
	s.lastActive = time.Now()
}

// Videos returns a copy of the video result sequence in insertion order.
func (s *Session) Videos() []domain.VideoResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.VideoResult, len(s.videos))
	copy(out, s.videos)
	return out
}

// Clear resets all sequences to empty. The credential is kept so the user
// does not have to re-authenticate. Clearing is idempotent.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.images = nil
	s.videos = nil
	s.lastActive = time.Now()
}

// Stats returns counts of what the session holds.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Messages: len(s.messages) + len(s.images) + len(s.videos),
		Chats:    len(s.messages),
		Images:   len(s.images),
		Videos:   len(s.videos),
	}
}

// TryBegin marks the session as having an in-flight external request. It
// returns false when another request is already running; a session issues at
// most one external request at a time.
func (s *Session) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	s.lastActive = time.Now()
	return true
}

// End clears the in-flight marker.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
}

// LastActive reports the last time the session saw any activity.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
