package session

import (
	"fmt"
	"sync"
	"testing"

	"aistudio/internal/domain"
)

func TestAppendMessageKeepsInsertionOrder(t *testing.T) {
	s := newSession("test")
	for i := 0; i < 10; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		s.AppendMessage(role, fmt.Sprintf("message %d", i))
	}

	msgs := s.Messages()
	if len(msgs) != 10 {
		t.Fatalf("expected 10 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		want := fmt.Sprintf("message %d", i)
		if m.Text != want {
			t.Errorf("message %d: got %q, want %q", i, m.Text, want)
		}
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := newSession("test")
	s.AppendMessage(domain.RoleUser, "hello")

	msgs := s.Messages()
	msgs[0].Text = "mutated"

	if got := s.Messages()[0].Text; got != "hello" {
		t.Errorf("internal state mutated through returned slice: %q", got)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	s := newSession("test")
	s.SetCredential("sk-test-credential-0001")
	s.AppendMessage(domain.RoleUser, "hello")
	s.AppendImage(domain.ImageResult{Prompt: "a cat"})
	s.AppendVideo(domain.VideoResult{Prompt: "a dog"})

	s.Clear()
	if st := s.Stats(); st.Messages != 0 {
		t.Fatalf("expected empty session after clear, got %+v", st)
	}

	// Clearing an already-empty session is a no-op, not an error.
	s.Clear()
	if st := s.Stats(); st.Messages != 0 {
		t.Fatalf("expected empty session after second clear, got %+v", st)
	}

	if s.Credential() == "" {
		t.Error("clear must not drop the credential")
	}
}

func TestTryBeginIsExclusive(t *testing.T) {
	s := newSession("test")
	if !s.TryBegin() {
		t.Fatal("first TryBegin should succeed")
	}
	if s.TryBegin() {
		t.Fatal("second TryBegin should fail while a request is in flight")
	}
	s.End()
	if !s.TryBegin() {
		t.Fatal("TryBegin should succeed again after End")
	}
}

func TestConcurrentAppends(t *testing.T) {
	s := newSession("test")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.AppendMessage(domain.RoleUser, fmt.Sprintf("m%d", i))
		}(i)
	}
	wg.Wait()

	if got := len(s.Messages()); got != 50 {
		t.Errorf("expected 50 messages, got %d", got)
	}
}

func TestStatsCounts(t *testing.T) {
	s := newSession("test")
	s.AppendMessage(domain.RoleUser, "hi")
	s.AppendMessage(domain.RoleAssistant, "hello")
	s.AppendImage(domain.ImageResult{Prompt: "sunset"})

	st := s.Stats()
	if st.Chats != 2 || st.Images != 1 || st.Videos != 0 || st.Messages != 3 {
		t.Errorf("unexpected stats: %+v", st)
	}
}
