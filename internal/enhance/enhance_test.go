package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"aistudio/internal/counter"
	"aistudio/internal/domain"
	"aistudio/internal/openai"
	"aistudio/internal/telemetry"
)

const testCredential = "sk-test0000000000000000000000"

type fakeCompleter struct {
	response string
	err      error
	calls    int
	lastReq  openai.ChatRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, credential string, req openai.ChatRequest) (string, domain.Usage, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", domain.Usage{}, f.err
	}
	return f.response, domain.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}, nil
}

func newTestService(t *testing.T, client CompleteClient) *Service {
	t.Helper()
	store, err := counter.Open(filepath.Join(t.TempDir(), "counters.db"))
	if err != nil {
		t.Fatalf("open counter store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	actions := telemetry.NewActionLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	return NewService(client, store, actions)
}

func TestStagesAreInFixedOrder(t *testing.T) {
	want := []string{"concept", "mood", "subjects", "visual", "polish"}
	if len(Stages) != len(want) {
		t.Fatalf("expected %d stages, got %d", len(want), len(Stages))
	}
	for i, key := range want {
		if Stages[i].Key != key {
			t.Errorf("stage %d: got %q, want %q", i, Stages[i].Key, key)
		}
	}
}

func TestStartRequiresIdea(t *testing.T) {
	svc := newTestService(t, &fakeCompleter{})
	if _, err := svc.Start("s1", "   "); !domain.IsValidation(err) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestAdvanceThroughAllStages(t *testing.T) {
	svc := newTestService(t, &fakeCompleter{})
	if _, err := svc.Start("s1", "a drone shot over a fjord"); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	for i := range Stages {
		done, err := svc.Advance("s1", "input for "+Stages[i].Key)
		if err != nil {
			t.Fatalf("advance at stage %d failed: %v", i, err)
		}
		wantDone := i == len(Stages)-1
		if done != wantDone {
			t.Errorf("stage %d: done=%v, want %v", i, done, wantDone)
		}
	}

	flow, err := svc.Get("s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	for _, stage := range Stages {
		if flow.StagesData[stage.Key] == "" {
			t.Errorf("missing data for stage %q", stage.Key)
		}
	}
}

func TestBackStepsToPreviousStage(t *testing.T) {
	svc := newTestService(t, &fakeCompleter{})
	if _, err := svc.Start("s1", "idea"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Advance("s1", "concept input"); err != nil {
		t.Fatal(err)
	}

	if err := svc.Back("s1"); err != nil {
		t.Fatalf("back failed: %v", err)
	}
	stage, err := svc.CurrentStage("s1")
	if err != nil {
		t.Fatal(err)
	}
	if stage.Key != "concept" {
		t.Errorf("expected concept after back, got %q", stage.Key)
	}

	// Back at the first stage stays put.
	if err := svc.Back("s1"); err != nil {
		t.Fatalf("back at first stage failed: %v", err)
	}
}

func TestSuggestUsesStageContext(t *testing.T) {
	client := &fakeCompleter{response: "try a slow dolly-in at golden hour"}
	svc := newTestService(t, client)
	if _, err := svc.Start("s1", "idea"); err != nil {
		t.Fatal(err)
	}

	suggestion, err := svc.Suggest(context.Background(), testCredential, "s1", "something cinematic")
	if err != nil {
		t.Fatalf("suggest failed: %v", err)
	}
	if suggestion != "try a slow dolly-in at golden hour" {
		t.Errorf("unexpected suggestion %q", suggestion)
	}
	if client.lastReq.MaxTokens != 300 {
		t.Errorf("expected 300 max tokens, got %d", client.lastReq.MaxTokens)
	}
	if !strings.Contains(client.lastReq.Messages[0].Content, Stages[0].Title) {
		t.Error("system prompt should name the current stage")
	}
}

func TestSuggestRejectsBadCredential(t *testing.T) {
	client := &fakeCompleter{response: "x"}
	svc := newTestService(t, client)
	if _, err := svc.Start("s1", "idea"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Suggest(context.Background(), "bad", "s1", "input")
	if !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if client.calls != 0 {
		t.Error("bad credential must not reach the network")
	}
}

func TestFinalizeSetsFinalPrompt(t *testing.T) {
	client := &fakeCompleter{response: "  A sweeping aerial shot...  "}
	svc := newTestService(t, client)
	if _, err := svc.Start("s1", "idea"); err != nil {
		t.Fatal(err)
	}
	for range Stages {
		if _, err := svc.Advance("s1", "input"); err != nil {
			t.Fatal(err)
		}
	}

	final, err := svc.Finalize(context.Background(), testCredential, "s1")
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if final != "A sweeping aerial shot..." {
		t.Errorf("expected trimmed prompt, got %q", final)
	}
	if client.lastReq.MaxTokens != 400 {
		t.Errorf("expected 400 max tokens, got %d", client.lastReq.MaxTokens)
	}

	flow, _ := svc.Get("s1")
	if flow.FinalPrompt != final {
		t.Errorf("flow should store the final prompt, got %q", flow.FinalPrompt)
	}
}

func TestExportContainsFlowAndStages(t *testing.T) {
	svc := newTestService(t, &fakeCompleter{})
	if _, err := svc.Start("s1", "idea"); err != nil {
		t.Fatal(err)
	}

	data, err := svc.Export("s1")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if snapshot.Flow.InitialIdea != "idea" {
		t.Errorf("unexpected exported idea %q", snapshot.Flow.InitialIdea)
	}
	if len(snapshot.Stages) != len(Stages) {
		t.Errorf("expected %d stages in export, got %d", len(Stages), len(snapshot.Stages))
	}
}

func TestExportConcurrentWithAdvance(t *testing.T) {
	svc := newTestService(t, &fakeCompleter{})
	if _, err := svc.Start("s1", "idea"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < len(Stages); i++ {
			if _, err := svc.Advance("s1", "input"); err != nil {
				t.Errorf("advance failed: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if _, err := svc.Export("s1"); err != nil {
				t.Errorf("export failed: %v", err)
				return
			}
		}
	}()
	wg.Wait()
}

func TestResetDiscardsFlow(t *testing.T) {
	svc := newTestService(t, &fakeCompleter{})
	if _, err := svc.Start("s1", "idea"); err != nil {
		t.Fatal(err)
	}

	svc.Reset("s1")
	if _, err := svc.Get("s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after reset, got %v", err)
	}

	// Resetting again is a no-op.
	svc.Reset("s1")
}
