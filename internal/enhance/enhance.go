// Package enhance refines a rough video idea into a production-ready prompt
// through a fixed sequence of guided stages, with optional AI suggestions at
// each step.
package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"aistudio/internal/auth"
	"aistudio/internal/config"
	"aistudio/internal/counter"
	"aistudio/internal/domain"
	"aistudio/internal/openai"
	"aistudio/internal/telemetry"
)

const suggestionModel = "gpt-4"

// CompleteClient is the slice of the API client the enhancer needs.
type CompleteClient interface {
	Complete(ctx context.Context, credential string, req openai.ChatRequest) (string, domain.Usage, error)
}

// HistoryEntry records one step taken in a flow.
type HistoryEntry struct {
	Action    string    `json:"action"`
	Stage     string    `json:"stage"`
	Input     string    `json:"input,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Flow is the state of one enhancement conversation. Flows live only in
// memory, keyed by session ID.
type Flow struct {
	InitialIdea string            `json:"initial_idea"`
	StageIndex  int               `json:"stage_index"`
	StagesData  map[string]string `json:"stages_data"`
	History     []HistoryEntry    `json:"iteration_history"`
	FinalPrompt string            `json:"final_prompt,omitempty"`
	StartTime   time.Time         `json:"start_time"`
}

// Snapshot is an export of a finished or in-progress flow.
type Snapshot struct {
	Flow       Flow      `json:"flow"`
	Stages     []Stage   `json:"stages"`
	ExportedAt time.Time `json:"exported_at"`
}

// Service drives enhancement flows for all sessions.
type Service struct {
	client   CompleteClient
	counters *counter.Store
	actions  *telemetry.ActionLogger

	mu    sync.Mutex
	flows map[string]*Flow
}

// NewService creates an enhancement service.
func NewService(client CompleteClient, counters *counter.Store, actions *telemetry.ActionLogger) *Service {
	return &Service{
		client:   client,
		counters: counters,
		actions:  actions,
		flows:    make(map[string]*Flow),
	}
}

// Start begins a new flow for the session, replacing any existing one.
func (s *Service) Start(sessionID, initialIdea string) (*Flow, error) {
	initialIdea = strings.TrimSpace(initialIdea)
	if initialIdea == "" {
		return nil, &domain.ValidationError{Field: "idea", Reason: "initial idea cannot be empty"}
	}
	if len(initialIdea) > config.MaxPromptLength {
		return nil, &domain.ValidationError{Field: "idea", Reason: "initial idea is too long"}
	}

	flow := &Flow{
		InitialIdea: initialIdea,
		StagesData:  map[string]string{"initial_idea": initialIdea},
		StartTime:   time.Now(),
	}
	flow.History = append(flow.History, HistoryEntry{
		Action:    "started",
		Stage:     Stages[0].Key,
		Input:     initialIdea,
		Timestamp: time.Now(),
	})

	s.mu.Lock()
	s.flows[sessionID] = flow
	s.mu.Unlock()

	s.actions.UserAction(sessionID, "", "enhancement_started", map[string]any{
		"idea_length": len(initialIdea),
	})
	return flow, nil
}

// Get returns the session's flow.
func (s *Service) Get(sessionID string) (*Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.flows[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return flow, nil
}

// CurrentStage returns the stage the flow is on.
func (s *Service) CurrentStage(sessionID string) (Stage, error) {
	flow, err := s.Get(sessionID)
	if err != nil {
		return Stage{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if flow.StageIndex >= len(Stages) {
		return Stages[len(Stages)-1], nil
	}
	return Stages[flow.StageIndex], nil
}

// Suggest asks the model to refine the user's input for the current stage.
func (s *Service) Suggest(ctx context.Context, credential, sessionID, userInput string) (string, error) {
	if err := auth.Validate(credential); err != nil {
		return "", err
	}
	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return "", &domain.ValidationError{Field: "input", Reason: "input cannot be empty"}
	}

	flow, err := s.Get(sessionID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	stage := Stages[min(flow.StageIndex, len(Stages)-1)]
	contextJSON, _ := json.Marshal(flow.StagesData)
	s.mu.Unlock()

	temperature := 0.7
	system := fmt.Sprintf(`You are a video prompt optimization expert for AI video generation.
Current stage: %s - %s

Help refine the user's input into professional video prompt language.
Focus on visual, technical, and cinematic terminology.
Be concise but descriptive. Suggest improvements while preserving the user's vision.

Previous context: %s`, stage.Title, stage.Description, contextJSON)

	start := time.Now()
	suggestion, usage, err := s.client.Complete(ctx, credential, openai.ChatRequest{
		Model: suggestionModel,
		Messages: []openai.ChatMessage{
			{Role: string(domain.RoleSystem), Content: system},
			{Role: string(domain.RoleUser), Content: fmt.Sprintf("Stage: %s\nUser input: %s\n\nPlease suggest improvements and refinements for this stage.", stage.Key, userInput)},
		},
		Temperature: &temperature,
		MaxTokens:   300,
	})
	s.actions.APICall(ctx, sessionID, "openai", suggestionModel, len(userInput), time.Since(start), err)
	if err != nil {
		return "", err
	}
	s.actions.RecordUsage(ctx, map[string]int64{
		"prompt_tokens":     int64(usage.PromptTokens),
		"completion_tokens": int64(usage.CompletionTokens),
	})

	s.record(sessionID, "suggested", stage.Key, userInput)
	return suggestion, nil
}

// Advance stores the input for the current stage and moves to the next one.
// It reports whether all stages are now complete.
func (s *Service) Advance(sessionID, input string) (bool, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false, &domain.ValidationError{Field: "input", Reason: "input cannot be empty"}
	}
	flow, err := s.Get(sessionID)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if flow.StageIndex >= len(Stages) {
		return true, nil
	}
	stage := Stages[flow.StageIndex]
	flow.StagesData[stage.Key] = input
	flow.StageIndex++
	flow.History = append(flow.History, HistoryEntry{
		Action:    "advanced",
		Stage:     stage.Key,
		Input:     input,
		Timestamp: time.Now(),
	})
	return flow.StageIndex >= len(Stages), nil
}

// Back returns to the previous stage.
func (s *Service) Back(sessionID string) error {
	flow, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if flow.StageIndex == 0 {
		return nil
	}
	flow.StageIndex--
	flow.History = append(flow.History, HistoryEntry{
		Action:    "back",
		Stage:     Stages[flow.StageIndex].Key,
		Timestamp: time.Now(),
	})
	return nil
}

// Finalize synthesizes one optimized prompt from all stage inputs.
func (s *Service) Finalize(ctx context.Context, credential, sessionID string) (string, error) {
	if err := auth.Validate(credential); err != nil {
		return "", err
	}
	flow, err := s.Get(sessionID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	refinementJSON, _ := json.MarshalIndent(flow.StagesData, "", "  ")
	s.mu.Unlock()

	temperature := 0.3
	system := `You are a video prompt optimization expert for AI video generation.

Create a single, cohesive, professional video prompt that combines all the refinement stages.
The prompt should be:
- Clear and specific
- Use professional cinematography language
- Be concise but comprehensive
- Ready for API use
- Include technical details when relevant

Return ONLY the final prompt, no explanations.`

	start := time.Now()
	finalPrompt, _, err := s.client.Complete(ctx, credential, openai.ChatRequest{
		Model: suggestionModel,
		Messages: []openai.ChatMessage{
			{Role: string(domain.RoleSystem), Content: system},
			{Role: string(domain.RoleUser), Content: "Combine these refinements into one optimized video prompt:\n\n" + string(refinementJSON)},
		},
		Temperature: &temperature,
		MaxTokens:   400,
	})
	s.actions.APICall(ctx, sessionID, "openai", suggestionModel, len(refinementJSON), time.Since(start), err)
	if err != nil {
		return "", err
	}
	finalPrompt = strings.TrimSpace(finalPrompt)

	s.mu.Lock()
	flow.FinalPrompt = finalPrompt
	flow.History = append(flow.History, HistoryEntry{
		Action:    "finalized",
		Stage:     "polish",
		Timestamp: time.Now(),
	})
	s.mu.Unlock()

	count, cerr := s.counters.IncrementEnhanced()
	if cerr != nil {
		s.actions.Error(sessionID, "counter_error", cerr.Error(), map[string]any{"counter": "enhanced"})
	}
	s.actions.UserAction(sessionID, "", "enhancement_completed", map[string]any{
		"prompt_length":         len(finalPrompt),
		"global_enhanced_count": count,
	})
	return finalPrompt, nil
}

// Export serializes the flow for download.
func (s *Service) Export(sessionID string) ([]byte, error) {
	flow, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}
	// Marshal under the lock: the snapshot shares the flow's map and slice,
	// and a concurrent Advance would race with encoding otherwise.
	s.mu.Lock()
	snapshot := Snapshot{Flow: *flow, Stages: Stages, ExportedAt: time.Now()}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Reset discards the session's flow. Resetting twice is a no-op.
func (s *Service) Reset(sessionID string) {
	s.mu.Lock()
	delete(s.flows, sessionID)
	s.mu.Unlock()
}

func (s *Service) record(sessionID, action, stage, input string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.flows[sessionID]
	if !ok {
		return
	}
	flow.History = append(flow.History, HistoryEntry{
		Action:    action,
		Stage:     stage,
		Input:     input,
		Timestamp: time.Now(),
	})
}
