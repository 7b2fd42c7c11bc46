package server

import (
	"net/http"

	"aistudio/internal/config"
	"aistudio/internal/dispatch"
)

// wsChatRequest is the single request message a client sends after
// connecting.
type wsChatRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
}

// wsChatEvent is one message relayed to the client: a stream fragment, the
// final completed message, or a typed error.
type wsChatEvent struct {
	Type    string `json:"type"` // fragment | done | error
	Content string `json:"content,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message any    `json:"message,omitempty"`
}

// handleChatWS streams one chat turn over a websocket. The connection
// carries exactly one exchange; the browser reconnects per turn, which keeps
// the per-session sequential model trivially true.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade websocket", "error", err, "session_id", sess.ID)
		return
	}
	defer conn.Close()

	var req wsChatRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.logger.Warn("failed to read chat request", "error", err, "session_id", sess.ID)
		return
	}
	if req.Model == "" {
		req.Model = config.DefaultChatModel
	}
	temperature := config.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	s.actions.UserAction(sess.ID, r.UserAgent(), "chat_message_sent", map[string]any{
		"model":         req.Model,
		"temperature":   temperature,
		"prompt_length": len(req.Prompt),
	})

	result, err := s.dispatcher.Chat(r.Context(), sess, req.Model, temperature, req.Prompt, func(fragment string) {
		if werr := conn.WriteJSON(wsChatEvent{Type: "fragment", Content: fragment}); werr != nil {
			s.logger.Warn("failed to write fragment", "error", werr, "session_id", sess.ID)
		}
	})
	if err != nil {
		conn.WriteJSON(wsChatEvent{Type: "error", Kind: dispatch.ErrorKind(err), Content: err.Error()})
		return
	}

	conn.WriteJSON(wsChatEvent{Type: "done", Message: result.AssistantMessage})
}
