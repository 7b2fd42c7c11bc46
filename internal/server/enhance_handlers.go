package server

import (
	"net/http"
	"time"
)

type enhanceStartRequest struct {
	Idea string `json:"idea"`
}

func (s *Server) handleEnhanceStart(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req enhanceStartRequest
	if !s.decode(w, r, &req) {
		return
	}
	flow, err := s.enhancer.Start(sess.ID, req.Idea)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	stage, err := s.enhancer.CurrentStage(sess.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"flow": flow, "stage": stage})
}

type enhanceInputRequest struct {
	Input string `json:"input"`
}

func (s *Server) handleEnhanceSuggest(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req enhanceInputRequest
	if !s.decode(w, r, &req) {
		return
	}
	suggestion, err := s.enhancer.Suggest(r.Context(), sess.Credential(), sess.ID, req.Input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"suggestion": suggestion})
}

func (s *Server) handleEnhanceNext(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req enhanceInputRequest
	if !s.decode(w, r, &req) {
		return
	}
	done, err := s.enhancer.Advance(sess.ID, req.Input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := map[string]any{"done": done}
	if !done {
		stage, serr := s.enhancer.CurrentStage(sess.ID)
		if serr == nil {
			resp["stage"] = stage
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnhanceBack(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := s.enhancer.Back(sess.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	stage, err := s.enhancer.CurrentStage(sess.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"stage": stage})
}

func (s *Server) handleEnhanceFinal(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	finalPrompt, err := s.enhancer.Finalize(r.Context(), sess.Credential(), sess.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"final_prompt": finalPrompt})
}

func (s *Server) handleEnhanceExport(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	data, err := s.enhancer.Export(sess.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	name := "prompt_enhancement_" + time.Now().Format("20060102_150405") + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Write(data)
}

func (s *Server) handleEnhanceReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	s.enhancer.Reset(sess.ID)
	s.actions.UserAction(sess.ID, r.UserAgent(), "enhancement_reset", nil)
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
