package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"aistudio/internal/auth"
	"aistudio/internal/config"
	"aistudio/internal/dispatch"
	"aistudio/internal/domain"
)

var errTooManyRequests = fmt.Errorf("%w: too many requests", domain.ErrRateLimited)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps a typed domain error onto an HTTP status and a stable
// machine-readable kind for the UI.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrModelNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidCredential):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrContentPolicy):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrActiveRequest):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNetwork):
		status = http.StatusBadGateway
	}

	if sess := sessionFrom(r); sess != nil {
		s.actions.Error(sess.ID, dispatch.ErrorKind(err), err.Error(), map[string]any{
			"path": r.URL.Path,
		})
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: dispatch.ErrorKind(err)})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, &domain.ValidationError{Field: "body", Reason: "invalid JSON body"})
		return false
	}
	return true
}

type authRequest struct {
	APIKey string `json:"api_key"`
	Verify bool   `json:"verify"`
}

// handleAuth validates the supplied credential and binds it to the session.
// With verify=true the credential is also confirmed against the service by
// listing models.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req authRequest
	if !s.decode(w, r, &req) {
		return
	}

	var err error
	if req.Verify {
		err = auth.Verify(r.Context(), s.client, req.APIKey)
	} else {
		err = auth.Validate(req.APIKey)
	}
	s.actions.UserAction(sess.ID, r.UserAgent(), "api_key_validation", map[string]any{
		"success":    err == nil,
		"verified":   req.Verify,
		"key_prefix": auth.Redact(req.APIKey),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sess.SetCredential(strings.TrimSpace(req.APIKey))
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type imageRequest struct {
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req imageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Size == "" {
		req.Size = string(domain.SizeSquare)
	}
	if req.Quality == "" {
		req.Quality = string(domain.QualityStandard)
	}

	s.actions.UserAction(sess.ID, r.UserAgent(), "image_generation_started", map[string]any{
		"size":          req.Size,
		"quality":       req.Quality,
		"prompt_length": len(req.Prompt),
	})

	result, err := s.dispatcher.GenerateImage(r.Context(), sess, req.Prompt,
		domain.ImageSize(req.Size), domain.ImageQuality(req.Quality))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleImageDownload proxies a generated image so the browser can save it
// without hitting the hosted URL cross-origin.
func (s *Server) handleImageDownload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, r, &domain.ValidationError{Field: "url", Reason: "url is required"})
		return
	}

	// Only URLs the session actually generated may be fetched.
	var found bool
	for _, img := range sess.Images() {
		if img.URL == url {
			found = true
			break
		}
	}
	if !found {
		s.writeError(w, r, &domain.ValidationError{Field: "url", Reason: "unknown image url"})
		return
	}

	data, err := s.client.Download(r.Context(), url)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "generated_image.png"
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitizeFilename(name)))
	w.Write(data)

	s.actions.UserAction(sess.ID, r.UserAgent(), "image_downloaded", map[string]any{
		"response_size_bytes": len(data),
	})
}

type videoRequest struct {
	Prompt     string `json:"prompt"`
	Duration   int    `json:"duration_seconds"`
	Resolution int    `json:"resolution"`
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	var req videoRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Duration == 0 {
		req.Duration = config.VideoDurations[0]
	}
	if req.Resolution == 0 {
		req.Resolution = config.VideoResolutions[0]
	}

	result, err := s.dispatcher.GenerateVideo(r.Context(), sess, req.Prompt, req.Duration, req.Resolution)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleClear resets the session's sequences. Clearing twice has the same
// effect as clearing once.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Clear()
	s.enhancer.Reset(sess.ID)
	s.actions.UserAction(sess.ID, r.UserAgent(), "session_cleared", nil)
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	global, err := s.counters.Statistics()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session": sess.Stats(),
		"global":  global,
	})
}

// sanitizeFilename strips characters that are invalid in download filenames
// and bounds the length.
func sanitizeFilename(name string) string {
	const invalid = `<>:"/\|?*`
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalid, r) {
			return '_'
		}
		return r
	}, name)
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}
