package server

import (
	"embed"
	"html/template"
	"net/http"

	"aistudio/internal/config"
	"aistudio/internal/domain"
	"aistudio/internal/session"
)

//go:embed templates/index.html.tmpl
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))

type indexData struct {
	Authenticated bool
	SessionID     string
	Messages      []domain.Message
	Images        []domain.ImageResult
	Videos        []domain.VideoResult
	ChatModels    []string
	ImageSizes    []domain.ImageSize
	Qualities     []domain.ImageQuality
	Durations     []int
	Resolutions   []int
	Stats         session.Stats
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	sess := sessionFrom(r)

	s.actions.UserAction(sess.ID, r.UserAgent(), "page_loaded", map[string]any{
		"has_api_key":   sess.Credential() != "",
		"message_count": sess.Stats().Messages,
	})

	data := indexData{
		Authenticated: sess.Credential() != "",
		SessionID:     sess.ID,
		Messages:      sess.Messages(),
		Images:        sess.Images(),
		Videos:        sess.Videos(),
		ChatModels:    config.ChatModels,
		ImageSizes:    config.ImageSizes,
		Qualities:     config.ImageQualities,
		Durations:     config.VideoDurations,
		Resolutions:   config.VideoResolutions,
		Stats:         sess.Stats(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.logger.Error("failed to render index", "error", err)
	}
}
