package server

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"aistudio/internal/session"
)

type contextKey string

const sessionKey contextKey = "session"

const sessionCookie = "studio_session"

// withRecover recovers from handler panics.
func (s *Server) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered in handler",
					"panic", rec,
					"stack", string(debug.Stack()),
					"path", r.URL.Path,
				)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withLogging logs request processing time.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"user_agent", r.UserAgent(),
		)
	})
}

// withSession loads the browser's session from its cookie, creating one on
// first contact.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
		sess := s.sessions.GetOrCreate(id)
		if sess.ID != id {
			// Deployments with a server-wide key skip the auth form.
			if s.cfg.OpenAIKey != "" {
				sess.SetCredential(s.cfg.OpenAIKey)
			}
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFrom returns the session loaded by withSession.
func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey).(*session.Session)
	return sess
}

// rateLimiter keeps one token bucket per session.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *rateLimiter) allow(sessionID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.visitors[sessionID]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.visitors[sessionID] = limiter
	}
	return limiter.Allow()
}

func (rl *rateLimiter) forget(sessionID string) {
	rl.mu.Lock()
	delete(rl.visitors, sessionID)
	rl.mu.Unlock()
}

// withRateLimit enforces the per-session request rate on mutating API calls
// and on the websocket chat turn, which is a GET but drives an upstream
// completion.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.URL.Path == "/ws/chat" {
			if sess := sessionFrom(r); sess != nil && !s.limiter.allow(sess.ID) {
				s.writeError(w, r, errTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
