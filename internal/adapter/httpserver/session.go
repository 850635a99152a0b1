package httpserver

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/sessions"
	"github.com/shithost/sigma-dash/internal/platform/config"
)

// Session keys
const (
	sessionName          = "sigma-session"
	sessionKeyIdentity   = "identity"
	sessionKeyOAuthState = "oauth_state"
)

// SessionOptions are the cookie attributes shared by every session store.
func SessionOptions(cfg *config.Config) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}

// newFilesystemSessionStore keeps session values on local disk. The cookie only
// carries the encrypted session id, so a flash popped once is gone for every copy of the cookie.
func newFilesystemSessionStore(cfg *config.Config) (*sessions.FilesystemStore, error) {
	if cfg.SessionDir != "" {
		if err := os.MkdirAll(cfg.SessionDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	hashKey, blockKey := cfg.SessionKeys()
	store := sessions.NewFilesystemStore(cfg.SessionDir, hashKey, blockKey)
	opts := SessionOptions(cfg)
	store.Options = &opts
	store.MaxAge(opts.MaxAge)
	return store, nil
}

// freshSession starts an empty session with a new id. Stores decode the request
// cookie in New, so the old id and any load error are discarded here.
func (s *Server) freshSession(r *http.Request) *sessions.Session {
	session, _ := s.sessionStore.New(r, sessionName)
	session.ID = ""
	session.IsNew = true
	session.Values = make(map[any]any)
	return session
}
