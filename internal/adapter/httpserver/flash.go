package httpserver

import (
	"log/slog"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
)

const (
	flashSuccess = "flash_success"
	flashInfo    = "flash_info"
)

type flashMessages struct {
	Success []string
	Info    []string
}

func (f flashMessages) Empty() bool {
	return len(f.Success) == 0 && len(f.Info) == 0
}

// consumeFlashes pops pending flash messages. They are shown exactly once, so the
// session is saved straight away; a failed save is logged and the page still renders.
func (s *Server) consumeFlashes(c echo.Context) flashMessages {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return flashMessages{}
	}

	flashes := flashMessages{
		Success: flashStrings(session, flashSuccess),
		Info:    flashStrings(session, flashInfo),
	}
	if flashes.Empty() {
		return flashes
	}

	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to save session after reading flashes", "error", err)
	}
	return flashes
}

func flashStrings(session *sessions.Session, key string) []string {
	var out []string
	for _, v := range session.Flashes(key) {
		if msg, ok := v.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}
