package httpserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/shithost/sigma-dash/internal/app"
	"github.com/shithost/sigma-dash/internal/domain"
	apperrors "github.com/shithost/sigma-dash/internal/platform/errors"
)

const (
	contextKeyIdentity     = "identity"
	defaultOutboundTimeout = 10 * time.Second
)

func (s *Server) registerAuthRoutes(gate, rateLimiter echo.MiddlewareFunc) {
	s.echo.GET("/auth/:provider", s.handleAuthStart, rateLimiter, gate)
	s.echo.GET("/auth/:provider/callback", s.handleOAuthCallback, rateLimiter, gate)
}

func (s *Server) handleLanding(c echo.Context) error {
	if s.isAuthenticated(c) {
		if err := c.Redirect(http.StatusFound, "/dashboard"); err != nil {
			return fmt.Errorf("failed to redirect: %w", err)
		}
		return nil
	}
	return s.renderTemplate(c, "landing.html", map[string]any{"HostingName": s.config.HostingName})
}

// requireAuth redirects anonymous visitors to the landing page and exposes the
// session identity to the handler through identityFromContext.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, ok := s.sessionIdentity(c)
		if !ok {
			return c.Redirect(http.StatusFound, "/")
		}
		c.Set(contextKeyIdentity, identity)
		return next(c)
	}
}

// isAuthenticated is true iff an identity is attached to the session.
func (s *Server) isAuthenticated(c echo.Context) bool {
	_, ok := s.sessionIdentity(c)
	return ok
}

func (s *Server) sessionIdentity(c echo.Context) (domain.Identity, bool) {
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return domain.Identity{}, false
	}
	raw, ok := session.Values[sessionKeyIdentity].(string)
	if !ok || raw == "" {
		return domain.Identity{}, false
	}
	var identity domain.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil || identity.ID == "" {
		return domain.Identity{}, false
	}
	return identity, true
}

func identityFromContext(c echo.Context) (domain.Identity, bool) {
	identity, ok := c.Get(contextKeyIdentity).(domain.Identity)
	return identity, ok
}

func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate OAuth state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *Server) handleAuthStart(c echo.Context) error {
	provider, ok := s.providers[c.Param("provider")]
	if !ok {
		return apperrors.NotFoundError(domain.ErrUnknownProvider.Error()).WithField("provider", c.Param("provider"))
	}

	state, err := generateOAuthState()
	if err != nil {
		return apperrors.InternalError("failed to generate OAuth state", err)
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Discarding unreadable session", "error", err)
		session = s.freshSession(c.Request())
	}

	session.Values[sessionKeyOAuthState] = state
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save OAuth state session", err)
	}

	if err := c.Redirect(http.StatusFound, provider.AuthCodeURL(state)); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func (s *Server) handleOAuthCallback(c echo.Context) error {
	providerName := c.Param("provider")
	provider, ok := s.providers[providerName]
	if !ok {
		return apperrors.NotFoundError(domain.ErrUnknownProvider.Error()).WithField("provider", providerName)
	}

	// The user declined consent on the provider's screen.
	if reason := c.QueryParam("error"); reason != "" {
		slog.InfoContext(c.Request().Context(), "OAuth authorization declined", "provider", providerName, "reason", reason)
		if err := c.Redirect(http.StatusFound, "/"); err != nil {
			return fmt.Errorf("failed to redirect: %w", err)
		}
		return nil
	}

	code := c.QueryParam("code")
	if code == "" {
		return apperrors.ValidationError("missing code parameter")
	}

	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		return apperrors.ValidationError("invalid session")
	}

	expectedState, ok := session.Values[sessionKeyOAuthState].(string)
	if !ok || expectedState == "" {
		return apperrors.ValidationError("missing OAuth state")
	}
	if c.QueryParam("state") != expectedState {
		return apperrors.ValidationError("invalid OAuth state")
	}
	delete(session.Values, sessionKeyOAuthState)

	exchangeCtx, cancel := context.WithTimeout(c.Request().Context(), s.outboundTimeout())
	identity, err := provider.Exchange(exchangeCtx, code)
	cancel()
	if err != nil {
		return apperrors.ExternalError("failed to authenticate with the identity provider", err).WithField("provider", providerName)
	}

	provisionCtx, cancel := context.WithTimeout(c.Request().Context(), s.outboundTimeout())
	defer cancel()

	result, err := s.app.Provision(provisionCtx, *identity)
	if err != nil {
		return provisionError(err, identity.ID)
	}

	// Regenerate the session after login so a fixated pre-login id is never authenticated.
	session.Options.MaxAge = -1
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to invalidate old session", err)
	}

	session = s.freshSession(c.Request())

	payload, err := json.Marshal(identity)
	if err != nil {
		return apperrors.InternalError("failed to encode identity", err)
	}
	session.Values[sessionKeyIdentity] = string(payload)
	addProvisionFlash(session, result)

	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save session", err)
	}

	slog.InfoContext(c.Request().Context(), "User logged in",
		"identity_id", identity.ID, "provider", providerName, "provision_outcome", result.Outcome)

	if err := c.Redirect(http.StatusFound, "/dashboard"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func provisionError(err error, identityID string) error {
	switch {
	case errors.Is(err, domain.ErrNoEmail):
		return apperrors.ValidationError(domain.ErrNoEmail.Error()).WithField("identity_id", identityID)
	case errors.Is(err, domain.ErrPanelUnavailable):
		return apperrors.ExternalError("hosting panel is unavailable", err).WithField("identity_id", identityID)
	default:
		return apperrors.InternalError("failed to provision account", err).WithField("identity_id", identityID)
	}
}

func addProvisionFlash(session *sessions.Session, result *app.ProvisionResult) {
	switch result.Outcome {
	case app.OutcomeCreated:
		session.AddFlash("Your panel account has been created. Your password is: "+result.Password, flashSuccess)
	case app.OutcomePanelAccountExists:
		session.AddFlash("A panel account with your email address already exists. Sign in to the panel with your existing credentials.", flashInfo)
	}
}

func (s *Server) handleLogout(c echo.Context) error {
	identity, _ := s.sessionIdentity(c)

	// An unreadable session still carries its id, so the stored copy is erased too.
	session, err := s.sessionStore.Get(c.Request(), sessionName)
	if err != nil {
		slog.DebugContext(c.Request().Context(), "Logging out unreadable session", "error", err)
	}
	session.Options.MaxAge = -1

	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return apperrors.InternalError("failed to save logout session", err)
	}

	if identity.ID != "" {
		slog.InfoContext(c.Request().Context(), "User logged out", "identity_id", identity.ID)
	}

	if err := c.Redirect(http.StatusFound, "/"); err != nil {
		return fmt.Errorf("failed to redirect: %w", err)
	}
	return nil
}

func (s *Server) outboundTimeout() time.Duration {
	if s.config.OutboundTimeout > 0 {
		return s.config.OutboundTimeout
	}
	return defaultOutboundTimeout
}
