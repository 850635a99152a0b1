package httpserver

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/shithost/sigma-dash/internal/domain"
	apperrors "github.com/shithost/sigma-dash/internal/platform/errors"
)

func (s *Server) registerDashboardRoutes(gate echo.MiddlewareFunc) {
	s.echo.GET("/dashboard", s.handleDashboard, s.requireAuth, gate)
	s.echo.GET("/servers", s.handleServers, s.requireAuth, gate)
	s.echo.GET("/store", s.handleStore, s.requireAuth, gate)
	s.echo.GET("/earn", s.handleEarn, s.requireAuth, gate)
	s.echo.GET("/account", s.handleAccount, s.requireAuth, gate)
}

// viewData is the common template data of every authenticated page.
func (s *Server) viewData(identity domain.Identity, record domain.UserRecord) map[string]any {
	return map[string]any{
		"HostingName": s.config.HostingName,
		"User":        identity,
		"Record":      record,
	}
}

func (s *Server) loadRecord(ctx context.Context, identityID string) (domain.UserRecord, error) {
	record, err := s.app.GetRecord(ctx, identityID)
	if err != nil {
		return domain.UserRecord{}, apperrors.InternalError("failed to load user record", err).WithField("identity_id", identityID)
	}
	return record, nil
}

func (s *Server) handleDashboard(c echo.Context) error {
	identity, _ := identityFromContext(c)

	record, err := s.loadRecord(c.Request().Context(), identity.ID)
	if err != nil {
		return err
	}

	data := s.viewData(identity, record)
	data["Flashes"] = s.consumeFlashes(c)
	return s.renderTemplate(c, "dashboard.html", data)
}

func (s *Server) handleServers(c echo.Context) error {
	identity, _ := identityFromContext(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.outboundTimeout())
	defer cancel()

	servers, err := s.app.ListServers(ctx, identity.ID)
	switch {
	case errors.Is(err, domain.ErrNoPanelAccount):
		return apperrors.ValidationError(domain.ErrNoPanelAccount.Error()).WithField("identity_id", identity.ID)
	case errors.Is(err, domain.ErrPanelUnavailable):
		return apperrors.ExternalError("failed to list servers", err).WithField("identity_id", identity.ID)
	case err != nil:
		return apperrors.InternalError("failed to list servers", err).WithField("identity_id", identity.ID)
	}

	data := map[string]any{
		"HostingName": s.config.HostingName,
		"User":        identity,
		"Servers":     servers,
	}
	return s.renderTemplate(c, "servers.html", data)
}

func (s *Server) handleStore(c echo.Context) error {
	identity, _ := identityFromContext(c)

	record, err := s.loadRecord(c.Request().Context(), identity.ID)
	if err != nil {
		return err
	}
	return s.renderTemplate(c, "store.html", s.viewData(identity, record))
}

func (s *Server) handleEarn(c echo.Context) error {
	identity, _ := identityFromContext(c)

	record, err := s.loadRecord(c.Request().Context(), identity.ID)
	if err != nil {
		return err
	}
	return s.renderTemplate(c, "earn.html", s.viewData(identity, record))
}

// handleAccount never shows the stored password: it was displayed once at creation.
func (s *Server) handleAccount(c echo.Context) error {
	identity, _ := identityFromContext(c)

	record, err := s.loadRecord(c.Request().Context(), identity.ID)
	if err != nil {
		return err
	}

	data := s.viewData(identity, record)
	data["Record"] = nil
	data["Email"] = record.Email
	data["PanelUserID"] = record.PanelUserID
	data["HasPanelAccount"] = record.HasPanelAccount()
	data["PanelURL"] = s.config.PanelURL
	return s.renderTemplate(c, "account.html", data)
}
