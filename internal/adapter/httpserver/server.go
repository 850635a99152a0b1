package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/shithost/sigma-dash/internal/app"
	"github.com/shithost/sigma-dash/internal/domain"
	"github.com/shithost/sigma-dash/internal/platform/config"
	apperrors "github.com/shithost/sigma-dash/internal/platform/errors"
	"github.com/shithost/sigma-dash/web"
)

type appService interface {
	Provision(ctx context.Context, identity domain.Identity) (*app.ProvisionResult, error)
	GetRecord(ctx context.Context, identityID string) (domain.UserRecord, error)
	ListServers(ctx context.Context, identityID string) ([]domain.PanelServer, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app       appService
	providers map[string]identityProvider

	reputation   domain.ReputationChecker
	gateObserver GateObserver

	templates    *template.Template
	sessionStore sessions.Store
	healthChecks []HealthCheck
	startTime    time.Time

	httpMetrics    echo.MiddlewareFunc
	metricsHandler http.Handler
	errorObserver  ErrorObserver
}

type Option func(*Server)

// WithReputationChecker enables the VPN gate when the quota file asks for it.
func WithReputationChecker(checker domain.ReputationChecker, observer GateObserver) Option {
	return func(s *Server) {
		s.reputation = checker
		s.gateObserver = observer
	}
}

// WithMetrics installs the request metrics middleware and serves handler on /metrics.
func WithMetrics(middleware echo.MiddlewareFunc, handler http.Handler) Option {
	return func(s *Server) {
		s.httpMetrics = middleware
		s.metricsHandler = handler
	}
}

func WithErrorObserver(o ErrorObserver) Option {
	return func(s *Server) { s.errorObserver = o }
}

// WithSessionStore replaces the default filesystem session store, e.g. with a Redis-backed one.
func WithSessionStore(store sessions.Store) Option {
	return func(s *Server) { s.sessionStore = store }
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = append(s.healthChecks, checks...) }
}

func NewServer(cfg *config.Config, app appService, opts ...Option) (*Server, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:   e,
		config: cfg,
		app:    app,
		providers: map[string]identityProvider{
			providerDiscord: newDiscordOAuthClient(cfg.DiscordClientID, cfg.DiscordClientSecret, cfg.DiscordRedirectURI),
		},
		templates: templates,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	if srv.sessionStore == nil {
		store, err := newFilesystemSessionStore(cfg)
		if err != nil {
			return nil, err
		}
		srv.sessionStore = store
	}

	if err := srv.setupIPExtractor(); err != nil {
		return nil, err
	}

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port, "hosting_name", s.config.HostingName)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) renderTemplate(c echo.Context, name string, data any) error {
	return s.renderTemplateStatus(c, http.StatusOK, name, data)
}

func (s *Server) renderTemplateStatus(c echo.Context, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(c.Request().Context(), "Template execution failed", "template", name, "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(status, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}

func (s *Server) renderErrorPage(c echo.Context, status int, resp apperrors.ErrorResponse) error {
	data := map[string]any{
		"HostingName": s.config.HostingName,
		"Status":      status,
		"StatusText":  http.StatusText(status),
		"Message":     resp.Error,
	}
	return s.renderTemplateStatus(c, status, "error.html", data)
}
