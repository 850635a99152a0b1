package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shithost/sigma-dash/internal/platform/correlation"
	apperrors "github.com/shithost/sigma-dash/internal/platform/errors"
)

// ErrorObserver is told the type of every error rendered to a client.
type ErrorObserver interface {
	ObserveError(errorType string)
}

// errorPageFunc renders an HTML error page with the given status.
type errorPageFunc func(c echo.Context, status int, resp apperrors.ErrorResponse) error

// requestIDMiddleware assigns every request an id, echoes it in X-Request-Id and
// puts it on the request context for the correlation log handler.
func requestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:    correlation.NewID,
		TargetHeader: correlation.HeaderName,
		RequestIDHandler: func(c echo.Context, id string) {
			ctx := correlation.WithID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
		},
	})
}

// ErrorHandlingMiddleware turns handler errors into responses. Browsers get the
// HTML error page, API clients get JSON. echo.HTTPErrors pass through to the
// echo error handler so their status codes are kept.
func ErrorHandlingMiddleware(renderPage errorPageFunc, observer ErrorObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := apperrors.AsStructuredError(err)
			return writeError(c, structuredErr, structuredErr.HTTPStatus(), renderPage, observer)
		}
	}
}

func writeError(c echo.Context, err *apperrors.Error, status int, renderPage errorPageFunc, observer ErrorObserver) error {
	logError(c, err, status)
	if observer != nil {
		observer.ObserveError(string(err.Type))
	}

	if c.Response().Committed {
		return nil
	}

	resp := err.ToResponse()
	if renderPage == nil || wantsJSON(c.Request()) {
		if err := c.JSON(status, resp); err != nil {
			return fmt.Errorf("failed to write error response: %w", err)
		}
		return nil
	}
	return renderPage(c, status, resp)
}

// httpErrorHandler replaces echo's default handler for errors that escape the
// middleware chain: router 404/405 and echo.HTTPErrors.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	var structuredErr *apperrors.Error
	var httpErr *echo.HTTPError
	var status int
	switch {
	case errors.As(err, &structuredErr):
		// Middleware that reports through c.Error, e.g. the rate limiter.
		status = structuredErr.HTTPStatus()
	case errors.As(err, &httpErr):
		message, _ := httpErr.Message.(string)
		status = httpErr.Code
		structuredErr = apperrors.FromStatus(status, message, httpErr.Internal)
	default:
		status = http.StatusInternalServerError
		structuredErr = apperrors.FromStatus(status, "", err)
	}

	if werr := writeError(c, structuredErr, status, s.renderErrorPage, s.errorObserver); werr != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to write error response", "error", werr)
	}
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, echo.MIMEApplicationJSON) && !strings.Contains(accept, echo.MIMETextHTML)
}

func logError(c echo.Context, err *apperrors.Error, status int) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", status,
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if identity, ok := identityFromContext(c); ok {
		attrs = append(attrs, "identity_id", identity.ID)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeForbidden:
		slog.WarnContext(ctx, "Request refused", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeRateLimited:
		slog.WarnContext(ctx, "Rate limited", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}
