package httpserver

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shithost/sigma-dash/internal/domain"
	apperrors "github.com/shithost/sigma-dash/internal/platform/errors"
)

const (
	gateAllowed = "allowed"
	gateBlocked = "blocked"
	gateError   = "error"
)

// GateObserver is told the outcome of every gated request.
type GateObserver interface {
	ObserveGateDecision(decision string)
}

// newVPNGate rejects requests whose client address the reputation service flags.
// It fails closed: a lookup error is a 500. With enabled=false it passes everything.
func newVPNGate(enabled bool, checker domain.ReputationChecker, observer GateObserver) echo.MiddlewareFunc {
	if !enabled || checker == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	observe := func(decision string) {
		if observer != nil {
			observer.ObserveGateDecision(decision)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := clientIP(c.Request())

			rep, err := checker.Check(c.Request().Context(), ip)
			if err != nil {
				observe(gateError)
				return apperrors.InternalError("unable to verify client address", err).WithField("client_ip", ip)
			}

			if rep.Flagged() {
				observe(gateBlocked)
				slog.InfoContext(c.Request().Context(), "Blocked flagged address",
					"client_ip", ip, "proxy", rep.Proxy, "vpn", rep.VPN, "tor", rep.Tor, "type", rep.Type)
				return apperrors.ForbiddenError("access through a VPN, proxy or Tor is not allowed").WithField("client_ip", ip)
			}

			observe(gateAllowed)
			return next(c)
		}
	}
}

// clientIP is the first X-Forwarded-For entry, else the connection's remote address without the port.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
