package httpserver

import (
	"fmt"
	"net"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/shithost/sigma-dash/internal/platform/errors"
	"golang.org/x/time/rate"
)

const (
	rateLimiterExpiry = 5 * time.Minute

	authRatePerSecond = 1
	authBurst         = 10
)

// newRateLimiter limits requests per c.RealIP(). Forwarded headers only count
// when the echo IPExtractor trusts the proxy that sent them.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return apperrors.RateLimitedError("too many requests, slow down").WithField("client_ip", identifier)
		},
	})
}

// setupIPExtractor makes c.RealIP() walk X-Forwarded-For only through TRUSTED_PROXIES.
// Without trusted proxies the connection address is used.
func (s *Server) setupIPExtractor() error {
	ranges, err := s.config.TrustedProxyRanges()
	if err != nil {
		return fmt.Errorf("failed to parse trusted proxies: %w", err)
	}
	if len(ranges) == 0 {
		s.echo.IPExtractor = echo.ExtractIPDirect()
		return nil
	}
	s.echo.IPExtractor = echo.ExtractIPFromXFFHeader(trustOnly(ranges)...)
	return nil
}

func trustOnly(ranges []*net.IPNet) []echo.TrustOption {
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, r := range ranges {
		opts = append(opts, echo.TrustIPRange(r))
	}
	return opts
}
