package config

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shithost/sigma-dash/internal/domain"
	"go-simpler.org/env"
)

const (
	RecordStoreFile     = "file"
	RecordStorePostgres = "postgres"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	HostingName string `env:"HOSTING_NAME" default:"Default Hosting Name"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days
	// SessionDir holds session files when Redis is not configured. Empty means os.TempDir().
	SessionDir string `env:"SESSION_DIR"`

	// TrustedProxies is a comma-separated CIDR list of reverse proxies whose
	// X-Forwarded-For entries the rate limiter believes.
	TrustedProxies string `env:"TRUSTED_PROXIES"`

	DiscordClientID     string `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURI  string `env:"DISCORD_REDIRECT_URI"`

	ProxyCheckAPIKey   string        `env:"PROXYCHECK_API_KEY"`
	ProxyCheckURL      string        `env:"PROXYCHECK_URL" default:"https://proxycheck.io/v2"`
	ReputationCacheTTL time.Duration `env:"REPUTATION_CACHE_TTL" default:"0s"`

	PanelURL    string `env:"PANEL_URL"`
	PanelAPIKey string `env:"PANEL_API_KEY"`

	QuotaConfigPath       string `env:"QUOTA_CONFIG_PATH" default:"config.json"`
	RecordStore           string `env:"RECORD_STORE" default:"file"`
	UsersFilePath         string `env:"USERS_FILE_PATH" default:"users.json"`
	DatabaseURL           string `env:"DATABASE_URL"`
	RedisURL              string `env:"REDIS_URL"`
	PasswordEncryptionKey string `env:"PASSWORD_ENCRYPTION_KEY"`

	OutboundTimeout time.Duration `env:"OUTBOUND_TIMEOUT" default:"10s"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Quotas is read from QuotaConfigPath once at startup and never changes afterwards.
	Quotas domain.Quotas
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	quotas, err := LoadQuotas(cfg.QuotaConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Quotas = quotas

	return &cfg, nil
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SessionKeys derives the cookie signing key and the 32-byte AES key from SESSION_SECRET.
func (c *Config) SessionKeys() (hashKey, blockKey []byte) {
	derive := func(label string) []byte {
		mac := hmac.New(sha256.New, []byte(c.SessionSecret))
		mac.Write([]byte(label))
		return mac.Sum(nil)
	}
	return derive("session-hash"), derive("session-block")
}

// TrustedProxyRanges parses TRUSTED_PROXIES. Bare addresses are treated as single-host ranges.
func (c *Config) TrustedProxyRanges() ([]*net.IPNet, error) {
	var ranges []*net.IPNet
	for _, entry := range strings.Split(c.TrustedProxies, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			entry = fmt.Sprintf("%s/%d", entry, bits)
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		ranges = append(ranges, ipNet)
	}
	return ranges, nil
}

func validate(cfg *Config) error {
	// Ordered so the first missing variable is reported deterministically.
	required := []struct{ name, value string }{
		{"SESSION_SECRET", cfg.SessionSecret},
		{"DISCORD_CLIENT_ID", cfg.DiscordClientID},
		{"DISCORD_CLIENT_SECRET", cfg.DiscordClientSecret},
		{"DISCORD_REDIRECT_URI", cfg.DiscordRedirectURI},
		{"PANEL_URL", cfg.PanelURL},
		{"PANEL_API_KEY", cfg.PanelAPIKey},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	switch cfg.RecordStore {
	case RecordStoreFile:
		if cfg.UsersFilePath == "" {
			return fmt.Errorf("USERS_FILE_PATH is required when RECORD_STORE=%s", RecordStoreFile)
		}
	case RecordStorePostgres:
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when RECORD_STORE=%s", RecordStorePostgres)
		}
	default:
		return fmt.Errorf("RECORD_STORE must be %q or %q, got %q", RecordStoreFile, RecordStorePostgres, cfg.RecordStore)
	}

	if cfg.PasswordEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(cfg.PasswordEncryptionKey)
		if err != nil {
			return fmt.Errorf("PASSWORD_ENCRYPTION_KEY must be valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("PASSWORD_ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes), got %d bytes", len(keyBytes))
		}
	}

	if cfg.OutboundTimeout <= 0 {
		return fmt.Errorf("OUTBOUND_TIMEOUT must be positive, got %s", cfg.OutboundTimeout)
	}
	if cfg.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive, got %s", cfg.SessionMaxAge)
	}
	if _, err := cfg.TrustedProxyRanges(); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	if cfg.ReputationCacheTTL < 0 {
		return fmt.Errorf("REPUTATION_CACHE_TTL must not be negative, got %s", cfg.ReputationCacheTTL)
	}

	return nil
}
