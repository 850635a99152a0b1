package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shithost/sigma-dash/internal/domain"
)

// LoadQuotas reads the static JSON config file holding the VPN-check flag,
// default quotas and password generator settings.
func LoadQuotas(path string) (domain.Quotas, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Quotas{}, fmt.Errorf("failed to read quota config %s: %w", path, err)
	}

	var q domain.Quotas
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.Quotas{}, fmt.Errorf("failed to parse quota config %s: %w", path, err)
	}

	if q.PasswordLength == 0 {
		q.PasswordLength = domain.DefaultPasswordLength
	}
	if q.PasswordCharset == "" {
		q.PasswordCharset = domain.DefaultPasswordCharset
	}

	if err := validateQuotas(q); err != nil {
		return domain.Quotas{}, fmt.Errorf("invalid quota config %s: %w", path, err)
	}
	return q, nil
}

func validateQuotas(q domain.Quotas) error {
	if q.CPU < 0 || q.RAM < 0 || q.Disk < 0 || q.Coins < 0 {
		return fmt.Errorf("quota values must not be negative")
	}
	if q.PasswordLength < 1 {
		return fmt.Errorf("password_length must be positive, got %d", q.PasswordLength)
	}
	seen := make(map[rune]struct{}, len(q.PasswordCharset))
	for _, r := range q.PasswordCharset {
		if _, dup := seen[r]; dup {
			return fmt.Errorf("password_charset contains duplicate character %q", r)
		}
		seen[r] = struct{}{}
	}
	return nil
}
