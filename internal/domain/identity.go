package domain

import "strings"

// Email is a single address reported by the identity provider.
type Email struct {
	Value    string `json:"value"`
	Verified bool   `json:"verified"`
}

// Identity is the identity provider profile attached to a browser session.
type Identity struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Avatar   string  `json:"avatar,omitempty"`
	Email    string  `json:"email,omitempty"`
	Emails   []Email `json:"emails,omitempty"`
	Provider string  `json:"provider"`
}

// PrimaryEmail returns the first listed email, falling back to the top-level email field.
func (i Identity) PrimaryEmail() (string, bool) {
	if len(i.Emails) > 0 {
		if v := strings.TrimSpace(i.Emails[0].Value); v != "" {
			return v, true
		}
	}
	if v := strings.TrimSpace(i.Email); v != "" {
		return v, true
	}
	return "", false
}
