// Package proxycheck talks to the IP-reputation service used by the VPN gate.
package proxycheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shithost/sigma-dash/internal/domain"
)

const maxResponseBytes = 1 << 20

// Client performs one live lookup per call. It never caches.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

var _ domain.ReputationChecker = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type ipResult struct {
	Proxy string `json:"proxy"`
	VPN   string `json:"vpn"`
	Tor   string `json:"tor"`
	Type  string `json:"type"`
	ASN   string `json:"asn"`
}

func (c *Client) Check(ctx context.Context, ip string) (domain.Reputation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := url.Values{}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	query.Set("vpn", "1")
	query.Set("asn", "1")
	query.Set("days", "180")
	endpoint := c.baseURL + "/" + url.PathEscape(ip) + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Reputation{}, fmt.Errorf("failed to build reputation request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Reputation{}, fmt.Errorf("reputation lookup failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Reputation{}, fmt.Errorf("failed to read reputation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Reputation{}, fmt.Errorf("reputation service returned status %d", resp.StatusCode)
	}

	return parseResponse(ip, body)
}

// parseResponse decodes the service's document: a "status" field next to one
// object keyed by the queried address.
func parseResponse(ip string, body []byte) (domain.Reputation, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return domain.Reputation{}, fmt.Errorf("failed to decode reputation response: %w", err)
	}

	var status, message string
	if raw, ok := doc["status"]; ok {
		_ = json.Unmarshal(raw, &status)
	}
	if raw, ok := doc["message"]; ok {
		_ = json.Unmarshal(raw, &message)
	}
	switch status {
	case "error", "denied":
		return domain.Reputation{}, fmt.Errorf("reputation service status %q: %s", status, message)
	}

	raw, ok := doc[ip]
	if !ok {
		return domain.Reputation{}, fmt.Errorf("reputation response has no entry for the queried address (status %q)", status)
	}

	var result ipResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.Reputation{}, fmt.Errorf("failed to decode reputation entry: %w", err)
	}

	return domain.Reputation{
		IP:    ip,
		Proxy: isYes(result.Proxy),
		VPN:   isYes(result.VPN),
		Tor:   isYes(result.Tor) || strings.EqualFold(result.Type, "TOR"),
		Type:  result.Type,
		ASN:   result.ASN,
	}, nil
}

func isYes(v string) bool {
	return strings.EqualFold(v, "yes")
}
