package domain

import "context"

// Reputation is the verdict of the IP-reputation service for one address.
type Reputation struct {
	IP    string `json:"ip"`
	Proxy bool   `json:"proxy"`
	VPN   bool   `json:"vpn"`
	Tor   bool   `json:"tor"`
	Type  string `json:"type,omitempty"`
	ASN   string `json:"asn,omitempty"`
}

// Flagged reports whether the address must be rejected.
func (r Reputation) Flagged() bool {
	return r.Proxy || r.VPN || r.Tor
}

type ReputationChecker interface {
	Check(ctx context.Context, ip string) (Reputation, error)
}

// ReputationCache stores verdicts. Get reports a miss with ok=false.
type ReputationCache interface {
	Get(ctx context.Context, ip string) (Reputation, bool)
	Set(ctx context.Context, ip string, rep Reputation)
}
