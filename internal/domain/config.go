package domain

// Quotas is the static configuration file: feature flags, default resource
// allocations for new accounts and the password generator settings.
type Quotas struct {
	VPNCheck        bool   `json:"vpn_check"`
	CPU             int    `json:"cpu"`
	RAM             int    `json:"ram"`
	Disk            int    `json:"disk"`
	Coins           int    `json:"coins"`
	PasswordLength  int    `json:"password_length"`
	PasswordCharset string `json:"password_charset"`
}

const (
	DefaultPasswordLength  = 10
	DefaultPasswordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewRecord builds the record for a freshly provisioned panel account.
func (q Quotas) NewRecord(email, password string, panelUserID int) UserRecord {
	return UserRecord{
		Email:       email,
		Password:    password,
		PanelUserID: panelUserID,
		CPU:         q.CPU,
		RAM:         q.RAM,
		Disk:        q.Disk,
		Coins:       q.Coins,
	}
}
