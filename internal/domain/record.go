package domain

import "context"

// UserRecord links an identity to its panel account and resource quotas.
// The JSON layout is the on-disk format of the flat-file store.
type UserRecord struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	PanelUserID int    `json:"id"`
	CPU         int    `json:"cpu"`
	RAM         int    `json:"ram"`
	Disk        int    `json:"disk"`
	Coins       int    `json:"coins"`
}

// HasPanelAccount reports whether a panel user id has been recorded.
func (r UserRecord) HasPanelAccount() bool {
	return r.PanelUserID > 0
}

// RecordRepository persists user records keyed by identity id.
// Implementations serialize writes so concurrent upserts for different ids never lose data.
type RecordRepository interface {
	Get(ctx context.Context, identityID string) (*UserRecord, error)
	Upsert(ctx context.Context, identityID string, record UserRecord) error
	All(ctx context.Context) (map[string]UserRecord, error)
}
