package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shithost/sigma-dash/internal/domain"
)

type RecordRepo struct {
	pool *pgxpool.Pool
}

func NewRecordRepo(pool *pgxpool.Pool) *RecordRepo {
	return &RecordRepo{pool: pool}
}

const selectRecordColumns = `email, password, panel_user_id, cpu, ram, disk, coins`

func (r *RecordRepo) Get(ctx context.Context, identityID string) (*domain.UserRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+selectRecordColumns+` FROM user_records WHERE identity_id = $1`, identityID)

	var rec domain.UserRecord
	err := row.Scan(&rec.Email, &rec.Password, &rec.PanelUserID, &rec.CPU, &rec.RAM, &rec.Disk, &rec.Coins)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user record: %w", err)
	}
	return &rec, nil
}

func (r *RecordRepo) Upsert(ctx context.Context, identityID string, rec domain.UserRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_records (identity_id, email, password, panel_user_id, cpu, ram, disk, coins)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (identity_id) DO UPDATE SET
			email         = EXCLUDED.email,
			password      = EXCLUDED.password,
			panel_user_id = EXCLUDED.panel_user_id,
			cpu           = EXCLUDED.cpu,
			ram           = EXCLUDED.ram,
			disk          = EXCLUDED.disk,
			coins         = EXCLUDED.coins,
			updated_at    = now()`,
		identityID, rec.Email, rec.Password, rec.PanelUserID, rec.CPU, rec.RAM, rec.Disk, rec.Coins)
	if err != nil {
		return fmt.Errorf("failed to upsert user record: %w", err)
	}
	return nil
}

func (r *RecordRepo) All(ctx context.Context) (map[string]domain.UserRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT identity_id, `+selectRecordColumns+` FROM user_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to list user records: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.UserRecord)
	for rows.Next() {
		var id string
		var rec domain.UserRecord
		if err := rows.Scan(&id, &rec.Email, &rec.Password, &rec.PanelUserID, &rec.CPU, &rec.RAM, &rec.Disk, &rec.Coins); err != nil {
			return nil, fmt.Errorf("failed to scan user record: %w", err)
		}
		out[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user records: %w", err)
	}
	return out, nil
}

// Ping backs the readiness check.
func (r *RecordRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
