package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shithost/sigma-dash/internal/crypto"
	"github.com/shithost/sigma-dash/internal/domain"
)

type MigrationSummary struct {
	Scanned int
	Copied  int
	Sealed  int
	Skipped int
}

// MigrateRecords copies every record from src into dst. Records already present in dst
// are left alone. Plaintext passwords are sealed on the way when sealer is set.
func MigrateRecords(ctx context.Context, src, dst domain.RecordRepository, sealer crypto.Service, dryRun bool) (MigrationSummary, error) {
	var summary MigrationSummary

	records, err := src.All(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to read source records: %w", err)
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		summary.Scanned++
		record := records[id]

		if _, err := dst.Get(ctx, id); err == nil {
			slog.Debug("Record already present in destination", "identity_id", id)
			summary.Skipped++
			continue
		} else if !errors.Is(err, domain.ErrRecordNotFound) {
			return summary, fmt.Errorf("failed to check destination for %s: %w", id, err)
		}

		if sealer != nil && !crypto.IsSealed(record.Password) {
			sealed, err := sealer.Seal(record.Password)
			if err != nil {
				return summary, fmt.Errorf("failed to seal password for %s: %w", id, err)
			}
			if sealed != record.Password {
				summary.Sealed++
			}
			record.Password = sealed
		}

		if !dryRun {
			if err := dst.Upsert(ctx, id, record); err != nil {
				return summary, fmt.Errorf("failed to write record %s: %w", id, err)
			}
		}
		summary.Copied++
	}

	return summary, nil
}

type VerifySummary struct {
	Scanned   int
	Sealed    int
	Plaintext int
	// Unreadable lists identity ids whose sealed password does not open with the key.
	Unreadable []string
}

// VerifySealedPasswords opens every sealed password in repo. A record that does
// not open was sealed under a different key.
func VerifySealedPasswords(ctx context.Context, repo domain.RecordRepository, sealer crypto.Service) (VerifySummary, error) {
	var summary VerifySummary

	records, err := repo.All(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to read records: %w", err)
	}

	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		summary.Scanned++
		stored := records[id].Password
		if !crypto.IsSealed(stored) {
			summary.Plaintext++
			continue
		}
		summary.Sealed++
		if _, err := sealer.Open(stored); err != nil {
			slog.Debug("Sealed password does not open", "identity_id", id, "error", err)
			summary.Unreadable = append(summary.Unreadable, id)
		}
	}

	return summary, nil
}
