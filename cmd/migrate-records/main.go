// Command migrate-records copies user records from the JSON file store into PostgreSQL,
// sealing plaintext passwords when an encryption key is given. With --verify it then
// checks that every sealed password in PostgreSQL opens with that key.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/shithost/sigma-dash/internal/adapter/filestore"
	"github.com/shithost/sigma-dash/internal/adapter/postgres"
	"github.com/shithost/sigma-dash/internal/app"
	"github.com/shithost/sigma-dash/internal/crypto"
	"github.com/shithost/sigma-dash/internal/platform/logging"
)

func main() {
	var (
		usersFile   = flag.String("users", envOr("USERS_FILE_PATH", "users.json"), "JSON user record file (or set USERS_FILE_PATH env)")
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "PostgreSQL URL (or set DATABASE_URL env)")
		sealKey     = flag.String("encryption-key", os.Getenv("PASSWORD_ENCRYPTION_KEY"), "Hex AES-256 key used to seal plaintext passwords (or set PASSWORD_ENCRYPTION_KEY env)")
		dryRun      = flag.Bool("dry-run", false, "Dry run mode (don't write records to PostgreSQL)")
		verify      = flag.Bool("verify", false, "Check that every sealed password in PostgreSQL opens with the encryption key")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}
	if *verify && *sealKey == "" {
		log.Fatal("--verify requires an encryption key (--encryption-key or PASSWORD_ENCRYPTION_KEY env)")
	}

	logLevel := "info"
	if *verbose {
		logLevel = "debug"
	}
	logging.InitLogger(logLevel, "text")

	var sealer crypto.Service
	if *sealKey != "" {
		aes, err := crypto.NewAesGcmService(*sealKey)
		if err != nil {
			log.Fatalf("Invalid encryption key: %v", err)
		}
		sealer = aes
	}

	ctx := context.Background()

	pool, err := postgres.Connect(ctx, *databaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	slog.Info("Connected to database", "url", sanitizeURL(*databaseURL))

	// The schema is needed even for a dry run: existing rows decide what is skipped.
	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	start := time.Now()
	slog.Info("Starting migration", "source", *usersFile, "dry_run", *dryRun, "seal", sealer != nil)

	repo := postgres.NewRecordRepo(pool)
	summary, err := app.MigrateRecords(ctx, filestore.New(*usersFile), repo, sealer, *dryRun)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	slog.Info("Migration summary",
		"scanned", summary.Scanned,
		"copied", summary.Copied,
		"sealed", summary.Sealed,
		"skipped", summary.Skipped,
		"duration_ms", time.Since(start).Milliseconds())

	if !*verify {
		return
	}

	check, err := app.VerifySealedPasswords(ctx, repo, sealer)
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	slog.Info("Verification summary",
		"scanned", check.Scanned,
		"sealed", check.Sealed,
		"plaintext", check.Plaintext,
		"unreadable", len(check.Unreadable))
	if len(check.Unreadable) > 0 {
		slog.Error("Sealed passwords do not open with the given key", "identity_ids", check.Unreadable)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// sanitizeURL hides the password in a connection URL for logging.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	return u.Redacted()
}
