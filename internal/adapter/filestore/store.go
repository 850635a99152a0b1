// Package filestore keeps user records in a single JSON document on local disk.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/shithost/sigma-dash/internal/domain"
)

const filePerm = 0o600

// Store is a RecordRepository over one JSON file. Every write rewrites the whole
// document through a temp file and rename, so readers never see a torn file.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Read returns the whole document. A missing file is an empty store.
func (s *Store) Read() (map[string]domain.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Write replaces the whole document.
func (s *Store) Write(records map[string]domain.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(records)
}

func (s *Store) Get(_ context.Context, identityID string) (*domain.UserRecord, error) {
	records, err := s.Read()
	if err != nil {
		return nil, err
	}
	record, ok := records[identityID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &record, nil
}

// Upsert performs read-modify-write under the store lock.
func (s *Store) Upsert(_ context.Context, identityID string, record domain.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	records[identityID] = record
	return s.write(records)
}

func (s *Store) All(_ context.Context) (map[string]domain.UserRecord, error) {
	return s.Read()
}

func (s *Store) read() (map[string]domain.UserRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]domain.UserRecord), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	records := make(map[string]domain.UserRecord)
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return records, nil
}

func (s *Store) write(records map[string]domain.UserRecord) error {
	if records == nil {
		records = make(map[string]domain.UserRecord)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			if rmErr := os.Remove(tmpName); rmErr != nil {
				slog.Warn("Failed to remove temp file", "path", tmpName, "error", rmErr)
			}
		}
	}()

	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
