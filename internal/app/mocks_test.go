package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/shithost/sigma-dash/internal/domain"
)

// --- Mock implementations ---

type memoryRecords struct {
	mu       sync.Mutex
	records  map[string]domain.UserRecord
	upsertFn func(id string, record domain.UserRecord) error
	getErr   error
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{records: make(map[string]domain.UserRecord)}
}

func (m *memoryRecords) Get(_ context.Context, id string) (*domain.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.records[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &r, nil
}

func (m *memoryRecords) Upsert(_ context.Context, id string, record domain.UserRecord) error {
	if m.upsertFn != nil {
		if err := m.upsertFn(id, record); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = record
	return nil
}

func (m *memoryRecords) All(_ context.Context) (map[string]domain.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.UserRecord, len(m.records))
	for k, v := range m.records {
		out[k] = v
	}
	return out, nil
}

type mockPanel struct {
	findFn   func(ctx context.Context, email string) (*domain.PanelUser, error)
	createFn func(ctx context.Context, req domain.CreatePanelUserRequest) (*domain.PanelUser, error)
	listFn   func(ctx context.Context) ([]domain.PanelServer, error)

	findCalls   atomic.Int32
	createCalls atomic.Int32
	lastCreate  domain.CreatePanelUserRequest
}

func (m *mockPanel) FindUserByEmail(ctx context.Context, email string) (*domain.PanelUser, error) {
	m.findCalls.Add(1)
	if m.findFn != nil {
		return m.findFn(ctx, email)
	}
	return nil, nil
}

func (m *mockPanel) CreateUser(ctx context.Context, req domain.CreatePanelUserRequest) (*domain.PanelUser, error) {
	m.createCalls.Add(1)
	m.lastCreate = req
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return &domain.PanelUser{ID: 42, Email: req.Email, Username: req.Username}, nil
}

func (m *mockPanel) ListServers(ctx context.Context) ([]domain.PanelServer, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, errors.New("not implemented")
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveProvision(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

var testQuotas = domain.Quotas{
	CPU:             100,
	RAM:             512,
	Disk:            1000,
	Coins:           0,
	PasswordLength:  domain.DefaultPasswordLength,
	PasswordCharset: domain.DefaultPasswordCharset,
}
