package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shithost/sigma-dash/internal/crypto"
	"github.com/shithost/sigma-dash/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Placeholder names sent to the panel; the identity provider exposes no real names.
const (
	panelFirstName = "Sigma"
	panelLastName  = "User"
)

// flightTimeout bounds one shared provisioning run, independent of its callers.
const flightTimeout = 30 * time.Second

type Outcome string

const (
	// OutcomeCreated: a panel account and a local record were created.
	OutcomeCreated Outcome = "created"
	// OutcomeRecorded: a local record already exists; nothing was called.
	OutcomeRecorded Outcome = "recorded"
	// OutcomePanelAccountExists: the panel already knows the email. No local record is written.
	OutcomePanelAccountExists Outcome = "panel_account_exists"
)

type ProvisionResult struct {
	Outcome Outcome
	Record  domain.UserRecord
	// Password is the generated plaintext, set only for OutcomeCreated.
	Password string
}

// ProvisionObserver receives one call per finished provisioning attempt.
type ProvisionObserver interface {
	ObserveProvision(outcome string)
}

type Service struct {
	records    domain.RecordRepository
	panel      domain.PanelClient
	quotas     domain.Quotas
	sealer     crypto.Service
	passwords  *PasswordGenerator
	observer   ProvisionObserver
	group      singleflight.Group
	runTimeout time.Duration
}

// NewService wires the provisioning service. observer may be nil.
func NewService(records domain.RecordRepository, panel domain.PanelClient, quotas domain.Quotas, sealer crypto.Service, observer ProvisionObserver) (*Service, error) {
	passwords, err := NewPasswordGenerator(quotas.PasswordCharset, quotas.PasswordLength)
	if err != nil {
		return nil, err
	}
	if sealer == nil {
		sealer = crypto.PlaintextService{}
	}
	return &Service{
		records:   records,
		panel:     panel,
		quotas:    quotas,
		sealer:    sealer,
		passwords:  passwords,
		observer:   observer,
		runTimeout: flightTimeout,
	}, nil
}

// Provision makes sure the identity has a panel account and a local record.
// Concurrent calls for the same identity share one execution. That execution
// runs detached from the caller that started it, so a caller giving up neither
// fails the others nor stops a created panel account from being recorded.
func (s *Service) Provision(ctx context.Context, identity domain.Identity) (*ProvisionResult, error) {
	ch := s.group.DoChan(identity.ID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.runTimeout)
		defer cancel()
		return s.provision(flightCtx, identity)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		s.observe("error")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: provisioning still running: %w", domain.ErrPanelUnavailable, ctx.Err())
		}
		return nil, ctx.Err()
	}

	if res.Err != nil {
		s.observe("error")
		return nil, res.Err
	}
	result := res.Val.(*ProvisionResult)
	s.observe(string(result.Outcome))
	return result, nil
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveProvision(outcome)
	}
}

func (s *Service) provision(ctx context.Context, identity domain.Identity) (*ProvisionResult, error) {
	existing, err := s.records.Get(ctx, identity.ID)
	switch {
	case err == nil:
		return &ProvisionResult{Outcome: OutcomeRecorded, Record: *existing}, nil
	case !errors.Is(err, domain.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to read user record: %w", err)
	}

	email, ok := identity.PrimaryEmail()
	if !ok {
		return nil, domain.ErrNoEmail
	}

	panelUser, err := s.panel.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup by email: %w", domain.ErrPanelUnavailable, err)
	}
	if panelUser != nil {
		slog.InfoContext(ctx, "Panel account already exists for email, skipping creation",
			"identity_id", identity.ID, "panel_user_id", panelUser.ID, "email", maskEmail(email))
		return &ProvisionResult{Outcome: OutcomePanelAccountExists}, nil
	}

	password, err := s.passwords.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}

	created, err := s.panel.CreateUser(ctx, domain.CreatePanelUserRequest{
		Email:     email,
		Username:  identity.ID,
		FirstName: panelFirstName,
		LastName:  panelLastName,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create user: %w", domain.ErrPanelUnavailable, err)
	}

	sealed, err := s.sealer.Seal(password)
	if err != nil {
		return nil, fmt.Errorf("failed to seal password for panel user %d: %w", created.ID, err)
	}

	record := s.quotas.NewRecord(email, sealed, created.ID)
	if err := s.records.Upsert(ctx, identity.ID, record); err != nil {
		// The panel account exists now; the operator has to link it by hand.
		slog.ErrorContext(ctx, "Panel account created but user record not saved",
			"identity_id", identity.ID, "panel_user_id", created.ID, "error", err)
		return nil, fmt.Errorf("failed to save user record: %w", err)
	}

	slog.InfoContext(ctx, "Provisioned panel account",
		"identity_id", identity.ID, "panel_user_id", created.ID, "email", maskEmail(email))
	return &ProvisionResult{Outcome: OutcomeCreated, Record: record, Password: password}, nil
}

// GetRecord returns the caller's record, or the zero record when none exists.
func (s *Service) GetRecord(ctx context.Context, identityID string) (domain.UserRecord, error) {
	record, err := s.records.Get(ctx, identityID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.UserRecord{}, nil
	}
	if err != nil {
		return domain.UserRecord{}, fmt.Errorf("failed to read user record: %w", err)
	}
	return *record, nil
}

// ListServers returns the panel servers owned by the caller's panel account.
func (s *Service) ListServers(ctx context.Context, identityID string) ([]domain.PanelServer, error) {
	record, err := s.GetRecord(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !record.HasPanelAccount() {
		return nil, domain.ErrNoPanelAccount
	}

	all, err := s.panel.ListServers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list servers: %w", domain.ErrPanelUnavailable, err)
	}

	owned := make([]domain.PanelServer, 0)
	for _, srv := range all {
		if srv.OwnerID == record.PanelUserID {
			owned = append(owned, srv)
		}
	}
	return owned, nil
}

// maskEmail keeps emails out of logs, e.g. "a***@b.com".
func maskEmail(email string) string {
	local, host, ok := strings.Cut(email, "@")
	runes := []rune(local)
	if !ok || len(runes) == 0 {
		return email
	}
	return string(runes[:1]) + "***@" + host
}
