package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shithost/sigma-dash/internal/app"
	"github.com/shithost/sigma-dash/internal/domain"
	"github.com/shithost/sigma-dash/internal/platform/config"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockAppService struct {
	provisionFn   func(ctx context.Context, identity domain.Identity) (*app.ProvisionResult, error)
	getRecordFn   func(ctx context.Context, identityID string) (domain.UserRecord, error)
	listServersFn func(ctx context.Context, identityID string) ([]domain.PanelServer, error)
}

func (m *mockAppService) Provision(ctx context.Context, identity domain.Identity) (*app.ProvisionResult, error) {
	if m.provisionFn != nil {
		return m.provisionFn(ctx, identity)
	}
	return &app.ProvisionResult{Outcome: app.OutcomeRecorded}, nil
}

func (m *mockAppService) GetRecord(ctx context.Context, identityID string) (domain.UserRecord, error) {
	if m.getRecordFn != nil {
		return m.getRecordFn(ctx, identityID)
	}
	return domain.UserRecord{}, nil
}

func (m *mockAppService) ListServers(ctx context.Context, identityID string) ([]domain.PanelServer, error) {
	if m.listServersFn != nil {
		return m.listServersFn(ctx, identityID)
	}
	return nil, errors.New("not implemented")
}

type mockProvider struct {
	identity *domain.Identity
	err      error
	gotCode  string
}

func (m *mockProvider) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + state
}

func (m *mockProvider) Exchange(_ context.Context, code string) (*domain.Identity, error) {
	m.gotCode = code
	return m.identity, m.err
}

type mockChecker struct {
	mu    sync.Mutex
	rep   domain.Reputation
	err   error
	calls []string
}

func (m *mockChecker) Check(_ context.Context, ip string) (domain.Reputation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, ip)
	return m.rep, m.err
}

type recordingObserver struct {
	mu        sync.Mutex
	decisions []string
	errors    []string
}

func (r *recordingObserver) ObserveGateDecision(decision string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, decision)
}

func (r *recordingObserver) ObserveError(errorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, errorType)
}

// --- Test helpers ---

var testIdentity = domain.Identity{
	ID:       "123456789",
	Username: "sigma",
	Emails:   []domain.Email{{Value: "sigma@example.com", Verified: true}},
	Provider: providerDiscord,
}

func newTestServer(t *testing.T, app appService, opts ...Option) *Server {
	t.Helper()

	tmpl := template.Must(template.New("landing.html").Parse(`Landing {{.HostingName}}`))
	template.Must(tmpl.New("dashboard.html").Parse(
		`Dashboard {{.User.Username}} cpu={{.Record.CPU}} coins={{.Record.Coins}}` +
			`{{range .Flashes.Success}} success:{{.}}{{end}}{{range .Flashes.Info}} info:{{.}}{{end}}`))
	template.Must(tmpl.New("servers.html").Parse(`Servers{{range .Servers}} [{{.Name}}]{{end}}`))
	template.Must(tmpl.New("store.html").Parse(`Store ram={{.Record.RAM}} disk={{.Record.Disk}}`))
	template.Must(tmpl.New("earn.html").Parse(`Earn coins={{.Record.Coins}}`))
	template.Must(tmpl.New("account.html").Parse(`Account {{.Email}} id={{.PanelUserID}} panel={{.PanelURL}}`))
	template.Must(tmpl.New("error.html").Parse(`Error {{.Status}} {{.Message}}`))

	cfg := &config.Config{
		HostingName:     "Test Hosting",
		PanelURL:        "https://panel.test",
		OutboundTimeout: time.Second,
		SessionSecret:   "test-session-secret",
		SessionMaxAge:   time.Hour,
		SessionDir:      t.TempDir(),
	}
	store, err := newFilesystemSessionStore(cfg)
	require.NoError(t, err)

	srv := &Server{
		echo:         echo.New(),
		config:       cfg,
		app:          app,
		providers:    map[string]identityProvider{providerDiscord: &mockProvider{}},
		sessionStore: store,
		templates:    tmpl,
		startTime:    time.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	require.NoError(t, srv.setupIPExtractor())
	srv.registerRoutes()

	return srv
}

func withProvider(p identityProvider) Option {
	return func(s *Server) { s.providers[providerDiscord] = p }
}

func withVPNCheck(checker domain.ReputationChecker, observer GateObserver) Option {
	return func(s *Server) {
		s.config.Quotas.VPNCheck = true
		s.reputation = checker
		s.gateObserver = observer
	}
}

// sessionCookies returns cookies for a session holding the given values.
func sessionCookies(t *testing.T, srv *Server, values map[string]any) []*http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	session, err := srv.sessionStore.New(req, sessionName)
	require.NoError(t, err)
	for k, v := range values {
		session.Values[k] = v
	}
	require.NoError(t, session.Save(req, rec))

	return rec.Result().Cookies()
}

func loginCookies(t *testing.T, srv *Server, identity domain.Identity) []*http.Cookie {
	t.Helper()

	payload, err := json.Marshal(identity)
	require.NoError(t, err)
	return sessionCookies(t, srv, map[string]any{sessionKeyIdentity: string(payload)})
}

func doRequest(srv *Server, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

// latestSessionCookie picks the last session cookie set by a response; a login
// response first expires the old session and then sets the new one.
func latestSessionCookie(rec *httptest.ResponseRecorder) []*http.Cookie {
	var latest *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName {
			latest = c
		}
	}
	if latest == nil {
		return nil
	}
	return []*http.Cookie{latest}
}
