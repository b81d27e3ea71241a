// Package session owns the authenticated identity: the bearer token, the
// cached user snapshot, and the advisory quota predicate.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/osolomko/doctran/internal/api"
)

// API is the slice of the service client the manager needs.
type API interface {
	SignUp(ctx context.Context, name, email, password string) error
	SignIn(ctx context.Context, email, password string) (*api.Credentials, error)
	SignOut(ctx context.Context) error
	Me(ctx context.Context) (*api.User, error)
}

// Storage persists the session across restarts.
type Storage interface {
	SaveSession(ctx context.Context, token string, user api.User) error
	LoadSession(ctx context.Context) (string, *api.User, error)
	ClearSession(ctx context.Context) error
}

// SignUpInput is validated client-side before any request is dispatched.
type SignUpInput struct {
	Name        string `validate:"required,min=3,max=150"`
	Email       string `validate:"required,email"`
	Password    string `validate:"required,min=6"`
	AcceptTerms bool   `validate:"eq=true"`
}

type SignInInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

var validate = validator.New()

type Manager struct {
	api   API
	store Storage
	log   *zap.Logger

	mu    sync.Mutex
	token string
	user  *api.User

	// onSignOut hooks halt whatever the rest of the client has in
	// flight (job polling in particular). They run on every sign-out,
	// forced or explicit.
	onSignOut []func()
}

func NewManager(apiClient API, storage Storage, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{api: apiClient, store: storage, log: log}
}

// OnSignOut registers a hook invoked after session state is cleared.
func (m *Manager) OnSignOut(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSignOut = append(m.onSignOut, fn)
}

// Restore loads a persisted session, if any. It does not talk to the
// server; callers refresh afterwards if they need current quota state.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	token, user, err := m.store.LoadSession(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if token == "" {
		return false, nil
	}

	m.mu.Lock()
	m.token = token
	m.user = user
	m.mu.Unlock()
	return true, nil
}

// SignUp creates an account. By design it never establishes a session;
// the caller is sent back to sign-in.
func (m *Manager) SignUp(ctx context.Context, in SignUpInput) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid sign-up input: %w", err)
	}
	return m.api.SignUp(ctx, in.Name, in.Email, in.Password)
}

func (m *Manager) SignIn(ctx context.Context, in SignInInput) (*api.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid sign-in input: %w", err)
	}

	creds, err := m.api.SignIn(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	if err := m.store.SaveSession(ctx, creds.Token, creds.User); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.token = creds.Token
	user := creds.User
	m.user = &user
	m.mu.Unlock()

	out := creds.User
	return &out, nil
}

// SignOut notifies the server best-effort, then unconditionally clears
// local state. Safe to call even when the network call fails.
func (m *Manager) SignOut(ctx context.Context) {
	if m.IsAuthenticated() {
		if err := m.api.SignOut(ctx); err != nil {
			m.log.Warn("server sign-out failed", zap.Error(err))
		}
	}
	m.clear(ctx)
}

// ForceSignOut clears local state without a server round-trip. It is the
// unauthorized-response hook: by the time it runs, the server has already
// rejected the credential. Idempotent.
func (m *Manager) ForceSignOut() {
	m.clear(context.Background())
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	hadSession := m.token != ""
	m.token = ""
	m.user = nil
	hooks := make([]func(), len(m.onSignOut))
	copy(hooks, m.onSignOut)
	m.mu.Unlock()

	if !hadSession {
		return
	}
	if err := m.store.ClearSession(ctx); err != nil {
		m.log.Warn("failed to clear persisted session", zap.Error(err))
	}
	for _, fn := range hooks {
		fn()
	}
}

// RefreshUser replaces the cached user from the authoritative /auth/me
// snapshot. Called after any server-side mutation that can change quota.
func (m *Manager) RefreshUser(ctx context.Context) error {
	user, err := m.api.Me(ctx)
	if err != nil {
		return err
	}
	return m.ApplyUser(ctx, *user)
}

// ApplyUser installs an authoritative user snapshot (full replacement,
// last write wins) and persists it alongside the current token.
func (m *Manager) ApplyUser(ctx context.Context, user api.User) error {
	m.mu.Lock()
	token := m.token
	u := user
	m.user = &u
	m.mu.Unlock()

	if token == "" {
		return nil
	}
	if err := m.store.SaveSession(ctx, token, user); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// User returns a copy of the cached user, or nil when signed out.
func (m *Manager) User() *api.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

// CanTranslate is the advisory quota gate: a pure function of cached
// state, never a network call. The server re-checks on the actual
// translate request.
func (m *Manager) CanTranslate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return false
	}
	if m.user.TranslationsLimit == api.UnlimitedTranslations {
		return true
	}
	return m.user.TranslationsUsed < m.user.TranslationsLimit
}

// RemainingUses formats the remaining quota for display ("∞" when the
// tier is unlimited).
func (m *Manager) RemainingUses() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return "0"
	}
	if m.user.TranslationsLimit == api.UnlimitedTranslations {
		return "∞"
	}
	remaining := m.user.TranslationsLimit - m.user.TranslationsUsed
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("%d", remaining)
}
