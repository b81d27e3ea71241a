package session

import (
	"context"
	"errors"
	"testing"

	"github.com/osolomko/doctran/internal/api"
)

type mockService struct {
	signUpFn  func(ctx context.Context, name, email, password string) error
	signInFn  func(ctx context.Context, email, password string) (*api.Credentials, error)
	signOutFn func(ctx context.Context) error
	meFn      func(ctx context.Context) (*api.User, error)

	signUps  int
	signOuts int
}

func (m *mockService) SignUp(ctx context.Context, name, email, password string) error {
	m.signUps++
	if m.signUpFn != nil {
		return m.signUpFn(ctx, name, email, password)
	}
	return nil
}

func (m *mockService) SignIn(ctx context.Context, email, password string) (*api.Credentials, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return &api.Credentials{Token: "tok-1", User: api.User{ID: "u1", Email: email, Tier: api.TierFree, TranslationsLimit: 5}}, nil
}

func (m *mockService) SignOut(ctx context.Context) error {
	m.signOuts++
	if m.signOutFn != nil {
		return m.signOutFn(ctx)
	}
	return nil
}

func (m *mockService) Me(ctx context.Context) (*api.User, error) {
	if m.meFn != nil {
		return m.meFn(ctx)
	}
	return &api.User{ID: "u1"}, nil
}

type memStorage struct {
	token string
	user  *api.User
	saves int
}

func (m *memStorage) SaveSession(ctx context.Context, token string, user api.User) error {
	m.token = token
	u := user
	m.user = &u
	m.saves++
	return nil
}

func (m *memStorage) LoadSession(ctx context.Context) (string, *api.User, error) {
	return m.token, m.user, nil
}

func (m *memStorage) ClearSession(ctx context.Context) error {
	m.token = ""
	m.user = nil
	return nil
}

func validSignUp() SignUpInput {
	return SignUpInput{Name: "Thandi M", Email: "thandi@example.com", Password: "secret1", AcceptTerms: true}
}

func TestSignUp_Validation(t *testing.T) {
	svc := &mockService{}
	m := NewManager(svc, &memStorage{}, nil)

	cases := []struct {
		name   string
		mutate func(*SignUpInput)
	}{
		{"short name", func(in *SignUpInput) { in.Name = "ab" }},
		{"bad email", func(in *SignUpInput) { in.Email = "not-an-email" }},
		{"short password", func(in *SignUpInput) { in.Password = "12345" }},
		{"terms not accepted", func(in *SignUpInput) { in.AcceptTerms = false }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validSignUp()
			tc.mutate(&in)
			if err := m.SignUp(context.Background(), in); err == nil {
				t.Error("expected a validation error")
			}
		})
	}

	// Invalid input must never reach the service.
	if svc.signUps != 0 {
		t.Errorf("expected no sign-up requests, got %d", svc.signUps)
	}
}

func TestSignUp_NeverEstablishesSession(t *testing.T) {
	m := NewManager(&mockService{}, &memStorage{}, nil)

	if err := m.SignUp(context.Background(), validSignUp()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.IsAuthenticated() {
		t.Error("sign-up must not sign the user in")
	}
}

func TestSignIn_PersistsAndCaches(t *testing.T) {
	store := &memStorage{}
	m := NewManager(&mockService{}, store, nil)

	user, err := m.SignIn(context.Background(), SignInInput{Email: "thandi@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "thandi@example.com" {
		t.Errorf("unexpected user: %+v", user)
	}
	if m.Token() != "tok-1" {
		t.Errorf("expected cached token, got %q", m.Token())
	}
	if store.token != "tok-1" {
		t.Errorf("expected persisted token, got %q", store.token)
	}
	if !m.IsAuthenticated() {
		t.Error("expected authenticated after sign-in")
	}
}

func TestSignIn_RejectsInvalidInput(t *testing.T) {
	m := NewManager(&mockService{}, &memStorage{}, nil)

	if _, err := m.SignIn(context.Background(), SignInInput{Email: "nope", Password: "x"}); err == nil {
		t.Error("expected a validation error")
	}
}

func TestRestore(t *testing.T) {
	store := &memStorage{token: "tok-9", user: &api.User{ID: "u9", TranslationsUsed: 2, TranslationsLimit: 5}}
	m := NewManager(&mockService{}, store, nil)

	ok, err := m.Restore(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a restored session")
	}
	if m.Token() != "tok-9" || m.User().ID != "u9" {
		t.Errorf("restored state mismatch: token=%q user=%+v", m.Token(), m.User())
	}

	empty := NewManager(&mockService{}, &memStorage{}, nil)
	ok, err = empty.Restore(context.Background())
	if err != nil || ok {
		t.Errorf("expected no session, got ok=%v err=%v", ok, err)
	}
}

func TestSignOut_ClearsEvenWhenServerFails(t *testing.T) {
	svc := &mockService{signOutFn: func(ctx context.Context) error { return errors.New("network down") }}
	store := &memStorage{}
	m := NewManager(svc, store, nil)
	if _, err := m.SignIn(context.Background(), SignInInput{Email: "a@b.co", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	m.SignOut(context.Background())

	if m.IsAuthenticated() {
		t.Error("expected signed out despite server failure")
	}
	if store.token != "" {
		t.Error("expected persisted session cleared")
	}
}

func TestForceSignOut_FiresHooksOnce(t *testing.T) {
	svc := &mockService{}
	m := NewManager(svc, &memStorage{}, nil)
	if _, err := m.SignIn(context.Background(), SignInInput{Email: "a@b.co", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	hookCalls := 0
	m.OnSignOut(func() { hookCalls++ })

	m.ForceSignOut()
	m.ForceSignOut() // second call is a no-op: no session left

	if hookCalls != 1 {
		t.Errorf("expected hook to fire once, fired %d times", hookCalls)
	}
	if m.IsAuthenticated() || m.User() != nil {
		t.Error("expected all session state cleared")
	}
	// Forced sign-out never notifies the server.
	if svc.signOuts != 0 {
		t.Errorf("expected no server sign-out, got %d", svc.signOuts)
	}
}

func TestRefreshUser_ReplacesSnapshot(t *testing.T) {
	svc := &mockService{
		meFn: func(ctx context.Context) (*api.User, error) {
			return &api.User{ID: "u1", Tier: api.TierProfessional, TranslationsUsed: 3, TranslationsLimit: 20}, nil
		},
	}
	store := &memStorage{}
	m := NewManager(svc, store, nil)
	if _, err := m.SignIn(context.Background(), SignInInput{Email: "a@b.co", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	if err := m.RefreshUser(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u := m.User()
	if u.Tier != api.TierProfessional || u.TranslationsLimit != 20 {
		t.Errorf("expected refreshed snapshot, got %+v", u)
	}
	if store.user.Tier != api.TierProfessional {
		t.Error("expected the refreshed snapshot persisted")
	}
}

func TestCanTranslate(t *testing.T) {
	m := NewManager(&mockService{}, &memStorage{}, nil)
	if m.CanTranslate() {
		t.Error("no user: expected false")
	}

	cases := []struct {
		name string
		user api.User
		want bool
	}{
		{"under limit", api.User{TranslationsUsed: 4, TranslationsLimit: 5}, true},
		{"at limit", api.User{TranslationsUsed: 5, TranslationsLimit: 5}, false},
		{"over limit", api.User{TranslationsUsed: 7, TranslationsLimit: 5}, false},
		{"unlimited", api.User{TranslationsUsed: 5000, TranslationsLimit: api.UnlimitedTranslations}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := m.ApplyUser(context.Background(), tc.user); err != nil {
				t.Fatal(err)
			}
			if got := m.CanTranslate(); got != tc.want {
				t.Errorf("CanTranslate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRemainingUses(t *testing.T) {
	m := NewManager(&mockService{}, &memStorage{}, nil)
	if got := m.RemainingUses(); got != "0" {
		t.Errorf("no user: expected \"0\", got %q", got)
	}

	m.ApplyUser(context.Background(), api.User{TranslationsUsed: 2, TranslationsLimit: 5})
	if got := m.RemainingUses(); got != "3" {
		t.Errorf("expected \"3\", got %q", got)
	}

	m.ApplyUser(context.Background(), api.User{TranslationsUsed: 9, TranslationsLimit: 5})
	if got := m.RemainingUses(); got != "0" {
		t.Errorf("expected overage clamped to \"0\", got %q", got)
	}

	m.ApplyUser(context.Background(), api.User{TranslationsLimit: api.UnlimitedTranslations})
	if got := m.RemainingUses(); got != "∞" {
		t.Errorf("expected \"∞\", got %q", got)
	}
}
