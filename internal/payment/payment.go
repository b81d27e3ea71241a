// Package payment bridges the external payment provider's redirect flow
// with the service's own verify-and-upgrade step. The provider's
// completion alone changes nothing: only a successful /payment/verify
// applies the tier to the account.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/osolomko/doctran/internal/api"
)

// State is the reconciliation position of the current upgrade attempt.
type State int

const (
	StateNone State = iota
	StateAwaitingExternal
	StateAwaitingVerification
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateAwaitingExternal:
		return "awaiting_external_action"
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Plan describes a subscription tier as offered by the service.
type Plan struct {
	Tier         string
	Name         string
	MonthlyLimit int // api.UnlimitedTranslations for no cap
	PriceZAR     int
	Features     []string
}

// Plans lists the offered tiers in ascending order.
var Plans = []Plan{
	{
		Tier:         api.TierFree,
		Name:         "Free",
		MonthlyLimit: 5,
		PriceZAR:     0,
		Features:     []string{"5 translations/month", "All languages", "Basic support", "Standard processing"},
	},
	{
		Tier:         api.TierProfessional,
		Name:         "Professional",
		MonthlyLimit: 20,
		PriceZAR:     299,
		Features:     []string{"20 translations/month", "All languages", "Priority support", "Fast processing", "Email notifications"},
	},
	{
		Tier:         api.TierEnterprise,
		Name:         "Enterprise",
		MonthlyLimit: api.UnlimitedTranslations,
		PriceZAR:     999,
		Features:     []string{"Unlimited translations", "All languages", "24/7 support", "Instant processing", "Dedicated manager", "API access"},
	},
}

// PlanFor returns the plan for a tier name.
func PlanFor(tier string) (*Plan, bool) {
	for i := range Plans {
		if Plans[i].Tier == tier {
			return &Plans[i], true
		}
	}
	return nil, false
}

// API is the slice of the service client the flow needs.
type API interface {
	PaymentInitiate(ctx context.Context, tier string) (*api.PaymentRedirect, error)
	PaymentVerify(ctx context.Context) (*api.VerifyResponse, error)
}

// Session receives the upgraded user snapshot once verification applies.
type Session interface {
	IsAuthenticated() bool
	ApplyUser(ctx context.Context, user api.User) error
}

// Storage persists the pending-tier marker across process lifetimes; the
// external payment step happens in a separate browsing context.
type Storage interface {
	SavePendingTier(ctx context.Context, tier string) error
	LoadPendingTier(ctx context.Context) (string, error)
	ClearPendingTier(ctx context.Context) error
}

var (
	ErrNotAuthenticated = errors.New("sign in before upgrading")
	ErrUnknownTier      = errors.New("unknown subscription tier")
	ErrFreeTier         = errors.New("the free tier requires no payment")
	ErrNoPendingPayment = errors.New("no pending payment to resume")
	ErrNotAwaiting      = errors.New("no payment awaiting verification")
)

type Flow struct {
	api     API
	session Session
	store   Storage
	log     *zap.Logger

	mu    sync.Mutex
	state State
	tier  string
}

func NewFlow(apiClient API, sess Session, storage Storage, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{api: apiClient, session: sess, store: storage, log: log}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Tier() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tier
}

// Begin starts an upgrade attempt: the tier marker is persisted first so
// the attempt survives the navigation to the external payment page, then
// the provider redirect is fetched for the caller to open.
func (f *Flow) Begin(ctx context.Context, tier string) (*api.PaymentRedirect, error) {
	plan, ok := PlanFor(tier)
	if !ok {
		return nil, ErrUnknownTier
	}
	if plan.Tier == api.TierFree {
		return nil, ErrFreeTier
	}
	if !f.session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	// An earlier attempt may still own a resumable marker; remember it so
	// a failed initiate here does not wipe it.
	prev, err := f.store.LoadPendingTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending payment: %w", err)
	}

	if err := f.store.SavePendingTier(ctx, tier); err != nil {
		return nil, fmt.Errorf("failed to persist pending payment: %w", err)
	}

	redirect, err := f.api.PaymentInitiate(ctx, tier)
	if err != nil {
		// Nothing external happened yet; put the marker back the way
		// this attempt found it.
		if prev == "" {
			if clearErr := f.store.ClearPendingTier(ctx); clearErr != nil {
				f.log.Warn("failed to clear pending payment", zap.Error(clearErr))
			}
		} else if saveErr := f.store.SavePendingTier(ctx, prev); saveErr != nil {
			f.log.Warn("failed to restore pending payment", zap.Error(saveErr))
		}
		return nil, err
	}

	f.mu.Lock()
	f.state = StateAwaitingExternal
	f.tier = tier
	f.mu.Unlock()
	return redirect, nil
}

// ConfirmPaid records the user's assertion that the external payment went
// through. Verification still decides.
func (f *Flow) ConfirmPaid() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAwaitingExternal {
		return ErrNotAwaiting
	}
	f.state = StateAwaitingVerification
	return nil
}

// Verify asks the service to confirm the payment and apply the upgrade.
// Safe to repeat: the server is the source of truth for whether the
// upgrade has already been applied.
func (f *Flow) Verify(ctx context.Context) (*api.VerifyResponse, error) {
	f.mu.Lock()
	state := f.state
	f.mu.Unlock()
	if state != StateAwaitingVerification && state != StateVerified {
		return nil, ErrNotAwaiting
	}

	resp, err := f.api.PaymentVerify(ctx)
	if err != nil {
		f.mu.Lock()
		f.state = StateAwaitingExternal
		f.mu.Unlock()
		return nil, fmt.Errorf("payment verification failed: %w", err)
	}

	if err := f.session.ApplyUser(ctx, resp.User); err != nil {
		f.log.Warn("failed to apply upgraded user", zap.Error(err))
	}
	if err := f.store.ClearPendingTier(ctx); err != nil {
		f.log.Warn("failed to clear pending payment", zap.Error(err))
	}

	f.mu.Lock()
	f.state = StateVerified
	f.tier = resp.Tier
	f.mu.Unlock()
	return resp, nil
}

// Rehydrate reloads a pending upgrade attempt from the durable marker in
// a fresh process, landing back at awaiting_external_action. The caller
// then asserts the payment happened via ConfirmPaid before verifying.
func (f *Flow) Rehydrate(ctx context.Context) error {
	tier, err := f.store.LoadPendingTier(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending payment: %w", err)
	}
	if tier == "" {
		return ErrNoPendingPayment
	}

	f.mu.Lock()
	f.state = StateAwaitingExternal
	f.tier = tier
	f.mu.Unlock()
	return nil
}

// Resume picks up an upgrade attempt after the provider redirected back
// in a fresh process: in-memory state is gone but the durable marker is
// not. A success outcome lands directly at awaiting_verification; a
// cancel outcome resets, keeping the marker for a later resume.
func (f *Flow) Resume(ctx context.Context, outcome string) error {
	tier, err := f.store.LoadPendingTier(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending payment: %w", err)
	}
	if tier == "" {
		return ErrNoPendingPayment
	}

	switch outcome {
	case "success":
		f.mu.Lock()
		f.state = StateAwaitingVerification
		f.tier = tier
		f.mu.Unlock()
		return nil
	case "cancel", "cancelled":
		f.mu.Lock()
		f.state = StateNone
		f.tier = ""
		f.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("unknown payment outcome %q", outcome)
	}
}

// Abandon explicitly drops the pending upgrade attempt and its marker.
func (f *Flow) Abandon(ctx context.Context) error {
	f.mu.Lock()
	f.state = StateNone
	f.tier = ""
	f.mu.Unlock()
	return f.store.ClearPendingTier(ctx)
}

// PendingTier exposes the durable marker for display.
func (f *Flow) PendingTier(ctx context.Context) (string, error) {
	return f.store.LoadPendingTier(ctx)
}
