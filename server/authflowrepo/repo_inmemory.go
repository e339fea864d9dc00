package authflowrepo

import (
	"sync"
	"time"

	"github.com/facebookgo/clock"
	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface. Flows older
// than the timeout are treated as missing.
type InMemoryRepo struct {
	mu      sync.Mutex
	states  map[string]*AuthFlowState
	timeout time.Duration
	clock   clock.Clock
}

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(timeout time.Duration, clk clock.Clock) *InMemoryRepo {
	if clk == nil {
		clk = clock.New()
	}
	return &InMemoryRepo{
		states:  make(map[string]*AuthFlowState),
		timeout: timeout,
		clock:   clk,
	}
}

// Upsert stores or updates an auth flow state. A zero CreatedAt is stamped with the current time.
func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return errs.Wrapf(errs.ErrInvalidState, "state cannot be empty")
	}
	if authState == nil {
		return errs.Wrapf(errs.ErrInvalidState, "authState cannot be nil")
	}

	stored := *authState
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = r.clock.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[state] = &stored
	return nil
}

func (r *InMemoryRepo) Take(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errs.Wrapf(errs.ErrInvalidState, "state cannot be empty")
	}

	r.mu.Lock()
	authState, exists := r.states[state]
	delete(r.states, state)
	r.mu.Unlock()

	if !exists {
		return nil, errs.Wrapf(errs.ErrInvalidState, "state not found")
	}
	if r.expired(authState) {
		return nil, errs.Wrapf(errs.ErrInvalidState, "state expired")
	}

	taken := *authState
	return &taken, nil
}

func (r *InMemoryRepo) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for state, authState := range r.states {
		if authState.CreatedAt.Before(cutoff) {
			delete(r.states, state)
			pruned++
		}
	}
	return pruned
}

// Len reports how many flows are pending.
func (r *InMemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *InMemoryRepo) expired(authState *AuthFlowState) bool {
	return r.timeout > 0 && r.clock.Now().Sub(authState.CreatedAt) > r.timeout
}
