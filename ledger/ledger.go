// Package ledger keeps the locally cached credit balance of one account.
//
// The cache is optimistic: it is resynchronised from the quota service by Refresh
// and adjusted locally after confirmed purchases and successful insight calls.
// Every mutation happens under one mutex, and insight fetches hold a credit through
// Reserve so that two concurrent fetches can never both spend the last credit.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/vitwit/jobcredits/clients"
	"github.com/vitwit/jobcredits/logger"
	"github.com/vitwit/jobcredits/types"
	"golang.org/x/sync/singleflight"
)

// Snapshot is a point-in-time view of the ledger.
type Snapshot struct {
	AccountID   string    `json:"accountId"`
	Balance     int       `json:"balance"`
	Held        int       `json:"held"`
	Available   int       `json:"available"`
	Synced      bool      `json:"synced"`
	RefreshedAt time.Time `json:"refreshedAt,omitempty"`
}

// Ledger is safe for concurrent use.
type Ledger struct {
	quota          clients.QuotaService
	logger         logger.Logger
	group          singleflight.Group
	refreshTimeout time.Duration

	mu          sync.Mutex
	accountID   string
	balance     int
	held        int
	synced      bool
	refreshedAt time.Time
}

type Option func(*Ledger)

func WithLogger(l logger.Logger) Option {
	return func(lg *Ledger) {
		lg.logger = logger.OrNoop(l)
	}
}

// WithRefreshTimeout bounds one quota call. The call is shared by concurrent
// refreshes, so it does not follow any single caller's context.
func WithRefreshTimeout(d time.Duration) Option {
	return func(lg *Ledger) {
		if d > 0 {
			lg.refreshTimeout = d
		}
	}
}

// WithBalance seeds the cache, e.g. from a previous session.
func WithBalance(balance int) Option {
	return func(lg *Ledger) {
		if balance > 0 {
			lg.balance = balance
		}
	}
}

func New(quota clients.QuotaService, opts ...Option) *Ledger {
	l := &Ledger{
		quota:          quota,
		logger:         logger.NoopLogger{},
		refreshTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Refresh replaces the cached balance with the authoritative one. On failure the
// previous value is kept. Concurrent refreshes of the same account share one call;
// a caller giving up early does not abort it for the others.
func (l *Ledger) Refresh(ctx context.Context, accountID string) (int, error) {
	if l.quota == nil {
		return l.Balance(), types.NewError(types.ErrQuotaFetchFailed, nil, "no quota service configured")
	}

	ch := l.group.DoChan(accountID, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.refreshTimeout)
		defer cancel()
		credits, err := l.quota.GetCredits(callCtx, accountID)
		if err != nil {
			return 0, err
		}
		return l.store(accountID, credits), nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return l.Balance(), types.NewError(types.ErrQuotaFetchFailed, ctx.Err(), "failed to fetch credits for %s", accountID)
	}

	if err := res.Err; err != nil {
		l.logger.Warn("credit refresh failed, keeping cached balance", map[string]any{
			"account": accountID,
			"cached":  l.Balance(),
			"error":   err,
		})
		if types.Code(err) != types.ErrQuotaFetchFailed {
			err = types.NewError(types.ErrQuotaFetchFailed, err, "failed to fetch credits for %s", accountID)
		}
		return l.Balance(), err
	}

	credits := res.Val.(int)
	l.logger.Debug("credits refreshed", map[string]any{
		"account": accountID,
		"balance": credits,
		"shared":  res.Shared,
	})
	return credits, nil
}

func (l *Ledger) store(accountID string, credits int) int {
	credits = max(credits, 0)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.accountID = accountID
	l.balance = credits
	l.synced = true
	l.refreshedAt = time.Now()
	return credits
}

// Balance is the cached balance, including credits currently held.
func (l *Ledger) Balance() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Available is the balance minus outstanding holds.
func (l *Ledger) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available()
}

// available may not go negative when a refresh lowers the balance under
// outstanding holds.
func (l *Ledger) available() int {
	return max(l.balance-l.held, 0)
}

// CanSpend reports whether at least one credit is available.
func (l *Ledger) CanSpend() bool {
	return l.Available() > 0
}

// Spend consumes one available credit. It fails with INSUFFICIENT_CREDITS rather
// than going below zero.
func (l *Ledger) Spend() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.available() <= 0 {
		return types.NewError(types.ErrInsufficientCredits, nil, "no credits left")
	}
	l.balance--
	return nil
}

// TopUp adds n credits.
func (l *Ledger) TopUp(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > 0 {
		l.balance += n
	}
	return l.balance
}

// Reserve holds one credit for an in-flight insight call.
func (l *Ledger) Reserve() (*Hold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.available() <= 0 {
		return nil, types.NewError(types.ErrInsufficientCredits, nil, "no credits left")
	}
	l.held++
	return &Hold{ledger: l}, nil
}

func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		AccountID:   l.accountID,
		Balance:     l.balance,
		Held:        l.held,
		Available:   l.available(),
		Synced:      l.synced,
		RefreshedAt: l.refreshedAt,
	}
}

func (l *Ledger) settle(spend bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held--
	if spend && l.balance > 0 {
		l.balance--
	}
}

// Hold is one reserved credit. Exactly one of Commit or Release takes effect;
// later calls are no-ops.
type Hold struct {
	ledger *Ledger
	once   sync.Once
}

// Commit spends the held credit.
func (h *Hold) Commit() {
	h.once.Do(func() { h.ledger.settle(true) })
}

// Release returns the held credit to the available balance.
func (h *Hold) Release() {
	h.once.Do(func() { h.ledger.settle(false) })
}
