// Package insight gates paid insight requests behind the credit ledger.
package insight

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vitwit/jobcredits/clients"
	"github.com/vitwit/jobcredits/ledger"
	"github.com/vitwit/jobcredits/logger"
	"github.com/vitwit/jobcredits/types"
)

// State of the gate
type State string

const (
	StateIdle    State = "idle"
	StateGated   State = "gated"
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// Outcome qualifies StateReady.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"
)

// ErrCancelled is returned by Request when Close interrupts the fetch.
var ErrCancelled = errors.New("insight fetch cancelled")

// View is a snapshot of the gate.
type View struct {
	State   State                `json:"state"`
	Outcome Outcome              `json:"outcome,omitempty"`
	Subject types.Subject        `json:"subject"`
	Result  *types.InsightResult `json:"result,omitempty"`
}

// Gate lets an insight request through only when a credit is available, and
// spends that credit only once the service has answered.
type Gate struct {
	service      clients.InsightService
	ledger       *ledger.Ledger
	logger       logger.Logger
	chargeEmpty  bool
	verifyQuota  bool
	fetchTimeout time.Duration

	mu      sync.Mutex
	state   State
	outcome Outcome
	subject types.Subject
	result  *types.InsightResult
	cancel  context.CancelFunc
	gen     uint64
}

type Option func(*Gate)

func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		g.logger = logger.OrNoop(l)
	}
}

// ChargeEmptyResults makes an empty answer consume the held credit.
func ChargeEmptyResults(charge bool) Option {
	return func(g *Gate) {
		g.chargeEmpty = charge
	}
}

// VerifyQuotaBeforeSpend refreshes the ledger before every reservation. A failed
// refresh aborts the request.
func VerifyQuotaBeforeSpend(verify bool) Option {
	return func(g *Gate) {
		g.verifyQuota = verify
	}
}

// WithFetchTimeout bounds a single service call.
func WithFetchTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.fetchTimeout = d
	}
}

func NewGate(service clients.InsightService, l *ledger.Ledger, opts ...Option) *Gate {
	g := &Gate{
		service:     service,
		ledger:      l,
		logger:      logger.NoopLogger{},
		chargeEmpty: true,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Request fetches insights for subject. Without an available credit the gate
// moves to StateGated and the service is not called. The call blocks until the
// service answers, ctx is done or Close is called.
func (g *Gate) Request(ctx context.Context, subject types.Subject) (View, error) {
	g.mu.Lock()
	if g.state == StateLoading {
		view := g.view()
		g.mu.Unlock()
		return view, types.NewError(types.ErrFetchInProgress, nil, "insights for %s are loading", view.Subject)
	}

	var (
		fetchCtx context.Context
		cancel   context.CancelFunc
	)
	if g.fetchTimeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, g.fetchTimeout)
	} else {
		fetchCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	g.gen++
	gen := g.gen
	g.state = StateLoading
	g.outcome = OutcomeNone
	g.subject = subject
	g.result = nil
	g.cancel = cancel
	g.mu.Unlock()

	log := g.logger.With(map[string]any{"subject": subject.String()})

	if g.verifyQuota {
		if account := g.ledger.Snapshot().AccountID; account != "" {
			if _, err := g.ledger.Refresh(fetchCtx, account); err != nil {
				return g.fail(gen, nil, err)
			}
		}
	}

	hold, err := g.ledger.Reserve()
	if err != nil {
		log.Info("no credits left, insight gated", nil)
		return g.gated(gen)
	}

	matches, err := g.service.Suggestions(fetchCtx, subject)
	if err != nil {
		if types.Code(err) == "" {
			err = types.NewError(types.ErrInsightFetchFailed, err, "failed to fetch insights for %s", subject)
		}
		log.Warn("insight fetch failed", map[string]any{"error": err})
		return g.fail(gen, hold, err)
	}

	result := &types.InsightResult{
		Subject:   subject,
		Matches:   matches,
		FetchedAt: time.Now(),
	}

	g.mu.Lock()
	if gen != g.gen {
		g.mu.Unlock()
		hold.Release()
		log.Debug("insight result discarded after close", nil)
		return g.View(), ErrCancelled
	}

	if result.Empty() {
		g.outcome = OutcomeEmpty
		if g.chargeEmpty {
			hold.Commit()
		} else {
			hold.Release()
		}
	} else {
		g.outcome = OutcomeSuccess
		hold.Commit()
	}
	g.state = StateReady
	g.result = result
	g.cancel = nil
	view := g.view()
	g.mu.Unlock()

	log.Info("insights ready", map[string]any{
		"matches":     len(matches),
		"recommended": result.RecommendedCount(),
		"balance":     g.ledger.Balance(),
	})
	return view, nil
}

// fail returns the gate to idle after err, releasing hold if any.
func (g *Gate) fail(gen uint64, hold *ledger.Hold, err error) (View, error) {
	if hold != nil {
		hold.Release()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		return g.view(), ErrCancelled
	}
	g.state = StateIdle
	g.cancel = nil
	return g.view(), err
}

// gated shows the purchase prompt unless the request was closed meanwhile.
func (g *Gate) gated(gen uint64) (View, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		return g.view(), ErrCancelled
	}
	g.state = StateGated
	g.cancel = nil
	return g.view(), nil
}

// Close dismisses the result or purchase prompt. While loading it cancels the
// call; its answer is discarded and no credit is spent.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateLoading {
		if g.cancel != nil {
			g.cancel()
		}
		g.gen++
		g.logger.Info("insight fetch cancelled", map[string]any{"subject": g.subject.String()})
	}
	g.state = StateIdle
	g.outcome = OutcomeNone
	g.result = nil
	g.cancel = nil
}

// View returns the current state.
func (g *Gate) View() View {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.view()
}

func (g *Gate) view() View {
	return View{
		State:   g.state,
		Outcome: g.outcome,
		Subject: g.subject,
		Result:  g.result,
	}
}
