package insight

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jobcredits/ledger"
	"github.com/vitwit/jobcredits/types"
)

type fakeService struct {
	matches []types.InsightMatch
	err     error
	block   chan struct{}
	calls   atomic.Int32
}

func (f *fakeService) Suggestions(ctx context.Context, subject types.Subject) ([]types.InsightMatch, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type fakeQuota struct{ credits int }

func (f fakeQuota) GetCredits(context.Context, string) (int, error) { return f.credits, nil }

var twoMatches = []types.InsightMatch{
	{SubjectName: "Rust Engineer", SubjectIdentifier: "Acme", MatchingScore: 72, Recommended: false},
	{SubjectName: "Go Engineer", SubjectIdentifier: "Globex", MatchingScore: 91, Recommended: true},
}

func waitLoading(t *testing.T, g *Gate) {
	t.Helper()
	require.Eventually(t, func() bool { return g.View().State == StateLoading }, time.Second, time.Millisecond)
}

func waitCalled(t *testing.T, svc *fakeService) {
	t.Helper()
	require.Eventually(t, func() bool { return svc.calls.Load() > 0 }, time.Second, time.Millisecond)
}

func TestRequestSpendsOneCreditOnSuccess(t *testing.T) {
	svc := &fakeService{matches: twoMatches}
	l := ledger.New(nil, ledger.WithBalance(3))
	g := NewGate(svc, l)

	view, err := g.Request(context.Background(), types.SeekerSubject("user-1"))
	require.NoError(t, err)

	assert.Equal(t, StateReady, view.State)
	assert.Equal(t, OutcomeSuccess, view.Outcome)
	assert.Equal(t, 2, l.Balance())
	assert.EqualValues(t, 1, svc.calls.Load())
	require.NotNil(t, view.Result)
	assert.Equal(t, 1, view.Result.RecommendedCount())
	assert.Equal(t, 91, view.Result.TopScore())
}

func TestRequestWithoutCreditsIsGated(t *testing.T) {
	svc := &fakeService{matches: twoMatches}
	l := ledger.New(nil)
	g := NewGate(svc, l)

	view, err := g.Request(context.Background(), types.JobSubject("job-1"))
	require.NoError(t, err)
	assert.Equal(t, StateGated, view.State)
	assert.Nil(t, view.Result)
	assert.Zero(t, svc.calls.Load())
	assert.Equal(t, 0, l.Balance())

	g.Close()
	assert.Equal(t, StateIdle, g.View().State)
}

func TestGatedAfterCloseStaysIdle(t *testing.T) {
	g := NewGate(&fakeService{}, ledger.New(nil))
	g.mu.Lock()
	g.gen++
	gen := g.gen
	g.state = StateLoading
	g.mu.Unlock()

	g.Close()
	view, err := g.gated(gen)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StateIdle, view.State)
}

func TestFailedRequestKeepsBalance(t *testing.T) {
	svc := &fakeService{err: errors.New("502 bad gateway")}
	l := ledger.New(nil, ledger.WithBalance(2))
	g := NewGate(svc, l)

	view, err := g.Request(context.Background(), types.SeekerSubject("user-1"))
	assert.ErrorIs(t, err, types.InsightFetchFailed)
	assert.Equal(t, StateIdle, view.State)
	assert.Equal(t, 2, l.Balance())
	assert.Equal(t, 2, l.Available())
}

func TestEmptyResult(t *testing.T) {
	t.Run("charged by default", func(t *testing.T) {
		l := ledger.New(nil, ledger.WithBalance(2))
		view, err := NewGate(&fakeService{}, l).Request(context.Background(), types.SeekerSubject("u"))
		require.NoError(t, err)
		assert.Equal(t, StateReady, view.State)
		assert.Equal(t, OutcomeEmpty, view.Outcome)
		assert.Equal(t, 1, l.Balance())
	})

	t.Run("free when configured", func(t *testing.T) {
		l := ledger.New(nil, ledger.WithBalance(2))
		view, err := NewGate(&fakeService{}, l, ChargeEmptyResults(false)).Request(context.Background(), types.SeekerSubject("u"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeEmpty, view.Outcome)
		assert.Equal(t, 2, l.Balance())
	})
}

func TestRequestWhileLoading(t *testing.T) {
	svc := &fakeService{matches: twoMatches, block: make(chan struct{})}
	l := ledger.New(nil, ledger.WithBalance(5))
	g := NewGate(svc, l)

	done := make(chan error, 1)
	go func() {
		_, err := g.Request(context.Background(), types.SeekerSubject("user-1"))
		done <- err
	}()
	waitLoading(t, g)

	_, err := g.Request(context.Background(), types.SeekerSubject("user-1"))
	assert.ErrorIs(t, err, types.FetchInProgress)

	close(svc.block)
	require.NoError(t, <-done)
	assert.Equal(t, 4, l.Balance())
	assert.EqualValues(t, 1, svc.calls.Load())
}

func TestCloseWhileLoadingSpendsNothing(t *testing.T) {
	svc := &fakeService{matches: twoMatches, block: make(chan struct{})}
	l := ledger.New(nil, ledger.WithBalance(1))
	g := NewGate(svc, l)

	done := make(chan error, 1)
	go func() {
		_, err := g.Request(context.Background(), types.SeekerSubject("user-1"))
		done <- err
	}()
	waitCalled(t, svc)

	g.Close()
	assert.ErrorIs(t, <-done, ErrCancelled)
	assert.Equal(t, StateIdle, g.View().State)
	assert.Equal(t, 1, l.Balance())
	assert.Equal(t, 1, l.Available())
}

func TestNewRequestDiscardsPreviousResult(t *testing.T) {
	svc := &fakeService{matches: twoMatches}
	l := ledger.New(nil, ledger.WithBalance(1))
	g := NewGate(svc, l)

	_, err := g.Request(context.Background(), types.SeekerSubject("user-1"))
	require.NoError(t, err)

	view, err := g.Request(context.Background(), types.JobSubject("job-9"))
	require.NoError(t, err)
	assert.Equal(t, StateGated, view.State)
	assert.Nil(t, view.Result)
	assert.Equal(t, types.JobSubject("job-9"), view.Subject)
}

func TestDoubleClickAtLastCredit(t *testing.T) {
	svc := &fakeService{matches: twoMatches, block: make(chan struct{})}
	l := ledger.New(nil, ledger.WithBalance(1))
	seeker := NewGate(svc, l)
	recruiter := NewGate(svc, l)

	done := make(chan error, 1)
	go func() {
		_, err := seeker.Request(context.Background(), types.SeekerSubject("user-1"))
		done <- err
	}()
	waitCalled(t, svc)

	view, err := recruiter.Request(context.Background(), types.JobSubject("job-1"))
	require.NoError(t, err)
	assert.Equal(t, StateGated, view.State)

	close(svc.block)
	require.NoError(t, <-done)
	assert.Equal(t, 0, l.Balance())
	assert.EqualValues(t, 1, svc.calls.Load())
}

func TestVerifyQuotaBeforeSpend(t *testing.T) {
	l := ledger.New(fakeQuota{credits: 0}, ledger.WithBalance(5))
	_, err := l.Refresh(context.Background(), "user-1")
	require.NoError(t, err)
	l.TopUp(5)

	svc := &fakeService{matches: twoMatches}
	view, err := NewGate(svc, l, VerifyQuotaBeforeSpend(true)).Request(context.Background(), types.SeekerSubject("user-1"))
	require.NoError(t, err)
	assert.Equal(t, StateGated, view.State)
	assert.Zero(t, svc.calls.Load())
	assert.Equal(t, 0, l.Balance())
}
