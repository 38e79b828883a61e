package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jobcredits/types"
)

type fakeQuota struct {
	credits int
	err     error
	calls   atomic.Int32
	delay   time.Duration
	release chan struct{}
}

func (f *fakeQuota) GetCredits(ctx context.Context, accountID string) (int, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.release != nil {
		<-f.release
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.credits, nil
}

func TestRefresh(t *testing.T) {
	q := &fakeQuota{credits: 4}
	l := New(q)

	got, err := l.Refresh(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	snap := l.Snapshot()
	assert.Equal(t, "user-1", snap.AccountID)
	assert.Equal(t, 4, snap.Available)
	assert.True(t, snap.Synced)
}

func TestRefreshFailureKeepsCachedBalance(t *testing.T) {
	q := &fakeQuota{credits: 3}
	l := New(q)
	_, err := l.Refresh(context.Background(), "user-1")
	require.NoError(t, err)

	q.err = errors.New("connection refused")
	got, err := l.Refresh(context.Background(), "user-1")
	assert.ErrorIs(t, err, types.QuotaFetchFailed)
	assert.Equal(t, 3, got)
	assert.Equal(t, 3, l.Balance())
}

func TestRefreshWithoutService(t *testing.T) {
	l := New(nil, WithBalance(2))
	_, err := l.Refresh(context.Background(), "user-1")
	assert.ErrorIs(t, err, types.QuotaFetchFailed)
	assert.Equal(t, 2, l.Balance())
}

func TestConcurrentRefreshSharesOneCall(t *testing.T) {
	q := &fakeQuota{credits: 7, delay: 50 * time.Millisecond}
	l := New(q)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Refresh(context.Background(), "user-1")
		}()
	}
	wg.Wait()

	assert.Less(t, q.calls.Load(), int32(5))
	assert.Equal(t, 7, l.Balance())
}

func TestCancelledRefreshDoesNotFailSharedCall(t *testing.T) {
	q := &fakeQuota{credits: 7, release: make(chan struct{})}
	l := New(q, WithBalance(2))

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Refresh(first, "user-1")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return q.calls.Load() == 1 }, time.Second, time.Millisecond)

	type result struct {
		credits int
		err     error
	}
	second := make(chan result, 1)
	go func() {
		credits, err := l.Refresh(context.Background(), "user-1")
		second <- result{credits, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-firstErr
	assert.ErrorIs(t, err, types.QuotaFetchFailed)
	assert.ErrorIs(t, err, context.Canceled)

	close(q.release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 7, got.credits)
	assert.Equal(t, 7, l.Balance())
	assert.EqualValues(t, 1, q.calls.Load())
}

func TestSpendAndTopUp(t *testing.T) {
	l := New(nil, WithBalance(1))
	assert.True(t, l.CanSpend())

	require.NoError(t, l.Spend())
	assert.Equal(t, 0, l.Balance())
	assert.False(t, l.CanSpend())

	assert.ErrorIs(t, l.Spend(), types.InsufficientCredits)
	assert.Equal(t, 0, l.Balance())

	assert.Equal(t, 10, l.TopUp(10))
	assert.Equal(t, 10, l.TopUp(-3))
}

func TestReserveCommitAndRelease(t *testing.T) {
	l := New(nil, WithBalance(2))

	h1, err := l.Reserve()
	require.NoError(t, err)
	assert.Equal(t, 2, l.Balance())
	assert.Equal(t, 1, l.Available())

	h2, err := l.Reserve()
	require.NoError(t, err)
	assert.False(t, l.CanSpend())

	h1.Commit()
	h1.Release()
	h2.Release()
	h2.Commit()

	snap := l.Snapshot()
	assert.Equal(t, 1, snap.Balance)
	assert.Equal(t, 0, snap.Held)
	assert.Equal(t, 1, snap.Available)
}

func TestDoubleReserveAtOneSpendsOnce(t *testing.T) {
	l := New(nil, WithBalance(1))

	var wg sync.WaitGroup
	var granted atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := l.Reserve()
			if err != nil {
				return
			}
			granted.Add(1)
			h.Commit()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, granted.Load())
	assert.Equal(t, 0, l.Balance())
}

func TestRefreshBelowHeldNeverGoesNegative(t *testing.T) {
	q := &fakeQuota{credits: 0}
	l := New(q, WithBalance(1))

	h, err := l.Reserve()
	require.NoError(t, err)
	_, err = l.Refresh(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 0, l.Available())
	h.Commit()
	assert.Equal(t, 0, l.Balance())
	assert.Equal(t, 0, l.Available())
}
