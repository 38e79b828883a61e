package jobcredits

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jobcredits/clients"
	"github.com/vitwit/jobcredits/insight"
	"github.com/vitwit/jobcredits/metrics"
	"github.com/vitwit/jobcredits/types"
	"github.com/vitwit/jobcredits/wallet"
)

type fakeChain struct {
	mu        sync.Mutex
	submitted int
}

func (f *fakeChain) RecentAnchor(context.Context) (*clients.Anchor, error) {
	return &clients.Anchor{Blockhash: solana.Hash{8}}, nil
}

func (f *fakeChain) Submit(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.mu.Lock()
	f.submitted++
	f.mu.Unlock()
	return tx.Signatures[0], nil
}

func (f *fakeChain) Confirm(_ context.Context, sig solana.Signature, _ uint64) (*clients.Confirmation, error) {
	return &clients.Confirmation{Signature: sig, Slot: 7, Status: rpc.ConfirmationStatusFinalized}, nil
}

func (f *fakeChain) GetNetwork() types.Network { return types.NetworkSolanaDevnet }

func (f *fakeChain) Close() {}

type fakeQuota struct {
	credits int
	err     error
}

func (f *fakeQuota) GetCredits(context.Context, string) (int, error) { return f.credits, f.err }

type fakeInsights struct {
	matches []types.InsightMatch
	err     error
	calls   atomic.Int32
}

func (f *fakeInsights) Suggestions(context.Context, types.Subject) ([]types.InsightMatch, error) {
	f.calls.Add(1)
	return f.matches, f.err
}

type recorder struct {
	mu    sync.Mutex
	notes []types.Notification
}

func (r *recorder) Notify(n types.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var codes []string
	for _, n := range r.notes {
		codes = append(codes, n.Code)
	}
	return codes
}

type fixture struct {
	ctrl     *Controller
	chain    *fakeChain
	quota    *fakeQuota
	insights *fakeInsights
	notes    *recorder
}

func newFixture(t *testing.T, credits int, opts ...Option) *fixture {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	f := &fixture{
		chain: &fakeChain{},
		quota: &fakeQuota{credits: credits},
		insights: &fakeInsights{matches: []types.InsightMatch{
			{SubjectName: "Go Engineer", SubjectIdentifier: "Globex", MatchingScore: 88, Recommended: true},
			{SubjectName: "SRE", SubjectIdentifier: "Initech", MatchingScore: 64},
		}},
		notes: &recorder{},
	}

	base := []Option{
		WithChainClient(f.chain),
		WithQuotaService(f.quota),
		WithInsightService(f.insights),
		WithWallet(wallet.NewKeypairProvider(key)),
		WithNotifier(f.notes),
	}
	f.ctrl, err = New(nil, append(base, opts...)...)
	require.NoError(t, err)

	_, err = f.ctrl.Init(context.Background(), "user-1")
	require.NoError(t, err)
	return f
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.PriceSOL = "free"
	_, err := New(cfg)
	assert.ErrorIs(t, err, types.ConfigError)
}

func TestRequestInsightsSpendsOneCredit(t *testing.T) {
	f := newFixture(t, 3)

	view, err := f.ctrl.RequestInsights(context.Background(), types.SeekerSubject("user-1"))
	require.NoError(t, err)
	assert.Equal(t, insight.StateReady, view.State)
	assert.Equal(t, 2, f.ctrl.Credits())
	assert.Equal(t, 1, view.Result.RecommendedCount())
	assert.Equal(t, 88, view.Result.TopScore())
	assert.EqualValues(t, 1, f.insights.calls.Load())
	assert.False(t, f.ctrl.State().PurchasePromptOpen)
}

func TestZeroBalanceOpensPurchasePrompt(t *testing.T) {
	f := newFixture(t, 0)

	view, err := f.ctrl.RequestInsights(context.Background(), types.JobSubject("job-1"))
	require.NoError(t, err)
	assert.Equal(t, insight.StateGated, view.State)
	assert.Zero(t, f.insights.calls.Load())
	assert.True(t, f.ctrl.State().PurchasePromptOpen)
	assert.Contains(t, f.notes.codes(), types.ErrInsufficientCredits)

	f.ctrl.CloseInsights()
	assert.False(t, f.ctrl.State().PurchasePromptOpen)
}

func TestPurchaseAddsBundleAndClosesPrompt(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.ctrl.RequestInsights(context.Background(), types.SeekerSubject("user-1"))
	require.NoError(t, err)
	require.True(t, f.ctrl.State().PurchasePromptOpen)

	receipt, err := f.ctrl.Purchase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, receipt.Credits)
	assert.Equal(t, "finalized", receipt.Status)
	assert.Equal(t, 10, f.ctrl.Credits())
	assert.Equal(t, 1, f.chain.submitted)

	state := f.ctrl.State()
	assert.False(t, state.PurchasePromptOpen)
	assert.True(t, state.Wallet.Connected)
	assert.Equal(t, insight.StateIdle, state.Insight.State)

	view, err := f.ctrl.RequestInsights(context.Background(), types.SeekerSubject("user-1"))
	require.NoError(t, err)
	assert.Equal(t, insight.StateReady, view.State)
	assert.Equal(t, 9, f.ctrl.Credits())
}

func TestPurchaseWithoutWallet(t *testing.T) {
	f := newFixture(t, 0, WithWallet(nil))

	_, err := f.ctrl.Purchase(context.Background())
	assert.ErrorIs(t, err, types.WalletNotInstalled)
	assert.Equal(t, 0, f.ctrl.Credits())
	assert.Zero(t, f.chain.submitted)
	assert.Contains(t, f.notes.codes(), types.ErrWalletNotInstalled)
}

func TestRejectedSignatureKeepsBalanceAndSession(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	f := newFixture(t, 2, WithWallet(wallet.NewKeypairProvider(key, wallet.RejectSign())))

	session, err := f.ctrl.ConnectWallet(context.Background())
	require.NoError(t, err)

	_, err = f.ctrl.Purchase(context.Background())
	assert.ErrorIs(t, err, types.SigningRejected)
	assert.Equal(t, 2, f.ctrl.Credits())
	assert.Equal(t, session, f.ctrl.State().Wallet)
	assert.Contains(t, f.notes.codes(), types.ErrSigningRejected)
}

func TestFailedInsightKeepsBalanceAndNotifies(t *testing.T) {
	f := newFixture(t, 2)
	f.insights.err = errors.New("timeout")

	_, err := f.ctrl.RequestInsights(context.Background(), types.SeekerSubject("user-1"))
	assert.ErrorIs(t, err, types.InsightFetchFailed)
	assert.Equal(t, 2, f.ctrl.Credits())
	assert.Equal(t, []string{types.ErrInsightFetchFailed}, f.notes.codes())
}

func TestRefreshFailureKeepsCache(t *testing.T) {
	f := newFixture(t, 4)
	f.quota.err = errors.New("503")

	credits, err := f.ctrl.RefreshCredits(context.Background())
	assert.ErrorIs(t, err, types.QuotaFetchFailed)
	assert.Equal(t, 4, credits)
	assert.Equal(t, 4, f.ctrl.Credits())
}

type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func (r *countingRecorder) IncCounter(name string, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[name]++
}

func (r *countingRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

func TestControllerRecordsMetrics(t *testing.T) {
	rec := &countingRecorder{events: map[string]int{}}
	f := newFixture(t, 1, WithMetrics(rec))

	_, err := f.ctrl.RequestInsights(context.Background(), types.SeekerSubject("user-1"))
	require.NoError(t, err)
	_, err = f.ctrl.RequestInsights(context.Background(), types.SeekerSubject("user-1"))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		metrics.EventQuotaRefreshed: 1,
		metrics.EventInsightSuccess: 1,
		metrics.EventInsightGated:   1,
	}, rec.events)
}

func TestZeroConfigChargesEmptyResults(t *testing.T) {
	insights := &fakeInsights{}
	ctrl, err := New(&types.Config{},
		WithChainClient(&fakeChain{}),
		WithQuotaService(&fakeQuota{credits: 3}),
		WithInsightService(insights),
	)
	require.NoError(t, err)
	_, err = ctrl.Init(context.Background(), "user-1")
	require.NoError(t, err)

	view, err := ctrl.RequestInsights(context.Background(), types.SeekerSubject("user-1"))
	require.NoError(t, err)
	assert.Equal(t, insight.OutcomeEmpty, view.Outcome)
	assert.Equal(t, 2, ctrl.Credits())
}

func TestRefundEmptyResults(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.RefundEmptyResults = true
	ctrl, err := New(cfg,
		WithChainClient(&fakeChain{}),
		WithQuotaService(&fakeQuota{credits: 3}),
		WithInsightService(&fakeInsights{}),
	)
	require.NoError(t, err)
	_, err = ctrl.Init(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = ctrl.RequestInsights(context.Background(), types.SeekerSubject("user-1"))
	require.NoError(t, err)
	assert.Equal(t, 3, ctrl.Credits())
}
