// Package jobcredits implements the credit-gated insight flow of the job platform:
// a local credit ledger, a wallet-paid credit purchase on Solana, and a gate that
// lets insight requests through only while credits remain.
package jobcredits

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/vitwit/jobcredits/clients"
	"github.com/vitwit/jobcredits/insight"
	"github.com/vitwit/jobcredits/ledger"
	"github.com/vitwit/jobcredits/logger"
	"github.com/vitwit/jobcredits/metrics"
	"github.com/vitwit/jobcredits/payment"
	"github.com/vitwit/jobcredits/types"
	"github.com/vitwit/jobcredits/utils"
	"github.com/vitwit/jobcredits/wallet"
)

// State is a snapshot of everything a screen renders.
type State struct {
	AccountID          string              `json:"accountId"`
	Credits            ledger.Snapshot     `json:"credits"`
	Wallet             types.WalletSession `json:"wallet"`
	Insight            insight.View        `json:"insight"`
	PurchasePromptOpen bool                `json:"purchasePromptOpen"`
	PurchaseInProgress bool                `json:"purchaseInProgress"`
}

// Controller is the main struct mediating between the ledger, the wallet, the
// purchaser and the insight gate
type Controller struct {
	config *types.Config

	logger     logger.Logger
	metrics    metrics.Recorder
	notifier   Notifier
	timeout    time.Duration
	httpClient *http.Client
	token      string

	provider   wallet.Provider
	walletKind string
	chain      clients.NetworkClient
	quota      clients.QuotaService
	insights   clients.InsightService

	api       *clients.APIClient
	wallet    *wallet.Manager
	ledger    *ledger.Ledger
	gate      *insight.Gate
	purchaser *payment.Purchaser

	mu         sync.Mutex
	accountID  string
	promptOpen bool
}

// New creates a controller for cfg. A nil cfg uses types.DefaultConfig.
func New(cfg *types.Config, opts ...Option) (*Controller, error) {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	if err := utils.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	c := &Controller{config: cfg}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = logger.OrNoop(c.logger)
	c.metrics = metrics.OrNoop(c.metrics)
	if c.notifier == nil {
		c.notifier = noopNotifier{}
	}
	if c.timeout <= 0 {
		c.timeout = cfg.Timeouts.HTTP
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	c.api = clients.NewAPIClient(cfg.APIBaseURL,
		clients.WithHTTPClient(c.httpClient),
		clients.WithSessionToken(c.token),
		clients.WithAPILogger(c.logger.With(map[string]any{"component": "api"})),
	)
	if c.quota == nil {
		c.quota = c.api
	}
	if c.insights == nil {
		c.insights = c.api
	}

	if c.chain == nil {
		chain, err := clients.NewSolanaClient(cfg.Network, cfg.RPCURL,
			clients.WithPolling(cfg.ConfirmPollInterval, cfg.ConfirmAttempts),
			clients.WithSolanaLogger(c.logger.With(map[string]any{"component": "solana"})),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Solana client for %s: %w", cfg.Network, err)
		}
		c.chain = chain
	}

	terms, err := payment.TermsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	c.wallet = wallet.NewManager(c.provider,
		wallet.WithKind(c.walletKind),
		wallet.WithLogger(c.logger.With(map[string]any{"component": "wallet"})),
	)
	c.ledger = ledger.New(c.quota,
		ledger.WithLogger(c.logger.With(map[string]any{"component": "ledger"})),
		ledger.WithRefreshTimeout(cfg.Timeouts.HTTP),
	)
	c.gate = insight.NewGate(c.insights, c.ledger,
		insight.WithLogger(c.logger.With(map[string]any{"component": "insight"})),
		insight.ChargeEmptyResults(!cfg.RefundEmptyResults),
		insight.VerifyQuotaBeforeSpend(cfg.VerifyQuotaBeforeSpend),
		insight.WithFetchTimeout(c.timeout),
	)
	c.purchaser = payment.NewPurchaser(c.chain, c.wallet, terms,
		payment.WithLogger(c.logger.With(map[string]any{"component": "payment"})),
		payment.WithTimeouts(cfg.Timeouts),
	)

	return c, nil
}

// Init binds the controller to accountID and loads its balance.
func (c *Controller) Init(ctx context.Context, accountID string) (int, error) {
	c.mu.Lock()
	c.accountID = accountID
	c.mu.Unlock()
	return c.RefreshCredits(ctx)
}

// RefreshCredits reloads the balance from the quota service. On failure the
// cached balance is kept and returned.
func (c *Controller) RefreshCredits(ctx context.Context) (int, error) {
	account := c.AccountID()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	credits, err := c.ledger.Refresh(ctx, account)
	c.metrics.ObserveLatency(metrics.OpQuota, time.Since(start), nil)
	if err != nil {
		c.metrics.IncCounter(metrics.EventQuotaFailed, nil)
		return credits, c.fail(err)
	}
	c.metrics.IncCounter(metrics.EventQuotaRefreshed, nil)
	return credits, nil
}

// ConnectWallet connects the configured wallet provider.
func (c *Controller) ConnectWallet(ctx context.Context) (types.WalletSession, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeouts.Connect)
	defer cancel()

	session, err := c.wallet.Connect(ctx)
	if err != nil {
		c.metrics.IncCounter(metrics.EventWalletFailed, nil)
		return session, c.fail(err)
	}
	c.metrics.IncCounter(metrics.EventWalletConnected, nil)
	return session, nil
}

func (c *Controller) DisconnectWallet(ctx context.Context) error {
	return c.wallet.Disconnect(ctx)
}

// Purchase buys one credit bundle, connecting the wallet first when needed. The
// credits are added only once the transfer is confirmed, which also closes the
// purchase prompt.
func (c *Controller) Purchase(ctx context.Context) (*types.PurchaseReceipt, error) {
	if !c.wallet.Session().Connected {
		if _, err := c.ConnectWallet(ctx); err != nil {
			return nil, err
		}
	}

	payer, err := c.wallet.PublicKey()
	if err != nil {
		return nil, c.fail(err)
	}

	start := time.Now()
	receipt, err := c.purchaser.Purchase(ctx, payer)
	c.metrics.ObserveLatency(metrics.OpPurchase, time.Since(start), nil)
	if err != nil {
		c.metrics.IncCounter(metrics.EventPurchaseFailed, nil)
		return nil, c.fail(err)
	}

	balance := c.ledger.TopUp(receipt.Credits)
	c.metrics.IncCounter(metrics.EventPurchaseConfirmed, nil)

	c.mu.Lock()
	c.promptOpen = false
	c.mu.Unlock()
	if c.gate.View().State == insight.StateGated {
		c.gate.Close()
	}

	c.logger.Info("credits purchased", map[string]any{
		"signature": receipt.Signature,
		"credits":   receipt.Credits,
		"balance":   balance,
	})
	c.notifier.Notify(types.Notification{
		Level:     types.LevelSuccess,
		Message:   fmt.Sprintf("Purchased %d credits", receipt.Credits),
		Timestamp: time.Now(),
	})
	return receipt, nil
}

// RequestInsights runs a gated insight request for subject. When no credit is
// left the purchase prompt opens and the returned view is gated.
func (c *Controller) RequestInsights(ctx context.Context, subject types.Subject) (insight.View, error) {
	labels := map[string]string{"subject": string(subject.Kind)}

	start := time.Now()
	view, err := c.gate.Request(ctx, subject)
	switch {
	case errors.Is(err, insight.ErrCancelled):
		c.metrics.IncCounter(metrics.EventInsightCancelled, labels)
		return view, err
	case err != nil:
		c.metrics.IncCounter(metrics.EventInsightFailed, labels)
		return view, c.fail(err)
	}

	switch view.State {
	case insight.StateGated:
		c.mu.Lock()
		c.promptOpen = true
		c.mu.Unlock()
		c.metrics.IncCounter(metrics.EventInsightGated, labels)
		c.notifier.Notify(types.Notification{
			Level:     types.LevelInfo,
			Code:      types.ErrInsufficientCredits,
			Message:   "No credits left, purchase more to see insights",
			Timestamp: time.Now(),
		})
	case insight.StateReady:
		c.metrics.ObserveLatency(metrics.OpInsight, time.Since(start), labels)
		if view.Outcome == insight.OutcomeEmpty {
			c.metrics.IncCounter(metrics.EventInsightEmpty, labels)
		} else {
			c.metrics.IncCounter(metrics.EventInsightSuccess, labels)
		}
	}
	return view, nil
}

// CloseInsights dismisses the insight panel or the purchase prompt, cancelling
// a fetch in flight.
func (c *Controller) CloseInsights() {
	c.gate.Close()
	c.mu.Lock()
	c.promptOpen = false
	c.mu.Unlock()
}

// Credits returns the cached balance.
func (c *Controller) Credits() int {
	return c.ledger.Balance()
}

func (c *Controller) AccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// API exposes the backend client for the job listing endpoints.
func (c *Controller) API() *clients.APIClient {
	return c.api
}

// Network is the cluster purchases settle on.
func (c *Controller) Network() types.Network {
	return c.chain.GetNetwork()
}

// Terms returns the price and size of one credit bundle.
func (c *Controller) Terms() payment.Terms {
	return c.purchaser.Terms()
}

func (c *Controller) State() State {
	c.mu.Lock()
	account, prompt := c.accountID, c.promptOpen
	c.mu.Unlock()

	return State{
		AccountID:          account,
		Credits:            c.ledger.Snapshot(),
		Wallet:             c.wallet.Session(),
		Insight:            c.gate.View(),
		PurchasePromptOpen: prompt,
		PurchaseInProgress: c.purchaser.InProgress(),
	}
}

// Close cancels any fetch in flight and releases the chain client.
func (c *Controller) Close() {
	c.gate.Close()
	c.chain.Close()
}

// fail logs err and forwards it to the notifier.
func (c *Controller) fail(err error) error {
	c.logger.Error("operation failed", map[string]any{"code": types.Code(err), "error": err})
	c.notifier.Notify(types.NotificationFor(err))
	return err
}

// Version information
const Version = "1.0.0"
