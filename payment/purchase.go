// Package payment buys credit bundles with a native SOL transfer to the merchant.
package payment

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/jobcredits/clients"
	"github.com/vitwit/jobcredits/logger"
	"github.com/vitwit/jobcredits/types"
	"github.com/vitwit/jobcredits/utils"
)

// Signer signs a transaction on behalf of the connected wallet.
type Signer interface {
	Sign(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// Terms are the fixed parameters of one bundle purchase.
type Terms struct {
	Recipient solana.PublicKey
	Lamports  uint64
	Credits   int
}

// TermsFromConfig resolves the merchant, price and bundle size of cfg.
func TermsFromConfig(cfg *types.Config) (Terms, error) {
	recipient, err := solana.PublicKeyFromBase58(cfg.MerchantAddress)
	if err != nil {
		return Terms{}, types.NewError(types.ErrConfigError, err, "invalid merchant address %s", cfg.MerchantAddress)
	}
	lamports, err := cfg.PriceLamports()
	if err != nil {
		return Terms{}, types.NewError(types.ErrConfigError, err, "invalid price")
	}
	return Terms{
		Recipient: recipient,
		Lamports:  lamports,
		Credits:   cfg.CreditsPerPurchase,
	}, nil
}

// Purchaser runs one purchase at a time
type Purchaser struct {
	chain    clients.NetworkClient
	signer   Signer
	terms    Terms
	timeouts types.Timeouts
	logger   logger.Logger

	inFlight atomic.Bool
}

type Option func(*Purchaser)

func WithLogger(l logger.Logger) Option {
	return func(p *Purchaser) {
		p.logger = logger.OrNoop(l)
	}
}

func WithTimeouts(t types.Timeouts) Option {
	return func(p *Purchaser) {
		p.timeouts = t.WithDefaults()
	}
}

func NewPurchaser(chain clients.NetworkClient, signer Signer, terms Terms, opts ...Option) *Purchaser {
	p := &Purchaser{
		chain:    chain,
		signer:   signer,
		terms:    terms,
		timeouts: types.Timeouts{}.WithDefaults(),
		logger:   logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InProgress reports whether a purchase is running.
func (p *Purchaser) InProgress() bool {
	return p.inFlight.Load()
}

// Terms returns the bundle terms.
func (p *Purchaser) Terms() Terms {
	return p.terms
}

// Purchase transfers the bundle price from payer to the merchant and waits for
// the cluster to confirm it. A second call while one is running fails with
// PURCHASE_IN_PROGRESS. Nothing is retried.
func (p *Purchaser) Purchase(ctx context.Context, payer solana.PublicKey) (*types.PurchaseReceipt, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return nil, types.NewError(types.ErrPurchaseInProgress, nil, "a purchase is already in progress")
	}
	defer p.inFlight.Store(false)

	intent := types.NewPurchaseIntent(payer.String(), p.terms.Recipient.String(), p.terms.Lamports, p.terms.Credits)
	log := p.logger.With(map[string]any{"intent": intent.ID, "payer": intent.Payer})
	log.Info("purchase started", map[string]any{
		"lamports": intent.AmountLamports,
		"credits":  intent.Credits,
	})

	anchor, tx, err := p.build(ctx, payer)
	if err != nil {
		log.Error("failed to build transfer", map[string]any{"error": err})
		return nil, err
	}

	signCtx, cancel := context.WithTimeout(ctx, p.timeouts.Sign)
	signed, err := p.signer.Sign(signCtx, tx)
	cancel()
	if err != nil {
		log.Warn("transfer not signed", map[string]any{"error": err})
		if types.Code(err) == "" {
			err = types.NewError(types.ErrSigningRejected, err, "wallet did not sign the transaction")
		}
		return nil, err
	}

	verified, err := VerifySigned(signed, intent)
	if err != nil {
		log.Error("signed transfer rejected", map[string]any{"error": err})
		return nil, err
	}

	sig, err := p.submit(ctx, verified)
	if err != nil {
		log.Error("failed to submit transfer", map[string]any{"error": err})
		return nil, err
	}
	log = log.With(map[string]any{"signature": sig.String()})

	confirmCtx, cancel := context.WithTimeout(ctx, p.timeouts.Confirm)
	defer cancel()
	conf, err := p.chain.Confirm(confirmCtx, sig, anchor.LastValidBlockHeight)
	if err != nil {
		log.Error("transfer not confirmed", map[string]any{"error": err})
		return nil, types.NewError(types.ErrConfirmationFailed, err, "transaction %s was not confirmed", sig)
	}

	receipt := &types.PurchaseReceipt{
		IntentID:  intent.ID,
		Signature: sig.String(),
		Slot:      conf.Slot,
		Status:    string(conf.Status),
		Lamports:  intent.AmountLamports,
		Credits:   intent.Credits,
		Network:   p.chain.GetNetwork(),
		Timestamp: time.Now(),
	}
	log.Info("purchase confirmed", map[string]any{"slot": receipt.Slot, "status": receipt.Status})
	return receipt, nil
}

func (p *Purchaser) build(ctx context.Context, payer solana.PublicKey) (*clients.Anchor, *solana.Transaction, error) {
	if payer.IsZero() {
		return nil, nil, types.NewError(types.ErrWalletNotConnected, nil, "no payer")
	}

	anchorCtx, cancel := context.WithTimeout(ctx, p.timeouts.Submit)
	defer cancel()
	anchor, err := p.chain.RecentAnchor(anchorCtx)
	if err != nil {
		return nil, nil, types.NewError(types.ErrSubmissionFailed, err, "failed to fetch a recent blockhash")
	}

	tx, err := clients.BuildTransfer(payer, p.terms.Recipient, p.terms.Lamports, anchor)
	if err != nil {
		return nil, nil, types.NewError(types.ErrSubmissionFailed, err, "failed to build transfer")
	}
	return anchor, tx, nil
}

func (p *Purchaser) submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	submitCtx, cancel := context.WithTimeout(ctx, p.timeouts.Submit)
	defer cancel()

	sig, err := p.chain.Submit(submitCtx, tx)
	if err != nil {
		return solana.Signature{}, types.NewError(types.ErrSubmissionFailed, err, "failed to submit transaction")
	}
	if err := utils.ValidateTransactionSignature(sig.String()); err != nil {
		return solana.Signature{}, types.NewError(types.ErrSubmissionFailed, err, "node returned an invalid signature")
	}
	return sig, nil
}
