package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/vitwit/jobcredits/logger"
	"github.com/vitwit/jobcredits/types"
)

// rpcAPI is the subset of *rpc.Client used by SolanaClient.
type rpcAPI interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	SendRawTransactionWithOpts(ctx context.Context, rawTx []byte, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// SolanaClient builds, submits and confirms native SOL transfers
type SolanaClient struct {
	network      types.Network
	rpcURL       string
	client       rpcAPI
	pollInterval time.Duration
	maxAttempts  int
	logger       logger.Logger
}

var _ NetworkClient = (*SolanaClient)(nil)

type SolanaOption func(*SolanaClient)

// WithPolling sets the delay between signature status polls and the number of polls.
func WithPolling(interval time.Duration, attempts int) SolanaOption {
	return func(c *SolanaClient) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

func WithSolanaLogger(l logger.Logger) SolanaOption {
	return func(c *SolanaClient) {
		c.logger = logger.OrNoop(l)
	}
}

// NewSolanaClient creates a Solana client for the given RPC endpoint
func NewSolanaClient(network types.Network, rpcURL string, opts ...SolanaOption) (*SolanaClient, error) {
	if rpcURL == "" {
		rpcURL = network.DefaultRPCURL()
	}

	c := &SolanaClient{
		network:      network,
		rpcURL:       rpcURL,
		client:       rpc.New(rpcURL),
		pollInterval: 2 * time.Second,
		maxAttempts:  30,
		logger:       logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RecentAnchor fetches the latest blockhash at confirmed commitment
func (c *SolanaClient) RecentAnchor(ctx context.Context) (*Anchor, error) {
	res, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, chainError(ErrBlockhashUnavailable, err)
	}
	if res == nil || res.Value == nil {
		return nil, chainError(ErrBlockhashUnavailable, errors.New("empty blockhash response"))
	}

	return &Anchor{
		Blockhash:            res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
	}, nil
}

// Submit broadcasts a signed transaction and returns its signature
func (c *SolanaClient) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if tx == nil || len(tx.Signatures) == 0 || tx.Signatures[0] == (solana.Signature{}) {
		return solana.Signature{}, chainError(ErrTransactionSignerMissingSignatures, nil)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, chainError(ErrInvalidTransaction, err)
	}

	sig, err := c.client.SendRawTransactionWithOpts(ctx, raw, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, chainError(ErrBroadcastFailed, err)
	}

	c.logger.Debug("transaction submitted", map[string]any{
		"signature": sig.String(),
		"network":   c.network.String(),
	})
	return sig, nil
}

var errNotConfirmed = errors.New("transaction not yet confirmed")

// Confirm polls the signature status until the cluster reports it confirmed or
// finalized, the node reports a failure, the blockhash expires, or polling gives up.
func (c *SolanaClient) Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) (*Confirmation, error) {
	retries := uint64(0)
	if c.maxAttempts > 1 {
		retries = uint64(c.maxAttempts - 1)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.pollInterval), retries), ctx)

	attempt := 0
	conf, err := backoff.RetryWithData(func() (*Confirmation, error) {
		attempt++
		status, err := c.client.GetSignatureStatuses(ctx, false, sig)
		if err == nil && status != nil && len(status.Value) > 0 && status.Value[0] != nil {
			st := status.Value[0]
			if st.Err != nil {
				return nil, backoff.Permanent(chainError(ErrSettleTransactionFailed, fmt.Errorf("%v", st.Err)))
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return &Confirmation{
					Signature: sig,
					Slot:      st.Slot,
					Status:    st.ConfirmationStatus,
				}, nil
			}
			err = errNotConfirmed
		} else if err != nil {
			c.logger.Debug("signature status poll failed", map[string]any{
				"signature": sig.String(),
				"attempt":   attempt,
				"error":     err,
			})
		} else {
			err = errNotConfirmed
		}

		if lastValidBlockHeight > 0 {
			height, herr := c.client.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
			if herr == nil && height > lastValidBlockHeight {
				return nil, backoff.Permanent(chainError(ErrSettleBlockHeightExceeded, nil))
			}
		}
		return nil, err
	}, policy)
	if err == nil {
		return conf, nil
	}

	var ce *ChainError
	if errors.As(err, &ce) {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, chainError(ErrSettleTransactionConfirmationTimedOut, ctxErr)
	}
	return nil, chainError(ErrSettleTransactionConfirmationTimedOut,
		fmt.Errorf("transaction not confirmed after %d polls: %w", attempt, err))
}

func (c *SolanaClient) GetNetwork() types.Network { return c.network }

func (c *SolanaClient) Close() {}

// BuildTransfer builds an unsigned transaction moving lamports from payer to
// recipient, with payer as fee payer.
func BuildTransfer(payer, recipient solana.PublicKey, lamports uint64, anchor *Anchor) (*solana.Transaction, error) {
	if anchor == nil {
		return nil, chainError(ErrBlockhashUnavailable, nil)
	}

	ix := system.NewTransferInstruction(lamports, payer, recipient).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		anchor.Blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, chainError(ErrInvalidTransaction, err)
	}
	return tx, nil
}

// Transfer is a decoded system program transfer.
type Transfer struct {
	From     solana.PublicKey
	To       solana.PublicKey
	Lamports uint64
}

// DecodeTransfers returns every system program transfer carried by tx.
func DecodeTransfers(tx *solana.Transaction) ([]Transfer, error) {
	var transfers []Transfer

	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(tx.Message.AccountKeys) {
			return nil, chainError(ErrInvalidTransaction, errors.New("program index out of range"))
		}
		prog := tx.Message.AccountKeys[inst.ProgramIDIndex]
		if !prog.Equals(solana.SystemProgramID) {
			continue
		}

		// Build account metas from the instruction
		accountMetas := make([]*solana.AccountMeta, len(inst.Accounts))
		for i, accIdx := range inst.Accounts {
			if int(accIdx) >= len(tx.Message.AccountKeys) {
				return nil, chainError(ErrInvalidTransaction, errors.New("account index out of range"))
			}
			pub := tx.Message.AccountKeys[accIdx]
			writable, err := tx.Message.IsWritable(pub)
			if err != nil {
				return nil, chainError(ErrInvalidTransaction, err)
			}

			accountMetas[i] = &solana.AccountMeta{
				PublicKey:  pub,
				IsSigner:   tx.Message.IsSigner(pub),
				IsWritable: writable,
			}
		}

		sysInst, err := system.DecodeInstruction(accountMetas, inst.Data)
		if err != nil {
			return nil, chainError(ErrNotATransferInstruction, err)
		}
		transfer, ok := sysInst.Impl.(*system.Transfer)
		if !ok || transfer.Lamports == nil || len(accountMetas) < 2 {
			return nil, chainError(ErrNotATransferInstruction, nil)
		}

		transfers = append(transfers, Transfer{
			From:     accountMetas[0].PublicKey,
			To:       accountMetas[1].PublicKey,
			Lamports: *transfer.Lamports,
		})
	}

	return transfers, nil
}

// ExpectTransfer checks that tx is exactly one transfer of lamports from payer to
// recipient, paid for and signed by payer.
func ExpectTransfer(tx *solana.Transaction, payer, recipient solana.PublicKey, lamports uint64) error {
	if tx == nil || len(tx.Message.AccountKeys) == 0 {
		return chainError(ErrInvalidTransaction, nil)
	}
	if !tx.Message.AccountKeys[0].Equals(payer) {
		return chainError(ErrFeePayerMismatch, nil)
	}

	transfers, err := DecodeTransfers(tx)
	if err != nil {
		return err
	}
	if len(tx.Message.Instructions) != 1 || len(transfers) != 1 {
		return chainError(ErrInvalidInstructionsLength,
			fmt.Errorf("expected 1 transfer, got %d instructions", len(tx.Message.Instructions)))
	}

	t := transfers[0]
	if !t.From.Equals(payer) || !t.To.Equals(recipient) {
		return chainError(ErrTransferToIncorrectPayee, nil)
	}
	if t.Lamports != lamports {
		return chainError(ErrAmountMismatch, fmt.Errorf("want %d lamports, got %d", lamports, t.Lamports))
	}

	if len(tx.Signatures) == 0 || tx.Signatures[0] == (solana.Signature{}) {
		return chainError(ErrTransactionSignerMissingSignatures, nil)
	}
	if err := tx.VerifySignatures(); err != nil {
		return chainError(ErrTransactionSignerMissingSignatures, err)
	}

	return nil
}
