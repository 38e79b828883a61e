package clients

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/vitwit/jobcredits/types"
)

// Anchor is the recent blockhash a transaction is built against, with the last
// block height at which the cluster still accepts it.
type Anchor struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
}

// Confirmation is the observed on-chain state of a submitted transaction.
type Confirmation struct {
	Signature solana.Signature
	Slot      uint64
	Status    rpc.ConfirmationStatusType
}

// NetworkClient is the on-chain surface the purchase flow needs.
type NetworkClient interface {
	RecentAnchor(ctx context.Context) (*Anchor, error)
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) (*Confirmation, error)
	GetNetwork() types.Network
	Close()
}
