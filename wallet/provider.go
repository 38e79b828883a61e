// Package wallet manages the connection to the signer that pays for credit bundles.
package wallet

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Wallet kinds recognised by the manager.
const (
	KindPhantom = "phantom"
	KindKeypair = "keypair"
)

// Provider is an external signer. It may be absent from the host (Installed returns
// false) or of a kind the manager does not accept.
type Provider interface {
	Installed() bool
	Kind() string
	Connect(ctx context.Context) (solana.PublicKey, error)
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
	Disconnect(ctx context.Context) error
}
