package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// ErrUserRejected is returned by a KeypairProvider configured to refuse requests.
var ErrUserRejected = errors.New("user rejected the request")

// KeypairProvider signs with a local private key
type KeypairProvider struct {
	key           solana.PrivateKey
	kind          string
	rejectConnect bool
	rejectSign    bool

	mu        sync.Mutex
	connected bool
}

var _ Provider = (*KeypairProvider)(nil)

type KeypairOption func(*KeypairProvider)

// WithProviderKind overrides the reported wallet kind.
func WithProviderKind(kind string) KeypairOption {
	return func(p *KeypairProvider) {
		p.kind = kind
	}
}

// RejectConnect makes every Connect fail with ErrUserRejected.
func RejectConnect() KeypairOption {
	return func(p *KeypairProvider) {
		p.rejectConnect = true
	}
}

// RejectSign makes every SignTransaction fail with ErrUserRejected.
func RejectSign() KeypairOption {
	return func(p *KeypairProvider) {
		p.rejectSign = true
	}
}

func NewKeypairProvider(key solana.PrivateKey, opts ...KeypairOption) *KeypairProvider {
	p := &KeypairProvider{key: key, kind: KindKeypair}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// KeypairFromBase58 loads a base58 encoded secret key.
func KeypairFromBase58(secret string, opts ...KeypairOption) (*KeypairProvider, error) {
	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewKeypairProvider(key, opts...), nil
}

// KeypairFromFile loads a solana-keygen JSON key file.
func KeypairFromFile(path string, opts ...KeypairOption) (*KeypairProvider, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}
	return NewKeypairProvider(key, opts...), nil
}

func (p *KeypairProvider) Installed() bool { return len(p.key) == 64 }

func (p *KeypairProvider) Kind() string { return p.kind }

func (p *KeypairProvider) Connect(ctx context.Context) (solana.PublicKey, error) {
	if err := ctx.Err(); err != nil {
		return solana.PublicKey{}, err
	}
	if p.rejectConnect {
		return solana.PublicKey{}, ErrUserRejected
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	return p.key.PublicKey(), nil
}

// SignTransaction signs tx in place for the key's public address.
func (p *KeypairProvider) SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	connected := p.connected
	p.mu.Unlock()
	if !connected {
		return nil, errors.New("provider is not connected")
	}
	if p.rejectSign {
		return nil, ErrUserRejected
	}

	pub := p.key.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &p.key
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (p *KeypairProvider) Disconnect(context.Context) error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}
