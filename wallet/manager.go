package wallet

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/jobcredits/logger"
	"github.com/vitwit/jobcredits/types"
)

// Manager owns the wallet session of the current process
type Manager struct {
	provider Provider
	kind     string
	logger   logger.Logger

	mu      sync.RWMutex
	session types.WalletSession
	pubkey  solana.PublicKey
}

type Option func(*Manager)

// WithKind restricts the manager to providers of the given kind. An empty kind
// accepts any provider.
func WithKind(kind string) Option {
	return func(m *Manager) {
		m.kind = kind
	}
}

func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.OrNoop(l)
	}
}

// NewManager creates a manager for provider, which may be nil when no wallet is
// available on the host.
func NewManager(provider Provider, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		logger:   logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect asks the provider for its public key and stores the session. A missing
// provider fails without any connect attempt.
func (m *Manager) Connect(ctx context.Context) (types.WalletSession, error) {
	if m.provider == nil || !m.provider.Installed() {
		return types.WalletSession{}, types.NewError(types.ErrWalletNotInstalled, nil, "no wallet installed")
	}
	if m.kind != "" && m.provider.Kind() != m.kind {
		return types.WalletSession{}, types.NewError(types.ErrWalletNotInstalled, nil,
			"wallet %q is installed, %q is required", m.provider.Kind(), m.kind)
	}

	pub, err := m.provider.Connect(ctx)
	if err != nil {
		m.logger.Warn("wallet connect failed", map[string]any{"kind": m.provider.Kind(), "error": err})
		return types.WalletSession{}, types.NewError(types.ErrWalletConnectionFailed, err, "failed to connect wallet")
	}
	if pub.IsZero() {
		return types.WalletSession{}, types.NewError(types.ErrWalletConnectionFailed, nil, "wallet returned an empty public key")
	}

	m.mu.Lock()
	m.pubkey = pub
	m.session = types.WalletSession{PublicKey: pub.String(), Connected: true}
	session := m.session
	m.mu.Unlock()

	m.logger.Info("wallet connected", map[string]any{"publicKey": session.PublicKey})
	return session, nil
}

// Disconnect clears the session. Provider errors are logged; the local session is
// cleared regardless.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	connected := m.session.Connected
	m.session = types.WalletSession{}
	m.pubkey = solana.PublicKey{}
	m.mu.Unlock()

	if !connected || m.provider == nil {
		return nil
	}
	if err := m.provider.Disconnect(ctx); err != nil {
		m.logger.Warn("wallet disconnect failed", map[string]any{"error": err})
	}
	return nil
}

// Session returns a copy of the current session.
func (m *Manager) Session() types.WalletSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// PublicKey returns the connected key, or WALLET_NOT_CONNECTED.
func (m *Manager) PublicKey() (solana.PublicKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.session.Connected {
		return solana.PublicKey{}, types.NewError(types.ErrWalletNotConnected, nil, "wallet is not connected")
	}
	return m.pubkey, nil
}

// Sign has the connected wallet sign tx. A rejection leaves the session as it was.
func (m *Manager) Sign(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if _, err := m.PublicKey(); err != nil {
		return nil, err
	}

	signed, err := m.provider.SignTransaction(ctx, tx)
	if err != nil {
		return nil, types.NewError(types.ErrSigningRejected, err, "wallet did not sign the transaction")
	}
	if signed == nil {
		return nil, types.NewError(types.ErrSigningRejected, nil, "wallet returned no transaction")
	}
	return signed, nil
}
