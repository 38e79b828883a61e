package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Network represents the Solana cluster the purchase flow settles on
type Network string

const (
	NetworkSolanaMainnet Network = "solana-mainnet"
	NetworkSolanaDevnet  Network = "solana-devnet" // testnet
	NetworkSolanaLocal   Network = "solana-localnet"
)

// Fixed protocol constants for one credit purchase.
const (
	// DefaultMerchantAddress receives every credit purchase.
	DefaultMerchantAddress = "5RAdGvEGs6SvNYif1yYqRSDUZhAbH6eMiwCzVhfmxYQ"
	// DefaultPriceSOL is the price of one credit bundle in SOL.
	DefaultPriceSOL = "0.1"
	// DefaultCreditsPerPurchase is the number of credits granted by one confirmed transfer.
	DefaultCreditsPerPurchase = 10
	// DefaultAPIBaseURL is the hosted job-platform backend.
	DefaultAPIBaseURL = "https://web3-job-platform.onrender.com"
	// LamportsPerSOL is the number of lamports in one SOL.
	LamportsPerSOL = 1_000_000_000
)

// DefaultRPCURL returns the public RPC endpoint for a network.
func (n Network) DefaultRPCURL() string {
	switch n {
	case NetworkSolanaMainnet:
		return "https://api.mainnet-beta.solana.com"
	case NetworkSolanaLocal:
		return "http://127.0.0.1:8899"
	default:
		return "https://api.devnet.solana.com"
	}
}

func (n Network) IsTestnet() bool {
	return n == NetworkSolanaDevnet || n == NetworkSolanaLocal
}

func (n Network) String() string {
	return string(n)
}

// WalletSession is the connected wallet of the current process. It is never persisted.
type WalletSession struct {
	PublicKey string `json:"publicKey,omitempty"`
	Connected bool   `json:"connected"`
}

// PurchaseIntent exists only for the duration of one purchase attempt.
type PurchaseIntent struct {
	ID             string `json:"id"`
	AmountLamports uint64 `json:"amountLamports"`
	Recipient      string `json:"recipient"`
	Payer          string `json:"payer"`
	Credits        int    `json:"credits"`
}

// NewPurchaseIntent creates an intent for payer with a fresh identifier.
func NewPurchaseIntent(payer, recipient string, lamports uint64, credits int) *PurchaseIntent {
	return &PurchaseIntent{
		ID:             uuid.NewString(),
		AmountLamports: lamports,
		Recipient:      recipient,
		Payer:          payer,
		Credits:        credits,
	}
}

// PurchaseReceipt is returned once a transfer has been observed as confirmed on chain.
type PurchaseReceipt struct {
	IntentID  string    `json:"intentId"`
	Signature string    `json:"signature"`
	Slot      uint64    `json:"slot"`
	Status    string    `json:"status"`
	Lamports  uint64    `json:"lamports"`
	Credits   int       `json:"credits"`
	Network   Network   `json:"network"`
	Timestamp time.Time `json:"timestamp"`
}

// Timeouts controls per-operation deadlines.
// Zero values are replaced by defaults in WithDefaults.
type Timeouts struct {
	HTTP    time.Duration `json:"http,omitempty" mapstructure:"http"`       // quota, insight and job calls
	Connect time.Duration `json:"connect,omitempty" mapstructure:"connect"` // wallet connect
	Sign    time.Duration `json:"sign,omitempty" mapstructure:"sign"`       // wallet signature
	Submit  time.Duration `json:"submit,omitempty" mapstructure:"submit"`   // blockhash + send
	Confirm time.Duration `json:"confirm,omitempty" mapstructure:"confirm"` // confirmation wait
}

// WithDefaults returns a copy of t with zero values replaced by defaults:
//
//	HTTP:    10s
//	Connect: 60s
//	Sign:    120s
//	Submit:  30s
//	Confirm: 90s
func (t Timeouts) WithDefaults() Timeouts {
	tt := t
	if tt.HTTP == 0 {
		tt.HTTP = 10 * time.Second
	}
	if tt.Connect == 0 {
		tt.Connect = 60 * time.Second
	}
	if tt.Sign == 0 {
		tt.Sign = 120 * time.Second
	}
	if tt.Submit == 0 {
		tt.Submit = 30 * time.Second
	}
	if tt.Confirm == 0 {
		tt.Confirm = 90 * time.Second
	}
	return tt
}

// Config contains the configuration of a credit controller
type Config struct {
	// APIBaseURL is the root of the job-platform backend (quota, insights, jobs).
	APIBaseURL string `json:"apiBaseUrl" mapstructure:"api-base-url" validate:"required,url"`

	// Network selects the Solana cluster.
	Network Network `json:"network" mapstructure:"network" validate:"required,oneof=solana-mainnet solana-devnet solana-localnet"`

	// RPCURL overrides the cluster's public RPC endpoint.
	RPCURL string `json:"rpcUrl" mapstructure:"rpc-url" validate:"required,url"`

	// MerchantAddress receives purchase transfers (base58).
	MerchantAddress string `json:"merchantAddress" mapstructure:"merchant-address" validate:"required,min=32,max=44"`

	// PriceSOL is the price of one credit bundle, as a decimal SOL string.
	PriceSOL string `json:"priceSol" mapstructure:"price-sol" validate:"required,numeric"`

	// CreditsPerPurchase is the size of one credit bundle.
	CreditsPerPurchase int `json:"creditsPerPurchase" mapstructure:"credits-per-purchase" validate:"gt=0"`

	// RefundEmptyResults returns the held credit when an insight call comes back
	// empty. The server debits per call, so the default charges empty results too.
	RefundEmptyResults bool `json:"refundEmptyResults" mapstructure:"refund-empty-results"`

	// VerifyQuotaBeforeSpend refreshes the balance from the quota service before every
	// insight fetch instead of trusting the local cache.
	VerifyQuotaBeforeSpend bool `json:"verifyQuotaBeforeSpend" mapstructure:"verify-quota-before-spend"`

	// ConfirmPollInterval is the delay between two signature status polls.
	ConfirmPollInterval time.Duration `json:"confirmPollInterval,omitempty" mapstructure:"confirm-poll-interval"`

	// ConfirmAttempts bounds the number of signature status polls.
	ConfirmAttempts int `json:"confirmAttempts,omitempty" mapstructure:"confirm-attempts" validate:"gte=0"`

	Timeouts Timeouts `json:"timeouts,omitempty" mapstructure:"timeouts"`

	LogLevel      string `json:"logLevel,omitempty" mapstructure:"log-level" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics bool   `json:"enableMetrics,omitempty" mapstructure:"enable-metrics"`
}

// DefaultConfig returns a devnet configuration using the hosted backend.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills implicit defaults for unset fields.
func (c *Config) ApplyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.Network == "" {
		c.Network = NetworkSolanaDevnet
	}
	if c.RPCURL == "" {
		c.RPCURL = c.Network.DefaultRPCURL()
	}
	if c.MerchantAddress == "" {
		c.MerchantAddress = DefaultMerchantAddress
	}
	if c.PriceSOL == "" {
		c.PriceSOL = DefaultPriceSOL
	}
	if c.CreditsPerPurchase == 0 {
		c.CreditsPerPurchase = DefaultCreditsPerPurchase
	}
	if c.ConfirmPollInterval == 0 {
		c.ConfirmPollInterval = 2 * time.Second
	}
	if c.ConfirmAttempts == 0 {
		c.ConfirmAttempts = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Timeouts = c.Timeouts.WithDefaults()
}

// PriceLamports converts PriceSOL into lamports.
func (c *Config) PriceLamports() (uint64, error) {
	return SOLToLamports(c.PriceSOL)
}

// SOLToLamports converts a decimal SOL amount into lamports. Fractions of a lamport
// are rejected rather than rounded.
func SOLToLamports(sol string) (uint64, error) {
	amount, err := decimal.NewFromString(sol)
	if err != nil {
		return 0, fmt.Errorf("invalid SOL amount %q: %w", sol, err)
	}
	if !amount.IsPositive() {
		return 0, fmt.Errorf("SOL amount must be positive, got %s", sol)
	}

	lamports := amount.Mul(decimal.NewFromInt(LamportsPerSOL))
	if !lamports.Equal(lamports.Truncate(0)) {
		return 0, fmt.Errorf("SOL amount %s is not a whole number of lamports", sol)
	}

	return lamports.BigInt().Uint64(), nil
}

// LamportsToSOL formats lamports as a decimal SOL string.
func LamportsToSOL(lamports uint64) string {
	return decimal.NewFromInt(int64(lamports)).Div(decimal.NewFromInt(LamportsPerSOL)).String()
}
