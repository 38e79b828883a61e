package jobcredits

import (
	"net/http"
	"time"

	"github.com/vitwit/jobcredits/clients"
	"github.com/vitwit/jobcredits/logger"
	"github.com/vitwit/jobcredits/metrics"
	"github.com/vitwit/jobcredits/types"
	"github.com/vitwit/jobcredits/wallet"
)

type Option func(*Controller)

func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Controller) {
		c.metrics = r
	}
}

// WithTimeout bounds every remote call of the controller. It overrides the HTTP
// timeout of the configuration.
func WithTimeout(t time.Duration) Option {
	return func(c *Controller) {
		c.timeout = t
	}
}

// WithWallet sets the wallet provider used to pay for credits.
func WithWallet(p wallet.Provider) Option {
	return func(c *Controller) {
		c.provider = p
	}
}

// WithWalletKind accepts only providers of the given kind.
func WithWalletKind(kind string) Option {
	return func(c *Controller) {
		c.walletKind = kind
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Controller) {
		c.httpClient = h
	}
}

// WithSessionToken authenticates calls to the backend.
func WithSessionToken(token string) Option {
	return func(c *Controller) {
		c.token = token
	}
}

func WithChainClient(n clients.NetworkClient) Option {
	return func(c *Controller) {
		c.chain = n
	}
}

// WithQuotaService replaces the backend credit endpoint.
func WithQuotaService(q clients.QuotaService) Option {
	return func(c *Controller) {
		c.quota = q
	}
}

// WithInsightService replaces the backend suggestion endpoints.
func WithInsightService(s clients.InsightService) Option {
	return func(c *Controller) {
		c.insights = s
	}
}

// Notifier receives user-visible messages.
type Notifier interface {
	Notify(n types.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(types.Notification)

func (f NotifierFunc) Notify(n types.Notification) { f(n) }

type noopNotifier struct{}

func (noopNotifier) Notify(types.Notification) {}
