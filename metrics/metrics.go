package metrics

import "time"

// Event names recorded by the controller.
const (
	EventWalletConnected   = "wallet_connected"
	EventWalletFailed      = "wallet_failed"
	EventPurchaseConfirmed = "purchase_confirmed"
	EventPurchaseFailed    = "purchase_failed"
	EventInsightSuccess    = "insight_success"
	EventInsightEmpty      = "insight_empty"
	EventInsightFailed     = "insight_failed"
	EventInsightGated      = "insight_gated"
	EventInsightCancelled  = "insight_cancelled"
	EventQuotaRefreshed    = "quota_refreshed"
	EventQuotaFailed       = "quota_failed"

	OpPurchase = "purchase"
	OpInsight  = "insight"
	OpQuota    = "quota"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
