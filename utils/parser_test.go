package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jobcredits/types"
)

type scoredItem struct {
	Name  *string `json:"name" validate:"required"`
	Score *int    `json:"score" validate:"required,gte=0,lte=100"`
}

func TestDecodeJSONValidatesSliceItems(t *testing.T) {
	var items []scoredItem
	err := DecodeJSON(strings.NewReader(`[{"name":"a","score":10},{"name":"b","score":90}]`), &items)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 90, *items[1].Score)
}

func TestDecodeJSONRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing score", `[{"name":"a"}]`},
		{"score out of range", `[{"name":"a","score":101}]`},
		{"wrong type", `[{"name":"a","score":"high"}]`},
		{"null body", `null`},
		{"not json", `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var items []scoredItem
			err := DecodeJSON(strings.NewReader(tt.body), &items)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.DecodeFailed))
		})
	}
}

func TestValidateConfigAppliesDefaults(t *testing.T) {
	cfg := &types.Config{}
	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, types.DefaultAPIBaseURL, cfg.APIBaseURL)
	assert.Equal(t, types.NetworkSolanaDevnet, cfg.Network)
	assert.Equal(t, "https://api.devnet.solana.com", cfg.RPCURL)
	assert.Equal(t, types.DefaultMerchantAddress, cfg.MerchantAddress)
	assert.Equal(t, 10, cfg.CreditsPerPurchase)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Confirm)
}

func TestValidateConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.Config
	}{
		{"unknown network", types.Config{Network: "polygon"}},
		{"bad merchant", types.Config{MerchantAddress: "0x384Aa214be0B279cbf211e9b2C992d8633F77848"}},
		{"negative price", types.Config{PriceSOL: "-1"}},
		{"sub lamport price", types.Config{PriceSOL: "0.0000000001"}},
		{"bad log level", types.Config{LogLevel: "trace"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := ValidateConfig(&cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ConfigError))
		})
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"network":"solana-mainnet","priceSol":"0.25","creditsPerPurchase":25}`))
	require.NoError(t, err)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPCURL)

	lamports, err := cfg.PriceLamports()
	require.NoError(t, err)
	assert.EqualValues(t, 250_000_000, lamports)
}

func TestParseEmptyConfigChargesEmptyResults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{}`))
	require.NoError(t, err)
	assert.False(t, cfg.RefundEmptyResults)
	assert.Equal(t, types.DefaultConfig().RefundEmptyResults, cfg.RefundEmptyResults)
}
