package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jobcredits/types"
)

func TestValidateSolanaAddress(t *testing.T) {
	pk, err := ValidateSolanaAddress(types.DefaultMerchantAddress)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultMerchantAddress, pk.String())

	for _, bad := range []string{"", "short", "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl"} {
		_, err := ValidateSolanaAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateTransactionSignature(t *testing.T) {
	assert.Error(t, ValidateTransactionSignature(""))
	assert.Error(t, ValidateTransactionSignature("abc"))
}

func TestValidateAmount(t *testing.T) {
	d, err := ValidateAmount("0.1")
	require.NoError(t, err)
	assert.Equal(t, "0.1", d.String())

	_, err = ValidateAmount("-3")
	assert.Error(t, err)
}
