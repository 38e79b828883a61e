package utils

import (
	"fmt"
	"regexp"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

var base58Pattern = regexp.MustCompile("^[1-9A-HJ-NP-Za-km-z]+$")

// ValidateAmount checks if an amount string is a valid non-negative decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ValidateSolanaAddress validates a base58 public key and returns it decoded
func ValidateSolanaAddress(address string) (solana.PublicKey, error) {
	if address == "" {
		return solana.PublicKey{}, fmt.Errorf("address cannot be empty")
	}

	// base58, typically 32-44 characters
	if len(address) < 32 || len(address) > 44 {
		return solana.PublicKey{}, fmt.Errorf("Solana address has invalid length")
	}
	if !isBase58String(address) {
		return solana.PublicKey{}, fmt.Errorf("Solana address must be valid base58")
	}

	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid Solana address: %w", err)
	}
	return pk, nil
}

// ValidateTransactionSignature validates a base58 transaction signature
func ValidateTransactionSignature(sig string) error {
	if sig == "" {
		return fmt.Errorf("transaction signature cannot be empty")
	}

	// base58 encoded, typically 87-88 characters
	if len(sig) < 80 || len(sig) > 90 {
		return fmt.Errorf("Solana transaction signature has invalid length")
	}
	if !isBase58String(sig) {
		return fmt.Errorf("Solana transaction signature must be valid base58")
	}

	return nil
}

// Helper function to check if a string is valid base58
func isBase58String(s string) bool {
	return base58Pattern.MatchString(s)
}
