package clients

import "fmt"

// Failure reasons reported by the chain client.
const (
	// -----------------------------
	// TRANSACTION STRUCTURE
	// -----------------------------
	ErrInvalidTransaction        = "invalid_svm_transaction"
	ErrInvalidInstructionsLength = "invalid_svm_transaction_instructions_length"
	ErrNotATransferInstruction   = "invalid_svm_transaction_not_a_transfer_instruction"
	ErrTransferToIncorrectPayee  = "invalid_svm_transaction_transfer_to_incorrect_payee"
	ErrAmountMismatch            = "invalid_svm_transaction_amount_mismatch"
	ErrFeePayerMismatch          = "invalid_svm_transaction_fee_payer_mismatch"

	// -----------------------------
	// SUBMISSION
	// -----------------------------
	ErrTransactionSignerMissingSignatures = "transaction_signer_missing_signatures"
	ErrBlockhashUnavailable               = "blockhash_unavailable"
	ErrBroadcastFailed                    = "broadcast_failed"

	// -----------------------------
	// CONFIRMATION
	// -----------------------------
	ErrSettleBlockHeightExceeded             = "settle_svm_block_height_exceeded"
	ErrSettleTransactionConfirmationTimedOut = "settle_svm_transaction_confirmation_timed_out"
	ErrSettleTransactionFailed               = "settle_svm_transaction_failed"
)

// ChainError carries a failure reason from the list above.
type ChainError struct {
	Reason string
	Err    error
}

func (e *ChainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

func chainError(reason string, err error) *ChainError {
	return &ChainError{Reason: reason, Err: err}
}
