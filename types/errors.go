package types

import "fmt"

// Error codes surfaced by the credit controller
const (
	ErrWalletNotInstalled     = "WALLET_NOT_INSTALLED"
	ErrWalletConnectionFailed = "WALLET_CONNECTION_FAILED"
	ErrWalletNotConnected     = "WALLET_NOT_CONNECTED"
	ErrSigningRejected        = "SIGNING_REJECTED"
	ErrSubmissionFailed       = "SUBMISSION_FAILED"
	ErrConfirmationFailed     = "CONFIRMATION_FAILED"
	ErrQuotaFetchFailed       = "QUOTA_FETCH_FAILED"
	ErrInsightFetchFailed     = "INSIGHT_FETCH_FAILED"
	ErrInsufficientCredits    = "INSUFFICIENT_CREDITS"
	ErrPurchaseInProgress     = "PURCHASE_IN_PROGRESS"
	ErrFetchInProgress        = "FETCH_IN_PROGRESS"
	ErrDecodeFailed           = "DECODE_FAILED"
	ErrRequestFailed          = "REQUEST_FAILED"
	ErrConfigError            = "CONFIG_ERROR"
)

// Error is the error type returned by every component. Two errors are equal under
// errors.Is when their codes match.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError builds an Error with the given code wrapping err.
func NewError(code string, err error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Sentinels for errors.Is.
var (
	WalletNotInstalled     = &Error{Code: ErrWalletNotInstalled, Message: "wallet extension is not installed"}
	WalletConnectionFailed = &Error{Code: ErrWalletConnectionFailed, Message: "wallet connection failed"}
	WalletNotConnected     = &Error{Code: ErrWalletNotConnected, Message: "wallet is not connected"}
	SigningRejected        = &Error{Code: ErrSigningRejected, Message: "transaction signing rejected"}
	SubmissionFailed       = &Error{Code: ErrSubmissionFailed, Message: "transaction submission failed"}
	ConfirmationFailed     = &Error{Code: ErrConfirmationFailed, Message: "transaction confirmation failed"}
	QuotaFetchFailed       = &Error{Code: ErrQuotaFetchFailed, Message: "failed to fetch credits"}
	InsightFetchFailed     = &Error{Code: ErrInsightFetchFailed, Message: "failed to fetch insights"}
	InsufficientCredits    = &Error{Code: ErrInsufficientCredits, Message: "no credits left"}
	PurchaseInProgress     = &Error{Code: ErrPurchaseInProgress, Message: "a purchase is already in progress"}
	FetchInProgress        = &Error{Code: ErrFetchInProgress, Message: "an insight fetch is already in progress"}
	DecodeFailed           = &Error{Code: ErrDecodeFailed, Message: "response does not match the expected schema"}
	RequestFailed          = &Error{Code: ErrRequestFailed, Message: "request failed"}
	ConfigError            = &Error{Code: ErrConfigError, Message: "invalid configuration"}
)

// Code returns the code of err when it is an *Error, otherwise "".
func Code(err error) string {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
