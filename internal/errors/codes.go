package errors

// ErrorCode represents a machine-readable error identifier for client error handling.
type ErrorCode string

// Authentication errors (Solana signed bearer tokens)
const (
	ErrCodeMissingAuthorization ErrorCode = "missing_authorization"
	ErrCodeUnsupportedScheme    ErrorCode = "unsupported_scheme"
	ErrCodeMalformedToken       ErrorCode = "malformed_token"
	ErrCodeURIMismatch          ErrorCode = "uri_mismatch"
	ErrCodeTokenFromFuture      ErrorCode = "token_from_future"
	ErrCodeTokenExpired         ErrorCode = "token_expired"
	ErrCodeInvalidSignature     ErrorCode = "invalid_signature"
)

// Payment errors (x402 rail)
const (
	ErrCodePaymentRequired    ErrorCode = "payment_required"
	ErrCodeInvalidPayment     ErrorCode = "invalid_payment"
	ErrCodePaymentMismatch    ErrorCode = "payment_mismatch"
	ErrCodeVerificationFailed ErrorCode = "verification_failed"
	ErrCodeSettlementFailed   ErrorCode = "settlement_failed"
)

// Validation errors (request input)
const (
	ErrCodeMissingField    ErrorCode = "missing_field"
	ErrCodeInvalidField    ErrorCode = "invalid_field"
	ErrCodeInvalidRange    ErrorCode = "invalid_range"
	ErrCodeInvalidResource ErrorCode = "invalid_resource"
)

// Resource errors
const (
	ErrCodeDocumentNotFound ErrorCode = "document_not_found"
	ErrCodeChunkNotFound    ErrorCode = "chunk_not_found"
)

// External service errors
const (
	ErrCodeFacilitatorError ErrorCode = "facilitator_error"
	ErrCodeEmbeddingError   ErrorCode = "embedding_error"
	ErrCodeLoaderError      ErrorCode = "loader_error"
	ErrCodeNetworkError     ErrorCode = "network_error"
)

// Internal errors
const (
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeLedgerError   ErrorCode = "ledger_error"
	ErrCodeIndexError    ErrorCode = "index_error"
)

// IsRetryable returns whether an error code represents a retryable error.
// Retryable errors are transient network/service issues, not validation failures.
func (e ErrorCode) IsRetryable() bool {
	switch e {
	case ErrCodeFacilitatorError,
		ErrCodeEmbeddingError,
		ErrCodeNetworkError:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e ErrorCode) HTTPStatus() int {
	switch e {
	// 401 Unauthorized - bearer token failures
	case ErrCodeMissingAuthorization,
		ErrCodeUnsupportedScheme,
		ErrCodeMalformedToken,
		ErrCodeURIMismatch,
		ErrCodeTokenFromFuture,
		ErrCodeTokenExpired,
		ErrCodeInvalidSignature:
		return 401

	// 402 Payment Required - payment verification and settlement failures
	case ErrCodePaymentRequired,
		ErrCodeInvalidPayment,
		ErrCodePaymentMismatch,
		ErrCodeVerificationFailed,
		ErrCodeSettlementFailed:
		return 402

	// 400 Bad Request - client validation errors
	case ErrCodeMissingField,
		ErrCodeInvalidField,
		ErrCodeInvalidRange,
		ErrCodeInvalidResource:
		return 400

	// 404 Not Found
	case ErrCodeDocumentNotFound,
		ErrCodeChunkNotFound:
		return 404

	// 502 Bad Gateway - external service errors
	case ErrCodeFacilitatorError,
		ErrCodeEmbeddingError,
		ErrCodeLoaderError,
		ErrCodeNetworkError:
		return 502

	// 500 Internal Server Error
	default:
		return 500
	}
}
