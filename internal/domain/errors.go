package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInvalidOperation  = "INVALID_OPERATION"
	ErrCodeDimensionMismatch = "DIMENSION_MISMATCH"
	ErrCodeProvider          = "PROVIDER_ERROR"
	ErrCodeInputTooLarge     = "INPUT_TOO_LARGE"
	ErrCodeScopeViolation    = "SCOPE_VIOLATION"
)

// Validation errors
var (
	ErrInvalidDocumentStatus = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmptyDocumentText     = NewDomainError(ErrCodeValidation, "document has no indexable content")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrAPIKeyNotFound   = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
)

// Retrieval and processing errors
var (
	// ErrDimensionMismatch indicates two vectors of unequal length reached
	// the scorer; in steady state this means embedding model drift.
	ErrDimensionMismatch = NewDomainError(ErrCodeDimensionMismatch, "embedding dimensions do not match")

	// ErrInputTooLarge indicates text exceeded provider limits even after
	// truncation; permanent for that input.
	ErrInputTooLarge = NewDomainError(ErrCodeInputTooLarge, "text exceeds embedding provider limits")

	// ErrScopeViolation indicates a fetched chunk escaped its
	// (owner, collection) scope; always aborts the operation.
	ErrScopeViolation = NewDomainError(ErrCodeScopeViolation, "chunk outside requested scope")

	// ErrProcessingInProgress indicates a second processing attempt was
	// started for a document already being processed.
	ErrProcessingInProgress = NewDomainError(ErrCodeInvalidOperation, "document is already being processed")
)

// NewProviderError wraps an embedding provider failure (auth, rate limit,
// transport) so callers can distinguish it from engine bugs.
func NewProviderError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeProvider, message, err)
}
