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
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeInvalidConfiguration = "INVALID_CONFIGURATION"
	ErrCodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	ErrCodeStoreUnavailable     = "STORE_UNAVAILABLE"
	ErrCodeEmbeddingFailed      = "EMBEDDING_FAILED"
	ErrCodeDimensionMismatch    = "DIMENSION_MISMATCH"
	ErrCodeIngestFailed         = "INGEST_FAILED"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// Configuration errors
var (
	ErrOverlapTooLarge      = NewDomainError(ErrCodeInvalidConfiguration, "chunk overlap must be smaller than chunk size")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrNoVectorBackend      = NewDomainError(ErrCodeInvalidConfiguration, "no vector store backend configured (set database URL or index path)")
)

// Vector store errors
var (
	ErrStoreUnavailable  = NewDomainError(ErrCodeStoreUnavailable, "vector store unreachable")
	ErrDimensionMismatch = NewDomainError(ErrCodeDimensionMismatch, "vector dimension does not match store configuration")
	ErrInvalidTopK       = NewDomainError(ErrCodeValidation, "k must be at least 1")
)

// Embedder errors
var (
	ErrEmbedderUnavailable = NewDomainError(ErrCodeServiceUnavailable, "embedding service unreachable")
	ErrEmbeddingFailed     = NewDomainError(ErrCodeEmbeddingFailed, "embedding backend returned malformed output")
)

// Not found errors
var (
	ErrSourceNotFound = NewDomainError(ErrCodeNotFound, "source not found")
)

// IngestError wraps the first failure of an ingest call with the source id
// and the stage that failed, so callers can report it without inspecting
// pipeline internals.
func IngestError(sourceID, stage string, err error) *DomainError {
	return NewDomainErrorWithCause(
		ErrCodeIngestFailed,
		fmt.Sprintf("ingest of source %q failed at stage %s", sourceID, stage),
		err,
	)
}
