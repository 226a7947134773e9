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

// Is reports whether target is a DomainError with the same code and message.
// Wrapped sentinels created with NewDomainErrorWithCause still match the bare sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
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

// Wrap attaches a cause to a sentinel, keeping its code and message.
func Wrap(sentinel *DomainError, err error) *DomainError {
	return NewDomainErrorWithCause(sentinel.Code, sentinel.Message, err)
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnsupported      = "UNSUPPORTED"
	ErrCodeExtraction       = "EXTRACTION_FAILED"
	ErrCodeProvider         = "PROVIDER_ERROR"
	ErrCodeStore            = "STORE_ERROR"
	ErrCodeNotReady         = "NOT_READY"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrEmptyInput       = NewDomainError(ErrCodeValidation, "no input provided")
	ErrEmptyQuestion    = NewDomainError(ErrCodeValidation, "question is empty")
	ErrInvalidReference = NewDomainError(ErrCodeValidation, "collection path and name are required")
)

// Not found errors
var (
	ErrNoData             = NewDomainError(ErrCodeNotFound, "no vector store data at path")
	ErrCollectionNotFound = NewDomainError(ErrCodeNotFound, "collection not found")
	ErrSessionNotFound    = NewDomainError(ErrCodeNotFound, "session not found")
)

// Ingestion errors
var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeUnsupported, "unsupported file type")
	ErrExtractionFailed  = NewDomainError(ErrCodeExtraction, "no text could be extracted")
	ErrChunkingFailed    = NewDomainError(ErrCodeExtraction, "failed to chunk documents")
)

// Provider and store errors
var (
	ErrProviderFailed = NewDomainError(ErrCodeProvider, "model provider call failed")
	ErrStoreFailed    = NewDomainError(ErrCodeStore, "vector store operation failed")
)

// Operation errors
var (
	ErrIndexEmpty = NewDomainError(ErrCodeNotReady, "collection is empty")
	ErrNotReady   = NewDomainError(ErrCodeNotReady, "no active collection, load or upload documents first")
)
