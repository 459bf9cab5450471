package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/internal/ledger"
	"github.com/DharshanRajPA/Real-Estate-Asset-Tokenizer-Using-Ethereum-Blockchain/pkg/validation"
)

// ProblemDetails represents RFC 7807 compliant error response
// RFC 7807: Problem Details for HTTP APIs
type ProblemDetails struct {
	// Type is a URI reference that identifies the problem type
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Status is the HTTP status code
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence of the problem
	Detail string `json:"detail"`
	// Instance is a URI reference that identifies the specific occurrence of the problem
	Instance string `json:"instance,omitempty"`
	// Timestamp when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// TraceID for request tracing and debugging
	TraceID string `json:"traceId,omitempty"`
	// Stage is the last purchase stage reached, for purchase failures
	Stage string `json:"stage,omitempty"`
	// PurchaseID identifies a purchase that needs its index step retried
	PurchaseID string `json:"purchaseId,omitempty"`
	// Errors contains field-specific validation errors
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents field-specific validation errors
type ValidationError struct {
	// Field name that failed validation
	Field string `json:"field"`
	// Message describing the validation failure
	Message string `json:"message"`
	// Code is machine-readable error code for the field
	Code string `json:"code,omitempty"`
}

// Standard error types with URIs
const (
	TypeValidationError    = "https://greenestate.dev/problems/validation-error"
	TypeUnauthorized       = "https://greenestate.dev/problems/unauthorized"
	TypeForbidden          = "https://greenestate.dev/problems/forbidden"
	TypeNotFound           = "https://greenestate.dev/problems/not-found"
	TypeInternalError      = "https://greenestate.dev/problems/internal-error"
	TypeInvalidRequest     = "https://greenestate.dev/problems/invalid-request"
	TypeInsufficientSupply = "https://greenestate.dev/problems/insufficient-supply"
	TypeInvariantViolation = "https://greenestate.dev/problems/invariant-violation"
	TypePersistenceFailure = "https://greenestate.dev/problems/persistence-failure"
	TypePartialSuccess     = "https://greenestate.dev/problems/partial-success"
	TypeQuoteUnavailable   = "https://greenestate.dev/problems/quote-unavailable"
)

// Standard error titles
const (
	TitleValidationError    = "Validation Error"
	TitleUnauthorized       = "Unauthorized"
	TitleForbidden          = "Forbidden"
	TitleNotFound           = "Not Found"
	TitleInternalError      = "Internal Server Error"
	TitleInvalidRequest     = "Invalid Request"
	TitleInsufficientSupply = "Insufficient Supply"
	TitleInvariantViolation = "Ledger Invariant Violation"
	TitlePersistenceFailure = "Persistence Failure"
	TitlePartialSuccess     = "Partial Success"
	TitleQuoteUnavailable   = "Quote Unavailable"
)

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(problemType, title string, status int, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		Timestamp: time.Now().UTC(),
	}
}

// WithTraceID adds a trace ID to the problem details
func (p *ProblemDetails) WithTraceID(traceID string) *ProblemDetails {
	p.TraceID = traceID
	return p
}

// WithValidationErrors adds validation errors to the problem details
func (p *ProblemDetails) WithValidationErrors(errors []ValidationError) *ProblemDetails {
	p.Errors = errors
	return p
}

// AddValidationError adds a single validation error
func (p *ProblemDetails) AddValidationError(field, message, code string) *ProblemDetails {
	if p.Errors == nil {
		p.Errors = make([]ValidationError, 0)
	}
	p.Errors = append(p.Errors, ValidationError{
		Field:   field,
		Message: message,
		Code:    code,
	})
	return p
}

// Error implements the error interface
func (p *ProblemDetails) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

// NewValidationError creates a validation error
func NewValidationError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeValidationError, TitleValidationError, http.StatusBadRequest, detail, instance)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeUnauthorized, TitleUnauthorized, http.StatusUnauthorized, detail, instance)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeForbidden, TitleForbidden, http.StatusForbidden, detail, instance)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeNotFound, TitleNotFound, http.StatusNotFound, detail, instance)
}

// NewInternalError creates an internal server error
func NewInternalError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeInternalError, TitleInternalError, http.StatusInternalServerError, detail, instance)
}

// NewQuoteUnavailableError creates a bad gateway error for the price feed
func NewQuoteUnavailableError(detail, instance string) *ProblemDetails {
	return NewProblemDetails(TypeQuoteUnavailable, TitleQuoteUnavailable, http.StatusBadGateway, detail, instance)
}

type staged interface {
	FailedStage() string
}

// FromError maps a ledger or validation error to problem details.
// Unrecognized errors become a 500 without leaking their text.
func FromError(err error, instance string) *ProblemDetails {
	var pd *ProblemDetails
	if errors.As(err, &pd) {
		return pd
	}

	var partial *ledger.PartialSuccessError
	var verrs validation.ValidationErrors
	switch {
	case errors.As(err, &partial):
		pd = NewProblemDetails(TypePartialSuccess, TitlePartialSuccess, http.StatusAccepted,
			"ledger updated; holdings index update pending", instance)
		pd.PurchaseID = partial.PurchaseID
	case errors.As(err, &verrs):
		pd = NewValidationError(verrs.Error(), instance)
		for _, fe := range verrs {
			pd.AddValidationError(fe.Field, fe.Message, fe.Tag)
		}
	case errors.Is(err, ledger.ErrNotFound):
		pd = NewNotFoundError(err.Error(), instance)
	case errors.Is(err, ledger.ErrInsufficientSupply):
		pd = NewProblemDetails(TypeInsufficientSupply, TitleInsufficientSupply, http.StatusConflict, err.Error(), instance)
	case errors.Is(err, ledger.ErrInvalidRequest):
		pd = NewProblemDetails(TypeInvalidRequest, TitleInvalidRequest, http.StatusBadRequest, err.Error(), instance)
	case errors.Is(err, ledger.ErrInvariantViolation):
		pd = NewProblemDetails(TypeInvariantViolation, TitleInvariantViolation, http.StatusConflict, err.Error(), instance)
	case errors.Is(err, ledger.ErrPersistenceFailure):
		pd = NewProblemDetails(TypePersistenceFailure, TitlePersistenceFailure, http.StatusServiceUnavailable,
			"ledger storage unavailable, retry later", instance)
	default:
		pd = NewInternalError("An unexpected error occurred", instance)
	}

	var s staged
	if errors.As(err, &s) {
		pd.Stage = s.FailedStage()
	}
	return pd
}
