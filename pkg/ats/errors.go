package ats

import (
	"errors"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

var (
	// ErrNotAuthenticated is returned when an operation requires a signed-in
	// user and none is present.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoTenant is returned when a tenant-enforced operation is attempted
	// without a resolvable company. Distinct from ErrNotAuthenticated:
	// callers should prompt for company selection, not re-login.
	ErrNoTenant = errors.New("no company selected")
	// ErrAccessDenied is returned when a record's company or team does not
	// match the caller's context. Raised before any write is attempted.
	ErrAccessDenied = errors.New("access denied")
	// ErrRelationshipExists is returned when a candidate/job relationship
	// already exists for the pair.
	ErrRelationshipExists = errors.New("relationship already exists")
	// ErrUnknownStage is returned when a stage transition targets a stage
	// that is not part of the pipeline.
	ErrUnknownStage = errors.New("unknown pipeline stage")
)

// ErrorCategory is the closed set of user-facing failure categories.
// Raw backend errors are never surfaced directly.
type ErrorCategory string

const (
	CategoryAccessDenied  ErrorCategory = "access_denied"
	CategoryMissingTenant ErrorCategory = "missing_tenant"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryNotFound      ErrorCategory = "not_found"
	CategoryInvalidQuery  ErrorCategory = "invalid_query"
	CategoryUnauthorized  ErrorCategory = "unauthorized"
	CategoryFailed        ErrorCategory = "failed"
)

// Categorize maps any error from the data layer onto the closed category set.
func Categorize(err error) ErrorCategory {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return CategoryAccessDenied
	case errors.Is(err, ErrNoTenant):
		return CategoryMissingTenant
	case errors.Is(err, ErrNotAuthenticated):
		return CategoryUnauthorized
	case errors.Is(err, ErrRelationshipExists):
		return CategoryConflict
	case errors.Is(err, ErrUnknownStage):
		return CategoryInvalidQuery
	case errors.Is(err, engine.ErrInvalidQuery):
		return CategoryInvalidQuery
	case errors.Is(err, engine.ErrDocumentNotFound), errors.Is(err, engine.ErrCollectionNotFound):
		return CategoryNotFound
	default:
		return CategoryFailed
	}
}

// UserMessage renders an error as a display string for toasts and inline
// messages.
func UserMessage(err error) string {
	switch Categorize(err) {
	case CategoryAccessDenied:
		return "Access denied. Please check your permissions."
	case CategoryMissingTenant:
		return "Please ensure you have selected a company"
	case CategoryUnauthorized:
		return "Please sign in to continue"
	case CategoryConflict:
		return "This record already exists"
	case CategoryInvalidQuery:
		return "Invalid query configuration"
	case CategoryNotFound:
		return "The requested record was not found"
	default:
		return "Error loading data. Please try again."
	}
}
