/*
errors.go - Centralized error types for the margin engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers wrap these with context; the API layer maps them to status codes.

ERROR CATEGORIES:
  1. Resolution errors - No bracket covers an amount (non-fatal in Run)
  2. Continuity errors - A table edit would leave a gap or an overlap
  3. Lookup errors - Unknown group, category, or calculation

POLICY:
  - RateNotFoundError never escapes Run(); the pipeline treats it as rate 0
    and records it in RollupResult.Unresolved.
  - ContinuityError is fatal to the edit that produced it only.

SEE ALSO:
  - table.go: Returns RateNotFoundError
  - validate.go: Returns ContinuityError
*/
package margin

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRateNotFound is returned when no bracket of a table covers an amount.
	ErrRateNotFound = errors.New("no margin bracket covers amount")

	// ErrContinuity is returned when a bracket breaks table continuity.
	ErrContinuity = errors.New("margin table continuity violated")

	// ErrInvalidTable is returned when a table cannot be committed.
	ErrInvalidTable = errors.New("invalid margin table")

	// ErrGroupNotFound is returned when a referenced group doesn't exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrCategoryNotFound is returned when a referenced category doesn't exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrCalculationNotFound is returned when a referenced calculation doesn't exist.
	ErrCalculationNotFound = errors.New("calculation not found")

	// ErrBracketIndex is returned when an edit targets a bracket outside the table.
	ErrBracketIndex = errors.New("bracket index out of range")

	// ErrInvalidItem is returned when a line item has a negative price or quantity.
	ErrInvalidItem = errors.New("invalid line item")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RateNotFoundError records which table failed to resolve which amount.
type RateNotFoundError struct {
	Owner  Owner
	Amount decimal.Decimal
}

func (e *RateNotFoundError) Error() string {
	return fmt.Sprintf("no margin bracket in %s table covers %s", e.Owner, e.Amount)
}

func (e *RateNotFoundError) Unwrap() error {
	return ErrRateNotFound
}

// ContinuityKind classifies a continuity violation.
type ContinuityKind string

const (
	MinimumSmallerMaximum ContinuityKind = "minimum_smaller_maximum"
	MinimumOverlap        ContinuityKind = "minimum_overlap"
	MinimumDiscontinued   ContinuityKind = "minimum_discontinued"
	MaximumGreaterMinimum ContinuityKind = "maximum_greater_minimum"
	MaximumOverlap        ContinuityKind = "maximum_overlap"
	MaximumDiscontinued   ContinuityKind = "maximum_discontinued"
)

// ContinuityError identifies the bracket that failed and how.
type ContinuityError struct {
	Index int
	Kind  ContinuityKind
}

func (e *ContinuityError) Error() string {
	return fmt.Sprintf("bracket %d: %s", e.Index, e.Kind)
}

func (e *ContinuityError) Unwrap() error {
	return ErrContinuity
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrContinuity) ||
		errors.Is(err, ErrInvalidTable) ||
		errors.Is(err, ErrBracketIndex) ||
		errors.Is(err, ErrInvalidItem)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrCalculationNotFound)
}
