/*
store.go - Persistence interface for reference data and calculations

PURPOSE:
  Defines the boundary between the service layer and the database. The
  engine itself only needs the read-only Repository (reference.go); the
  Store adds the writes the surrounding application performs.

KEY INTERFACES:
  Repository: Reference data lookups used by LoadReference()
  Store:      Repository + groups, categories, tables, calculations

TABLE COMMITS:
  SaveTable() must normalize the table and reject it with a ContinuityError
  unless ValidateTable() passes. A rejected commit leaves the previously
  committed table untouched.

IMPLEMENTATIONS:
  - margin/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite with goose migrations
*/
package margin

import "context"

// =============================================================================
// REFERENCE ENTITIES
// =============================================================================

// Group is a category-grouping entity owning one margin table.
type Group struct {
	ID   GroupID
	Name string
}

// Category is owned by exactly one group.
type Category struct {
	ID      CategoryID
	Name    string
	GroupID GroupID
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	Repository

	SaveGroup(ctx context.Context, g Group) error
	ListGroups(ctx context.Context) ([]Group, error)

	SaveCategory(ctx context.Context, c Category) error
	ListCategories(ctx context.Context) ([]Category, error)

	// FindTable returns the committed table of any owner.
	FindTable(ctx context.Context, owner Owner) (RangeTable, error)

	// SaveTable replaces the owner's table after validation.
	SaveTable(ctx context.Context, table RangeTable) error

	// SaveCalculation upserts a calculation with its items and groups.
	SaveCalculation(ctx context.Context, c *Calculation) error

	// GetCalculation returns ErrCalculationNotFound for unknown ids.
	GetCalculation(ctx context.Context, id CalculationID) (*Calculation, error)

	ListCalculations(ctx context.Context) ([]Calculation, error)

	// SaveRollup persists recomputed groups and totals onto a calculation.
	SaveRollup(ctx context.Context, id CalculationID, r RollupResult) error
}

// Resetter is implemented by stores that can drop all data. Demo scenarios
// use it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// CommitTable normalizes and validates a table ahead of a write.
// Stores call it from SaveTable.
func CommitTable(table RangeTable) (RangeTable, error) {
	if !table.Owner.Kind.Valid() {
		return table, ErrInvalidTable
	}
	normalized := Normalize(table)
	if err := ValidateTable(normalized); err != nil {
		return table, err
	}
	return normalized, nil
}
