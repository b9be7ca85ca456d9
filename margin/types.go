/*
Package margin provides the tiered margin rollup engine.

PURPOSE:
  This package turns a flat list of priced line items into a multi-level
  financial report: item -> category -> group -> global -> user-adjusted
  total. Margin rates are looked up in piecewise range tables keyed by
  amount. A simulate path accepts pre-aggregated group totals instead of
  raw items so a client can edit numbers before anything is persisted.

KEY CONCEPTS IN THIS FILE (types.go):
  - Item: A priced line item belonging to a category
  - CategoryAggregate / GroupAggregate: Per-pass subtotals
  - Calculation: The persisted quote aggregate that owns groups and items
  - AdjustmentQuery: A transient what-if request
  - Identifiers: Type-safe category, group and calculation IDs

DESIGN PRINCIPLES:
  1. Purity: Run() performs no I/O and shares no mutable state
  2. Precision: Uses decimal.Decimal, never float64, for all money and rates
  3. Type Safety: Distinct ID types prevent mixing categories and groups
  4. Tolerance: Missing brackets degrade to rate 0, never abort a rollup

USAGE:
  ref := margin.Reference{Global: global, Groups: groupTables, CategoryGroups: owners}
  result := margin.Run(ref, &calculation)
  fmt.Println(result.OverallTotal)

SEE ALSO:
  - table.go: Range tables and the rate resolver
  - validate.go: Continuity validation for table edits
  - aggregate.go: Item -> category -> group folding
  - rollup.go: The pipeline
*/
package margin

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CategoryID int64
type GroupID int64
type CalculationID string
type ItemID string

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// One is the multiplicative identity used when applying a margin rate.
var One = decimal.NewFromInt(1)

// NegOne is the floor a rate must stay above for a total to remain positive.
var NegOne = decimal.NewFromInt(-1)

// =============================================================================
// ITEM - A priced line item
// =============================================================================

type Item struct {
	ID          ItemID
	CategoryID  CategoryID
	Description string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
}

// Total is price times quantity.
func (i Item) Total() decimal.Decimal {
	return i.Price.Mul(i.Quantity)
}

// =============================================================================
// AGGREGATES - Transient subtotals produced per rollup pass
// =============================================================================

type CategoryAggregate struct {
	CategoryID CategoryID
	GroupID    GroupID
	Amount     decimal.Decimal
}

// GroupAggregate is a group subtotal with its margin applied.
// It is materialized as a calculation group when a rollup is persisted.
type GroupAggregate struct {
	GroupID      GroupID
	Amount       decimal.Decimal
	Rate         decimal.Decimal
	MarginAmount decimal.Decimal
	Total        decimal.Decimal
}

// =============================================================================
// CALCULATION - The persisted quote aggregate
// =============================================================================

// Calculation owns its groups and items. OverallTotal is the only externally
// trusted figure; every other scalar is a cache of the last rollup.
type Calculation struct {
	ID    CalculationID
	Title string
	Date  time.Time

	// StateID references the workflow state (draft, sent, archived...).
	// The engine never reads it.
	StateID string

	Items  []Item
	Groups []GroupAggregate

	ItemsTotal         decimal.Decimal
	GlobalMarginRate   decimal.Decimal
	GlobalMarginAmount decimal.Decimal
	UserMarginRate     decimal.Decimal
	UserMarginAmount   decimal.Decimal
	NetTotal           decimal.Decimal
	OverallTotal       decimal.Decimal
}

// Apply copies the scalar totals and group aggregates of a rollup onto c.
func (c *Calculation) Apply(r RollupResult) {
	c.Groups = r.Groups()
	c.ItemsTotal = r.ItemsTotal
	c.GlobalMarginRate = r.GlobalMarginRate
	c.GlobalMarginAmount = r.GlobalMarginAmount
	c.UserMarginRate = r.UserMarginRate
	c.UserMarginAmount = r.UserMarginAmount
	c.NetTotal = r.NetTotal
	c.OverallTotal = r.OverallTotal
}

// =============================================================================
// ADJUSTMENT QUERY - Live what-if recompute, never persisted
// =============================================================================

type GroupTotal struct {
	ID    GroupID
	Total decimal.Decimal
}

// AdjustmentQuery carries client-side group totals for a simulate request.
//
// Adjust == false: Totals are raw pre-margin amounts; group margins apply.
// Adjust == true:  Totals are already net of margin; the margin is back-solved.
type AdjustmentQuery struct {
	Adjust         bool
	UserMarginRate decimal.Decimal
	Groups         []GroupTotal
}

// GroupIDs returns the group ids referenced by the query, in request order.
func (q *AdjustmentQuery) GroupIDs() []GroupID {
	ids := make([]GroupID, 0, len(q.Groups))
	for _, g := range q.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}
