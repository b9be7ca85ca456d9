/*
rollup.go - The rollup pipeline

PURPOSE:
  Run() is the single entry point that turns a source into a RollupResult.
  A source is either a persisted Calculation (display and save paths) or an
  AdjustmentQuery (simulate path). Both feed the same steps, so the row
  shape is identical for both.

PIPELINE:
  1. Acquire group amounts
       Calculation:     Aggregate() over its items
       AdjustmentQuery: the supplied totals; unknown group ids are dropped
  2. No groups       -> [EmptyRow], every scalar zero, stop
  3. Per group       -> rate from the group's own table keyed by its amount,
                        margin = amount * rate, total = amount + margin
  4. Groups total    -> items_total = sum(group.total)
  5. Global margin   -> rate from the global table keyed by items_total
  6. Net total       -> items_total + global margin
  7. User margin     -> source rate clamped above -1, applied to net total
  8. Overall total   -> net total + user margin

  Rows: 1 (empty) or len(groups) + 5, always in the order above.

MISSING BRACKETS:
  A lookup that fails resolves to rate 0 and is recorded in
  RollupResult.Unresolved. The pipeline always completes.

CONCURRENCY:
  Run() reads its inputs and allocates its output. It never mutates the
  Reference or the source, so concurrent calls need no locking.

SEE ALSO:
  - row.go: Row variants and their sentinel tags
  - reference.go: Building a Reference from a Repository
*/
package margin

import "github.com/shopspring/decimal"

// MinUserMarginRate replaces any user margin rate at or below -1 so the
// overall total stays positive. Rates above -1 are applied as given.
var MinUserMarginRate = decimal.RequireFromString("-0.9999")

// BackSolvePrecision is the number of decimal places kept when recovering a
// pre-margin amount from an adjusted total.
const BackSolvePrecision int32 = 16

// =============================================================================
// SOURCE - Calculation | AdjustmentQuery
// =============================================================================

// Source is implemented only by *Calculation and *AdjustmentQuery.
type Source interface {
	userMarginRate() decimal.Decimal
	source()
}

func (c *Calculation) userMarginRate() decimal.Decimal     { return c.UserMarginRate }
func (q *AdjustmentQuery) userMarginRate() decimal.Decimal { return q.UserMarginRate }
func (*Calculation) source()                               {}
func (*AdjustmentQuery) source()                           {}

// =============================================================================
// REFERENCE - Read-only tables for one call
// =============================================================================

// Reference is the reference data a single Run() reads.
//
// Groups holds one table per known group; a group absent from the map is
// unknown. CategoryGroups maps each category to its owning group.
type Reference struct {
	Global         RangeTable
	Groups         map[GroupID]RangeTable
	CategoryGroups map[CategoryID]GroupID
}

func (r Reference) groupTable(id GroupID) (RangeTable, bool) {
	t, ok := r.Groups[id]
	if !ok {
		return RangeTable{Owner: GroupOwner(id)}, false
	}
	return t, true
}

// =============================================================================
// RESULT
// =============================================================================

// Unresolved records a lookup that fell back to rate 0.
type Unresolved struct {
	Owner  Owner
	Amount decimal.Decimal
}

type RollupResult struct {
	Rows []Row

	ItemsTotal         decimal.Decimal
	GlobalMarginRate   decimal.Decimal
	GlobalMarginAmount decimal.Decimal
	UserMarginRate     decimal.Decimal
	UserMarginAmount   decimal.Decimal
	NetTotal           decimal.Decimal
	OverallTotal       decimal.Decimal

	Unresolved []Unresolved
}

// IsEmpty reports whether the result is the single-empty-row case.
func (r RollupResult) IsEmpty() bool {
	return len(r.Rows) == 1 && r.Rows[0].Type() == RowEmpty
}

// Groups returns the group aggregates carried by the group rows, in row order.
func (r RollupResult) Groups() []GroupAggregate {
	var out []GroupAggregate
	for _, row := range r.Rows {
		if g, ok := row.(GroupRow); ok {
			out = append(out, g.Aggregate())
		}
	}
	return out
}

// =============================================================================
// RUN
// =============================================================================

// Run executes the pipeline for src against ref.
func Run(ref Reference, src Source) RollupResult {
	p := pass{ref: ref}

	var rows []Row
	switch s := src.(type) {
	case *Calculation:
		rows = p.calculationRows(s)
	case *AdjustmentQuery:
		rows = p.queryRows(s)
	}

	if len(rows) == 0 {
		return RollupResult{
			Rows:               []Row{EmptyRow{}},
			ItemsTotal:         decimal.Zero,
			GlobalMarginRate:   decimal.Zero,
			GlobalMarginAmount: decimal.Zero,
			UserMarginRate:     decimal.Zero,
			UserMarginAmount:   decimal.Zero,
			NetTotal:           decimal.Zero,
			OverallTotal:       decimal.Zero,
		}
	}

	return p.summarize(rows, clampUserMarginRate(src.userMarginRate()))
}

// pass carries the per-call state of one Run.
type pass struct {
	ref        Reference
	unresolved []Unresolved
}

func (p *pass) resolve(table RangeTable, amount decimal.Decimal) decimal.Decimal {
	rate, err := Resolve(table, amount)
	if err != nil {
		p.unresolved = append(p.unresolved, Unresolved{Owner: table.Owner, Amount: amount})
		return decimal.Zero
	}
	return rate
}

func (p *pass) calculationRows(c *Calculation) []Row {
	agg := Aggregate(c.Items, p.ref.CategoryGroups)
	rows := make([]Row, 0, len(agg.Groups)+5)
	for _, id := range SortedGroupIDs(agg.Groups) {
		table, _ := p.ref.groupTable(id)
		rows = append(rows, p.marginRow(id, table, agg.Groups[id]))
	}
	return rows
}

func (p *pass) queryRows(q *AdjustmentQuery) []Row {
	totals := make(map[GroupID]decimal.Decimal, len(q.Groups))
	for _, g := range q.Groups {
		if _, known := p.ref.Groups[g.ID]; !known {
			continue
		}
		totals[g.ID] = totals[g.ID].Add(g.Total)
	}

	rows := make([]Row, 0, len(totals)+5)
	for _, id := range SortedGroupIDs(totals) {
		table, _ := p.ref.groupTable(id)
		if q.Adjust {
			rows = append(rows, p.backSolvedRow(id, table, totals[id]))
		} else {
			rows = append(rows, p.marginRow(id, table, totals[id]))
		}
	}
	return rows
}

// marginRow applies the group's own bracket rate to its amount.
func (p *pass) marginRow(id GroupID, table RangeTable, amount decimal.Decimal) GroupRow {
	rate := p.resolve(table, amount)
	marginAmount := amount.Mul(rate)
	return GroupRow{
		GroupID:      id,
		Amount:       amount,
		Rate:         rate,
		MarginAmount: marginAmount,
		Total:        amount.Add(marginAmount),
	}
}

// backSolvedRow keeps a post-margin total as supplied and recovers the
// pre-margin amount: amount = total / (1 + rate).
func (p *pass) backSolvedRow(id GroupID, table RangeTable, total decimal.Decimal) GroupRow {
	rate := p.resolve(table, total)
	divisor := One.Add(rate)
	if divisor.IsZero() {
		rate, divisor = decimal.Zero, One
	}
	amount := total.DivRound(divisor, BackSolvePrecision)
	return GroupRow{
		GroupID:      id,
		Amount:       amount,
		Rate:         rate,
		MarginAmount: total.Sub(amount),
		Total:        total,
	}
}

// summarize appends steps 4-8 to the group rows.
func (p *pass) summarize(rows []Row, userRate decimal.Decimal) RollupResult {
	itemsTotal := decimal.Zero
	for _, row := range rows {
		itemsTotal = itemsTotal.Add(row.(GroupRow).Total)
	}

	globalRate := p.resolve(p.ref.Global, itemsTotal)
	globalAmount := itemsTotal.Mul(globalRate)
	netTotal := itemsTotal.Add(globalAmount)
	userAmount := netTotal.Mul(userRate)
	overallTotal := netTotal.Add(userAmount)

	rows = append(rows,
		GroupsTotalRow{Total: itemsTotal},
		GlobalMarginRow{Rate: globalRate, Amount: globalAmount},
		NetTotalRow{Total: netTotal},
		UserMarginRow{Rate: userRate, Amount: userAmount},
		OverallTotalRow{Total: overallTotal},
	)

	return RollupResult{
		Rows:               rows,
		ItemsTotal:         itemsTotal,
		GlobalMarginRate:   globalRate,
		GlobalMarginAmount: globalAmount,
		UserMarginRate:     userRate,
		UserMarginAmount:   userAmount,
		NetTotal:           netTotal,
		OverallTotal:       overallTotal,
		Unresolved:         p.unresolved,
	}
}

func clampUserMarginRate(rate decimal.Decimal) decimal.Decimal {
	if rate.LessThanOrEqual(NegOne) {
		return MinUserMarginRate
	}
	return rate
}
