/*
Package quote wires the margin engine to a store.

PURPOSE:
  The engine is pure: it needs a Reference snapshot and a Source. This
  package loads both from a margin.Store, runs the rollup, and, for the save
  path, writes the recomputed aggregates back. It is the only layer that
  logs what the engine records as unresolved.

OPERATIONS:
  Display   load calculation -> load reference -> Run
  Save      Display + SaveRollup
  Simulate  load reference for the query groups -> Run (never persisted)
  EditBracket  single-bracket edit with per-bracket continuity verdict

SEE ALSO:
  - margin/rollup.go: The pipeline
  - margin/reference.go: LoadReference
*/
package quote

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/margin-engine/margin"
)

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	Store margin.Store
	Log   logrus.FieldLogger

	// Now defaults to time.Now.
	Now func() time.Time
}

// New returns a Calculator over store. A nil logger discards output.
func New(store margin.Store, log logrus.FieldLogger) *Calculator {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Calculator{Store: store, Log: log, Now: time.Now}
}

func (c *Calculator) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// =============================================================================
// ROLLUP PATHS
// =============================================================================

// Display recomputes a calculation from its items without persisting.
func (c *Calculator) Display(ctx context.Context, id margin.CalculationID) (*margin.Calculation, margin.RollupResult, error) {
	calc, err := c.Store.GetCalculation(ctx, id)
	if err != nil {
		return nil, margin.RollupResult{}, err
	}

	ref, err := margin.LoadReference(ctx, c.Store, calc)
	if err != nil {
		return nil, margin.RollupResult{}, fmt.Errorf("load reference for %s: %w", id, err)
	}

	result := margin.Run(ref, calc)
	c.logUnresolved(result, logrus.Fields{"calculation": id})
	return calc, result, nil
}

// Save recomputes a calculation and persists its groups and totals.
func (c *Calculator) Save(ctx context.Context, id margin.CalculationID) (*margin.Calculation, margin.RollupResult, error) {
	calc, result, err := c.Display(ctx, id)
	if err != nil {
		return nil, result, err
	}

	if err := c.Store.SaveRollup(ctx, id, result); err != nil {
		return nil, result, fmt.Errorf("save rollup for %s: %w", id, err)
	}
	calc.Apply(result)

	c.Log.WithFields(logrus.Fields{
		"calculation":   id,
		"groups":        len(calc.Groups),
		"overall_total": result.OverallTotal.String(),
	}).Info("calculation saved")
	return calc, result, nil
}

// Simulate runs a what-if query against the current reference data.
func (c *Calculator) Simulate(ctx context.Context, q *margin.AdjustmentQuery) (margin.RollupResult, error) {
	ref, err := margin.LoadReference(ctx, c.Store, q)
	if err != nil {
		return margin.RollupResult{}, fmt.Errorf("load reference for simulation: %w", err)
	}

	if dropped := len(q.Groups) - knownGroups(ref, q); dropped > 0 {
		c.Log.WithField("dropped", dropped).Debug("simulation ignored unknown groups")
	}

	result := margin.Run(ref, q)
	c.logUnresolved(result, logrus.Fields{"adjust": q.Adjust})
	return result, nil
}

func knownGroups(ref margin.Reference, q *margin.AdjustmentQuery) int {
	n := 0
	for _, g := range q.Groups {
		if _, ok := ref.Groups[g.ID]; ok {
			n++
		}
	}
	return n
}

func (c *Calculator) logUnresolved(result margin.RollupResult, fields logrus.Fields) {
	for _, u := range result.Unresolved {
		c.Log.WithFields(fields).WithFields(logrus.Fields{
			"owner":  u.Owner.String(),
			"amount": u.Amount.String(),
		}).Warn("no margin bracket covers amount, using rate 0")
	}
}

// =============================================================================
// TABLE EDITS
// =============================================================================

// EditBracket replaces bracket index of the owner's table, or appends when
// index equals the table length. A *margin.ContinuityError for the edited
// bracket is returned as is and nothing is committed. The table is committed
// only when every bracket passes.
func (c *Calculator) EditBracket(ctx context.Context, owner margin.Owner, index int, b margin.Bracket) (margin.RangeTable, error) {
	table, err := c.Store.FindTable(ctx, owner)
	if err != nil {
		return margin.RangeTable{}, err
	}

	edited, err := margin.EditBracket(table, index, b)
	if err != nil {
		return table, err
	}

	if err := c.Store.SaveTable(ctx, edited); err != nil {
		return table, err
	}

	c.Log.WithFields(logrus.Fields{
		"owner":    owner.String(),
		"index":    index,
		"brackets": edited.Len(),
	}).Info("margin table updated")
	return c.Store.FindTable(ctx, owner)
}

// =============================================================================
// QUOTE BUILDING
// =============================================================================

// CreateCalculation starts an empty draft quote.
func (c *Calculator) CreateCalculation(ctx context.Context, title string, userMarginRate decimal.Decimal) (*margin.Calculation, error) {
	now := c.now().UTC()
	calc := &margin.Calculation{
		ID:             margin.CalculationID(uuid.NewString()),
		Title:          title,
		Date:           time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		StateID:        "draft",
		UserMarginRate: userMarginRate,
	}
	if err := c.Store.SaveCalculation(ctx, calc); err != nil {
		return nil, fmt.Errorf("create calculation: %w", err)
	}
	return calc, nil
}

// AddItem appends a line item, assigning an id when it has none.
func (c *Calculator) AddItem(ctx context.Context, id margin.CalculationID, item margin.Item) (*margin.Calculation, error) {
	if item.Price.IsNegative() || item.Quantity.IsNegative() {
		return nil, fmt.Errorf("%w: price %s, quantity %s", margin.ErrInvalidItem, item.Price, item.Quantity)
	}
	if _, err := c.Store.FindCategoryGroup(ctx, item.CategoryID); err != nil {
		return nil, err
	}

	calc, err := c.Store.GetCalculation(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.ID == "" {
		item.ID = margin.ItemID(uuid.NewString())
	}
	calc.Items = append(calc.Items, item)

	if err := c.Store.SaveCalculation(ctx, calc); err != nil {
		return nil, fmt.Errorf("add item to %s: %w", id, err)
	}
	return calc, nil
}

// SetUserMarginRate stores the rate as given. Run clamps it when applied.
func (c *Calculator) SetUserMarginRate(ctx context.Context, id margin.CalculationID, rate decimal.Decimal) (*margin.Calculation, error) {
	calc, err := c.Store.GetCalculation(ctx, id)
	if err != nil {
		return nil, err
	}
	calc.UserMarginRate = rate
	if err := c.Store.SaveCalculation(ctx, calc); err != nil {
		return nil, fmt.Errorf("set user margin on %s: %w", id, err)
	}
	return calc, nil
}
