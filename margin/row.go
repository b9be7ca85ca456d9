package margin

import "github.com/shopspring/decimal"

// =============================================================================
// ROW TYPES - The report trail consumed by renderers
// =============================================================================

// RowType is the stable sentinel renderers key off. Values never change.
type RowType int

const (
	RowEmpty        RowType = -1
	RowGroup        RowType = -2
	RowGroupsTotal  RowType = -3
	RowGlobalMargin RowType = -4
	RowNetTotal     RowType = -5
	RowUserMargin   RowType = -6
	RowOverallTotal RowType = -7
)

func (t RowType) String() string {
	switch t {
	case RowEmpty:
		return "empty"
	case RowGroup:
		return "group"
	case RowGroupsTotal:
		return "groups_total"
	case RowGlobalMargin:
		return "global_margin"
	case RowNetTotal:
		return "net_total"
	case RowUserMargin:
		return "user_margin"
	case RowOverallTotal:
		return "overall_total"
	}
	return "unknown"
}

// Row is a closed sum type. The unexported marker keeps the set of variants
// to the seven declared here, so a type switch over them is exhaustive.
type Row interface {
	Type() RowType
	row()
}

type EmptyRow struct{}

type GroupRow struct {
	GroupID      GroupID
	Amount       decimal.Decimal
	Rate         decimal.Decimal
	MarginAmount decimal.Decimal
	Total        decimal.Decimal
}

type GroupsTotalRow struct {
	Total decimal.Decimal
}

type GlobalMarginRow struct {
	Rate   decimal.Decimal
	Amount decimal.Decimal
}

type NetTotalRow struct {
	Total decimal.Decimal
}

type UserMarginRow struct {
	Rate   decimal.Decimal
	Amount decimal.Decimal
}

type OverallTotalRow struct {
	Total decimal.Decimal
}

func (EmptyRow) Type() RowType        { return RowEmpty }
func (GroupRow) Type() RowType        { return RowGroup }
func (GroupsTotalRow) Type() RowType  { return RowGroupsTotal }
func (GlobalMarginRow) Type() RowType { return RowGlobalMargin }
func (NetTotalRow) Type() RowType     { return RowNetTotal }
func (UserMarginRow) Type() RowType   { return RowUserMargin }
func (OverallTotalRow) Type() RowType { return RowOverallTotal }

func (EmptyRow) row()        {}
func (GroupRow) row()        {}
func (GroupsTotalRow) row()  {}
func (GlobalMarginRow) row() {}
func (NetTotalRow) row()     {}
func (UserMarginRow) row()   {}
func (OverallTotalRow) row() {}

// Aggregate converts a group row back to the aggregate it was built from.
func (r GroupRow) Aggregate() GroupAggregate {
	return GroupAggregate{
		GroupID:      r.GroupID,
		Amount:       r.Amount,
		Rate:         r.Rate,
		MarginAmount: r.MarginAmount,
		Total:        r.Total,
	}
}
