/*
table.go - Margin range tables and the rate resolver

PURPOSE:
  A margin range table is an ordered set of (minimum, maximum, rate)
  brackets. Every category, every group, and the single global owner may
  have one. Resolve() picks the rate of the bracket covering an amount.

LOOKUP RULE:
  minimum <= amount < maximum      for every bracket but the last
  minimum <= amount <= maximum     for the last bracket (admits the ceiling)

  Anything below the first minimum or above the last maximum fails with
  ErrRateNotFound. An empty table never resolves.

PRECONDITION:
  Brackets must already be sorted ascending by minimum. Resolve() does not
  sort; Normalize() in validate.go does, at write time.

EXAMPLE:
  table := RangeTable{Owner: GlobalOwner, Brackets: []Bracket{
      {Minimum: d("0"),    Maximum: d("1000"),  Rate: d("0.10")},
      {Minimum: d("1000"), Maximum: d("10000"), Rate: d("0.05")},
  }}
  rate, err := Resolve(table, d("1000"))   // 0.05
*/
package margin

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// OWNER - Who a table belongs to
// =============================================================================

type OwnerKind string

const (
	OwnerCategory OwnerKind = "category"
	OwnerGroup    OwnerKind = "group"
	OwnerGlobal   OwnerKind = "global"
)

// Valid reports whether k is one of the known owner kinds.
func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerCategory, OwnerGroup, OwnerGlobal:
		return true
	}
	return false
}

// Owner identifies the table owner. ID is 0 for the global owner.
type Owner struct {
	Kind OwnerKind
	ID   int64
}

// GlobalOwner is the singleton owner of the global margin table.
var GlobalOwner = Owner{Kind: OwnerGlobal}

func GroupOwner(id GroupID) Owner       { return Owner{Kind: OwnerGroup, ID: int64(id)} }
func CategoryOwner(id CategoryID) Owner { return Owner{Kind: OwnerCategory, ID: int64(id)} }

func (o Owner) String() string {
	if o.Kind == OwnerGlobal {
		return string(OwnerGlobal)
	}
	return fmt.Sprintf("%s %d", o.Kind, o.ID)
}

// =============================================================================
// BRACKET / TABLE
// =============================================================================

// Bracket maps [Minimum, Maximum) to Rate. Rate may be negative (discount).
type Bracket struct {
	Minimum decimal.Decimal
	Maximum decimal.Decimal
	Rate    decimal.Decimal
}

type RangeTable struct {
	Owner    Owner
	Brackets []Bracket
}

func (t RangeTable) Len() int { return len(t.Brackets) }

// Clone returns a copy whose bracket slice can be edited freely.
func (t RangeTable) Clone() RangeTable {
	brackets := make([]Bracket, len(t.Brackets))
	copy(brackets, t.Brackets)
	return RangeTable{Owner: t.Owner, Brackets: brackets}
}

// =============================================================================
// RATE RESOLVER
// =============================================================================

// Resolve returns the rate of the bracket covering amount.
func Resolve(table RangeTable, amount decimal.Decimal) (decimal.Decimal, error) {
	last := len(table.Brackets) - 1
	for i, b := range table.Brackets {
		if amount.LessThan(b.Minimum) {
			break // sorted: no later bracket can match
		}
		if amount.LessThan(b.Maximum) || (i == last && amount.Equal(b.Maximum)) {
			return b.Rate, nil
		}
	}
	return decimal.Zero, &RateNotFoundError{Owner: table.Owner, Amount: amount}
}

// Covers reports whether some bracket of table covers amount.
func Covers(table RangeTable, amount decimal.Decimal) bool {
	_, err := Resolve(table, amount)
	return err == nil
}
