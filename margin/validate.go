/*
validate.go - Edit-time continuity validation of margin range tables

PURPOSE:
  Tables are edited one bracket at a time in an administrative grid. Each
  edited bracket is checked against itself and its neighbours so the UI can
  point at the exact cell at fault. A table may be transiently invalid while
  being edited, but it is never committed until every bracket passes.

CHECKS PER BRACKET i:
  Minimum:
    minimum >= maximum of i               -> minimum_smaller_maximum
    minimum <  maximum of i-1             -> minimum_overlap
    minimum >  maximum of i-1             -> minimum_discontinued
  Maximum:
    maximum <= minimum of i               -> maximum_greater_minimum
    maximum >  minimum of i+1             -> maximum_overlap
    maximum <  minimum of i+1             -> maximum_discontinued

  The first bracket has no predecessor and the last has no successor; those
  neighbour checks are skipped.

STATELESS:
  Every function returns its verdict. There is no "last error" to clear.
*/
package margin

import (
	"fmt"
	"sort"
)

// ValidateMinimum checks the minimum of bracket i.
func ValidateMinimum(table RangeTable, i int) error {
	if err := checkIndex(table, i); err != nil {
		return err
	}
	b := table.Brackets[i]
	if !b.Minimum.LessThan(b.Maximum) {
		return &ContinuityError{Index: i, Kind: MinimumSmallerMaximum}
	}
	if i > 0 {
		prev := table.Brackets[i-1]
		switch b.Minimum.Cmp(prev.Maximum) {
		case -1:
			return &ContinuityError{Index: i, Kind: MinimumOverlap}
		case 1:
			return &ContinuityError{Index: i, Kind: MinimumDiscontinued}
		}
	}
	return nil
}

// ValidateMaximum checks the maximum of bracket i.
func ValidateMaximum(table RangeTable, i int) error {
	if err := checkIndex(table, i); err != nil {
		return err
	}
	b := table.Brackets[i]
	if !b.Maximum.GreaterThan(b.Minimum) {
		return &ContinuityError{Index: i, Kind: MaximumGreaterMinimum}
	}
	if i < len(table.Brackets)-1 {
		next := table.Brackets[i+1]
		switch b.Maximum.Cmp(next.Minimum) {
		case 1:
			return &ContinuityError{Index: i, Kind: MaximumOverlap}
		case -1:
			return &ContinuityError{Index: i, Kind: MaximumDiscontinued}
		}
	}
	return nil
}

// ValidateBracket runs the minimum check then the maximum check for bracket i.
func ValidateBracket(table RangeTable, i int) error {
	if err := ValidateMinimum(table, i); err != nil {
		return err
	}
	return ValidateMaximum(table, i)
}

// ValidateTable returns the first failing bracket of table, or nil.
// An empty table is valid.
func ValidateTable(table RangeTable) error {
	for i := range table.Brackets {
		if err := ValidateBracket(table, i); err != nil {
			return err
		}
	}
	return nil
}

// Normalize returns a copy of table sorted ascending by minimum.
func Normalize(table RangeTable) RangeTable {
	out := table.Clone()
	sort.SliceStable(out.Brackets, func(i, j int) bool {
		return out.Brackets[i].Minimum.LessThan(out.Brackets[j].Minimum)
	})
	return out
}

// EditBracket returns a copy of table with bracket i replaced, along with the
// verdict for that bracket. Index len(table) appends a new bracket.
func EditBracket(table RangeTable, i int, b Bracket) (RangeTable, error) {
	if i < 0 || i > len(table.Brackets) {
		return table, fmt.Errorf("%w: %d of %d", ErrBracketIndex, i, len(table.Brackets))
	}
	out := table.Clone()
	if i == len(out.Brackets) {
		out.Brackets = append(out.Brackets, b)
	} else {
		out.Brackets[i] = b
	}
	return out, ValidateBracket(out, i)
}

func checkIndex(table RangeTable, i int) error {
	if i < 0 || i >= len(table.Brackets) {
		return fmt.Errorf("%w: %d of %d", ErrBracketIndex, i, len(table.Brackets))
	}
	return nil
}
