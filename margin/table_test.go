package margin_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/margin-engine/margin"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func bracket(min, max, rate string) margin.Bracket {
	return margin.Bracket{Minimum: d(min), Maximum: d(max), Rate: d(rate)}
}

func table(owner margin.Owner, brackets ...margin.Bracket) margin.RangeTable {
	return margin.RangeTable{Owner: owner, Brackets: brackets}
}

// tiered is a continuous three-bracket group table: 10% / 5% / 2%.
func tiered() margin.RangeTable {
	return table(margin.GroupOwner(1),
		bracket("0", "1000", "0.10"),
		bracket("1000", "10000", "0.05"),
		bracket("10000", "1000000", "0.02"),
	)
}

// =============================================================================
// RESOLVER TESTS
// =============================================================================

func TestResolve_PicksBracketByHalfOpenInterval(t *testing.T) {
	tbl := tiered()

	cases := []struct {
		amount string
		rate   string
	}{
		{"0", "0.10"},
		{"999.99", "0.10"},
		{"1000", "0.05"}, // boundary belongs to the upper bracket
		{"9999.9999", "0.05"},
		{"10000", "0.02"},
	}
	for _, tc := range cases {
		rate, err := margin.Resolve(tbl, d(tc.amount))
		require.NoError(t, err, "amount %s", tc.amount)
		assert.True(t, rate.Equal(d(tc.rate)), "amount %s: got rate %s, want %s", tc.amount, rate, tc.rate)
	}
}

func TestResolve_LastBracketMaximumIsInclusive(t *testing.T) {
	// GIVEN: A table whose ceiling is 1,000,000
	// WHEN: Resolving exactly the ceiling
	// THEN: The last bracket matches
	rate, err := margin.Resolve(tiered(), d("1000000"))
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("0.02")))
}

func TestResolve_AboveCeiling_NotFound(t *testing.T) {
	_, err := margin.Resolve(tiered(), d("1000000.01"))
	require.Error(t, err)
	assert.ErrorIs(t, err, margin.ErrRateNotFound)

	var nf *margin.RateNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, margin.GroupOwner(1), nf.Owner)
	assert.True(t, nf.Amount.Equal(d("1000000.01")))
}

func TestResolve_ZeroWithoutZeroBracket_NotFound(t *testing.T) {
	// GIVEN: A table starting at 10
	tbl := table(margin.GlobalOwner, bracket("10", "100", "0.1"))

	// THEN: Zero is below every bracket
	_, err := margin.Resolve(tbl, decimal.Zero)
	assert.ErrorIs(t, err, margin.ErrRateNotFound)
}

func TestResolve_EmptyTable_NotFound(t *testing.T) {
	_, err := margin.Resolve(table(margin.GlobalOwner), d("5"))
	assert.ErrorIs(t, err, margin.ErrRateNotFound)
	assert.False(t, margin.Covers(table(margin.GlobalOwner), d("5")))
}

func TestResolve_NegativeRate(t *testing.T) {
	tbl := table(margin.CategoryOwner(3), bracket("0", "100", "-0.15"))

	rate, err := margin.Resolve(tbl, d("50"))
	require.NoError(t, err)
	assert.True(t, rate.Equal(d("-0.15")))
}

func TestResolve_ValidTableCoversWholeSpan(t *testing.T) {
	// Every amount in [first.minimum, last.maximum] resolves for a table
	// that passes validation.
	tbl := tiered()
	require.NoError(t, margin.ValidateTable(tbl))

	step := d("997.3")
	last := tbl.Brackets[len(tbl.Brackets)-1].Maximum
	for amount := tbl.Brackets[0].Minimum; amount.LessThanOrEqual(last); amount = amount.Add(step) {
		assert.True(t, margin.Covers(tbl, amount), "amount %s should resolve", amount)
	}
	for _, b := range tbl.Brackets {
		assert.True(t, margin.Covers(tbl, b.Minimum))
		assert.True(t, margin.Covers(tbl, b.Maximum))
	}
}

func TestOwner_String(t *testing.T) {
	assert.Equal(t, "global", margin.GlobalOwner.String())
	assert.Equal(t, "group 7", margin.GroupOwner(7).String())
	assert.Equal(t, "category 2", margin.CategoryOwner(2).String())
}
