package margin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/margin-engine/margin"
)

func requireContinuity(t *testing.T, err error, index int, kind margin.ContinuityKind) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, margin.ErrContinuity)

	var ce *margin.ContinuityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, index, ce.Index)
	assert.Equal(t, kind, ce.Kind)
}

// =============================================================================
// MINIMUM CHECKS
// =============================================================================

func TestValidateMinimum_NotBelowOwnMaximum(t *testing.T) {
	tbl := table(margin.GlobalOwner, bracket("100", "100", "0.1"))

	requireContinuity(t, margin.ValidateMinimum(tbl, 0), 0, margin.MinimumSmallerMaximum)
}

func TestValidateMinimum_OverlapWithPrevious(t *testing.T) {
	// GIVEN: Previous bracket ends at 60, edited bracket starts at 50
	tbl := table(margin.GlobalOwner,
		bracket("0", "60", "0.1"),
		bracket("50", "100", "0.05"),
	)

	// THEN: The edited bracket is rejected as overlapping
	requireContinuity(t, margin.ValidateBracket(tbl, 1), 1, margin.MinimumOverlap)
}

func TestValidateMinimum_GapAfterPrevious(t *testing.T) {
	tbl := table(margin.GlobalOwner,
		bracket("0", "50", "0.1"),
		bracket("60", "100", "0.05"),
	)

	requireContinuity(t, margin.ValidateMinimum(tbl, 1), 1, margin.MinimumDiscontinued)
}

func TestValidateMinimum_FirstBracketSkipsNeighbour(t *testing.T) {
	tbl := table(margin.GlobalOwner, bracket("25", "50", "0.1"))
	assert.NoError(t, margin.ValidateMinimum(tbl, 0))
}

// =============================================================================
// MAXIMUM CHECKS
// =============================================================================

func TestValidateMaximum_NotAboveOwnMinimum(t *testing.T) {
	tbl := table(margin.GlobalOwner, bracket("100", "40", "0.1"))

	requireContinuity(t, margin.ValidateMaximum(tbl, 0), 0, margin.MaximumGreaterMinimum)
}

func TestValidateMaximum_OverlapWithNext(t *testing.T) {
	tbl := table(margin.GlobalOwner,
		bracket("0", "60", "0.1"),
		bracket("50", "100", "0.05"),
	)

	requireContinuity(t, margin.ValidateBracket(tbl, 0), 0, margin.MaximumOverlap)
}

func TestValidateMaximum_GapBeforeNext(t *testing.T) {
	tbl := table(margin.GlobalOwner,
		bracket("0", "50", "0.1"),
		bracket("60", "100", "0.05"),
	)

	requireContinuity(t, margin.ValidateMaximum(tbl, 0), 0, margin.MaximumDiscontinued)
}

func TestValidateMaximum_LastBracketSkipsNeighbour(t *testing.T) {
	tbl := tiered()
	assert.NoError(t, margin.ValidateMaximum(tbl, len(tbl.Brackets)-1))
}

// =============================================================================
// TABLE-LEVEL VALIDATION
// =============================================================================

func TestValidateTable_AcceptedTablesAreContinuous(t *testing.T) {
	tbl := tiered()
	require.NoError(t, margin.ValidateTable(tbl))

	for i := 0; i+1 < len(tbl.Brackets); i++ {
		assert.True(t, tbl.Brackets[i].Maximum.Equal(tbl.Brackets[i+1].Minimum))
	}
}

func TestValidateTable_EmptyIsValid(t *testing.T) {
	assert.NoError(t, margin.ValidateTable(table(margin.GlobalOwner)))
}

func TestValidateTable_ReportsFirstFailingBracket(t *testing.T) {
	tbl := table(margin.GlobalOwner,
		bracket("0", "10", "0.1"),
		bracket("10", "20", "0.1"),
		bracket("25", "30", "0.1"),
	)

	// Bracket 1's maximum check sees the gap before bracket 2 first.
	requireContinuity(t, margin.ValidateTable(tbl), 1, margin.MaximumDiscontinued)
}

func TestValidateBracket_IndexOutOfRange(t *testing.T) {
	err := margin.ValidateBracket(tiered(), 3)
	assert.ErrorIs(t, err, margin.ErrBracketIndex)
	assert.True(t, margin.IsClientError(err))
}

func TestNormalize_SortsByMinimum(t *testing.T) {
	// GIVEN: Brackets entered out of order
	tbl := table(margin.GlobalOwner,
		bracket("1000", "5000", "0.05"),
		bracket("0", "1000", "0.1"),
	)
	require.Error(t, margin.ValidateTable(tbl))

	// WHEN: Normalized
	sorted := margin.Normalize(tbl)

	// THEN: The sorted copy validates and the input is untouched
	require.NoError(t, margin.ValidateTable(sorted))
	assert.True(t, sorted.Brackets[0].Minimum.IsZero())
	assert.True(t, tbl.Brackets[0].Minimum.Equal(d("1000")))
}

func TestCommitTable(t *testing.T) {
	_, err := margin.CommitTable(margin.RangeTable{Owner: margin.Owner{Kind: "bogus"}})
	assert.ErrorIs(t, err, margin.ErrInvalidTable)

	_, err = margin.CommitTable(table(margin.GlobalOwner,
		bracket("0", "60", "0.1"),
		bracket("50", "100", "0.05"),
	))
	assert.ErrorIs(t, err, margin.ErrContinuity)

	committed, err := margin.CommitTable(table(margin.GlobalOwner,
		bracket("60", "100", "0.05"),
		bracket("0", "60", "0.1"),
	))
	require.NoError(t, err)
	assert.True(t, committed.Brackets[0].Minimum.IsZero())
}

// =============================================================================
// SINGLE-BRACKET EDITS
// =============================================================================

func TestEditBracket_ReplaceAndVerdict(t *testing.T) {
	// GIVEN: A valid table
	tbl := tiered()

	// WHEN: Bracket 1 is edited to start below bracket 0's maximum
	edited, err := margin.EditBracket(tbl, 1, bracket("900", "10000", "0.05"))

	// THEN: The edit is reported and the original is unchanged
	requireContinuity(t, err, 1, margin.MinimumOverlap)
	assert.True(t, edited.Brackets[1].Minimum.Equal(d("900")))
	assert.True(t, tbl.Brackets[1].Minimum.Equal(d("1000")))
}

func TestEditBracket_Append(t *testing.T) {
	tbl := tiered()

	edited, err := margin.EditBracket(tbl, 3, bracket("1000000", "5000000", "0.01"))
	require.NoError(t, err)
	assert.Equal(t, 4, edited.Len())
	assert.Equal(t, 3, tbl.Len())
}

func TestEditBracket_OutOfRange(t *testing.T) {
	_, err := margin.EditBracket(tiered(), 5, bracket("0", "1", "0"))
	assert.ErrorIs(t, err, margin.ErrBracketIndex)
}
