package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/margin-engine/margin"
	"github.com/warp/margin-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seed(t *testing.T, s *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveGroup(ctx, margin.Group{ID: 1, Name: "Hardware"}))
	require.NoError(t, s.SaveGroup(ctx, margin.Group{ID: 2, Name: "Services"}))
	require.NoError(t, s.SaveCategory(ctx, margin.Category{ID: 10, Name: "Cables", GroupID: 1}))
	require.NoError(t, s.SaveCategory(ctx, margin.Category{ID: 20, Name: "Install", GroupID: 2}))
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func TestStore_GroupsAndCategories(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Hardware", groups[0].Name)

	// Upsert renames
	require.NoError(t, s.SaveGroup(ctx, margin.Group{ID: 1, Name: "Parts"}))
	groups, err = s.ListGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Parts", groups[0].Name)

	categories, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	groupID, err := s.FindCategoryGroup(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, margin.GroupID(2), groupID)

	_, err = s.FindCategoryGroup(ctx, 99)
	assert.ErrorIs(t, err, margin.ErrCategoryNotFound)

	err = s.SaveCategory(ctx, margin.Category{ID: 30, Name: "Orphan", GroupID: 42})
	assert.ErrorIs(t, err, margin.ErrGroupNotFound)
}

func TestStore_SaveTable_NormalizesAndRoundTrips(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	// GIVEN: Brackets submitted out of order, with exact decimals
	tbl := margin.RangeTable{Owner: margin.GroupOwner(1), Brackets: []margin.Bracket{
		{Minimum: d("1000.005"), Maximum: d("50000"), Rate: d("0.0425")},
		{Minimum: d("0"), Maximum: d("1000.005"), Rate: d("0.1")},
	}}

	// WHEN: Saved and loaded back
	require.NoError(t, s.SaveTable(ctx, tbl))
	got, err := s.FindGroupTable(ctx, 1)
	require.NoError(t, err)

	// THEN: Sorted ascending, decimals exact
	require.Equal(t, 2, got.Len())
	assert.True(t, got.Brackets[0].Minimum.IsZero())
	assert.True(t, got.Brackets[0].Maximum.Equal(d("1000.005")))
	assert.True(t, got.Brackets[1].Rate.Equal(d("0.0425")))
	assert.Equal(t, margin.GroupOwner(1), got.Owner)
}

func TestStore_SaveTable_RejectsOverlapAndKeepsCommitted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	committed := margin.RangeTable{Owner: margin.GlobalOwner, Brackets: []margin.Bracket{
		{Minimum: d("0"), Maximum: d("100"), Rate: d("0.1")},
	}}
	require.NoError(t, s.SaveTable(ctx, committed))

	overlapping := margin.RangeTable{Owner: margin.GlobalOwner, Brackets: []margin.Bracket{
		{Minimum: d("0"), Maximum: d("60"), Rate: d("0.1")},
		{Minimum: d("50"), Maximum: d("100"), Rate: d("0.05")},
	}}
	err := s.SaveTable(ctx, overlapping)

	var ce *margin.ContinuityError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, margin.MaximumOverlap, ce.Kind)

	got, err := s.FindGlobalTable(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestStore_FindTable_UnknownOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.FindTable(ctx, margin.CategoryOwner(5))
	assert.ErrorIs(t, err, margin.ErrCategoryNotFound)
	_, err = s.FindGroupTable(ctx, 5)
	assert.ErrorIs(t, err, margin.ErrGroupNotFound)

	global, err := s.FindTable(ctx, margin.GlobalOwner)
	require.NoError(t, err)
	assert.Equal(t, 0, global.Len())
}

// =============================================================================
// CALCULATIONS
// =============================================================================

func TestStore_CalculationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	calc := &margin.Calculation{
		ID:             "calc-1",
		Title:          "Office refit",
		Date:           time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC),
		StateID:        "draft",
		UserMarginRate: d("0.05"),
		Items: []margin.Item{
			{ID: "i-1", CategoryID: 10, Description: "Cat6", Price: d("1.99"), Quantity: d("300")},
			{ID: "i-2", CategoryID: 20, Price: d("450"), Quantity: d("1.5")},
		},
	}
	require.NoError(t, s.SaveCalculation(ctx, calc))

	got, err := s.GetCalculation(ctx, "calc-1")
	require.NoError(t, err)
	assert.Equal(t, "Office refit", got.Title)
	assert.Equal(t, "draft", got.StateID)
	assert.True(t, got.Date.Equal(calc.Date))
	assert.True(t, got.UserMarginRate.Equal(d("0.05")))
	require.Len(t, got.Items, 2)
	assert.Equal(t, margin.ItemID("i-1"), got.Items[0].ID)
	assert.Equal(t, "Cat6", got.Items[0].Description)
	assert.True(t, got.Items[1].Quantity.Equal(d("1.5")))

	_, err = s.GetCalculation(ctx, "nope")
	assert.ErrorIs(t, err, margin.ErrCalculationNotFound)
}

func TestStore_SaveRollup_PersistsRunResult(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.SaveTable(ctx, margin.RangeTable{Owner: margin.GroupOwner(1), Brackets: []margin.Bracket{
		{Minimum: d("0"), Maximum: d("1000000"), Rate: d("0.1")},
	}}))
	require.NoError(t, s.SaveTable(ctx, margin.RangeTable{Owner: margin.GlobalOwner, Brackets: []margin.Bracket{
		{Minimum: d("0"), Maximum: d("1000000"), Rate: d("0.1")},
	}}))

	calc := &margin.Calculation{
		ID:    "calc-2",
		Title: "Single item",
		Date:  time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC),
		Items: []margin.Item{{ID: "i-1", CategoryID: 10, Price: d("100"), Quantity: d("10")}},
	}
	require.NoError(t, s.SaveCalculation(ctx, calc))

	// WHEN: Rolling up against the stored reference data and persisting
	ref, err := margin.LoadReference(ctx, s, calc)
	require.NoError(t, err)
	result := margin.Run(ref, calc)
	require.NoError(t, s.SaveRollup(ctx, "calc-2", result))

	// THEN: Totals and group aggregates are stored
	got, err := s.GetCalculation(ctx, "calc-2")
	require.NoError(t, err)
	assert.True(t, got.ItemsTotal.Equal(d("1100")))
	assert.True(t, got.GlobalMarginAmount.Equal(d("110")))
	assert.True(t, got.OverallTotal.Equal(d("1210")))
	require.Len(t, got.Groups, 1)
	assert.True(t, got.Groups[0].MarginAmount.Equal(d("100")))

	// Re-saving the header keeps the cached totals
	got.Title = "Renamed"
	require.NoError(t, s.SaveCalculation(ctx, got))
	again, err := s.GetCalculation(ctx, "calc-2")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.Title)
	assert.True(t, again.OverallTotal.Equal(d("1210")))

	assert.ErrorIs(t, s.SaveRollup(ctx, "missing", result), margin.ErrCalculationNotFound)
}

func TestStore_ListCalculations_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, day := range []int{1, 3, 2} {
		require.NoError(t, s.SaveCalculation(ctx, &margin.Calculation{
			ID:    margin.CalculationID([]string{"a", "b", "c"}[i]),
			Title: "quote",
			Date:  time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
		}))
	}

	list, err := s.ListCalculations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, margin.CalculationID("b"), list[0].ID)
	assert.Equal(t, margin.CalculationID("a"), list[2].ID)
}

func TestStore_Reset(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.Reset(ctx))

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestStore_GetCalculation_MalformedDate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "margins.db")
	s, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.SaveCalculation(ctx, &margin.Calculation{
		ID:    "calc-bad",
		Title: "quote",
		Date:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}))

	// GIVEN: A row whose stored date was corrupted outside the store
	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.ExecContext(ctx, "UPDATE calculations SET date = 'not-a-date' WHERE id = ?", "calc-bad")
	require.NoError(t, err)

	// THEN: Loading surfaces the parse failure instead of a zero date
	_, err = s.GetCalculation(ctx, "calc-bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse calculation date")
}
