package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/margin-engine/margin"
	"github.com/warp/margin-engine/margin/store"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMemory_SaveTable_RejectsDiscontinuousTable(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveGroup(ctx, margin.Group{ID: 1, Name: "G"}))

	good := margin.RangeTable{Owner: margin.GroupOwner(1), Brackets: []margin.Bracket{
		{Minimum: d("0"), Maximum: d("100"), Rate: d("0.1")},
	}}
	require.NoError(t, m.SaveTable(ctx, good))

	bad := margin.RangeTable{Owner: margin.GroupOwner(1), Brackets: []margin.Bracket{
		{Minimum: d("0"), Maximum: d("50"), Rate: d("0.1")},
		{Minimum: d("60"), Maximum: d("100"), Rate: d("0.1")},
	}}
	err := m.SaveTable(ctx, bad)
	assert.ErrorIs(t, err, margin.ErrContinuity)

	// Previously committed table is untouched
	got, err := m.FindGroupTable(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestMemory_SaveTable_UnknownOwner(t *testing.T) {
	m := store.NewMemory()
	err := m.SaveTable(context.Background(), margin.RangeTable{Owner: margin.GroupOwner(9)})
	assert.ErrorIs(t, err, margin.ErrGroupNotFound)
}

func TestMemory_TablesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	tbl := margin.RangeTable{Owner: margin.GlobalOwner, Brackets: []margin.Bracket{
		{Minimum: d("0"), Maximum: d("100"), Rate: d("0.1")},
	}}
	require.NoError(t, m.SaveTable(ctx, tbl))

	got, err := m.FindGlobalTable(ctx)
	require.NoError(t, err)
	got.Brackets[0].Rate = d("0.9")

	again, err := m.FindGlobalTable(ctx)
	require.NoError(t, err)
	assert.True(t, again.Brackets[0].Rate.Equal(d("0.1")))
}

func TestMemory_Lookups_NotFound(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	_, err := m.FindGroupTable(ctx, 1)
	assert.True(t, margin.IsNotFound(err))
	_, err = m.FindCategoryGroup(ctx, 1)
	assert.ErrorIs(t, err, margin.ErrCategoryNotFound)
	_, err = m.GetCalculation(ctx, "nope")
	assert.ErrorIs(t, err, margin.ErrCalculationNotFound)
	assert.ErrorIs(t, m.SaveCategory(ctx, margin.Category{ID: 1, GroupID: 5}), margin.ErrGroupNotFound)
}

func TestMemory_CalculationRoundTripAndRollup(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()

	calc := &margin.Calculation{
		ID:    "calc-1",
		Title: "Office refit",
		Date:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Items: []margin.Item{{ID: "i1", CategoryID: 1, Price: d("10"), Quantity: d("2")}},
	}
	require.NoError(t, m.SaveCalculation(ctx, calc))

	calc.Items[0].Price = d("999") // caller mutation must not leak in
	got, err := m.GetCalculation(ctx, "calc-1")
	require.NoError(t, err)
	assert.True(t, got.Items[0].Price.Equal(d("10")))

	result := margin.RollupResult{
		Rows: []margin.Row{
			margin.GroupRow{GroupID: 1, Amount: d("20"), Rate: d("0"), MarginAmount: d("0"), Total: d("20")},
		},
		ItemsTotal:   d("20"),
		NetTotal:     d("20"),
		OverallTotal: d("20"),
	}
	require.NoError(t, m.SaveRollup(ctx, "calc-1", result))

	got, err = m.GetCalculation(ctx, "calc-1")
	require.NoError(t, err)
	require.Len(t, got.Groups, 1)
	assert.True(t, got.OverallTotal.Equal(d("20")))

	// Re-saving the header keeps the cached totals
	got.Title = "Renamed"
	got.OverallTotal = d("1")
	require.NoError(t, m.SaveCalculation(ctx, got))
	again, err := m.GetCalculation(ctx, "calc-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", again.Title)
	assert.True(t, again.OverallTotal.Equal(d("20")))
	assert.True(t, again.ItemsTotal.Equal(d("20")))

	list, err := m.ListCalculations(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, m.SaveRollup(ctx, "missing", result), margin.ErrCalculationNotFound)
}

func TestMemory_Reset(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	require.NoError(t, m.SaveGroup(ctx, margin.Group{ID: 1, Name: "G"}))

	require.NoError(t, m.Reset(ctx))

	groups, err := m.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}
