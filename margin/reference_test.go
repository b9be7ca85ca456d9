package margin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/margin-engine/margin"
	"github.com/warp/margin-engine/margin/store"
)

func seededMemory(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	m := store.NewMemory()

	require.NoError(t, m.SaveGroup(ctx, margin.Group{ID: 1, Name: "Hardware"}))
	require.NoError(t, m.SaveGroup(ctx, margin.Group{ID: 2, Name: "Services"}))
	require.NoError(t, m.SaveCategory(ctx, margin.Category{ID: 1, Name: "Cables", GroupID: 1}))
	require.NoError(t, m.SaveCategory(ctx, margin.Category{ID: 2, Name: "Install", GroupID: 2}))
	require.NoError(t, m.SaveTable(ctx, flat(margin.GroupOwner(1), "0.1")))
	require.NoError(t, m.SaveTable(ctx, flat(margin.GlobalOwner, "0.1")))
	return m
}

func TestLoadReference_Calculation(t *testing.T) {
	// GIVEN: Items in a known category, an unknown category, and a group without table
	repo := seededMemory(t)
	calc := &margin.Calculation{Items: []margin.Item{
		item(1, "100", "10"),
		item(2, "50", "1"),
		item(99, "1", "1"),
	}}

	// WHEN: Loading reference data
	ref, err := margin.LoadReference(context.Background(), repo, calc)
	require.NoError(t, err)

	// THEN: Only what the items reference is loaded
	assert.Equal(t, map[margin.CategoryID]margin.GroupID{1: 1, 2: 2}, ref.CategoryGroups)
	require.Contains(t, ref.Groups, margin.GroupID(1))
	require.Contains(t, ref.Groups, margin.GroupID(2))
	assert.Equal(t, 0, ref.Groups[2].Len())
	assert.Equal(t, 1, ref.Global.Len())

	r := margin.Run(ref, calc)
	require.Len(t, r.Rows, 2+5)
	assertDecimal(t, "1100", r.Rows[0].(margin.GroupRow).Total, "group 1 total")
	assertDecimal(t, "50", r.Rows[1].(margin.GroupRow).Total, "group 2 total")
}

func TestLoadReference_QueryDropsUnknownGroups(t *testing.T) {
	repo := seededMemory(t)
	q := &margin.AdjustmentQuery{Groups: []margin.GroupTotal{{ID: 1, Total: d("10")}, {ID: 77, Total: d("5")}}}

	ref, err := margin.LoadReference(context.Background(), repo, q)
	require.NoError(t, err)

	assert.Len(t, ref.Groups, 1)
	assert.NotContains(t, ref.Groups, margin.GroupID(77))
}

func TestLoadReference_EndToEnd_UnknownOnlyIsEmpty(t *testing.T) {
	repo := seededMemory(t)
	q := &margin.AdjustmentQuery{Groups: []margin.GroupTotal{{ID: 77, Total: d("5")}}}

	ref, err := margin.LoadReference(context.Background(), repo, q)
	require.NoError(t, err)
	assertEmpty(t, margin.Run(ref, q))
}

type failingRepo struct{ margin.Repository }

func (failingRepo) FindGlobalTable(context.Context) (margin.RangeTable, error) {
	return margin.RangeTable{}, errors.New("disk on fire")
}

func TestLoadReference_PropagatesRepositoryErrors(t *testing.T) {
	_, err := margin.LoadReference(context.Background(), failingRepo{}, &margin.AdjustmentQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}
