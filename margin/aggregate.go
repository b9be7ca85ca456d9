package margin

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ITEM AGGREGATOR - items -> categories -> groups
// =============================================================================

// Aggregation is the result of folding items into category and group subtotals.
type Aggregation struct {
	Categories map[CategoryID]CategoryAggregate
	Groups     map[GroupID]decimal.Decimal

	// Orphans lists categories referenced by items but owned by no group.
	// Their amounts reach no group.
	Orphans []CategoryID
}

// Aggregate sums item totals per category, then category amounts per owning
// group. Exact decimal addition makes the result independent of item order.
//
// Every category referenced by an item gets an entry, even at zero. A group
// appears only if at least one of its categories does.
func Aggregate(items []Item, categoryGroups map[CategoryID]GroupID) Aggregation {
	categories := make(map[CategoryID]decimal.Decimal)
	for _, item := range items {
		categories[item.CategoryID] = categories[item.CategoryID].Add(item.Total())
	}

	agg := Aggregation{
		Categories: make(map[CategoryID]CategoryAggregate, len(categories)),
		Groups:     make(map[GroupID]decimal.Decimal),
	}
	for categoryID, amount := range categories {
		groupID, ok := categoryGroups[categoryID]
		if !ok {
			agg.Orphans = append(agg.Orphans, categoryID)
			continue
		}
		agg.Categories[categoryID] = CategoryAggregate{
			CategoryID: categoryID,
			GroupID:    groupID,
			Amount:     amount,
		}
		agg.Groups[groupID] = agg.Groups[groupID].Add(amount)
	}
	sort.Slice(agg.Orphans, func(i, j int) bool { return agg.Orphans[i] < agg.Orphans[j] })
	return agg
}

// SortedGroupIDs returns the keys of groups in ascending order.
func SortedGroupIDs(groups map[GroupID]decimal.Decimal) []GroupID {
	ids := make([]GroupID, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CategoriesOf returns the category aggregates of one group, ascending by id.
func (a Aggregation) CategoriesOf(groupID GroupID) []CategoryAggregate {
	var out []CategoryAggregate
	for _, c := range a.Categories {
		if c.GroupID == groupID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out
}
