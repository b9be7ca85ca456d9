// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/margin-engine/margin"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

var _ margin.Store = (*Memory)(nil)

type Memory struct {
	mu           sync.RWMutex
	groups       map[margin.GroupID]margin.Group
	categories   map[margin.CategoryID]margin.Category
	tables       map[margin.Owner]margin.RangeTable
	calculations map[margin.CalculationID]margin.Calculation
}

func NewMemory() *Memory {
	return &Memory{
		groups:       make(map[margin.GroupID]margin.Group),
		categories:   make(map[margin.CategoryID]margin.Category),
		tables:       make(map[margin.Owner]margin.RangeTable),
		calculations: make(map[margin.CalculationID]margin.Calculation),
	}
}

// =============================================================================
// REPOSITORY (margin.Repository)
// =============================================================================

func (m *Memory) FindGroupTable(_ context.Context, id margin.GroupID) (margin.RangeTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.groups[id]; !ok {
		return margin.RangeTable{}, fmt.Errorf("%w: %d", margin.ErrGroupNotFound, id)
	}
	return m.tableLocked(margin.GroupOwner(id)), nil
}

func (m *Memory) FindGlobalTable(_ context.Context) (margin.RangeTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tableLocked(margin.GlobalOwner), nil
}

func (m *Memory) FindCategoryGroup(_ context.Context, id margin.CategoryID) (margin.GroupID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", margin.ErrCategoryNotFound, id)
	}
	return c.GroupID, nil
}

// tableLocked returns a copy so callers never alias stored brackets.
func (m *Memory) tableLocked(owner margin.Owner) margin.RangeTable {
	t, ok := m.tables[owner]
	if !ok {
		return margin.RangeTable{Owner: owner}
	}
	return t.Clone()
}

// =============================================================================
// GROUPS / CATEGORIES / TABLES
// =============================================================================

func (m *Memory) SaveGroup(_ context.Context, g margin.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[g.ID] = g
	return nil
}

func (m *Memory) ListGroups(_ context.Context) ([]margin.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]margin.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveCategory(_ context.Context, c margin.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[c.GroupID]; !ok {
		return fmt.Errorf("%w: %d", margin.ErrGroupNotFound, c.GroupID)
	}
	m.categories[c.ID] = c
	return nil
}

func (m *Memory) ListCategories(_ context.Context) ([]margin.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]margin.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) FindTable(_ context.Context, owner margin.Owner) (margin.RangeTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkOwnerLocked(owner); err != nil {
		return margin.RangeTable{}, err
	}
	return m.tableLocked(owner), nil
}

// SaveTable commits a table only if every bracket passes validation.
func (m *Memory) SaveTable(_ context.Context, table margin.RangeTable) error {
	normalized, err := margin.CommitTable(table)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOwnerLocked(table.Owner); err != nil {
		return err
	}
	m.tables[table.Owner] = normalized.Clone()
	return nil
}

func (m *Memory) checkOwnerLocked(owner margin.Owner) error {
	switch owner.Kind {
	case margin.OwnerGroup:
		if _, ok := m.groups[margin.GroupID(owner.ID)]; !ok {
			return fmt.Errorf("%w: %d", margin.ErrGroupNotFound, owner.ID)
		}
	case margin.OwnerCategory:
		if _, ok := m.categories[margin.CategoryID(owner.ID)]; !ok {
			return fmt.Errorf("%w: %d", margin.ErrCategoryNotFound, owner.ID)
		}
	case margin.OwnerGlobal:
	default:
		return margin.ErrInvalidTable
	}
	return nil
}

// =============================================================================
// CALCULATIONS
// =============================================================================

// SaveCalculation stores the header and items. On update the cached totals
// are kept; only SaveRollup writes them.
func (m *Memory) SaveCalculation(_ context.Context, c *margin.Calculation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := copyCalculation(*c)
	if prev, ok := m.calculations[c.ID]; ok {
		next.ItemsTotal = prev.ItemsTotal
		next.GlobalMarginRate = prev.GlobalMarginRate
		next.GlobalMarginAmount = prev.GlobalMarginAmount
		next.UserMarginAmount = prev.UserMarginAmount
		next.NetTotal = prev.NetTotal
		next.OverallTotal = prev.OverallTotal
	}
	m.calculations[c.ID] = next
	return nil
}

func (m *Memory) GetCalculation(_ context.Context, id margin.CalculationID) (*margin.Calculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.calculations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", margin.ErrCalculationNotFound, id)
	}
	out := copyCalculation(c)
	return &out, nil
}

func (m *Memory) ListCalculations(_ context.Context) ([]margin.Calculation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]margin.Calculation, 0, len(m.calculations))
	for _, c := range m.calculations {
		out = append(out, copyCalculation(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

func (m *Memory) SaveRollup(_ context.Context, id margin.CalculationID, r margin.RollupResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.calculations[id]
	if !ok {
		return fmt.Errorf("%w: %s", margin.ErrCalculationNotFound, id)
	}
	c.Apply(r)
	m.calculations[id] = copyCalculation(c)
	return nil
}

func copyCalculation(c margin.Calculation) margin.Calculation {
	c.Items = append([]margin.Item(nil), c.Items...)
	c.Groups = append([]margin.GroupAggregate(nil), c.Groups...)
	return c
}

// Reset drops every group, category, table and calculation.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.groups = make(map[margin.GroupID]margin.Group)
	m.categories = make(map[margin.CategoryID]margin.Category)
	m.tables = make(map[margin.Owner]margin.RangeTable)
	m.calculations = make(map[margin.CalculationID]margin.Calculation)
	return nil
}
