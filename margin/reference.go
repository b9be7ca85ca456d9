package margin

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// REPOSITORY - Reference data collaborator
// =============================================================================

// Repository is the read side of the reference data the engine depends on.
// Implementations live in margin/store (memory) and store/sqlite.
type Repository interface {
	// FindGroupTable returns the margin table of a group.
	// Returns ErrGroupNotFound if the group doesn't exist. A group without
	// brackets returns an empty table, not an error.
	FindGroupTable(ctx context.Context, id GroupID) (RangeTable, error)

	// FindGlobalTable returns the global margin table (possibly empty).
	FindGlobalTable(ctx context.Context) (RangeTable, error)

	// FindCategoryGroup returns the group owning a category.
	// Returns ErrCategoryNotFound if the category doesn't exist.
	FindCategoryGroup(ctx context.Context, id CategoryID) (GroupID, error)
}

// LoadReference fetches exactly the reference data src needs.
//
// Unknown groups and categories are left out of the Reference rather than
// reported, so Run() can drop them. Any other repository error is returned.
func LoadReference(ctx context.Context, repo Repository, src Source) (Reference, error) {
	ref := Reference{
		Groups:         make(map[GroupID]RangeTable),
		CategoryGroups: make(map[CategoryID]GroupID),
	}

	global, err := repo.FindGlobalTable(ctx)
	if err != nil {
		return ref, fmt.Errorf("load global table: %w", err)
	}
	ref.Global = global

	var groupIDs []GroupID
	switch s := src.(type) {
	case *Calculation:
		for _, item := range s.Items {
			if _, seen := ref.CategoryGroups[item.CategoryID]; seen {
				continue
			}
			groupID, err := repo.FindCategoryGroup(ctx, item.CategoryID)
			if errors.Is(err, ErrCategoryNotFound) {
				continue
			}
			if err != nil {
				return ref, fmt.Errorf("load category %d: %w", item.CategoryID, err)
			}
			ref.CategoryGroups[item.CategoryID] = groupID
			groupIDs = append(groupIDs, groupID)
		}
	case *AdjustmentQuery:
		groupIDs = s.GroupIDs()
	}

	for _, id := range groupIDs {
		if _, seen := ref.Groups[id]; seen {
			continue
		}
		table, err := repo.FindGroupTable(ctx, id)
		if errors.Is(err, ErrGroupNotFound) {
			continue
		}
		if err != nil {
			return ref, fmt.Errorf("load group %d table: %w", id, err)
		}
		ref.Groups[id] = table
	}
	return ref, nil
}
