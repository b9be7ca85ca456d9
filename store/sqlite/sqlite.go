/*
Package sqlite provides a SQLite-backed implementation of margin.Store.

PURPOSE:
  Persists the reference data the rollup engine reads (groups, categories,
  margin tables) and the calculations it rolls up. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  margin.Repository: Reference lookups for LoadReference()
  margin.Store:      Reference writes, calculations, rollup persistence

KEY TABLES:
  category_groups:    Groups (one margin table each)
  categories:         Categories, each owned by one group
  margin_brackets:    Brackets keyed by (owner_kind, owner_id, position)
  calculations:       Quote header + cached totals
  calculation_items:  Line items
  calculation_groups: Group aggregates of the last persisted rollup

TABLE COMMITS:
  SaveTable() validates continuity first, then replaces every bracket of the
  owner inside one transaction. A rejected table never reaches the database.

DECIMALS:
  Stored as TEXT (decimal.Decimal.String()) and scanned straight back into
  decimal.Decimal, so nothing passes through float64.

MIGRATION:
  Schema is versioned with goose; migrations are embedded and applied on New().

USAGE:
  store, err := sqlite.New("./data/margin.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - margin/store.go: Interface definitions
  - margin/store/memory.go: In-memory implementation for testing
  - migrations/: goose SQL migrations
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/warp/margin-engine/margin"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ margin.Store = (*Store)(nil)

// Store implements margin.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded goose migrations.
func (s *Store) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// REPOSITORY (margin.Repository interface)
// =============================================================================

// FindGroupTable returns the margin table of a group.
func (s *Store) FindGroupTable(ctx context.Context, id margin.GroupID) (margin.RangeTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOwner(ctx, margin.GroupOwner(id)); err != nil {
		return margin.RangeTable{}, err
	}
	return s.loadTable(ctx, s.db, margin.GroupOwner(id))
}

// FindGlobalTable returns the global margin table.
func (s *Store) FindGlobalTable(ctx context.Context) (margin.RangeTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadTable(ctx, s.db, margin.GlobalOwner)
}

// FindCategoryGroup returns the group owning a category.
func (s *Store) FindCategoryGroup(ctx context.Context, id margin.CategoryID) (margin.GroupID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var groupID margin.GroupID
	err := s.db.QueryRowContext(ctx, "SELECT group_id FROM categories WHERE id = ?", id).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", margin.ErrCategoryNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query category: %w", err)
	}
	return groupID, nil
}

// =============================================================================
// GROUPS / CATEGORIES
// =============================================================================

// SaveGroup creates or renames a group.
func (s *Store) SaveGroup(ctx context.Context, g margin.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO category_groups (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, g.ID, g.Name, now())
	if err != nil {
		return fmt.Errorf("failed to save group: %w", err)
	}
	return nil
}

// ListGroups returns all groups ordered by id.
func (s *Store) ListGroups(ctx context.Context) ([]margin.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM category_groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []margin.Group
	for rows.Next() {
		var g margin.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// SaveCategory creates or updates a category. The owning group must exist.
func (s *Store) SaveCategory(ctx context.Context, c margin.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOwner(ctx, margin.GroupOwner(c.GroupID)); err != nil {
		return err
	}

	query := `
		INSERT INTO categories (id, name, group_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, group_id = excluded.group_id
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.GroupID, now())
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

// ListCategories returns all categories ordered by id.
func (s *Store) ListCategories(ctx context.Context) ([]margin.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, group_id FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []margin.Category
	for rows.Next() {
		var c margin.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.GroupID); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// =============================================================================
// MARGIN TABLES
// =============================================================================

// FindTable returns the committed table of any owner.
func (s *Store) FindTable(ctx context.Context, owner margin.Owner) (margin.RangeTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOwner(ctx, owner); err != nil {
		return margin.RangeTable{}, err
	}
	return s.loadTable(ctx, s.db, owner)
}

// SaveTable validates a table and replaces the owner's brackets atomically.
func (s *Store) SaveTable(ctx context.Context, table margin.RangeTable) error {
	normalized, err := margin.CommitTable(table)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOwner(ctx, table.Owner); err != nil {
		return err
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx,
		"DELETE FROM margin_brackets WHERE owner_kind = ? AND owner_id = ?",
		normalized.Owner.Kind, normalized.Owner.ID,
	); err != nil {
		return fmt.Errorf("failed to clear brackets: %w", err)
	}

	for i, b := range normalized.Brackets {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO margin_brackets (owner_kind, owner_id, position, minimum, maximum, rate)
			VALUES (?, ?, ?, ?, ?, ?)
		`, normalized.Owner.Kind, normalized.Owner.ID, i,
			b.Minimum.String(), b.Maximum.String(), b.Rate.String())
		if err != nil {
			return fmt.Errorf("failed to insert bracket %d: %w", i, err)
		}
	}

	return sqlTx.Commit()
}

func (s *Store) loadTable(ctx context.Context, db querier, owner margin.Owner) (margin.RangeTable, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT minimum, maximum, rate
		FROM margin_brackets
		WHERE owner_kind = ? AND owner_id = ?
		ORDER BY position ASC
	`, owner.Kind, owner.ID)
	if err != nil {
		return margin.RangeTable{}, fmt.Errorf("failed to query brackets: %w", err)
	}
	defer rows.Close()

	table := margin.RangeTable{Owner: owner}
	for rows.Next() {
		var b margin.Bracket
		if err := rows.Scan(&b.Minimum, &b.Maximum, &b.Rate); err != nil {
			return table, fmt.Errorf("failed to scan bracket: %w", err)
		}
		table.Brackets = append(table.Brackets, b)
	}
	return table, rows.Err()
}

// checkOwner verifies that a table owner exists. The global owner always does.
func (s *Store) checkOwner(ctx context.Context, owner margin.Owner) error {
	var query string
	var notFound error
	switch owner.Kind {
	case margin.OwnerGlobal:
		return nil
	case margin.OwnerGroup:
		query, notFound = "SELECT COUNT(*) FROM category_groups WHERE id = ?", margin.ErrGroupNotFound
	case margin.OwnerCategory:
		query, notFound = "SELECT COUNT(*) FROM categories WHERE id = ?", margin.ErrCategoryNotFound
	default:
		return margin.ErrInvalidTable
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, owner.ID).Scan(&count); err != nil {
		return fmt.Errorf("failed to check owner: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %d", notFound, owner.ID)
	}
	return nil
}

// =============================================================================
// CALCULATIONS
// =============================================================================

// SaveCalculation upserts a calculation and replaces its items and groups.
func (s *Store) SaveCalculation(ctx context.Context, c *margin.Calculation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	ts := now()
	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO calculations
		(id, title, date, state_id, items_total, global_margin_rate, global_margin_amount,
		 user_margin_rate, user_margin_amount, net_total, overall_total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			date = excluded.date,
			state_id = excluded.state_id,
			user_margin_rate = excluded.user_margin_rate,
			updated_at = excluded.updated_at
	`,
		c.ID, c.Title, c.Date.UTC().Format(time.RFC3339), nullString(c.StateID),
		c.ItemsTotal.String(), c.GlobalMarginRate.String(), c.GlobalMarginAmount.String(),
		c.UserMarginRate.String(), c.UserMarginAmount.String(), c.NetTotal.String(),
		c.OverallTotal.String(), ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to save calculation: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx, "DELETE FROM calculation_items WHERE calculation_id = ?", c.ID); err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	for i, item := range c.Items {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO calculation_items (id, calculation_id, position, category_id, description, price, quantity)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, item.ID, c.ID, i, item.CategoryID, nullString(item.Description),
			item.Price.String(), item.Quantity.String())
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("duplicate item id %q: %w", item.ID, err)
			}
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}

	if err := saveGroups(ctx, sqlTx, c.ID, c.Groups); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// GetCalculation loads a calculation with its items and groups.
func (s *Store) GetCalculation(ctx context.Context, id margin.CalculationID) (*margin.Calculation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, calculationColumns+" WHERE id = ?", id)
	c, err := scanCalculation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", margin.ErrCalculationNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if c.Items, err = s.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if c.Groups, err = s.loadGroups(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCalculations returns calculation headers (no items), newest first.
func (s *Store) ListCalculations(ctx context.Context) ([]margin.Calculation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, calculationColumns+" ORDER BY date DESC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query calculations: %w", err)
	}
	defer rows.Close()

	var out []margin.Calculation
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// SaveRollup writes recomputed group aggregates and totals onto a calculation.
func (s *Store) SaveRollup(ctx context.Context, id margin.CalculationID, r margin.RollupResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	res, err := sqlTx.ExecContext(ctx, `
		UPDATE calculations SET
			items_total = ?, global_margin_rate = ?, global_margin_amount = ?,
			user_margin_rate = ?, user_margin_amount = ?, net_total = ?, overall_total = ?,
			updated_at = ?
		WHERE id = ?
	`,
		r.ItemsTotal.String(), r.GlobalMarginRate.String(), r.GlobalMarginAmount.String(),
		r.UserMarginRate.String(), r.UserMarginAmount.String(), r.NetTotal.String(),
		r.OverallTotal.String(), now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update calculation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", margin.ErrCalculationNotFound, id)
	}

	if err := saveGroups(ctx, sqlTx, id, r.Groups()); err != nil {
		return err
	}

	return sqlTx.Commit()
}

func saveGroups(ctx context.Context, db execer, id margin.CalculationID, groups []margin.GroupAggregate) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM calculation_groups WHERE calculation_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear calculation groups: %w", err)
	}
	for _, g := range groups {
		_, err := db.ExecContext(ctx, `
			INSERT INTO calculation_groups (calculation_id, group_id, amount, rate, margin_amount, total)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, g.GroupID, g.Amount.String(), g.Rate.String(), g.MarginAmount.String(), g.Total.String())
		if err != nil {
			return fmt.Errorf("failed to insert calculation group: %w", err)
		}
	}
	return nil
}

func (s *Store) loadItems(ctx context.Context, id margin.CalculationID) ([]margin.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category_id, description, price, quantity
		FROM calculation_items
		WHERE calculation_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []margin.Item
	for rows.Next() {
		var (
			item        margin.Item
			description sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.CategoryID, &description, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Description = description.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) loadGroups(ctx context.Context, id margin.CalculationID) ([]margin.GroupAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, amount, rate, margin_amount, total
		FROM calculation_groups
		WHERE calculation_id = ?
		ORDER BY group_id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculation groups: %w", err)
	}
	defer rows.Close()

	var groups []margin.GroupAggregate
	for rows.Next() {
		var g margin.GroupAggregate
		if err := rows.Scan(&g.GroupID, &g.Amount, &g.Rate, &g.MarginAmount, &g.Total); err != nil {
			return nil, fmt.Errorf("failed to scan calculation group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

const calculationColumns = `
	SELECT id, title, date, state_id, items_total, global_margin_rate, global_margin_amount,
	       user_margin_rate, user_margin_amount, net_total, overall_total
	FROM calculations`

type scanner interface {
	Scan(dest ...any) error
}

func scanCalculation(row scanner) (*margin.Calculation, error) {
	var (
		c       margin.Calculation
		date    string
		stateID sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.Title, &date, &stateID,
		&c.ItemsTotal, &c.GlobalMarginRate, &c.GlobalMarginAmount,
		&c.UserMarginRate, &c.UserMarginAmount, &c.NetTotal, &c.OverallTotal,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan calculation: %w", err)
	}
	if c.Date, err = time.Parse(time.RFC3339, date); err != nil {
		return nil, fmt.Errorf("failed to parse calculation date %q: %w", date, err)
	}
	c.StateID = stateID.String
	return &c, nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes every row. Development and demo scenarios only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"calculation_groups", "calculation_items", "calculations",
		"margin_brackets", "categories", "category_groups",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

