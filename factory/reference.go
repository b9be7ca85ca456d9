/*
Package factory converts reference-data documents into margin tables.

PURPOSE:
  Groups, categories and their margin tables are configuration. This package
  reads them from JSON or YAML, converts decimal strings, validates every
  table for continuity, and writes the result to a margin.Store. It backs the
  server's seed file and the demo scenarios.

DOCUMENT SCHEMA (YAML shown, JSON uses the same keys):
  global:
    - {minimum: "0",     maximum: "10000",   rate: "0.10"}
    - {minimum: "10000", maximum: "1000000", rate: "0.05"}
  groups:
    - id: 1
      name: Hardware
      brackets:
        - {minimum: "0", maximum: "1000000", rate: "0.15"}
  categories:
    - {id: 10, name: Cables, group_id: 1}

  Amounts may be written as strings or plain numbers. Strings are preferred
  so values survive without binary rounding.

USAGE:
  doc, err := factory.LoadFile("seed.yaml")
  if err != nil { ... }
  err = doc.Apply(ctx, store)

SEE ALSO:
  - margin/validate.go: Continuity rules applied to every table
  - factory/presets.go: Documents used by the demo scenarios
*/
package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/margin-engine/margin"
	"gopkg.in/yaml.v2"
)

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// Number is a decimal literal written either quoted or bare.
type Number string

// UnmarshalJSON accepts both "12.5" and 12.5.
func (n *Number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	*n = Number(b)
	return nil
}

func (n Number) decimal(field string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(string(n)))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q: %w", field, string(n), err)
	}
	return v, nil
}

// BracketDoc is one row of a margin table.
type BracketDoc struct {
	Minimum Number `json:"minimum" yaml:"minimum"`
	Maximum Number `json:"maximum" yaml:"maximum"`
	Rate    Number `json:"rate" yaml:"rate"`
}

// GroupDoc is a group with an optional margin table.
type GroupDoc struct {
	ID       int64        `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	Brackets []BracketDoc `json:"brackets,omitempty" yaml:"brackets,omitempty"`
}

// CategoryDoc is a category owned by a group, with an optional table.
type CategoryDoc struct {
	ID       int64        `json:"id" yaml:"id"`
	Name     string       `json:"name" yaml:"name"`
	GroupID  int64        `json:"group_id" yaml:"group_id"`
	Brackets []BracketDoc `json:"brackets,omitempty" yaml:"brackets,omitempty"`
}

// Document is a full reference-data set.
type Document struct {
	Global     []BracketDoc  `json:"global,omitempty" yaml:"global,omitempty"`
	Groups     []GroupDoc    `json:"groups" yaml:"groups"`
	Categories []CategoryDoc `json:"categories" yaml:"categories"`
}

// =============================================================================
// PARSING
// =============================================================================

// Format selects the document syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf guesses the format from a file name. Anything not .yaml/.yml is JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes a document.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		if err := yaml.UnmarshalStrict(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse reference YAML: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse reference JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown reference format %q", format)
	}
	return &doc, nil
}

// LoadFile reads and parses a document from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, FormatOf(path))
}

// =============================================================================
// CONVERSION
// =============================================================================

// Reference is a converted, validated document.
type Reference struct {
	Groups     []margin.Group
	Categories []margin.Category
	Tables     []margin.RangeTable
}

// Build converts the document and validates every table and reference.
func (doc *Document) Build() (*Reference, error) {
	out := &Reference{}
	groups := make(map[int64]bool, len(doc.Groups))

	for _, g := range doc.Groups {
		if groups[g.ID] {
			return nil, fmt.Errorf("group %d: duplicate id", g.ID)
		}
		groups[g.ID] = true
		out.Groups = append(out.Groups, margin.Group{ID: margin.GroupID(g.ID), Name: g.Name})

		if len(g.Brackets) > 0 {
			table, err := buildTable(margin.GroupOwner(margin.GroupID(g.ID)), g.Brackets)
			if err != nil {
				return nil, err
			}
			out.Tables = append(out.Tables, table)
		}
	}

	categories := make(map[int64]bool, len(doc.Categories))
	for _, c := range doc.Categories {
		if categories[c.ID] {
			return nil, fmt.Errorf("category %d: duplicate id", c.ID)
		}
		if !groups[c.GroupID] {
			return nil, fmt.Errorf("category %d: %w: %d", c.ID, margin.ErrGroupNotFound, c.GroupID)
		}
		categories[c.ID] = true
		out.Categories = append(out.Categories, margin.Category{
			ID:      margin.CategoryID(c.ID),
			Name:    c.Name,
			GroupID: margin.GroupID(c.GroupID),
		})

		if len(c.Brackets) > 0 {
			table, err := buildTable(margin.CategoryOwner(margin.CategoryID(c.ID)), c.Brackets)
			if err != nil {
				return nil, err
			}
			out.Tables = append(out.Tables, table)
		}
	}

	if len(doc.Global) > 0 {
		table, err := buildTable(margin.GlobalOwner, doc.Global)
		if err != nil {
			return nil, err
		}
		out.Tables = append(out.Tables, table)
	}

	return out, nil
}

func buildTable(owner margin.Owner, rows []BracketDoc) (margin.RangeTable, error) {
	table := margin.RangeTable{Owner: owner, Brackets: make([]margin.Bracket, 0, len(rows))}
	for i, row := range rows {
		b, err := row.bracket()
		if err != nil {
			return table, fmt.Errorf("%s bracket %d: %w", owner, i, err)
		}
		table.Brackets = append(table.Brackets, b)
	}

	table = margin.Normalize(table)
	if err := margin.ValidateTable(table); err != nil {
		return table, fmt.Errorf("%s: %w", owner, err)
	}
	return table, nil
}

func (b BracketDoc) bracket() (margin.Bracket, error) {
	minimum, err := b.Minimum.decimal("minimum")
	if err != nil {
		return margin.Bracket{}, err
	}
	maximum, err := b.Maximum.decimal("maximum")
	if err != nil {
		return margin.Bracket{}, err
	}
	rate, err := b.Rate.decimal("rate")
	if err != nil {
		return margin.Bracket{}, err
	}
	return margin.Bracket{Minimum: minimum, Maximum: maximum, Rate: rate}, nil
}

// =============================================================================
// APPLY
// =============================================================================

// Apply builds the document and writes it to store: groups, then categories,
// then tables. Build errors are returned before anything is written.
func (doc *Document) Apply(ctx context.Context, store margin.Store) error {
	ref, err := doc.Build()
	if err != nil {
		return err
	}
	return ref.Apply(ctx, store)
}

// Apply writes a converted reference to store.
func (ref *Reference) Apply(ctx context.Context, store margin.Store) error {
	for _, g := range ref.Groups {
		if err := store.SaveGroup(ctx, g); err != nil {
			return fmt.Errorf("save group %d: %w", g.ID, err)
		}
	}
	for _, c := range ref.Categories {
		if err := store.SaveCategory(ctx, c); err != nil {
			return fmt.Errorf("save category %d: %w", c.ID, err)
		}
	}
	for _, t := range ref.Tables {
		if err := store.SaveTable(ctx, t); err != nil {
			return fmt.Errorf("save %s table: %w", t.Owner, err)
		}
	}
	return nil
}
