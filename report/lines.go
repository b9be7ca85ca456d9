/*
Package report renders a rollup result for people.

PURPOSE:
  The engine emits a typed row trail. Renderers switch on the row variant
  (or its numeric RowType for wire consumers) and never inspect amounts to
  decide what a row is. Lines() is the plain-text rendering used by the CLI
  and API; xlsx.go writes the same trail to a spreadsheet.

SEE ALSO:
  - margin/row.go: Row variants
*/
package report

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/margin-engine/margin"
)

// Line is one rendered row. Empty cells are blank strings.
type Line struct {
	Type   margin.RowType `json:"type"`
	Label  string         `json:"label"`
	Amount string         `json:"amount,omitempty"`
	Rate   string         `json:"rate,omitempty"`
	Margin string         `json:"margin,omitempty"`
	Total  string         `json:"total,omitempty"`
}

// Names resolves group ids to display names. Missing ids render as "Group N".
type Names map[margin.GroupID]string

func (n Names) group(id margin.GroupID) string {
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Group %d", id)
}

// Lines renders every row of result in order.
func Lines(result margin.RollupResult, names Names) []Line {
	lines := make([]Line, 0, len(result.Rows))
	for _, row := range result.Rows {
		lines = append(lines, render(row, names))
	}
	return lines
}

func render(row margin.Row, names Names) Line {
	switch r := row.(type) {
	case margin.EmptyRow:
		return Line{Type: r.Type(), Label: "No items"}
	case margin.GroupRow:
		return Line{
			Type:   r.Type(),
			Label:  names.group(r.GroupID),
			Amount: Money(r.Amount),
			Rate:   Percent(r.Rate),
			Margin: Money(r.MarginAmount),
			Total:  Money(r.Total),
		}
	case margin.GroupsTotalRow:
		return Line{Type: r.Type(), Label: "Groups total", Total: Money(r.Total)}
	case margin.GlobalMarginRow:
		return Line{Type: r.Type(), Label: "Global margin", Rate: Percent(r.Rate), Margin: Money(r.Amount)}
	case margin.NetTotalRow:
		return Line{Type: r.Type(), Label: "Net total", Total: Money(r.Total)}
	case margin.UserMarginRow:
		return Line{Type: r.Type(), Label: "User margin", Rate: Percent(r.Rate), Margin: Money(r.Amount)}
	case margin.OverallTotalRow:
		return Line{Type: r.Type(), Label: "Overall total", Total: Money(r.Total)}
	}
	panic(fmt.Sprintf("report: unhandled row %T", row))
}

// Money formats an amount with two decimals, rounding half away from zero.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Percent formats a rate fraction as a percentage, 0.125 -> "12.50%".
func Percent(rate decimal.Decimal) string {
	return rate.Shift(2).StringFixed(2) + "%"
}
