package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/warp/margin-engine/margin"
	"github.com/xuri/excelize/v2"
)

const (
	SheetRollup = "Rollup"
	SheetItems  = "Items"

	// Built-in excelize number formats.
	numFmtMoney   = 4  // #,##0.00
	numFmtPercent = 10 // 0.00%
)

// WriteXLSX writes the rollup trail and the calculation's items as a workbook.
// Cells hold numbers, not the formatted strings Lines() produces.
func WriteXLSX(w io.Writer, calc *margin.Calculation, result margin.RollupResult, names Names) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRollup); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return err
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := writeRollup(f, styles, calc, result, names); err != nil {
		return fmt.Errorf("write rollup sheet: %w", err)
	}
	if err := writeItems(f, styles, calc); err != nil {
		return fmt.Errorf("write items sheet: %w", err)
	}

	return f.Write(w)
}

type styles struct {
	header  int
	money   int
	percent int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, err
	}
	if s.money, err = f.NewStyle(&excelize.Style{NumFmt: numFmtMoney}); err != nil {
		return s, err
	}
	if s.percent, err = f.NewStyle(&excelize.Style{NumFmt: numFmtPercent}); err != nil {
		return s, err
	}
	return s, nil
}

func writeRollup(f *excelize.File, st styles, calc *margin.Calculation, result margin.RollupResult, names Names) error {
	if err := f.SetSheetRow(SheetRollup, "A1", &[]any{"Calculation", calc.Title}); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetRollup, "A2", &[]any{"Date", calc.Date.Format("2006-01-02")}); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetRollup, "A4", &[]any{"Line", "Type", "Amount", "Rate", "Margin", "Total"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetRollup, "A4", "F4", st.header); err != nil {
		return err
	}

	for i, row := range result.Rows {
		line := render(row, names)
		cells := []any{line.Label, int(row.Type()), nil, nil, nil, nil}

		switch r := row.(type) {
		case margin.GroupRow:
			cells[2], cells[3], cells[4], cells[5] = num(r.Amount), num(r.Rate), num(r.MarginAmount), num(r.Total)
		case margin.GroupsTotalRow:
			cells[5] = num(r.Total)
		case margin.GlobalMarginRow:
			cells[3], cells[4] = num(r.Rate), num(r.Amount)
		case margin.NetTotalRow:
			cells[5] = num(r.Total)
		case margin.UserMarginRow:
			cells[3], cells[4] = num(r.Rate), num(r.Amount)
		case margin.OverallTotalRow:
			cells[5] = num(r.Total)
		}

		rowNum := 5 + i
		if err := f.SetSheetRow(SheetRollup, cell("A", rowNum), &cells); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetRollup, cell("C", rowNum), cell("C", rowNum), st.money); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetRollup, cell("D", rowNum), cell("D", rowNum), st.percent); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetRollup, cell("E", rowNum), cell("F", rowNum), st.money); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetRollup, "A", "A", 24)
}

func writeItems(f *excelize.File, st styles, calc *margin.Calculation) error {
	if err := f.SetSheetRow(SheetItems, "A1", &[]any{"Item", "Category", "Description", "Price", "Quantity", "Total"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetItems, "A1", "F1", st.header); err != nil {
		return err
	}
	for i, it := range calc.Items {
		rowNum := 2 + i
		cells := []any{string(it.ID), int64(it.CategoryID), it.Description, num(it.Price), num(it.Quantity), num(it.Total())}
		if err := f.SetSheetRow(SheetItems, cell("A", rowNum), &cells); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetItems, cell("F", rowNum), cell("F", rowNum), st.money); err != nil {
			return err
		}
	}
	return nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// num converts for spreadsheet storage, which holds IEEE doubles.
func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
