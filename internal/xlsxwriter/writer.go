// =============================================================================
// SPED EFD Relatorios - Workbook Writer
// =============================================================================
//
// This module writes the merged item rows and the consolidation tables into a
// single XLSX workbook.
//
// WORKBOOK STRUCTURE:
//
//   | Sheet                          | Content                               |
//   |--------------------------------|---------------------------------------|
//   | Itens de Docs Fiscais          | item rows, header = output columns    |
//   | Itens de Docs Fiscais 02, ...  | continuation past SheetRowLimit rows  |
//   | Consolidacao EFD Contrib       | CST summary (when there are rows)     |
//   | Consolidacao EFD ICMS_IPI      | CFOP summary (when there are rows)    |
//
// Every sheet has a styled, frozen header row and an autofilter. Row numbers,
// amounts and rates are written as numbers so spreadsheet formulas work on
// them; the comma-decimal text form is only a fallback.
//
// CUSTOMIZATION:
//   - Change headerFill or the number formats below to restyle the output
//   - SheetRowLimit can be lowered for tools that choke on large sheets
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/consolidation"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// ItemSheet is the name of the first item sheet.
const ItemSheet = "Itens de Docs Fiscais"

// MaxSheetRows is the number of data rows an XLSX sheet can hold below its
// header.
const MaxSheetRows = 1048575

const (
	headerFill   = "C5D9F1"
	headerHeight = 30
	maxWidth     = 120

	moneyFormat = "#,##0.00"
	rateFormat  = "0.0000"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls the workbook output.
type Options struct {
	// SheetRowLimit is the number of item rows per sheet.
	// Default: 500000
	SheetRowLimit int

	// Title and Subject are written to the document properties.
	Title   string
	Subject string

	// Creator is written to the document properties.
	// Default: "efd-relatorios"
	Creator string
}

// DefaultOptions returns the default workbook options.
func DefaultOptions() Options {
	return Options{
		SheetRowLimit: 500000,
		Title:         "Info do Contribuinte - SPED EFD",
		Subject:       "Itens de documentos fiscais da SPED EFD",
		Creator:       "efd-relatorios",
	}
}

// =============================================================================
// WRITE
// =============================================================================

// Write creates the workbook at path.
//
// PARAMETERS:
//   - path: The output .xlsx file. An existing file is replaced.
//   - rows: The merged item rows. Only the output columns are written.
//   - tables: Summary sheets. Tables without rows are skipped.
//   - opts: Sheet size and document properties.
//
// RETURNS:
//   - An error if any sheet cannot be built or the file cannot be saved.
func Write(path string, rows []types.Row, tables []consolidation.Table, opts Options) error {
	if opts.SheetRowLimit <= 0 || opts.SheetRowLimit > MaxSheetRows {
		opts.SheetRowLimit = DefaultOptions().SheetRowLimit
	}
	if opts.Creator == "" {
		opts.Creator = DefaultOptions().Creator
	}

	f := excelize.NewFile()
	defer f.Close()

	w, err := newWriter(f)
	if err != nil {
		return err
	}

	// =========================================================================
	// ITEM SHEETS
	// =========================================================================

	chunks := split(rows, opts.SheetRowLimit)
	for i, chunk := range chunks {
		name := ItemSheet
		if i > 0 {
			name = fmt.Sprintf("%s %02d", ItemSheet, i+1)
		}
		data := make([][]string, len(chunk))
		for j, row := range chunk {
			data[j] = row.Values(catalog.Columns)
		}
		if err := w.sheet(name, catalog.Columns, data, i == 0); err != nil {
			return err
		}
	}

	// =========================================================================
	// CONSOLIDATION SHEETS
	// =========================================================================

	for _, table := range tables {
		if table.Empty() {
			continue
		}
		if err := w.sheet(table.Name, table.Header, table.Rows, false); err != nil {
			return err
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:    opts.Title,
		Subject:  opts.Subject,
		Creator:  opts.Creator,
		Keywords: "SPED, EFD, PIS/COFINS, ICMS/IPI",
		Created:  time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("failed to set document properties: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// split cuts rows into chunks of at most limit rows. No rows still give one
// empty chunk so the item sheet always exists.
func split(rows []types.Row, limit int) [][]types.Row {
	if len(rows) == 0 {
		return [][]types.Row{nil}
	}
	var chunks [][]types.Row
	for start := 0; start < len(rows); start += limit {
		end := min(start+limit, len(rows))
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

// =============================================================================
// SHEET BUILDING
// =============================================================================

type writer struct {
	f      *excelize.File
	header int
	money  int
	rate   int
}

func newWriter(f *excelize.File) (*writer, error) {
	header, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Font: &excelize.Font{Size: 10, Bold: false},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	moneyFmt, rateFmt := moneyFormat, rateFormat
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to create number style: %w", err)
	}
	rate, err := f.NewStyle(&excelize.Style{CustomNumFmt: &rateFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to create number style: %w", err)
	}
	return &writer{f: f, header: header, money: money, rate: rate}, nil
}

// sheet writes one sheet. first renames the default sheet instead of adding
// a new one.
func (w *writer) sheet(name string, header []string, data [][]string, first bool) error {
	if first {
		if err := w.f.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("failed to rename sheet: %w", err)
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	widths := make([]int, len(header))
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
		widths[i] = utf8.RuneCountInString(h)
	}
	if err := w.f.SetSheetRow(name, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", name, err)
	}

	kinds := make([]kind, len(header))
	for i, h := range header {
		kinds[i] = kindOf(h)
	}
	for r, line := range data {
		values := make([]interface{}, len(header))
		for i := range header {
			var v string
			if i < len(line) {
				v = line[i]
			}
			values[i] = typed(kinds[i], v)
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", r+2, name, err)
		}
	}

	return w.decorate(name, header, kinds, widths, len(data))
}

// decorate styles the header, sets number formats and widths, freezes the
// header row and adds the autofilter.
func (w *writer) decorate(name string, header []string, kinds []kind, widths []int, rows int) error {
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(name, "A1", last+"1", w.header); err != nil {
		return fmt.Errorf("failed to style header of %s: %w", name, err)
	}
	if err := w.f.SetRowHeight(name, 1, headerHeight); err != nil {
		return err
	}

	for i := range header {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.f.SetColWidth(name, col, col, float64(min(widths[i]+4, maxWidth))); err != nil {
			return err
		}

		style := 0
		switch kinds[i] {
		case kindMoney:
			style = w.money
		case kindRate:
			style = w.rate
		}
		if style == 0 || rows == 0 {
			continue
		}
		if err := w.f.SetCellStyle(name, col+"2", col+strconv.Itoa(rows+1), style); err != nil {
			return fmt.Errorf("failed to style column %s of %s: %w", col, name, err)
		}
	}

	if err := w.f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header of %s: %w", name, err)
	}
	if err := w.f.AutoFilter(name, fmt.Sprintf("A1:%s%d", last, rows+1), nil); err != nil {
		return fmt.Errorf("failed to add autofilter to %s: %w", name, err)
	}
	return nil
}

// =============================================================================
// CELL TYPING
// =============================================================================

type kind int

const (
	kindText kind = iota
	kindInt
	kindMoney
	kindRate
)

func kindOf(column string) kind {
	switch {
	case column == catalog.ColLinhas || column == catalog.ColLinhaEFD:
		return kindInt
	case column == catalog.ColValorItem || strings.HasPrefix(column, "VL_"):
		return kindMoney
	case strings.HasPrefix(column, "ALIQ_"):
		return kindRate
	}
	return kindText
}

// typed converts a presentation value into the cell value of its kind. Empty
// and unparseable values stay strings.
func typed(k kind, v string) interface{} {
	if v == "" {
		return v
	}
	switch k {
	case kindInt:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	case kindMoney, kindRate:
		if d, ok := catalog.ParseDecimal(v); ok {
			return d.InexactFloat64()
		}
	}
	return v
}
