package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/validation"
)

// =============================================================================
// LAYOUT WORKBOOK
// =============================================================================
//
// A layout workbook lets users patch the embedded catalogs without a rebuild,
// for example when a new version of the Guia Prático adds fields to a
// register. The first sheet is read:
//
//   | REG  | NIVEL | CAMPOS                           |
//   |------|-------|----------------------------------|
//   | C100 | 3     | REG|IND_OPER|IND_EMIT|COD_PART|...|
//
// CUSTOMIZATION:
//   Pass a custom WorkbookColumns to read a sheet with a different column
//   arrangement.
//
// =============================================================================

// WorkbookColumns defines which sheet columns hold each part of a layout.
// Column indices are 0-based.
type WorkbookColumns struct {
	Code   int
	Level  int
	Fields int

	// DataStartRow is the 0-based index of the first data row.
	DataStartRow int
}

// DefaultWorkbookColumns returns the REG | NIVEL | CAMPOS arrangement with
// one header row.
func DefaultWorkbookColumns() WorkbookColumns {
	return WorkbookColumns{Code: 0, Level: 1, Fields: 2, DataStartRow: 1}
}

// LoadWorkbook reads layout overrides from path and merges them into base.
func LoadWorkbook(path string, base *Catalog) (*Catalog, error) {
	overrides, err := ReadWorkbook(path, DefaultWorkbookColumns())
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateLayouts(overrides).Err(); err != nil {
		return nil, fmt.Errorf("invalid layout workbook %s: %w", path, err)
	}
	return base.Merge(overrides)
}

// ReadWorkbook reads register layouts from the first sheet of an XLSX file.
func ReadWorkbook(path string, columns WorkbookColumns) ([]types.Layout, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layout workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("layout workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var layouts []types.Layout
	for i := columns.DataStartRow; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}
		l, err := parseRow(row, columns)
		if err != nil {
			return nil, fmt.Errorf("error parsing row %d: %w", i+1, err)
		}
		layouts = append(layouts, l)
	}
	return layouts, nil
}

func parseRow(row []string, columns WorkbookColumns) (types.Layout, error) {
	cell := func(idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	l := types.Layout{Code: strings.ToUpper(cell(columns.Code))}
	level, err := strconv.Atoi(cell(columns.Level))
	if err != nil {
		return l, fmt.Errorf("register %s: invalid level %q", l.Code, cell(columns.Level))
	}
	l.Level = level

	for _, name := range strings.Split(strings.Trim(cell(columns.Fields), "|"), "|") {
		l.Fields = append(l.Fields, strings.TrimSpace(name))
	}
	return l, nil
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
