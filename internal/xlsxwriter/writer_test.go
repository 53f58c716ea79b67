package xlsxwriter

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/consolidation"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

func itemRows(n int) []types.Row {
	rows := make([]types.Row, n)
	for i := range rows {
		rows[i] = types.Row{
			catalog.ColLinhas:      strconv.Itoa(i + 1),
			catalog.ColLinhaEFD:    strconv.Itoa(100 + i),
			catalog.ColEFDTipo:     "EFD Contribuições",
			catalog.ColCNPJBase:    "12.345.678",
			catalog.ColValorItem:   "1000,50",
			"ALIQ_PIS":             "1,6500",
			"CFOP":                 "1102",
			"COD_ITEM":             "",
			catalog.ColIndOrigCred: "1",
		}
	}
	return rows
}

func open(t *testing.T, path string) *excelize.File {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	table := consolidation.Table{
		Name:   consolidation.SheetContribuicoes,
		Header: []string{catalog.ColCNPJBase, catalog.ColCST, catalog.ColValorItem},
		Rows:   [][]string{{"12.345.678", "50", "2001,00"}},
	}
	empty := consolidation.Table{Name: consolidation.SheetICMSIPI, Header: []string{"CFOP"}}

	opts := DefaultOptions()
	require.NoError(t, Write(path, itemRows(2), []consolidation.Table{table, empty}, opts))

	f := open(t, path)
	assert.Equal(t, []string{ItemSheet, consolidation.SheetContribuicoes}, f.GetSheetList())

	header, err := f.GetRows(ItemSheet)
	require.NoError(t, err)
	require.Len(t, header, 3)
	assert.Equal(t, catalog.Columns[:4], header[0][:4])
	assert.NotContains(t, header[0], catalog.ColIndOrigCred)

	linhas, err := f.GetCellType(ItemSheet, "A2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, linhas)
	assert.NotEqual(t, excelize.CellTypeInlineString, linhas)

	valueCol, err := excelize.ColumnNumberToName(indexOf(catalog.ColValorItem) + 1)
	require.NoError(t, err)
	raw, err := f.GetCellValue(ItemSheet, valueCol+"2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1000.5", raw)

	styleID, err := f.GetCellStyle(ItemSheet, valueCol+"2")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	assert.True(t, style.NumFmt == 4 || (style.CustomNumFmt != nil && *style.CustomNumFmt == moneyFormat))

	headerStyleID, err := f.GetCellStyle(ItemSheet, "A1")
	require.NoError(t, err)
	headerStyle, err := f.GetStyle(headerStyleID)
	require.NoError(t, err)
	assert.Equal(t, "pattern", headerStyle.Fill.Type)
	assert.True(t, headerStyle.Alignment.WrapText)

	height, err := f.GetRowHeight(ItemSheet, 1)
	require.NoError(t, err)
	assert.Equal(t, float64(headerHeight), height)

	panes, err := f.GetPanes(ItemSheet)
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 1, panes.YSplit)

	summary, err := f.GetRows(consolidation.SheetContribuicoes, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, [][]string{table.Header, {"12.345.678", "50", "2001"}}, summary)

	props, err := f.GetDocProps()
	require.NoError(t, err)
	assert.Equal(t, opts.Title, props.Title)
	assert.Equal(t, "efd-relatorios", props.Creator)
}

func TestWriteSplitsSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "split.xlsx")
	require.NoError(t, Write(path, itemRows(5), nil, Options{SheetRowLimit: 2}))

	f := open(t, path)
	assert.Equal(t, []string{ItemSheet, ItemSheet + " 02", ItemSheet + " 03"}, f.GetSheetList())

	last, err := f.GetRows(ItemSheet + " 03")
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "5", last[1][0])
}

func TestWriteNoRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, Write(path, nil, nil, Options{}))

	f := open(t, path)
	rows, err := f.GetRows(ItemSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, catalog.Columns[0], rows[0][0])
}

func TestTyped(t *testing.T) {
	assert.Equal(t, 7, typed(kindInt, "7"))
	assert.Equal(t, "x7", typed(kindInt, "x7"))
	assert.Equal(t, 1234.56, typed(kindMoney, "1234,56"))
	assert.Equal(t, 0.5775, typed(kindRate, "0,5775"))
	assert.Equal(t, "", typed(kindMoney, ""))
	assert.Equal(t, "n/d", typed(kindMoney, "n/d"))
	assert.Equal(t, "1102", typed(kindText, "1102"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, kindInt, kindOf(catalog.ColLinhas))
	assert.Equal(t, kindInt, kindOf(catalog.ColLinhaEFD))
	assert.Equal(t, kindMoney, kindOf(catalog.ColValorItem))
	assert.Equal(t, kindMoney, kindOf("VL_BC_PIS"))
	assert.Equal(t, kindRate, kindOf("ALIQ_ICMS"))
	assert.Equal(t, kindText, kindOf("CFOP"))
}

func indexOf(column string) int {
	for i, c := range catalog.Columns {
		if c == column {
			return i
		}
	}
	return -1
}
