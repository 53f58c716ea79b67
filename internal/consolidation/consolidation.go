// =============================================================================
// SPED EFD Relatorios - Consolidation Module
// =============================================================================
//
// This module summarizes the merged item rows per establishment and month.
// EFD Contribuições rows are summed per PIS/COFINS CST, EFD ICMS_IPI rows per
// CST_ICMS, CFOP and ICMS rate. The Contribuições sheet also carries the ISS
// and ICMS amounts reported on the same documents.
//
// TABLE LAYOUT:
//   1. Saída groups, sorted by key
//   2. "Total das Saídas" lines, one per (CNPJ Base, Ano, Mês)
//   3. Entrada groups, sorted by key
//   4. "Total das Entradas" lines, one per (CNPJ Base, Ano, Mês)
//
// Sums are exact decimals rendered with a comma and 2 places.
//
// =============================================================================

package consolidation

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// Sheet names and total labels.
const (
	SheetContribuicoes = "Consolidacao EFD Contrib"
	SheetICMSIPI       = "Consolidacao EFD ICMS_IPI"

	TotalSaidas   = "Total das Saídas"
	TotalEntradas = "Total das Entradas"
)

// Table is a summary sheet.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// =============================================================================
// SUMMARY DEFINITIONS
// =============================================================================

// periodKeys open every group key. Totals are computed per period key.
var periodKeys = []string{catalog.ColCNPJBase, catalog.ColAno, catalog.ColMes}

type summary struct {
	name string

	// keys follow periodKeys in the group key.
	keys []string
	// extract normalizes the value of keys[i]; "" drops the row.
	extract []func(string) string
	sums    []string

	// label is the index in keys that carries the total label.
	label int

	// inbound reports whether the normalized group key is an entrada.
	inbound func(key []string) bool
}

var (
	reCST2  = regexp.MustCompile(`^\d{2}`)
	reCST3  = regexp.MustCompile(`^\d{3}`)
	reCFOP4 = regexp.MustCompile(`^\d{4}`)
)

func prefix(re *regexp.Regexp) func(string) string {
	return func(s string) string { return re.FindString(strings.TrimSpace(s)) }
}

func keep(s string) string { return strings.TrimSpace(s) }

var contribuicoes = summary{
	name:    SheetContribuicoes,
	keys:    []string{catalog.ColCST},
	extract: []func(string) string{prefix(reCST2)},
	sums: []string{
		catalog.ColValorItem, "VL_BC_PIS", "VL_BC_COFINS", "VL_PIS", "VL_COFINS",
		"VL_ISS", "VL_BC_ICMS", "VL_ICMS",
	},
	label:   0,
	inbound: func(key []string) bool {
		cst, _ := strconv.Atoi(key[len(periodKeys)])
		return cst >= 50
	},
}

var icmsIPI = summary{
	name:    SheetICMSIPI,
	keys:    []string{"CST_ICMS", "CFOP", "ALIQ_ICMS"},
	extract: []func(string) string{prefix(reCST3), prefix(reCFOP4), keep},
	sums:    []string{catalog.ColValorItem, "VL_BC_ICMS", "VL_ICMS"},
	label:   1,
	inbound: func(key []string) bool {
		return key[len(periodKeys)+1] < "4000"
	},
}

// Contribuicoes summarizes EFD Contribuições rows per CST. Saídas are
// CST 01 to 49, entradas CST 50 and above.
func Contribuicoes(rows []types.Row) Table { return contribuicoes.build(rows) }

// ICMSIPI summarizes EFD ICMS_IPI rows per CST_ICMS, CFOP and ALIQ_ICMS.
// Entradas are CFOP below 4000.
func ICMSIPI(rows []types.Row) Table { return icmsIPI.build(rows) }

// =============================================================================
// AGGREGATION
// =============================================================================

type group struct {
	key  []string
	sums []decimal.Decimal
}

type half struct {
	groups map[string]*group
	totals map[string]*group
}

func newHalf() *half {
	return &half{groups: make(map[string]*group), totals: make(map[string]*group)}
}

func (h *half) add(m map[string]*group, key []string, values []decimal.Decimal) {
	id := strings.Join(key, "\x00")
	g, ok := m[id]
	if !ok {
		g = &group{key: key, sums: make([]decimal.Decimal, len(values))}
		m[id] = g
	}
	for i, v := range values {
		g.sums[i] = g.sums[i].Add(v)
	}
}

func (s summary) build(rows []types.Row) Table {
	header := append(append(slices.Clone(periodKeys), s.keys...), s.sums...)
	table := Table{Name: s.name, Header: header}

	out, in := newHalf(), newHalf()
	for _, row := range rows {
		key, ok := s.groupKey(row)
		if !ok {
			continue
		}
		values := make([]decimal.Decimal, len(s.sums))
		for i, col := range s.sums {
			if d, ok := catalog.ParseDecimal(row[col]); ok {
				values[i] = d
			}
		}

		h := out
		if s.inbound(key) {
			h = in
		}
		h.add(h.groups, key, values)
		h.add(h.totals, key[:len(periodKeys)], values)
	}

	table.Rows = append(table.Rows, s.render(out, TotalSaidas)...)
	table.Rows = append(table.Rows, s.render(in, TotalEntradas)...)
	return table
}

func (s summary) groupKey(row types.Row) ([]string, bool) {
	key := make([]string, 0, len(periodKeys)+len(s.keys))
	for _, col := range periodKeys {
		key = append(key, row[col])
	}
	for i, col := range s.keys {
		v := s.extract[i](row[col])
		if v == "" && i <= s.label {
			return nil, false
		}
		key = append(key, v)
	}
	return key, true
}

func (s summary) render(h *half, totalLabel string) [][]string {
	var lines [][]string
	for _, g := range sorted(h.groups) {
		lines = append(lines, append(slices.Clone(g.key), formatSums(g.sums)...))
	}
	for _, g := range sorted(h.totals) {
		line := append(slices.Clone(g.key), make([]string, len(s.keys))...)
		line[len(periodKeys)+s.label] = totalLabel
		lines = append(lines, append(line, formatSums(g.sums)...))
	}
	return lines
}

func sorted(m map[string]*group) []*group {
	out := make([]*group, 0, len(m))
	for _, g := range m {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *group) int { return slices.Compare(a.key, b.key) })
	return out
}

func formatSums(sums []decimal.Decimal) []string {
	out := make([]string, len(sums))
	for i, d := range sums {
		out[i] = catalog.FormatDecimal(d, 2)
	}
	return out
}
