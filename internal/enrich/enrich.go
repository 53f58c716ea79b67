// Package enrich completes flattened rows with metadata, derived fiscal
// classifications and master-data back-fills, then formats them for export.
//
// Every step reads the leading digits of coded values and writes derived
// columns from scratch or only into empty ones, so enriching a row twice
// gives the same row.
package enrich

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/lookup"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

var (
	reLeadingCode = regexp.MustCompile(`^\s*(\d{1,2})(?:\D|$)`)
	reCFOP        = regexp.MustCompile(`^\d{4}$`)
	reImportCFOP  = regexp.MustCompile(`^3\d{3}$`)
	reNumeric     = regexp.MustCompile(`^\d+$`)
)

// Enricher enriches the rows of one file session.
type Enricher struct {
	variant  types.Variant
	basename string
	tables   *lookup.Tables
	seq      int
}

// New returns an Enricher for rows read from path. tables may be nil.
func New(variant types.Variant, path string, tables *lookup.Tables) *Enricher {
	return &Enricher{variant: variant, basename: filepath.Base(path), tables: tables}
}

// Enrich completes row in place and returns it.
func (e *Enricher) Enrich(row types.Row) types.Row {
	e.metadata(row)
	row[catalog.ColTipoOperacao] = Direction(e.variant, row)
	e.natureOfCredit(row)
	row[catalog.ColTipoCredito] = CreditType(row)

	e.backfill(row)
	labelAccountNature(row)

	catalog.FormatRow(row)
	if cnpj := row["CNPJ"]; len(cnpj) == 18 {
		row[catalog.ColCNPJBase] = cnpj[:10]
	}
	return row
}

// metadata stamps the file, the variant and a provisional sequence number.
// The sequence is rewritten when the results of all files are merged.
func (e *Enricher) metadata(row types.Row) {
	row[catalog.ColArquivo] = e.basename
	row[catalog.ColEFDTipo] = e.variant.String()
	if row[catalog.ColLinhas] == "" {
		e.seq++
		row[catalog.ColLinhas] = strconv.Itoa(e.seq)
	}
}

// Direction classifies a row as "Entrada" or "Saída". EFD Contribuições uses
// the PIS/COFINS CST, EFD ICMS_IPI the CFOP. An unreadable code yields "".
func Direction(variant types.Variant, row types.Row) string {
	if variant == types.Contribuicoes {
		cst, ok := leadingCode(row[catalog.ColCST])
		switch {
		case !ok:
			return ""
		case cst >= 1 && cst <= 49:
			return "Saída"
		case cst >= 50 && cst <= 99:
			return "Entrada"
		}
		return ""
	}

	cfop := row["CFOP"]
	if !reCFOP.MatchString(cfop) {
		return ""
	}
	if cfop >= "4000" {
		return "Saída"
	}
	return "Entrada"
}

// natureOfCredit derives a blank NAT_BC_CRED of a credit operation
// (CST 50 to 66) from its CFOP.
func (e *Enricher) natureOfCredit(row types.Row) {
	if row["NAT_BC_CRED"] != "" {
		return
	}
	cfop := row["CFOP"]
	if !reCFOP.MatchString(cfop) {
		return
	}
	cst, ok := leadingCode(row[catalog.ColCST])
	if !ok || cst < 50 || cst > 66 {
		return
	}
	if code, ok := natBCCred[cfop]; ok {
		row["NAT_BC_CRED"] = code
		return
	}
	row["NAT_BC_CRED"] = fmt.Sprintf(natBCCredDefault, cfop)
}

// Imported reports whether the credit of a row originates abroad: its CFOP
// starts with 3 or IND_ORIG_CRED is 1.
func Imported(row types.Row) bool {
	return reImportCFOP.MatchString(row["CFOP"]) || row[catalog.ColIndOrigCred] == "1"
}

// CreditType returns the Tabela 4.3.6 label of a row, or "" when no rule
// applies. Rules are tried in order and the first match wins.
func CreditType(row types.Row) string {
	if nat := row["NAT_BC_CRED"]; reNumeric.MatchString(nat) {
		if n, err := strconv.Atoi(nat); err == nil && n == natOpeningStock {
			return CreditOpeningStock
		}
	}

	cst, ok := leadingCode(row[catalog.ColCST])
	if !ok {
		return ""
	}
	pis, okPIS := catalog.ParseDecimal(row["ALIQ_PIS"])
	cofins, okCOFINS := catalog.ParseDecimal(row["ALIQ_COFINS"])
	if !okPIS || !okCOFINS {
		return ""
	}

	imported := Imported(row)
	switch {
	case !imported && cst >= 50 && cst <= 56:
		if pis.Equal(basicPIS) && cofins.Equal(basicCOFINS) {
			return CreditBasic
		}
		return CreditDifferentiated
	case !imported && cst >= 60 && cst <= 66:
		if presumedRates[[2]string{pis.StringFixed(4), cofins.StringFixed(4)}] {
			return CreditAgroindustry
		}
		return CreditOtherPresumed
	case imported && cst >= 50 && cst <= 66:
		return CreditImport
	}
	return ""
}

// backfill copies participant, item and account attributes into the empty
// columns of the row.
func (e *Enricher) backfill(row types.Row) {
	if attrs, ok := e.tables.Participant(row["COD_PART"]); ok {
		fill(row, attrs)
	}
	if attrs, ok := e.tables.Item(row["COD_ITEM"]); ok {
		fill(row, attrs)
	}
	if attrs, ok := e.tables.Account(row["COD_CTA"]); ok {
		fill(row, attrs)
	}
}

func fill(row types.Row, attrs lookup.Attributes) {
	for _, a := range attrs {
		if row[a.Name] == "" {
			row[a.Name] = a.Value
		}
	}
}

// labelAccountNature turns a bare COD_NAT_CC code into "NN - natureza".
func labelAccountNature(row types.Row) {
	v := row["COD_NAT_CC"]
	if !reNumeric.MatchString(v) || len(v) > 2 {
		return
	}
	if len(v) == 1 {
		v = "0" + v
	}
	if label, ok := accountNature[v]; ok {
		row["COD_NAT_CC"] = v + " - " + label
	}
}

// leadingCode reads the one or two digit code at the start of s, which may
// already carry a " - description" suffix.
func leadingCode(s string) (int, bool) {
	m := reLeadingCode.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
