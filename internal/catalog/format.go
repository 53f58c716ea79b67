package catalog

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// =============================================================================
// FORMATTING DISPATCH
// =============================================================================
//
// Every column resolves to exactly one pure formatting function. The table is
// built once; FormatRow only performs map lookups.
//
// All formatters are idempotent: formatting an already formatted value
// returns it unchanged.
//
// =============================================================================

// Formatter turns a raw field value into its presentation form.
type Formatter func(string) string

var (
	reDigits8  = regexp.MustCompile(`^\d{8}$`)
	reDigits14 = regexp.MustCompile(`^\d{14}$`)
	reDigits11 = regexp.MustCompile(`^\d{11}$`)
	reCode     = regexp.MustCompile(`^\d{1,2}$`)
)

func identity(s string) string { return s }

// FormatDate converts ddmmaaaa into dd/mm/aaaa.
func FormatDate(s string) string {
	if !reDigits8.MatchString(s) {
		return s
	}
	return s[0:2] + "/" + s[2:4] + "/" + s[4:8]
}

// FormatCNPJ renders a 14 digit CNPJ as 12.345.678/0001-90. An 11 digit
// value is rendered as a CPF, since CNPJ_CPF_PART carries either.
func FormatCNPJ(s string) string {
	switch {
	case reDigits14.MatchString(s):
		return s[0:2] + "." + s[2:5] + "." + s[5:8] + "/" + s[8:12] + "-" + s[12:14]
	case reDigits11.MatchString(s):
		return FormatCPF(s)
	}
	return s
}

// FormatCPF renders an 11 digit CPF as 123.456.789-01.
func FormatCPF(s string) string {
	if !reDigits11.MatchString(s) {
		return s
	}
	return s[0:3] + "." + s[3:6] + "." + s[6:9] + "-" + s[9:11]
}

// ParseDecimal reads a SPED number, which uses a comma as decimal separator.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatDecimal renders d with the given number of places and a comma as
// decimal separator.
func FormatDecimal(d decimal.Decimal, places int32) string {
	return strings.Replace(d.StringFixed(places), ".", ",", 1)
}

func fixed(places int32) Formatter {
	return func(s string) string {
		d, ok := ParseDecimal(s)
		if !ok {
			return s
		}
		return FormatDecimal(d, places)
	}
}

// FormatCST labels a PIS/COFINS tax-situation code with its description.
func FormatCST(s string) string {
	if !reCode.MatchString(s) {
		return s
	}
	code := s
	if len(code) == 1 {
		code = "0" + code
	}
	desc, ok := cstDescriptions[code]
	if !ok {
		return s
	}
	return code + " - " + desc
}

var formatters = buildFormatters()

func buildFormatters() map[string]Formatter {
	m := make(map[string]Formatter)
	money := fixed(2)
	rate := fixed(4)

	for _, n := range DateIssueFields {
		m[n] = FormatDate
	}
	for _, n := range DateExecFields {
		m[n] = FormatDate
	}
	for _, n := range DateFields {
		m[n] = FormatDate
	}
	m[ColDataEmissao] = FormatDate
	m[ColDataExecucao] = FormatDate

	for _, n := range []string{"CNPJ", "CNPJ_participante", "CNPJ_CPF_PART"} {
		m[n] = FormatCNPJ
	}
	for _, n := range []string{"CPF", "CPF_participante"} {
		m[n] = FormatCPF
	}

	for _, n := range MonetaryFields {
		m[n] = money
	}
	for _, n := range Columns {
		switch {
		case strings.HasPrefix(n, "VL_"):
			m[n] = money
		case strings.HasPrefix(n, "ALIQ_"):
			m[n] = rate
		}
	}
	m[ColValorItem] = money
	m[ColCST] = FormatCST
	return m
}

// FormatterFor returns the formatter bound to a column name.
func FormatterFor(name string) Formatter {
	if f, ok := formatters[name]; ok {
		return f
	}
	return identity
}

// FormatRow applies the column formatters to every value of the row.
func FormatRow(row types.Row) {
	for name, value := range row {
		if value == "" {
			continue
		}
		row[name] = FormatterFor(name)(value)
	}
}

// cstDescriptions is Tabela 4.3.3 (CST PIS/COFINS).
var cstDescriptions = map[string]string{
	"01": "Operação Tributável com Alíquota Básica",
	"02": "Operação Tributável com Alíquota Diferenciada",
	"03": "Operação Tributável com Alíquota por Unidade de Medida de Produto",
	"04": "Operação Tributável Monofásica - Revenda a Alíquota Zero",
	"05": "Operação Tributável por Substituição Tributária",
	"06": "Operação Tributável a Alíquota Zero",
	"07": "Operação Isenta da Contribuição",
	"08": "Operação sem Incidência da Contribuição",
	"09": "Operação com Suspensão da Contribuição",
	"49": "Outras Operações de Saída",
	"50": "Operação com Direito a Crédito - Vinculada Exclusivamente a Receita Tributada no Mercado Interno",
	"51": "Operação com Direito a Crédito - Vinculada Exclusivamente a Receita Não Tributada no Mercado Interno",
	"52": "Operação com Direito a Crédito - Vinculada Exclusivamente a Receita de Exportação",
	"53": "Operação com Direito a Crédito - Vinculada a Receitas Tributadas e Não-Tributadas no Mercado Interno",
	"54": "Operação com Direito a Crédito - Vinculada a Receitas Tributadas no Mercado Interno e de Exportação",
	"55": "Operação com Direito a Crédito - Vinculada a Receitas Não-Tributadas no Mercado Interno e de Exportação",
	"56": "Operação com Direito a Crédito - Vinculada a Receitas Tributadas e Não-Tributadas no Mercado Interno, e de Exportação",
	"60": "Crédito Presumido - Operação de Aquisição Vinculada Exclusivamente a Receita Tributada no Mercado Interno",
	"61": "Crédito Presumido - Operação de Aquisição Vinculada Exclusivamente a Receita Não-Tributada no Mercado Interno",
	"62": "Crédito Presumido - Operação de Aquisição Vinculada Exclusivamente a Receita de Exportação",
	"63": "Crédito Presumido - Operação de Aquisição Vinculada a Receitas Tributadas e Não-Tributadas no Mercado Interno",
	"64": "Crédito Presumido - Operação de Aquisição Vinculada a Receitas Tributadas no Mercado Interno e de Exportação",
	"65": "Crédito Presumido - Operação de Aquisição Vinculada a Receitas Não-Tributadas no Mercado Interno e de Exportação",
	"66": "Crédito Presumido - Operação de Aquisição Vinculada a Receitas Tributadas e Não-Tributadas no Mercado Interno, e de Exportação",
	"67": "Crédito Presumido - Outras Operações",
	"70": "Operação de Aquisição sem Direito a Crédito",
	"71": "Operação de Aquisição com Isenção",
	"72": "Operação de Aquisição com Suspensão",
	"73": "Operação de Aquisição a Alíquota Zero",
	"74": "Operação de Aquisição sem Incidência da Contribuição",
	"75": "Operação de Aquisição por Substituição Tributária",
	"98": "Outras Operações de Entrada",
	"99": "Outras Operações",
}
