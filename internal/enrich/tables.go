package enrich

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// STATIC FISCAL TABLES
// =============================================================================
//
// Tabela CFOP - Operações Geradoras de Créditos, version 1.0.0 of 13.03.2020
// (http://sped.rfb.gov.br/arquivo/show/1681), and the labels of Tabela 4.3.6
// (Código de Tipo de Crédito) and of the account nature (COD_NAT_CC).
//
// =============================================================================

// natBCCredDefault is written to NAT_BC_CRED when the CFOP is not listed.
const natBCCredDefault = "CFOP %s não define a NAT_BC_CRED de acordo com a " +
	"<Tabela CFOP - Operações Geradoras de Créditos> atualizada em 13.03.2020"

// natBCCred maps a CFOP to the code of the nature of the credit basis.
var natBCCred = buildNatBCCred()

func buildNatBCCred() map[string]string {
	groups := []struct {
		code  string
		cfops []string
	}{
		// 01 - Aquisição de Bens para Revenda
		{"01", []string{
			"1102", "1113", "1117", "1118", "1121", "1159", "1251", "1403",
			"1652", "2102", "2113", "2117", "2118", "2121", "2159", "2251",
			"2403", "2652", "3102", "3251", "3652",
		}},
		// 02 - Aquisição de Bens Utilizados como Insumo
		{"02", []string{
			"1101", "1111", "1116", "1120", "1122", "1126", "1128", "1132",
			"1135", "1401", "1407", "1456", "1556", "1651", "1653", "2101",
			"2111", "2116", "2120", "2122", "2126", "2128", "2132", "2135",
			"2401", "2407", "2456", "2556", "2651", "2653", "3101", "3126",
			"3128", "3556", "3651", "3653",
		}},
		// 03 - Aquisição de Serviços Utilizados como Insumos
		{"03", []string{"1124", "1125", "1933", "2124", "2125", "2933"}},
		// 12 - Devolução de Vendas Sujeitas à Incidência Não-Cumulativa
		{"12", []string{
			"1201", "1202", "1203", "1204", "1206", "1207", "1215", "1216",
			"1410", "1411", "1660", "1661", "1662", "2201", "2202", "2206",
			"2207", "2215", "2216", "2410", "2411", "2660", "2661", "2662",
		}},
		// 13 - Outras Operações com Direito a Crédito
		{"13", []string{"1922", "2922"}},
	}
	m := make(map[string]string)
	for _, g := range groups {
		for _, cfop := range g.cfops {
			m[cfop] = g.code
		}
	}
	return m
}

// Credit type labels (Tabela 4.3.6).
const (
	CreditBasic          = "01 - Alíquota Básica"
	CreditDifferentiated = "02 - Alíquotas Diferenciadas"
	CreditOpeningStock   = "04 - Estoque de Abertura"
	CreditAgroindustry   = "06 - Presumido da Agroindústria"
	CreditOtherPresumed  = "07 - Outros Créditos Presumidos"
	CreditImport         = "08 - Importação"
)

// natOpeningStock is the NAT_BC_CRED of opening-stock credits (F150).
const natOpeningStock = 18

var (
	basicPIS    = decimal.RequireFromString("1.65")
	basicCOFINS = decimal.RequireFromString("7.6")
)

// presumedRates holds the (PIS, COFINS) rate pairs of the presumed credits,
// each a fraction of the basic rates, rendered with 4 decimals.
var presumedRates = buildPresumedRates()

func buildPresumedRates() map[[2]string]bool {
	fractions := []string{
		"0.20", // Lei 10.925, art. 8º, § 3º, V
		"0.35", // Lei 10.925, art. 8º, § 3º, III
		"0.50", // Lei 10.925, art. 8º, § 3º, IV
		"0.60", // Lei 10.925, art. 8º, § 3º, I
		"0.10", // Lei 12.599, art. 5º, § 1º
		"0.80", // Lei 12.599, art. 6º, § 2º
	}
	m := make(map[[2]string]bool, len(fractions))
	for _, f := range fractions {
		p := decimal.RequireFromString(f)
		m[[2]string{basicPIS.Mul(p).StringFixed(4), basicCOFINS.Mul(p).StringFixed(4)}] = true
	}
	return m
}

// accountNature labels COD_NAT_CC.
var accountNature = map[string]string{
	"01": "Contas de ativo",
	"02": "Contas de passivo",
	"03": "Patrimônio líquido",
	"04": "Contas de resultado",
	"05": "Contas de compensação",
	"09": "Outras",
}
