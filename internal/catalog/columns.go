package catalog

// Output column names referenced by code.
const (
	ColLinhas       = "Linhas"
	ColEFDTipo      = "EFD Tipo"
	ColArquivo      = "Arquivo da SPED EFD"
	ColLinhaEFD     = "Nº da Linha da EFD"
	ColCNPJBase     = "CNPJ Base"
	ColMes          = "Mês do Período de Apuração"
	ColAno          = "Ano do Período de Apuração"
	ColTipoOperacao = "Tipo de Operação"
	ColTipoCredito  = "Tipo de Crédito"
	ColCST          = "CST_PIS_COFINS"
	ColDataEmissao  = "Data de Emissão"
	ColDataExecucao = "Data de Execução"
	ColChave        = "Chave Eletrônica"
	ColValorItem    = "Valor do Item"

	// ColNivel is recorded in every accumulator but never exported.
	ColNivel = "Nível Hierárquico"

	// ColIndOrigCred is resolved like an output column and used only to
	// classify the credit type.
	ColIndOrigCred = "IND_ORIG_CRED"
)

// Columns is the fixed, ordered output schema shared by both variants.
var Columns = []string{
	ColLinhas, ColEFDTipo, ColArquivo, ColLinhaEFD, ColCNPJBase, "CNPJ", "NOME",
	ColMes, ColAno, ColTipoOperacao, ColTipoCredito,
	"REG", ColCST, "NAT_BC_CRED", "CFOP",
	"COD_PART", "NOME_participante", "CNPJ_participante", "CPF_participante", "CNPJ_CPF_PART",
	ColDataEmissao, ColDataExecucao,
	"COD_ITEM", "DESCR_ITEM", "TIPO_ITEM", "COD_NCM",
	ColChave, "COD_MOD", "NUM_DOC", "NUM_ITEM",
	"COD_CTA", "COD_NAT_CC", "NOME_CTA",
	ColValorItem, "VL_BC_PIS", "VL_BC_COFINS", "ALIQ_PIS", "ALIQ_COFINS", "VL_PIS", "VL_COFINS", "VL_ISS",
	"CST_ICMS", "VL_BC_ICMS", "ALIQ_ICMS", "VL_ICMS",
}

// AuxColumns are flattened with the output columns but dropped before export.
var AuxColumns = []string{ColIndOrigCred}

var columnIndex = func() map[string]int {
	m := make(map[string]int, len(Columns))
	for i, c := range Columns {
		m[c] = i
	}
	return m
}()

// IsColumn reports whether name is part of the output schema.
func IsColumn(name string) bool {
	_, ok := columnIndex[name]
	return ok
}

// RequiredFields returns the fields a (level, key) accumulator must hold
// before a row is emitted for it.
func RequiredFields(contribuicoes bool) []string {
	if contribuicoes {
		return []string{"CST_PIS", "CST_COFINS", "VL_BC_PIS", "VL_BC_COFINS"}
	}
	return []string{"CST_ICMS", "VL_BC_ICMS"}
}
