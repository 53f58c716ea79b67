package flatten

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/lookup"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

func TestKey(t *testing.T) {
	var testCases = []struct {
		description string
		fields      []types.Field
		expected    string
	}{
		{
			description: "pis side",
			fields: []types.Field{
				{Name: "CST_PIS", Value: "50"}, {Name: "CFOP", Value: "1102"}, {Name: "VL_BC_PIS", Value: "1000,00"},
			},
			expected: "50__1102_1000,00_",
		},
		{
			description: "cofins side pairs with pis side",
			fields: []types.Field{
				{Name: "CST_COFINS", Value: "50"}, {Name: "CFOP", Value: "1102"}, {Name: "VL_BC_COFINS", Value: "1000,00"},
			},
			expected: "50__1102_1000,00_",
		},
		{
			description: "greater code wins",
			fields: []types.Field{
				{Name: "CST_PIS", Value: "60"}, {Name: "CST_COFINS", Value: "66"},
				{Name: "VL_BC_PIS", Value: "999,00"}, {Name: "VL_BC_COFINS", Value: "1000,00"},
			},
			expected: "66___999,00_",
		},
		{
			description: "icms",
			fields: []types.Field{
				{Name: "CST_ICMS", Value: "000"}, {Name: "CFOP", Value: "5102"}, {Name: "VL_BC_ICMS", Value: "10,00"},
			},
			expected: "_000_5102__10,00",
		},
		{
			description: "shared opening stock base",
			fields: []types.Field{
				{Name: "NAT_BC_CRED", Value: "18"}, {Name: "VL_BC_EST", Value: "1200,00"}, {Name: "VL_BC_MEN_EST", Value: "100,00"},
				{Name: "CST_PIS", Value: "50"}, {Name: "CST_COFINS", Value: "50"},
			},
			expected: "50___100,00_",
		},
		{
			description: "own base wins over shared base",
			fields: []types.Field{
				{Name: "VL_BC_CRED", Value: "900,00"}, {Name: "CST_PIS", Value: "51"}, {Name: "VL_BC_PIS", Value: "30,00"},
			},
			expected: "51___30,00_",
		},
		{description: "nothing", expected: "____"},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, Key(types.Register{Fields: tc.fields}).String())
		})
	}
}

func TestSiblingSwitch(t *testing.T) {
	var testCases = []struct {
		description string
		prev, cur   signature
		expected    bool
	}{
		{description: "first register", cur: signature{level: 1, fields: 2, set: true}, expected: true},
		{description: "deeper", prev: signature{3, 29, true}, cur: signature{4, 37, true}, expected: false},
		{description: "shallower", prev: signature{4, 37, true}, cur: signature{3, 29, true}, expected: true},
		{description: "same level same width", prev: signature{4, 11, true}, cur: signature{4, 11, true}, expected: false},
		{description: "same level wider", prev: signature{4, 11, true}, cur: signature{4, 12, true}, expected: false},
		{description: "same level narrower", prev: signature{4, 12, true}, cur: signature{4, 11, true}, expected: true},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.expected, siblingSwitch(tc.prev, tc.cur))
		})
	}
}

func TestMostSpecificWins(t *testing.T) {
	stack := NewStack(nil)
	stack.Reset(nil)
	for level, value := range []string{"level0", "level1", "level2"} {
		reg := types.Register{Code: "X", Level: level, Declared: 2, Fields: []types.Field{{Name: "NUM_DOC", Value: value}}}
		stack.Observe(reg, Key(reg))
	}
	assert.Equal(t, []int{2, 1, 0}, stack.Depth())

	key := Combination{}.String()
	assert.Equal(t, "level2", stack.Flatten(2, key)["NUM_DOC"])
	assert.Equal(t, "level1", stack.Flatten(1, key)["NUM_DOC"])
}

func TestStackObserve(t *testing.T) {
	tables := lookup.Build([]types.Register{
		{Code: "0140", Fields: []types.Field{{Name: "CNPJ", Value: "12345678000190"}, {Name: "NOME", Value: "FILIAL"}}},
	})
	stack := NewStack(tables)
	stack.Reset(nil)
	reg := types.Register{Code: "C100", Level: 3, Declared: 29, Fields: []types.Field{
		{Name: "REG", Value: "C100"},
		{Name: "IND_OPER", Value: "0"},
		{Name: "CHV_NFE", Value: "3520"},
		{Name: "DT_DOC", Value: "05012020"},
		{Name: "DT_E_S", Value: "0601"},
		{Name: "VL_DOC", Value: "150,00"},
		{Name: "CNPJ", Value: "12345678000190"},
	}}
	stack.Observe(reg, Key(reg))
	row := stack.Flatten(3, Key(reg).String())

	assert.Equal(t, "C100", row["REG"])
	assert.Equal(t, "3520", row[catalog.ColChave])
	assert.Equal(t, "05012020", row[catalog.ColDataEmissao])
	assert.Equal(t, "", row[catalog.ColDataExecucao], "dates shorter than ddmmaaaa are not copied")
	assert.Equal(t, "150,00", row[catalog.ColValorItem])
	assert.Equal(t, "FILIAL", row["NOME"])
	_, ok := row["IND_OPER"]
	assert.False(t, ok, "untracked fields are not kept")
}

func opening() rec {
	return rec{code: "0000", values: kv("DT_INI", "01012020", "DT_FIN", "31012020", "NOME", "MATRIZ", "CNPJ", "12345678000190")}
}

func TestFlattenContribuicoes(t *testing.T) {
	regs := tokenize(t, types.Contribuicoes,
		opening(),
		rec{code: "0140", values: kv("CNPJ", "12345678000271", "NOME", "FILIAL")},
		rec{code: "C001", values: kv("IND_MOV", "0")},
		rec{code: "C010", values: kv("CNPJ", "12345678000271")},
		rec{code: "C100", values: kv("COD_PART", "P1", "NUM_DOC", "1", "CHV_NFE", "KEY1", "DT_DOC", "02012020", "VL_DOC", "500,00")},
		rec{code: "C170", values: kv("NUM_ITEM", "1", "COD_ITEM", "I1", "VL_ITEM", "100,00", "CFOP", "1102",
			"CST_PIS", "50", "VL_BC_PIS", "100,00", "ALIQ_PIS", "1,65", "CST_COFINS", "50", "VL_BC_COFINS", "100,00", "ALIQ_COFINS", "7,6")},
		// Second document: shorter line without CHV_NFE, colliding item key.
		rec{code: "C100", values: kv("NUM_DOC", "2"), upTo: 8},
		rec{code: "C170", values: kv("NUM_ITEM", "1", "VL_ITEM", "100,00", "CFOP", "1102",
			"CST_PIS", "50", "VL_BC_PIS", "100,00", "CST_COFINS", "50", "VL_BC_COFINS", "100,00")},
		rec{code: "C990"},
	)

	lookupRegs := []types.Register{regs[1]}
	f := New(types.Contribuicoes, lookup.Build(lookupRegs))
	rows := f.Run(regs)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "C170", first["REG"])
	assert.Equal(t, "50", first[catalog.ColCST])
	assert.Equal(t, "P1", first["COD_PART"])
	assert.Equal(t, "1", first["NUM_DOC"])
	assert.Equal(t, "KEY1", first[catalog.ColChave])
	assert.Equal(t, "02012020", first[catalog.ColDataEmissao])
	assert.Equal(t, "31012020", first[catalog.ColDataExecucao], "inherited from the opening record")
	assert.Equal(t, "100,00", first[catalog.ColValorItem])
	assert.Equal(t, "12345678000271", first["CNPJ"])
	assert.Equal(t, "FILIAL", first["NOME"])
	assert.Equal(t, "01", first[catalog.ColMes])
	assert.Equal(t, "2020", first[catalog.ColAno])
	assert.Equal(t, "6", first[catalog.ColLinhaEFD])
	for _, col := range catalog.Columns {
		_, ok := first[col]
		assert.True(t, ok, col)
	}

	second := rows[1]
	assert.Equal(t, "2", second["NUM_DOC"])
	assert.Equal(t, "", second[catalog.ColChave], "no leakage from the pruned sibling document")
	assert.Equal(t, "", second["COD_PART"])
	assert.Equal(t, "", second["COD_ITEM"])
	assert.Equal(t, "01012020", second[catalog.ColDataEmissao], "falls back to the opening record")
	assert.Equal(t, "8", second[catalog.ColLinhaEFD])
}

func TestFlattenPairsSiblings(t *testing.T) {
	regs := tokenize(t, types.Contribuicoes,
		opening(),
		rec{code: "C001"},
		rec{code: "C010", values: kv("CNPJ", "12345678000190")},
		rec{code: "C180", values: kv("COD_ITEM", "I9", "DT_DOC_INI", "01012020", "DT_DOC_FIN", "31012020")},
		rec{code: "C181", values: kv("CST_PIS", "66", "CFOP", "1102", "VL_ITEM", "1000,00", "VL_BC_PIS", "1000,00", "ALIQ_PIS", "0,5775")},
		rec{code: "C185", values: kv("CST_COFINS", "66", "CFOP", "1102", "VL_ITEM", "1000,00", "VL_BC_COFINS", "1000,00", "ALIQ_COFINS", "2,66")},
	)
	rows := New(types.Contribuicoes, nil).Run(regs)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "C185", row["REG"])
	assert.Equal(t, "66", row[catalog.ColCST])
	assert.Equal(t, "0,5775", row["ALIQ_PIS"])
	assert.Equal(t, "2,66", row["ALIQ_COFINS"])
	assert.Equal(t, "I9", row["COD_ITEM"])
	assert.Equal(t, "31012020", row[catalog.ColDataExecucao])
}

func TestFlattenIncompleteNeverEmits(t *testing.T) {
	regs := tokenize(t, types.Contribuicoes,
		opening(),
		rec{code: "F001"},
		rec{code: "F010", values: kv("CNPJ", "12345678000190")},
		// Cut before VL_BC_COFINS.
		rec{code: "F100", values: kv("CST_PIS", "50", "VL_BC_PIS", "1000,00", "CST_COFINS", "50"), upTo: 11},
		rec{code: "F990"},
	)
	assert.Empty(t, New(types.Contribuicoes, nil).Run(regs))
}

func TestFlattenICMSIPI(t *testing.T) {
	regs := tokenize(t, types.ICMSIPI,
		rec{code: "0000", values: kv("DT_INI", "01032021", "DT_FIN", "31032021", "NOME", "ACME", "CNPJ", "12345678000190")},
		rec{code: "C001"},
		rec{code: "C100", values: kv("COD_PART", "P1", "NUM_DOC", "77", "CHV_NFE", "KEY", "DT_DOC", "03032021", "DT_E_S", "04032021", "VL_DOC", "300,00", "VL_BC_ICMS", "300,00")},
		rec{code: "C170", values: kv("CST_ICMS", "000", "CFOP", "5102", "VL_BC_ICMS", "300,00")},
		rec{code: "C190", values: kv("CST_ICMS", "000", "CFOP", "5102", "ALIQ_ICMS", "18,00", "VL_OPR", "200,00", "VL_BC_ICMS", "200,00", "VL_ICMS", "36,00")},
		rec{code: "C190", values: kv("CST_ICMS", "060", "CFOP", "5405", "VL_OPR", "100,00", "VL_BC_ICMS", "0")},
		rec{code: "C990"},
		rec{code: "D001"},
		rec{code: "D100", values: kv("NUM_DOC", "900", "DT_DOC", "10032021", "VL_DOC", "50,00")},
		rec{code: "D190", values: kv("CST_ICMS", "000", "CFOP", "1353", "VL_OPR", "50,00", "VL_BC_ICMS", "50,00")},
	)
	rows := New(types.ICMSIPI, nil).Run(regs)
	require.Len(t, rows, 3, "C170 is skipped in EFD ICMS_IPI")

	assert.Equal(t, "C190", rows[0]["REG"])
	assert.Equal(t, "200,00", rows[0][catalog.ColValorItem])
	assert.Equal(t, "77", rows[0]["NUM_DOC"])
	assert.Equal(t, "03032021", rows[0][catalog.ColDataEmissao])
	assert.Equal(t, "04032021", rows[0][catalog.ColDataExecucao])
	assert.Equal(t, "ACME", rows[0]["NOME"])
	assert.Equal(t, "03", rows[0][catalog.ColMes])

	assert.Equal(t, "5405", rows[1]["CFOP"])
	assert.Equal(t, "", rows[1]["ALIQ_ICMS"], "sibling C190 does not inherit from the first one")

	assert.Equal(t, "D190", rows[2]["REG"])
	assert.Equal(t, "900", rows[2]["NUM_DOC"])
	assert.Equal(t, "", rows[2][catalog.ColChave], "block change drops the C block context")
	assert.Equal(t, "12345678000190", rows[2]["CNPJ"])
}

func TestFlattenCreditRegisters(t *testing.T) {
	regs := tokenize(t, types.Contribuicoes,
		opening(),
		rec{code: "C001"},
		rec{code: "C010", values: kv("CNPJ", "12345678000190")},
		rec{code: "C500", values: kv("COD_PART", "P7", "COD_MOD", "06", "NUM_DOC", "10", "DT_DOC", "05012020", "DT_ENT", "07012020", "VL_DOC", "300,00")},
		rec{code: "C501", values: kv("CST_PIS", "50", "VL_ITEM", "300,00", "NAT_BC_CRED", "04", "VL_BC_PIS", "300,00", "ALIQ_PIS", "1,65")},
		rec{code: "C505", values: kv("CST_COFINS", "50", "VL_ITEM", "300,00", "NAT_BC_CRED", "04", "VL_BC_COFINS", "300,00", "ALIQ_COFINS", "7,6")},
		rec{code: "C509", values: kv("NUM_PROC", "123", "IND_PROC", "1")},
		rec{code: "C990"},
		rec{code: "F001"},
		rec{code: "F010", values: kv("CNPJ", "12345678000190")},
		rec{code: "F150", values: kv("NAT_BC_CRED", "18", "VL_TOT_EST", "1200,00", "VL_BC_EST", "1200,00", "VL_BC_MEN_EST", "100,00",
			"CST_PIS", "50", "ALIQ_PIS", "1,65", "CST_COFINS", "50", "ALIQ_COFINS", "7,6", "COD_CTA", "1.1.3")},
		rec{code: "F990"},
	)
	rows := New(types.Contribuicoes, nil).Run(regs)
	require.Len(t, rows, 2)

	energy := rows[0]
	assert.Equal(t, "C505", energy["REG"])
	assert.Equal(t, "50", energy[catalog.ColCST])
	assert.Equal(t, "04", energy["NAT_BC_CRED"])
	assert.Equal(t, "1,65", energy["ALIQ_PIS"])
	assert.Equal(t, "7,6", energy["ALIQ_COFINS"])
	assert.Equal(t, "P7", energy["COD_PART"])
	assert.Equal(t, "10", energy["NUM_DOC"])
	assert.Equal(t, "05012020", energy[catalog.ColDataEmissao])
	assert.Equal(t, "07012020", energy[catalog.ColDataExecucao])
	assert.Equal(t, "6", energy[catalog.ColLinhaEFD])

	stock := rows[1]
	assert.Equal(t, "F150", stock["REG"])
	assert.Equal(t, "18", stock["NAT_BC_CRED"])
	assert.Equal(t, "100,00", stock["VL_BC_PIS"], "the monthly base stands for both contributions")
	assert.Equal(t, "100,00", stock["VL_BC_COFINS"])
	assert.Equal(t, "1200,00", stock[catalog.ColValorItem])
	assert.Equal(t, "1.1.3", stock["COD_CTA"])
	assert.Equal(t, "", stock["NUM_DOC"], "the C block context is gone")
	assert.Equal(t, "11", stock[catalog.ColLinhaEFD])
}
