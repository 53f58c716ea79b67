package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

func reg(code string, kv ...string) types.Register {
	r := types.Register{Code: code}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Fields = append(r.Fields, types.Field{Name: kv[i], Value: kv[i+1]})
	}
	return r
}

func TestBuild(t *testing.T) {
	tables := Build([]types.Register{
		reg("0140", "CNPJ", "12345678000190", "NOME", "ACME FILIAL"),
		reg("0140", "CNPJ", "123", "NOME", "INVALID"),
		reg("0150", "COD_PART", "P1", "NOME", "FORNECEDOR", "COD_PAIS", "1058", "CNPJ", "98765432000110", "CPF", ""),
		reg("0200", "COD_ITEM", "I1", "DESCR_ITEM", "SOJA", "TIPO_ITEM", "00", "COD_NCM", "12019000"),
		reg("0500", "COD_NAT_CC", "4", "COD_CTA", "3.1.1", "NOME_CTA", "Compras"),
		reg("C100", "COD_PART", "P2"),
	})

	var testCases = []struct {
		description string
		lookup      func() (Attributes, bool)
		expected    Attributes
	}{
		{
			description: "participant",
			lookup:      func() (Attributes, bool) { return tables.Participant("P1") },
			expected: Attributes{
				{Name: "NOME_participante", Value: "FORNECEDOR"},
				{Name: "CNPJ_participante", Value: "98765432000110"},
				{Name: "CPF_participante", Value: ""},
			},
		},
		{
			description: "item",
			lookup:      func() (Attributes, bool) { return tables.Item("I1") },
			expected: Attributes{
				{Name: "DESCR_ITEM", Value: "SOJA"},
				{Name: "TIPO_ITEM", Value: "00"},
				{Name: "COD_NCM", Value: "12019000"},
			},
		},
		{
			description: "account",
			lookup:      func() (Attributes, bool) { return tables.Account("3.1.1") },
			expected: Attributes{
				{Name: "COD_NAT_CC", Value: "4"},
				{Name: "NOME_CTA", Value: "Compras"},
			},
		},
		{
			description: "missing participant",
			lookup:      func() (Attributes, bool) { return tables.Participant("P2") },
		},
		{
			description: "empty id",
			lookup:      func() (Attributes, bool) { return tables.Item("") },
		},
	}
	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			actual, ok := tc.lookup()
			assert.Equal(t, tc.expected != nil, ok)
			assert.Equal(t, tc.expected, actual)
		})
	}

	name, ok := tables.EstablishmentName("12345678000190")
	assert.True(t, ok)
	assert.Equal(t, "ACME FILIAL", name)
	_, ok = tables.EstablishmentName("123")
	assert.False(t, ok)

	e, p, i, a := tables.Len()
	assert.Equal(t, []int{1, 1, 1, 1}, []int{e, p, i, a})
}

func TestNilTables(t *testing.T) {
	var tables *Tables
	_, ok := tables.Participant("P1")
	assert.False(t, ok)
	_, ok = tables.EstablishmentName("12345678000190")
	assert.False(t, ok)
}
