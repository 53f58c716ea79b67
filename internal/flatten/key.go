package flatten

import (
	"strings"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// Combination identifies "the same transaction line" across sibling
// registers that each carry half of it. C181 and C185, for example, carry
// the PIS and the COFINS side of one consolidated sale.
type Combination struct {
	// CSTContrib is the greater of CST_PIS and CST_COFINS.
	CSTContrib string
	CSTICMS    string
	CFOP       string

	// BCContrib is the greater of VL_BC_PIS and VL_BC_COFINS.
	BCContrib string
	BCICMS    string
}

// String renders the combination as cstContrib_CST_ICMS_CFOP_bcContrib_VL_BC_ICMS.
func (c Combination) String() string {
	return strings.Join([]string{c.CSTContrib, c.CSTICMS, c.CFOP, c.BCContrib, c.BCICMS}, "_")
}

// Key derives the combination of a register. Fields the register does not
// carry read as "".
//
// The PIS/COFINS pairs are merged with a plain string maximum, so "999,00"
// beats "1000,00". Siblings of one transaction report identical values in
// practice, which is what makes the rule pair them.
func Key(reg types.Register) Combination {
	bc := greater(reg.Value("VL_BC_PIS"), reg.Value("VL_BC_COFINS"))
	if shared, ok := sharedBase(reg); ok {
		bc = shared
	}
	return Combination{
		CSTContrib: greater(reg.Value("CST_PIS"), reg.Value("CST_COFINS")),
		CSTICMS:    reg.Value("CST_ICMS"),
		CFOP:       reg.Value("CFOP"),
		BCContrib:  bc,
		BCICMS:     reg.Value("VL_BC_ICMS"),
	}
}

// sharedBase returns the single PIS/COFINS base of a register that declares
// no VL_BC_PIS and no VL_BC_COFINS, such as F150.
func sharedBase(reg types.Register) (string, bool) {
	if _, ok := reg.Get("VL_BC_PIS"); ok {
		return "", false
	}
	if _, ok := reg.Get("VL_BC_COFINS"); ok {
		return "", false
	}
	for _, name := range catalog.SharedBaseFields {
		if v, ok := reg.Get(name); ok {
			return v, true
		}
	}
	return "", false
}

func greater(a, b string) string {
	if b > a {
		return b
	}
	return a
}
