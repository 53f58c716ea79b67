// =============================================================================
// SPED EFD Relatorios - Field Catalog
// =============================================================================
//
// The field catalog classifies register field names into semantic roles. The
// context stack uses the roles to decide which fields it keeps and which
// canonical slot a field populates:
//
//   date-issue  -> "Data de Emissão"
//   date-exec   -> "Data de Execução"
//   chave       -> "Chave Eletrônica"
//   monetary    -> "Valor do Item"
//
// The catalog is static and read-only for the lifetime of the process.
//
// =============================================================================

package catalog

// Role is the semantic classification of a register field.
type Role int

const (
	RoleOther Role = iota
	RoleDateIssue
	RoleDateExec
	RoleDate
	RoleIdentityKey
	RoleMonetary
	RoleChave
)

// String returns a short name for the role, used in logs and tests.
func (r Role) String() string {
	switch r {
	case RoleDateIssue:
		return "date-issue"
	case RoleDateExec:
		return "date-exec"
	case RoleDate:
		return "date"
	case RoleIdentityKey:
		return "identity-key"
	case RoleMonetary:
		return "monetary"
	case RoleChave:
		return "chave-eletronica"
	default:
		return "other"
	}
}

// =============================================================================
// FIELD GROUPS
// =============================================================================

var (
	// DateIssueFields carry the issue date of a document or operation.
	DateIssueFields = []string{"DT_DOC", "DT_DOC_INI", "DT_REF_INI", "DT_OPER"}

	// DateExecFields carry the execution, entry or service date.
	DateExecFields = []string{"DT_EXE_SERV", "DT_E_S", "DT_ENT", "DT_A_P", "DT_DOC_FIN", "DT_REF_FIN"}

	// DateFields are the remaining dates (period bounds).
	DateFields = []string{"DT_INI", "DT_FIN"}

	IdentityKeyFields = []string{"CNPJ", "CPF", "CNPJ_CPF_PART", "COD_PART", "COD_ITEM", "COD_CTA"}

	// MonetaryFields feed the "Valor do Item" slot.
	MonetaryFields = []string{
		"VL_DOC", "VL_BRT", "VL_OPER", "VL_OPR", "VL_OPER_DEP", "VL_BC_CRED",
		"VL_BC_EST", "VL_TOT_REC", "VL_REC_CAIXA", "VL_REC_COMP", "VL_REC", "VL_ITEM",
	}

	ChaveFields = []string{"CHV_NFE", "CHV_CTE", "CHV_NFSE", "CHV_DOCe", "CHV_CFE", "CHV_NFE_CTE"}

	// CSTFields are the PIS and COFINS tax-situation codes.
	CSTFields = []string{"CST_PIS", "CST_COFINS"}

	// SharedBaseFields carry one calculation base for both PIS and COFINS on
	// registers that declare neither VL_BC_PIS nor VL_BC_COFINS: the monthly
	// opening-stock base of F150 and the real-estate cost bases of F205 and
	// F210.
	SharedBaseFields = []string{"VL_BC_MEN_EST", "VL_BC_CUS_INC", "VL_BC_CRED"}
)

var roles = buildRoles()

func buildRoles() map[string]Role {
	m := make(map[string]Role)
	add := func(role Role, names []string) {
		for _, n := range names {
			m[n] = role
		}
	}
	add(RoleDateIssue, DateIssueFields)
	add(RoleDateExec, DateExecFields)
	add(RoleDate, DateFields)
	add(RoleIdentityKey, IdentityKeyFields)
	add(RoleMonetary, MonetaryFields)
	add(RoleChave, ChaveFields)
	return m
}

// RoleOf returns the role of a field name. Unknown names are RoleOther.
func RoleOf(name string) Role {
	return roles[name]
}

// CanonicalSlot returns the output column a role populates, or "" when the
// role has no canonical slot.
func CanonicalSlot(role Role) string {
	switch role {
	case RoleDateIssue:
		return ColDataEmissao
	case RoleDateExec:
		return ColDataExecucao
	case RoleChave:
		return ColChave
	case RoleMonetary:
		return ColValorItem
	}
	return ""
}

// =============================================================================
// TRACKED SET
// =============================================================================

var tracked = buildTracked()

func buildTracked() map[string]struct{} {
	m := make(map[string]struct{})
	for name := range roles {
		m[name] = struct{}{}
	}
	for _, group := range [][]string{CSTFields, Columns, AuxColumns} {
		for _, n := range group {
			m[n] = struct{}{}
		}
	}
	return m
}

// IsTracked reports whether the context stack keeps the named field.
func IsTracked(name string) bool {
	_, ok := tracked[name]
	return ok
}
