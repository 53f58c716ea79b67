// =============================================================================
// SPED EFD Relatorios - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - tokenizer   (produces Registers)
//   - lookup      (consumes block 0 Registers)
//   - flatten     (consumes Registers, produces Rows)
//   - enrich      (mutates Rows)
//   - converter   (merges Rows)
//   - xlsxwriter  (exports Rows)
//
// =============================================================================

package types

import "strings"

// =============================================================================
// FILE VARIANTS
// =============================================================================

// Variant identifies which SPED EFD bookkeeping file is being processed.
type Variant string

const (
	// Contribuicoes is the PIS/COFINS bookkeeping file ("EFD Contribuições").
	Contribuicoes Variant = "EFD Contribuições"

	// ICMSIPI is the ICMS/IPI bookkeeping file ("EFD ICMS_IPI").
	ICMSIPI Variant = "EFD ICMS_IPI"
)

// String returns the label written to the "EFD Tipo" column.
func (v Variant) String() string { return string(v) }

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	return v == Contribuicoes || v == ICMSIPI
}

// =============================================================================
// REGISTERS
// =============================================================================

// Field is a single named value of a register, in declared order.
type Field struct {
	Name  string
	Value string
}

// Register represents one line of the bookkeeping file after tokenization.
type Register struct {
	// Code is the register type code (e.g. "C100", "C170").
	Code string

	// Level is the declared nesting level of the register in its block.
	Level int

	// Fields holds the values present on the line, in layout order.
	// Fields missing from a short line are absent, not empty.
	Fields []Field

	// Declared is the number of fields the register layout declares.
	// It stays fixed even when the line carries fewer values.
	Declared int

	// Line is the 1-based physical line number in the source file.
	Line int
}

// Get returns the value of the named field and whether it is present.
func (r Register) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the value of the named field, or "" when absent.
func (r Register) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// FieldCount returns the number of fields the register declares.
func (r Register) FieldCount() int {
	if r.Declared > 0 {
		return r.Declared
	}
	return len(r.Fields)
}

// Block returns the block letter or digit the register belongs to.
func (r Register) Block() string {
	if r.Code == "" {
		return ""
	}
	return strings.ToUpper(r.Code[:1])
}

// =============================================================================
// ROWS
// =============================================================================

// Row is one flattened output record, keyed by column name.
// Absent columns read as the empty string.
type Row map[string]string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Values returns the row's values in the given column order.
func (r Row) Values(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = r[c]
	}
	return out
}

// =============================================================================
// REGISTER LAYOUTS
// =============================================================================

// Layout declares the level and ordered field names of a register type.
type Layout struct {
	Code   string   `yaml:"reg"`
	Level  int      `yaml:"level"`
	Fields []string `yaml:"fields"`
}
