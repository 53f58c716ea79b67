// =============================================================================
// SPED EFD Relatorios - Validation Module
// =============================================================================
//
// This module collects validation problems instead of failing on the first
// one. It serves two callers:
//
//   1. The layout loader, which must reject register layouts that would make
//      the tokenizer produce nonsense (missing REG, duplicated field names,
//      negative levels). Layout problems are errors.
//   2. The per-file converter, which runs light plausibility checks on each
//      flattened row before enrichment. Row problems are warnings: the row is
//      still emitted, the problem is counted and logged.
//
// The validator deliberately does not check the file against the full
// regulatory schema.
//
// =============================================================================

package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single validation problem.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Register is the register code the problem relates to, if any.
	Register string

	// Field is the name of the field or column that failed validation.
	Field string

	// Value is the offending value.
	Value string

	// Rule is the short name of the violated rule.
	Rule string

	// Message is a human-readable description.
	Message string

	// Line is the source line number, when known.
	Line int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", strings.ToUpper(e.Severity))
	if e.Register != "" {
		fmt.Fprintf(&b, " %s", e.Register)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	fmt.Fprintf(&b, ", Field '%s': %s (value: '%s')", e.Field, e.Message, e.Value)
	return b.String()
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if there are no errors (warnings are allowed).
	IsValid bool

	// Errors contains all problems, warnings included.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int
}

func newResult() *ValidationResult {
	return &ValidationResult{IsValid: true}
}

func (r *ValidationResult) add(e *ValidationError) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
		return
	}
	r.WarningCount++
}

// Err returns the result as a single error, or nil when valid.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return fmt.Errorf("validation failed with %d error(s):\n%s", r.ErrorCount, FormatErrors(r.Errors))
}

// =============================================================================
// LAYOUT VALIDATION
// =============================================================================

var reRegisterCode = regexp.MustCompile(`^[0-9A-Z]{4}$`)

// ValidateLayouts checks a set of register layouts.
//
// RULES:
//   - code:      the register code is 4 upper-case alphanumerics
//   - unique:    a code is declared only once
//   - level:     the level is not negative
//   - reg_first: the first field is REG
//   - fields:    field names are non-empty and not repeated
func ValidateLayouts(layouts []types.Layout) *ValidationResult {
	result := newResult()
	seen := make(map[string]bool, len(layouts))

	for _, l := range layouts {
		if !reRegisterCode.MatchString(l.Code) {
			result.add(&ValidationError{Severity: SeverityError, Register: l.Code, Field: "REG", Value: l.Code, Rule: "code",
				Message: "register code must be 4 upper-case letters or digits"})
			continue
		}
		if seen[l.Code] {
			result.add(&ValidationError{Severity: SeverityError, Register: l.Code, Field: "REG", Value: l.Code, Rule: "unique",
				Message: "register declared more than once"})
		}
		seen[l.Code] = true

		if l.Level < 0 {
			result.add(&ValidationError{Severity: SeverityError, Register: l.Code, Field: "level", Value: fmt.Sprint(l.Level), Rule: "level",
				Message: "level must not be negative"})
		}
		if len(l.Fields) == 0 || l.Fields[0] != "REG" {
			result.add(&ValidationError{Severity: SeverityError, Register: l.Code, Field: "fields", Rule: "reg_first",
				Message: "first field must be REG"})
		}

		names := make(map[string]bool, len(l.Fields))
		for _, f := range l.Fields {
			switch {
			case strings.TrimSpace(f) == "":
				result.add(&ValidationError{Severity: SeverityError, Register: l.Code, Field: "fields", Rule: "fields",
					Message: "empty field name"})
			case names[f]:
				result.add(&ValidationError{Severity: SeverityError, Register: l.Code, Field: f, Value: f, Rule: "fields",
					Message: "duplicated field name"})
			}
			names[f] = true
		}
	}
	return result
}

// =============================================================================
// ROW VALIDATION
// =============================================================================

var (
	reCFOP    = regexp.MustCompile(`^\d{4}$`)
	reCST     = regexp.MustCompile(`^\d{2}$`)
	reCSTICMS = regexp.MustCompile(`^\d{3}$`)
	reDate    = regexp.MustCompile(`^\d{8}$`)
)

// ValidateRow runs plausibility checks on a flattened row before enrichment.
// Every problem is a warning.
func ValidateRow(row types.Row) *ValidationResult {
	result := newResult()
	line, _ := strconv.Atoi(row["Nº da Linha da EFD"])

	warn := func(field, rule, msg string) {
		result.add(&ValidationError{Severity: SeverityWarning, Register: row["REG"], Field: field, Value: row[field],
			Rule: rule, Message: msg, Line: line})
	}

	if v := row["CFOP"]; v != "" && !reCFOP.MatchString(v) {
		warn("CFOP", "cfop", "CFOP must have 4 digits")
	}
	if v := row["CST_PIS_COFINS"]; v != "" && !reCST.MatchString(v) {
		warn("CST_PIS_COFINS", "cst", "CST must have 2 digits")
	}
	if v := row["CST_ICMS"]; v != "" && !reCSTICMS.MatchString(v) {
		warn("CST_ICMS", "cst", "CST_ICMS must have 3 digits")
	}
	for _, f := range []string{"Data de Emissão", "Data de Execução"} {
		if v := row[f]; v != "" && !reDate.MatchString(v) {
			warn(f, "date", "date must be ddmmaaaa")
		}
	}
	return result
}

// =============================================================================
// ERROR REPORTING
// =============================================================================

// FormatErrors formats a list of validation problems, one per line.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}
	var b strings.Builder
	for i, e := range errors {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  %d. %s", i+1, e.Error())
	}
	return b.String()
}
