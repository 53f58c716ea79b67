// =============================================================================
// SPED EFD Relatorios - Column Rules Engine
// =============================================================================
//
// This module applies the configured column rules to the merged rows before
// they are exported. Rules let an operator normalize a column without code
// changes, for instance upper-casing participant names or zero-padding item
// codes so they sort and match across files.
//
// RULE TYPES:
//   - String manipulations (prepend, append, trim, case conversion)
//   - Zero-padding
//   - Literal and regular expression replacements
//   - Lookup table replacements
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/config"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies column rules.
type Transformer struct {
	rules   map[string][]config.RuleAction
	order   []string
	regexes map[string]*regexp.Regexp
}

// NewTransformer compiles the given rules. Rules naming the same column are
// applied one after the other.
func NewTransformer(rules []config.ColumnRule) (*Transformer, error) {
	t := &Transformer{
		rules:   make(map[string][]config.RuleAction),
		regexes: make(map[string]*regexp.Regexp),
	}
	for _, rule := range rules {
		if _, ok := t.rules[rule.Column]; !ok {
			t.order = append(t.order, rule.Column)
		}
		t.rules[rule.Column] = append(t.rules[rule.Column], rule.Actions...)
		for _, action := range rule.Actions {
			if action.Type != "regex_replace" || t.regexes[action.Find] != nil {
				continue
			}
			re, err := regexp.Compile(action.Find)
			if err != nil {
				return nil, fmt.Errorf("column %s: invalid regex pattern: %w", rule.Column, err)
			}
			t.regexes[action.Find] = re
		}
	}
	return t, nil
}

// Len returns the number of columns with rules.
func (t *Transformer) Len() int { return len(t.order) }

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

// Transform applies the rules of column to value.
//
// RETURNS:
//   - The transformed value, or value itself when the column has no rules.
//   - An error if any action fails.
func (t *Transformer) Transform(column, value string) (string, error) {
	result := value
	for _, action := range t.rules[column] {
		var err error
		result, err = t.apply(result, action)
		if err != nil {
			return "", fmt.Errorf("transformation '%s' failed: %w", action.Type, err)
		}
	}
	return result, nil
}

// TransformRows applies every rule to every row in place. Columns a row does
// not have are left alone.
func (t *Transformer) TransformRows(rows []types.Row) error {
	for i, row := range rows {
		for _, column := range t.order {
			value, ok := row[column]
			if !ok {
				continue
			}
			transformed, err := t.Transform(column, value)
			if err != nil {
				return fmt.Errorf("error transforming row %d, column '%s': %w", i+1, column, err)
			}
			row[column] = transformed
		}
	}
	return nil
}

func (t *Transformer) apply(value string, action config.RuleAction) (string, error) {
	if action.Type == "regex_replace" && action.Find != "" {
		re, ok := t.regexes[action.Find]
		if !ok {
			return "", fmt.Errorf("pattern %q was not compiled", action.Find)
		}
		return re.ReplaceAllString(value, action.Value), nil
	}
	return ApplyAction(value, action)
}

// ApplyAction applies a single action.
//
// SUPPORTED ACTIONS:
//   See config.SupportedActions. regex_replace compiles its pattern on every
//   call here; Transformer compiles it once.
func ApplyAction(value string, action config.RuleAction) (string, error) {
	switch action.Type {

	// =========================================================================
	// STRING MANIPULATIONS
	// =========================================================================

	case "prepend_string":
		// EXAMPLE:
		//   Input: "1.01.001"
		//   Action: prepend_string with value "CTA "
		//   Output: "CTA 1.01.001"
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "trim":
		return strings.TrimSpace(value), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "replace":
		// EXAMPLE:
		//   Input: "ACME LTDA."
		//   Action: replace with find "LTDA." and value "LTDA"
		//   Output: "ACME LTDA"
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		if action.Find == "" {
			return value, nil
		}
		re, err := regexp.Compile(action.Find)
		if err != nil {
			return "", fmt.Errorf("invalid regex pattern: %w", err)
		}
		return re.ReplaceAllString(value, action.Value), nil

	// =========================================================================
	// NUMERIC FORMATTING
	// =========================================================================

	case "pad_zeros_to_length":
		// EXAMPLE:
		//   Input: "123"
		//   Action: pad_zeros_to_length with value "6"
		//   Output: "000123"
		targetLength, err := strconv.Atoi(action.Value)
		if err != nil || targetLength <= 0 {
			return value, nil
		}
		return PadLeft(value, targetLength, '0'), nil

	// =========================================================================
	// LOOKUP TABLE REPLACEMENTS
	// =========================================================================

	case "lookup":
		// EXAMPLE:
		//   Input: "0"
		//   Action: lookup with lookup_table {"0": "Mercado Interno", "1": "Importação"}
		//   Output: "Mercado Interno"
		if replacement, exists := action.LookupTable[value]; exists {
			return replacement, nil
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown transformation type: %s", action.Type)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// PadLeft pads a string with a character on the left to reach the target
// length, counted in runes.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
