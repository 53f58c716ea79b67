// =============================================================================
// SPED EFD Relatorios - Register Layout Catalog
// =============================================================================
//
// A layout catalog tells the tokenizer, for one file variant, the nesting
// level and ordered field names of every register type it should decode.
//
// The default catalogs are embedded YAML files (layouts/*.yaml). A custom
// layout workbook can replace or extend entries, see workbook.go.
//
// =============================================================================

package layout

import (
	"embed"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/validation"
)

//go:embed layouts/*.yaml
var layoutFS embed.FS

// ErrUnknownVariant is returned when no layout catalog exists for a variant.
var ErrUnknownVariant = errors.New("unknown EFD variant")

var files = map[types.Variant]string{
	types.Contribuicoes: "layouts/efd_contribuicoes.yaml",
	types.ICMSIPI:       "layouts/efd_icms_ipi.yaml",
}

// document is the on-disk YAML shape of a layout catalog.
type document struct {
	Variant   string         `yaml:"variant"`
	Registers []types.Layout `yaml:"registers"`
}

// Catalog maps register codes to their layouts for one variant.
type Catalog struct {
	Variant types.Variant
	layouts map[string]types.Layout
}

// Load returns the embedded layout catalog of a variant.
func Load(variant types.Variant) (*Catalog, error) {
	name, ok := files[variant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
	data, err := layoutFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout catalog: %w", err)
	}
	return Parse(variant, data)
}

// Parse decodes and validates a YAML layout catalog.
func Parse(variant types.Variant, data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse layout catalog: %w", err)
	}
	return New(variant, doc.Registers)
}

// New builds a catalog from layouts after validating them.
func New(variant types.Variant, layouts []types.Layout) (*Catalog, error) {
	if err := validation.ValidateLayouts(layouts).Err(); err != nil {
		return nil, fmt.Errorf("invalid layout catalog for %s: %w", variant, err)
	}
	c := &Catalog{Variant: variant, layouts: make(map[string]types.Layout, len(layouts))}
	for _, l := range layouts {
		c.layouts[l.Code] = l
	}
	return c, nil
}

// Lookup returns the layout of a register code.
func (c *Catalog) Lookup(code string) (types.Layout, bool) {
	l, ok := c.layouts[code]
	return l, ok
}

// Len returns the number of register layouts in the catalog.
func (c *Catalog) Len() int { return len(c.layouts) }

// Layouts returns all layouts ordered by register code.
func (c *Catalog) Layouts() []types.Layout {
	out := make([]types.Layout, 0, len(c.layouts))
	for _, l := range c.layouts {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Merge returns a new catalog where the given layouts replace or extend the
// receiver's entries.
func (c *Catalog) Merge(overrides []types.Layout) (*Catalog, error) {
	merged := make(map[string]types.Layout, len(c.layouts)+len(overrides))
	for code, l := range c.layouts {
		merged[code] = l
	}
	for _, l := range overrides {
		merged[l.Code] = l
	}
	all := make([]types.Layout, 0, len(merged))
	for _, l := range merged {
		all = append(all, l)
	}
	return New(c.Variant, all)
}
