// Package lookup builds the per-file master-data tables from block 0.
//
// The tables are filled in one pass over the block 0 registers before the
// transactional pass, and are read-only afterwards. A Tables value belongs
// to one file session and is never shared between workers.
package lookup

import (
	"regexp"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// Attributes is an ordered set of descriptive attributes.
type Attributes []types.Field

// Get returns the value of the named attribute.
func (a Attributes) Get(name string) (string, bool) {
	for _, f := range a {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// ParticipantSuffix is appended to 0150 field names so they do not collide
// with the establishment's own NOME, CNPJ and CPF columns.
const ParticipantSuffix = "_participante"

var (
	participantFields = []string{"NOME", "CNPJ", "CPF"}
	itemFields        = []string{"DESCR_ITEM", "TIPO_ITEM", "COD_NCM"}
	accountFields     = []string{"COD_NAT_CC", "NOME_CTA"}

	reCNPJ = regexp.MustCompile(`^\d{14}$`)
)

// MasterData lists the register codes the builder consumes.
var MasterData = map[string]bool{"0140": true, "0150": true, "0200": true, "0500": true}

// Tables holds the four lookup tables of a file.
type Tables struct {
	establishments map[string]string
	participants   map[string]Attributes
	items          map[string]Attributes
	accounts       map[string]Attributes
}

// Builder accumulates master-data registers into Tables.
type Builder struct {
	t *Tables
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{t: &Tables{
		establishments: make(map[string]string),
		participants:   make(map[string]Attributes),
		items:          make(map[string]Attributes),
		accounts:       make(map[string]Attributes),
	}}
}

// Observe records a register. Registers outside MasterData are ignored.
// A later register with the same id replaces the earlier one.
func (b *Builder) Observe(reg types.Register) {
	switch reg.Code {
	case "0140":
		if cnpj := reg.Value("CNPJ"); reCNPJ.MatchString(cnpj) {
			b.t.establishments[cnpj] = reg.Value("NOME")
		}
	case "0150":
		if id := reg.Value("COD_PART"); id != "" {
			b.t.participants[id] = pick(reg, participantFields, ParticipantSuffix)
		}
	case "0200":
		if id := reg.Value("COD_ITEM"); id != "" {
			b.t.items[id] = pick(reg, itemFields, "")
		}
	case "0500":
		if id := reg.Value("COD_CTA"); id != "" {
			b.t.accounts[id] = pick(reg, accountFields, "")
		}
	}
}

func pick(reg types.Register, names []string, suffix string) Attributes {
	out := make(Attributes, 0, len(names))
	for _, n := range names {
		if v, ok := reg.Get(n); ok {
			out = append(out, types.Field{Name: n + suffix, Value: v})
		}
	}
	return out
}

// Build returns the finished tables. The builder must not be used afterwards.
func (b *Builder) Build() *Tables {
	t := b.t
	b.t = nil
	return t
}

// Build is a convenience that feeds every register to a new Builder.
func Build(regs []types.Register) *Tables {
	b := NewBuilder()
	for _, r := range regs {
		b.Observe(r)
	}
	return b.Build()
}

// EstablishmentName returns the 0140 NOME of a 14 digit CNPJ.
func (t *Tables) EstablishmentName(cnpj string) (string, bool) {
	if t == nil {
		return "", false
	}
	name, ok := t.establishments[cnpj]
	return name, ok
}

// Participant returns the 0150 attributes of a COD_PART.
func (t *Tables) Participant(id string) (Attributes, bool) {
	if t == nil {
		return nil, false
	}
	return find(t.participants, id)
}

// Item returns the 0200 attributes of a COD_ITEM.
func (t *Tables) Item(id string) (Attributes, bool) {
	if t == nil {
		return nil, false
	}
	return find(t.items, id)
}

// Account returns the 0500 attributes of a COD_CTA.
func (t *Tables) Account(id string) (Attributes, bool) {
	if t == nil {
		return nil, false
	}
	return find(t.accounts, id)
}

// Len returns the sizes of the establishment, participant, item and account tables.
func (t *Tables) Len() (establishments, participants, items, accounts int) {
	if t == nil {
		return 0, 0, 0, 0
	}
	return len(t.establishments), len(t.participants), len(t.items), len(t.accounts)
}

func find(m map[string]Attributes, id string) (Attributes, bool) {
	if id == "" {
		return nil, false
	}
	a, ok := m[id]
	return a, ok
}
