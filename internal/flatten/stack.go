package flatten

import (
	"sort"
	"strconv"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/lookup"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// =============================================================================
// ANCESTOR CONTEXT STACK
// =============================================================================
//
// The stack holds, per nesting level, one accumulator per combination key.
// It only ever holds the currently active path of levels: a sibling switch or
// a return to a shallower level prunes every level at or below the new one,
// so a subtree never sees the fields of a subtree that came before it.
//
//   level 0  registro de abertura  {CNPJ, NOME, Data de Emissão, ...}
//   level 2  C010 key              {CNPJ, REG, ...}
//   level 3  C100 key              {COD_PART, NUM_DOC, CHV_NFE, ...}
//   level 4  C170 key              {CST_PIS, CST_COFINS, VL_BC_PIS, ...}
//
// The stack is not safe for concurrent use.
//
// =============================================================================

// OpeningKey is the combination key of the opening-record context.
const OpeningKey = "registro de abertura"

// Seed is the context every block starts from.
type Seed struct {
	Level  int
	Values types.Row
}

type levelState struct {
	keys []string
	acc  map[string]types.Row
}

// signature is the structural fingerprint of the previous register.
type signature struct {
	level  int
	fields int
	set    bool
}

// siblingSwitch reports whether the register with signature cur leaves the
// subtree of prev: it either climbs to a shallower level, or stays at the
// same level while declaring fewer fields, which is taken to mean a
// different register type. Before the first register of a block there is no
// prev and the answer is always true.
//
// This heuristic stands in for a register-type transition table.
func siblingSwitch(prev, cur signature) bool {
	if !prev.set {
		return true
	}
	return cur.level < prev.level || (cur.level == prev.level && cur.fields < prev.fields)
}

// Stack is the ancestor context of one file session.
type Stack struct {
	levels map[int]*levelState
	prev   signature
	tables *lookup.Tables
}

// NewStack returns an empty stack. tables may be nil.
func NewStack(tables *lookup.Tables) *Stack {
	return &Stack{levels: make(map[int]*levelState), tables: tables}
}

// Reset discards all levels and installs a copy of seed, if any.
func (s *Stack) Reset(seed *Seed) {
	s.levels = make(map[int]*levelState)
	s.prev = signature{}
	if seed != nil {
		acc := s.accumulator(seed.Level, OpeningKey)
		for k, v := range seed.Values {
			acc[k] = v
		}
	}
}

// Observe merges a register into the (level, key) accumulator, pruning
// stale levels first.
func (s *Stack) Observe(reg types.Register, key Combination) {
	cur := signature{level: reg.Level, fields: reg.FieldCount(), set: true}
	if siblingSwitch(s.prev, cur) {
		s.prune(reg.Level)
	}
	s.prev = cur

	acc := s.accumulator(reg.Level, key.String())
	acc[catalog.ColNivel] = strconv.Itoa(reg.Level)
	acc[catalog.ColCST] = key.CSTContrib

	for _, f := range reg.Fields {
		if !catalog.IsTracked(f.Name) {
			continue
		}
		acc[f.Name] = f.Value

		role := catalog.RoleOf(f.Name)
		switch role {
		case catalog.RoleDateIssue, catalog.RoleDateExec:
			if len(f.Value) == 8 {
				acc[catalog.CanonicalSlot(role)] = f.Value
			}
		case catalog.RoleChave, catalog.RoleMonetary:
			acc[catalog.CanonicalSlot(role)] = f.Value
		}

		if f.Name == "CNPJ" {
			if name, ok := s.tables.EstablishmentName(f.Value); ok {
				acc["NOME"] = name
			}
		}
	}

	// F150 and friends report one base for both contributions.
	if bc, ok := sharedBase(reg); ok {
		acc["VL_BC_PIS"] = bc
		acc["VL_BC_COFINS"] = bc
	}
}

// IsComplete reports whether the (level, key) accumulator holds every
// required field.
func (s *Stack) IsComplete(level int, key string, required []string) bool {
	st, ok := s.levels[level]
	if !ok {
		return false
	}
	acc, ok := st.acc[key]
	if !ok {
		return false
	}
	for _, name := range required {
		if _, ok := acc[name]; !ok {
			return false
		}
	}
	return true
}

// Flatten builds one row for the (level, key) accumulator. Each column is
// taken from that accumulator when it defines it, and otherwise from the
// deepest level that does. Within a level, keys are visited in the order
// they were created.
func (s *Stack) Flatten(level int, key string) types.Row {
	var own types.Row
	if st, ok := s.levels[level]; ok {
		own = st.acc[key]
	}
	order := s.Depth()

	row := make(types.Row, len(catalog.Columns)+len(catalog.AuxColumns))
	resolve := func(col string) {
		if v, ok := own[col]; ok {
			row[col] = v
			return
		}
		for _, lvl := range order {
			st := s.levels[lvl]
			for _, k := range st.keys {
				if v, ok := st.acc[k][col]; ok {
					row[col] = v
					return
				}
			}
		}
		row[col] = ""
	}
	for _, col := range catalog.Columns {
		resolve(col)
	}
	for _, col := range catalog.AuxColumns {
		resolve(col)
	}
	return row
}

// Depth returns the active levels, deepest first.
func (s *Stack) Depth() []int {
	out := make([]int, 0, len(s.levels))
	for lvl := range s.levels {
		out = append(out, lvl)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func (s *Stack) prune(level int) {
	for lvl := range s.levels {
		if lvl >= level {
			delete(s.levels, lvl)
		}
	}
}

func (s *Stack) accumulator(level int, key string) types.Row {
	st, ok := s.levels[level]
	if !ok {
		st = &levelState{acc: make(map[string]types.Row)}
		s.levels[level] = st
	}
	acc, ok := st.acc[key]
	if !ok {
		acc = make(types.Row)
		st.acc[key] = acc
		st.keys = append(st.keys, key)
	}
	return acc
}
