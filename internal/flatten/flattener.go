// Package flatten reconstructs denormalized item rows from the leveled
// register stream of a SPED EFD file.
//
// Registers are fed in file order. Each register is merged into the ancestor
// context stack under its combination key; when the (level, key) accumulator
// holds every field the variant requires, one row is flattened from the
// active path of ancestors and handed back to the caller.
package flatten

import (
	"strconv"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/catalog"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/lookup"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

const openingRegister = "0000"

// Flattener drives the context stack over the registers of one file.
type Flattener struct {
	variant  types.Variant
	stack    *Stack
	required []string
	seed     *Seed
	block    string
}

// New returns a Flattener for a file of the given variant.
func New(variant types.Variant, tables *lookup.Tables) *Flattener {
	return &Flattener{
		variant:  variant,
		stack:    NewStack(tables),
		required: catalog.RequiredFields(variant == types.Contribuicoes),
	}
}

// OpeningSeed builds the level 0 context from register 0000. It holds the
// output columns 0000 carries plus the apuração period:
//
//   DT_INI -> Data de Emissão, Mês (ddMMaaaa), Ano (ddmmAAAA)
//   DT_FIN -> Data de Execução
func OpeningSeed(reg types.Register) *Seed {
	values := make(types.Row)
	for _, f := range reg.Fields {
		if catalog.IsColumn(f.Name) {
			values[f.Name] = f.Value
		}
	}
	if ini := reg.Value("DT_INI"); len(ini) == 8 {
		values[catalog.ColDataEmissao] = ini
		values[catalog.ColMes] = ini[2:4]
		values[catalog.ColAno] = ini[4:8]
	}
	if fin := reg.Value("DT_FIN"); len(fin) == 8 {
		values[catalog.ColDataExecucao] = fin
	}
	return &Seed{Level: reg.Level, Values: values}
}

// Feed processes one register and returns the row it completes, if any.
//
// Only blocks A to K are flattened. Register 0000 installs the opening
// context. Every change of block resets the stack to that context, dropping
// accumulators that never became complete.
func (f *Flattener) Feed(reg types.Register) (types.Row, bool) {
	if reg.Code == openingRegister {
		f.seed = OpeningSeed(reg)
		return nil, false
	}

	block := reg.Block()
	if block < "A" || block > "K" {
		return nil, false
	}
	// C170 duplicates the analytic totals of C190 in EFD ICMS_IPI.
	if f.variant == types.ICMSIPI && reg.Code == "C170" {
		return nil, false
	}

	if block != f.block {
		f.stack.Reset(f.seed)
		f.block = block
	}

	key := Key(reg)
	f.stack.Observe(reg, key)

	k := key.String()
	if !f.stack.IsComplete(reg.Level, k, f.required) {
		return nil, false
	}
	row := f.stack.Flatten(reg.Level, k)
	row[catalog.ColLinhaEFD] = strconv.Itoa(reg.Line)
	return row, true
}

// Run feeds every register and collects the emitted rows in order.
func (f *Flattener) Run(regs []types.Register) []types.Row {
	var rows []types.Row
	for _, reg := range regs {
		if row, ok := f.Feed(reg); ok {
			rows = append(rows, row)
		}
	}
	return rows
}
