package flatten

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/layout"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/tokenizer"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// rec describes one register line by field name. When upTo is positive the
// line is cut after that many fields.
type rec struct {
	code   string
	values map[string]string
	upTo   int
}

// tokenize renders recs as SPED lines using the embedded layouts and runs
// them through the tokenizer, so levels and declared field counts are real.
func tokenize(t *testing.T, variant types.Variant, recs ...rec) []types.Register {
	t.Helper()
	cat, err := layout.Load(variant)
	require.NoError(t, err)

	var text strings.Builder
	for _, r := range recs {
		l, ok := cat.Lookup(r.code)
		require.True(t, ok, r.code)
		fields := l.Fields
		if r.upTo > 0 {
			fields = fields[:r.upTo]
		}
		text.WriteString("|")
		for i, name := range fields {
			if i == 0 {
				text.WriteString(r.code)
			} else {
				text.WriteString(r.values[name])
			}
			text.WriteString("|")
		}
		text.WriteString("\n")
	}

	sc, err := tokenizer.New(strings.NewReader(text.String()), cat, tokenizer.EncodingUTF8)
	require.NoError(t, err)
	regs, err := tokenizer.ReadAll(sc)
	require.NoError(t, err)
	require.Len(t, regs, len(recs))
	return regs
}

func kv(pairs ...string) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		m[pairs[i]] = pairs[i+1]
	}
	return m
}
