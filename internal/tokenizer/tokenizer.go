// =============================================================================
// SPED EFD Relatorios - Tokenizer Module
// =============================================================================
//
// This module turns the raw lines of a SPED EFD file into typed Registers.
//
// LINE FORMAT:
//   |REG|value1|value2|...|valueN|
//
//   The leading and trailing pipes are stripped, the first value is the
//   register code, and the remaining values are assigned to the layout fields
//   by position.
//
// FEATURES:
//   - Streaming: one line at a time, files of any size
//   - Charset decoding (UTF-8, ISO-8859-1, Windows-1252)
//   - Short lines are tolerated: missing trailing fields are simply absent
//   - Unknown register codes are skipped and counted
//   - A UTF-8 byte order mark before the first register is dropped
//   - Reading stops at register 9999 (a digital signature may follow)
//
// =============================================================================

package tokenizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/sped-efd-relatorios/internal/layout"
	"github.com/ginjaninja78/sped-efd-relatorios/internal/types"
)

// ErrUnknownEncoding is returned for an encoding name the tokenizer cannot decode.
var ErrUnknownEncoding = errors.New("unknown encoding")

const (
	EncodingUTF8        = "UTF-8"
	EncodingISO88591    = "ISO-8859-1"
	EncodingWindows1252 = "Windows-1252"

	// maxLineSize bounds a single register line.
	maxLineSize = 4 * 1024 * 1024

	closingRegister = "9999"

	byteOrderMark = "\ufeff"
)

// Stats counts what the scanner saw.
type Stats struct {
	// Lines is the number of physical lines read.
	Lines int

	// Registers is the number of registers produced.
	Registers int

	// Unknown is the number of register lines skipped because their code
	// is not in the layout catalog.
	Unknown int

	// Short is the number of registers with fewer values than declared.
	Short int
}

// =============================================================================
// SCANNER
// =============================================================================

// Scanner reads registers from a SPED EFD file one at a time.
//
// USAGE:
//   sc, err := tokenizer.New(r, catalog, tokenizer.EncodingISO88591)
//   if err != nil {
//       return err
//   }
//   for sc.Next() {
//       reg := sc.Register()
//       // Process the register...
//   }
//   if err := sc.Err(); err != nil {
//       return err
//   }
type Scanner struct {
	scanner  *bufio.Scanner
	catalog  *layout.Catalog
	current  types.Register
	line     int
	stats    Stats
	err      error
	finished bool
}

// New creates a Scanner over r, decoding it from the named encoding.
// An empty encoding name means UTF-8.
func New(r io.Reader, catalog *layout.Catalog, encoding string) (*Scanner, error) {
	decoded, err := decode(r, encoding)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(decoded)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Scanner{scanner: sc, catalog: catalog}, nil
}

func decode(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToUpper(strings.ReplaceAll(encoding, "_", "-")) {
	case "", "UTF-8", "UTF8":
		return r, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, encoding)
}

// Next advances to the next known register. It returns false at the end of
// the file, after register 9999, or on a read error.
func (s *Scanner) Next() bool {
	if s.err != nil || s.finished {
		return false
	}
	for s.scanner.Scan() {
		s.line++
		s.stats.Lines++

		text := strings.TrimRight(s.scanner.Text(), "\r\n")
		if s.line == 1 {
			text = strings.TrimPrefix(text, byteOrderMark)
		}
		if !strings.HasPrefix(text, "|") {
			continue
		}
		values := strings.Split(strings.TrimSuffix(text[1:], "|"), "|")
		code := values[0]
		if code == closingRegister {
			s.finished = true
		}

		l, ok := s.catalog.Lookup(code)
		if !ok {
			s.stats.Unknown++
			if s.finished {
				return false
			}
			continue
		}

		s.current = build(l, values, s.line)
		if len(values) < len(l.Fields) {
			s.stats.Short++
		}
		s.stats.Registers++
		return true
	}
	if err := s.scanner.Err(); err != nil {
		s.err = fmt.Errorf("error reading line %d: %w", s.line+1, err)
	}
	return false
}

// build assigns values to layout fields by position. Extra values beyond the
// layout are ignored; missing trailing values leave their fields absent.
func build(l types.Layout, values []string, line int) types.Register {
	n := len(l.Fields)
	if len(values) < n {
		n = len(values)
	}
	fields := make([]types.Field, n)
	for i := 0; i < n; i++ {
		fields[i] = types.Field{Name: l.Fields[i], Value: values[i]}
	}
	return types.Register{
		Code:     l.Code,
		Level:    l.Level,
		Fields:   fields,
		Declared: len(l.Fields),
		Line:     line,
	}
}

// Register returns the register read by the last call to Next.
func (s *Scanner) Register() types.Register {
	return s.current
}

// Stats returns the counters gathered so far.
func (s *Scanner) Stats() Stats {
	return s.stats
}

// Err returns the first read error, if any.
func (s *Scanner) Err() error {
	return s.err
}

// ReadAll drains a scanner into a slice.
func ReadAll(s *Scanner) ([]types.Register, error) {
	var out []types.Register
	for s.Next() {
		out = append(out, s.Register())
	}
	return out, s.Err()
}
