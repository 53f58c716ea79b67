package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadSelection is returned for a --select token that is malformed or
// outside the list of discovered files.
var ErrBadSelection = errors.New("invalid selection")

// ParseSelection turns a --select expression into 0-based file indices.
//
// The expression numbers files from 1, as printed by the list command:
//
//	"3"          -> file 3
//	"1..5 7"     -> files 1 to 5 and 7
//	"9..7, 2"    -> files 9, 8, 7 and 2
//
// Tokens are separated by spaces or commas. A file selected twice keeps its
// first position. An empty expression selects all n files in order.
func ParseSelection(expr string, n int) ([]int, error) {
	tokens := strings.FieldsFunc(expr, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(tokens) == 0 {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	seen := make(map[int]bool)
	var out []int
	add := func(i int) {
		if !seen[i] {
			seen[i] = true
			out = append(out, i-1)
		}
	}

	for _, token := range tokens {
		from, to, err := parseToken(token, n)
		if err != nil {
			return nil, err
		}
		step := 1
		if to < from {
			step = -1
		}
		for i := from; ; i += step {
			add(i)
			if i == to {
				break
			}
		}
	}
	return out, nil
}

func parseToken(token string, n int) (from, to int, err error) {
	lo, hi, isRange := strings.Cut(token, "..")
	if !isRange {
		hi = lo
	}
	if from, err = parseIndex(lo, n); err != nil {
		return 0, 0, fmt.Errorf("%w %q: %v", ErrBadSelection, token, err)
	}
	if to, err = parseIndex(hi, n); err != nil {
		return 0, 0, fmt.Errorf("%w %q: %v", ErrBadSelection, token, err)
	}
	return from, to, nil
}

func parseIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if i < 1 || i > n {
		return 0, fmt.Errorf("out of range 1..%d", n)
	}
	return i, nil
}
