// Package categorical numericalizes string columns into dense integer codes.
//
// Codes are assigned by sorting the distinct values of a column and numbering
// them from zero, so the same set of values always yields the same codes no
// matter the order in which they were observed.
package categorical

import (
	"fmt"
	"sort"
)

// Vocab is the itos/stoi table pair for one categorical column.
type Vocab struct {
	itos []string
	stoi map[string]int
}

// NewVocab builds a Vocab from a sequence of values which may repeat and
// appear in any order.
func NewVocab(values []string) *Vocab {
	seen := make(map[string]struct{}, len(values))
	distinct := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		distinct = append(distinct, v)
	}
	sort.Strings(distinct)
	stoi := make(map[string]int, len(distinct))
	for i, v := range distinct {
		stoi[v] = i
	}
	return &Vocab{itos: distinct, stoi: stoi}
}

// FromSTOI rebuilds a Vocab from a persisted string-to-code table. The codes
// must be exactly 0..len-1 with no duplicates.
func FromSTOI(stoi map[string]int) (*Vocab, error) {
	itos := make([]string, len(stoi))
	filled := make([]bool, len(stoi))
	for s, code := range stoi {
		if code < 0 || code >= len(stoi) {
			return nil, fmt.Errorf("code %d for %q out of range [0,%d)", code, s, len(stoi))
		}
		if filled[code] {
			return nil, fmt.Errorf("code %d assigned twice (%q, %q)", code, itos[code], s)
		}
		itos[code] = s
		filled[code] = true
	}
	cp := make(map[string]int, len(stoi))
	for s, code := range stoi {
		cp[s] = code
	}
	return &Vocab{itos: itos, stoi: cp}, nil
}

// Len returns the number of distinct values.
func (v *Vocab) Len() int { return len(v.itos) }

// Code looks up the code assigned to s.
func (v *Vocab) Code(s string) (int, bool) {
	c, ok := v.stoi[s]
	return c, ok
}

// MustCode is Code for values known to belong to the vocabulary. An unseen
// value means the caller encoded a column with a table built from another
// column, so it panics.
func (v *Vocab) MustCode(s string) int {
	c, ok := v.Code(s)
	if !ok {
		panic(fmt.Sprintf("categorical: value %q not in vocabulary", s))
	}
	return c
}

// Value returns the canonical string for code.
func (v *Vocab) Value(code int) (string, bool) {
	if code < 0 || code >= len(v.itos) {
		return "", false
	}
	return v.itos[code], true
}

// Values returns the distinct values in code order.
func (v *Vocab) Values() []string {
	out := make([]string, len(v.itos))
	copy(out, v.itos)
	return out
}

// ITOS returns a fresh code -> string map.
func (v *Vocab) ITOS() map[int]string {
	out := make(map[int]string, len(v.itos))
	for i, s := range v.itos {
		out[i] = s
	}
	return out
}

// STOI returns a fresh string -> code map.
func (v *Vocab) STOI() map[string]int {
	out := make(map[string]int, len(v.stoi))
	for s, c := range v.stoi {
		out[s] = c
	}
	return out
}

// Encode numericalizes values and returns the codes in input order together
// with the vocabulary that produced them.
func Encode(values []string) ([]int, *Vocab) {
	v := NewVocab(values)
	codes := make([]int, len(values))
	for i, s := range values {
		codes[i] = v.MustCode(s)
	}
	return codes, v
}
