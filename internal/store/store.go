// Package store persists the preprocessed table and its lookup files, and
// reports whether a directory already holds a complete set.
//
// A store is treated as either fully present or absent. Presence is decided
// by file existence only; contents are never compared with the source file.
package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/pipeflow-cli/internal/categorical"
	"github.com/KaramelBytes/pipeflow-cli/internal/dataset"
	"github.com/KaramelBytes/pipeflow-cli/internal/utils"
)

// TableFile is the name of the cleaned, encoded table.
const TableFile = "data_df.csv"

// Layout holds the canonical file paths of a store directory.
type Layout struct {
	Dir   string
	Table string
	ITOS  map[string]string
	STOI  map[string]string
}

// Paths returns the layout of dir.
func Paths(dir string) Layout {
	l := Layout{
		Dir:   dir,
		Table: filepath.Join(dir, TableFile),
		ITOS:  make(map[string]string, len(dataset.CategoricalColumns)),
		STOI:  make(map[string]string, len(dataset.CategoricalColumns)),
	}
	for _, col := range dataset.CategoricalColumns {
		l.ITOS[col] = filepath.Join(dir, col+"_itos.json")
		l.STOI[col] = filepath.Join(dir, col+"_stoi.json")
	}
	return l
}

// Files lists the thirteen store files in write order: the table, then the
// itos and stoi file of each categorical column.
func (l Layout) Files() []string {
	out := []string{l.Table}
	for _, col := range dataset.CategoricalColumns {
		out = append(out, l.ITOS[col], l.STOI[col])
	}
	return out
}

// Exists reports whether dir holds the table and all twelve lookup files.
// Every file is checked even after one is found missing.
func Exists(dir string) bool {
	ok := true
	for _, p := range Paths(dir).Files() {
		ok = utils.FileExists(p) && ok
	}
	return ok
}

// Missing returns the base names of the store files absent from dir.
func Missing(dir string) []string {
	var out []string
	for _, p := range Paths(dir).Files() {
		if !utils.FileExists(p) {
			out = append(out, filepath.Base(p))
		}
	}
	return out
}

// Lookups splits per-column vocabularies into the itos and stoi maps Write
// expects.
func Lookups(vocabs map[string]*categorical.Vocab) (map[string]map[int]string, map[string]map[string]int) {
	itos := make(map[string]map[int]string, len(vocabs))
	stoi := make(map[string]map[string]int, len(vocabs))
	for col, v := range vocabs {
		itos[col] = v.ITOS()
		stoi[col] = v.STOI()
	}
	return itos, stoi
}

// Write creates dir if needed and writes the table followed by the itos and
// stoi file of each categorical column. Each file is replaced atomically but
// the set is not: a failure part way leaves the earlier files in place.
func Write(dir string, t dataset.EncodedTable, itos map[string]map[int]string, stoi map[string]map[string]int) error {
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	l := Paths(dir)
	b, err := encodeTable(t)
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(l.Table, b); err != nil {
		return fmt.Errorf("write %s: %w", TableFile, err)
	}
	for _, col := range dataset.CategoricalColumns {
		is, ok := itos[col]
		if !ok {
			return fmt.Errorf("no itos table for column %s", col)
		}
		si, ok := stoi[col]
		if !ok {
			return fmt.Errorf("no stoi table for column %s", col)
		}
		if err := writeLookup(l.ITOS[col], itosEntries(is)); err != nil {
			return err
		}
		if err := writeLookup(l.STOI[col], stoiEntries(si)); err != nil {
			return err
		}
	}
	return nil
}

func encodeTable(t dataset.EncodedTable) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(dataset.OutputColumns); err != nil {
		return nil, fmt.Errorf("encode table header: %w", err)
	}
	rec := make([]string, len(dataset.OutputColumns))
	for _, r := range t.Rows {
		rec[0] = strconv.Itoa(r.PipelineName)
		rec[1] = strconv.Itoa(r.LocName)
		rec[2] = strconv.Itoa(r.ConnectingEntity)
		rec[3] = strconv.Itoa(r.RecDelSign)
		rec[4] = strconv.Itoa(r.CategoryShort)
		rec[5] = strconv.Itoa(r.StateAbb)
		rec[6] = strconv.Itoa(r.CountyName)
		rec[7] = strconv.Itoa(r.Year)
		rec[8] = strconv.Itoa(r.Month)
		rec[9] = strconv.Itoa(r.DayOfMonth)
		rec[10] = formatQuantity(r.ScheduledQuantity)
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("encode table row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}
	return buf.Bytes(), nil
}

// formatQuantity keeps a decimal point on whole numbers so readers infer a
// float column.
func formatQuantity(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

type entry struct {
	key string
	val any
}

func itosEntries(m map[int]string) []entry {
	codes := make([]int, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	out := make([]entry, len(codes))
	for i, c := range codes {
		out[i] = entry{key: strconv.Itoa(c), val: m[c]}
	}
	return out
}

func stoiEntries(m map[string]int) []entry {
	out := make([]entry, 0, len(m))
	for s, c := range m {
		out = append(out, entry{key: s, val: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].val.(int) < out[j].val.(int) })
	return out
}

func writeLookup(path string, entries []entry) error {
	b, err := encodeObject(entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// encodeObject renders entries as a JSON object indented by four spaces,
// keeping the given key order. encoding/json would sort the keys as strings,
// which puts "10" before "2".
func encodeObject(entries []entry) ([]byte, error) {
	if len(entries) == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, e := range entries {
		k, err := marshal(e.key)
		if err != nil {
			return nil, err
		}
		v, err := marshal(e.val)
		if err != nil {
			return nil, err
		}
		buf.WriteString("    ")
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(v)
		if i < len(entries)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ReadLookup decodes a lookup file into a generic mapping. Numbers are kept
// as json.Number so integer codes survive re-encoding unchanged.
func ReadLookup(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lookup: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// LoadVocab rebuilds the vocabulary of column from its stoi file.
func LoadVocab(dir, column string) (*categorical.Vocab, error) {
	p, ok := Paths(dir).STOI[column]
	if !ok {
		return nil, fmt.Errorf("%s is not a categorical column", column)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read stoi: %w", err)
	}
	var stoi map[string]int
	if err := json.Unmarshal(b, &stoi); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(p), err)
	}
	v, err := categorical.FromSTOI(stoi)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
	}
	return v, nil
}
