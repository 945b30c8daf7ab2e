// Package dataset loads pipeline gas-flow records and turns them into the
// cleaned, numericalized table handed to the query agent.
package dataset

import (
	"math"

	"github.com/KaramelBytes/pipeflow-cli/internal/categorical"
)

// CleanResult is the outcome of Clean.
type CleanResult struct {
	Table   Table
	Dropped int
}

// Clean keeps the allow-listed columns, derives year, month and day of month
// from eff_gas_day, and drops every row with a missing field. Row order is
// preserved.
func Clean(rows []RawRow) CleanResult {
	out := CleanResult{Table: Table{Rows: make([]Record, 0, len(rows))}}
	for i := range rows {
		rec, ok := complete(&rows[i])
		if !ok {
			out.Dropped++
			continue
		}
		out.Table.Rows = append(out.Table.Rows, rec)
	}
	return out
}

func complete(r *RawRow) (Record, bool) {
	if !r.PipelineName.Valid || !r.LocName.Valid || !r.ConnectingEntity.Valid ||
		!r.RecDelSign.Valid || !r.CategoryShort.Valid || !r.StateAbb.Valid ||
		!r.CountyName.Valid || !r.EffGasDay.Valid || !r.ScheduledQuantity.Valid {
		return Record{}, false
	}
	day := r.EffGasDay.Time
	return Record{
		PipelineName:      r.PipelineName.String,
		LocName:           r.LocName.String,
		ConnectingEntity:  r.ConnectingEntity.String,
		RecDelSign:        int(math.Round(r.RecDelSign.Float64)),
		CategoryShort:     r.CategoryShort.String,
		StateAbb:          r.StateAbb.String,
		CountyName:        r.CountyName.String,
		Year:              day.Year(),
		Month:             int(day.Month()),
		DayOfMonth:        day.Day(),
		ScheduledQuantity: r.ScheduledQuantity.Float64,
	}, true
}

// Numericalize encodes each categorical column independently and returns the
// encoded table with one vocabulary per column.
func Numericalize(t Table) (EncodedTable, map[string]*categorical.Vocab) {
	enc := EncodedTable{Rows: make([]EncodedRecord, len(t.Rows))}
	for i, r := range t.Rows {
		enc.Rows[i] = EncodedRecord{
			RecDelSign:        r.RecDelSign,
			Year:              r.Year,
			Month:             r.Month,
			DayOfMonth:        r.DayOfMonth,
			ScheduledQuantity: r.ScheduledQuantity,
		}
	}
	vocabs := make(map[string]*categorical.Vocab, len(CategoricalColumns))
	for _, col := range CategoricalColumns {
		codes, v := categorical.Encode(t.Column(col))
		for i, c := range codes {
			enc.Rows[i].setCode(col, c)
		}
		vocabs[col] = v
	}
	return enc, vocabs
}
