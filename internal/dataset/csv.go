package dataset

import (
	"context"
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

type csvSource struct{}

func (csvSource) CanRead(path string) bool {
	return hasSuffixFold(path, ".csv", ".tsv")
}

// Read loads every column as text and converts the required ones. Type
// detection is disabled so that codes like "01" keep their spelling.
func (csvSource) Read(ctx context.Context, path string) ([]RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	delim := ','
	if hasSuffixFold(path, ".tsv") {
		delim = '\t'
	}
	df := dataframe.ReadCSV(f,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(NullMarkers),
		dataframe.WithDelimiter(delim),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	present := make(map[string]bool, df.Ncol())
	for _, n := range df.Names() {
		present[n] = true
	}
	rows := make([]RawRow, df.Nrow())
	for _, name := range RequiredColumns {
		if !present[name] {
			return nil, &MissingColumnError{Path: path, Column: name}
		}
		col := df.Col(name)
		vals := col.Records()
		nan := col.IsNaN()
		for i := range rows {
			if nan[i] {
				// zero value already means missing
				continue
			}
			assignText(&rows[i], name, vals[i])
		}
	}
	return rows, nil
}

func assignText(r *RawRow, col, v string) {
	if field, ok := stringFields[col]; ok {
		*field(r) = parseString(v)
		return
	}
	if field, ok := floatFields[col]; ok {
		*field(r) = parseFloat(v)
		return
	}
	if col == ColEffGasDay {
		r.EffGasDay = parseDate(v)
	}
}
