package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

type parquetSource struct{}

func (parquetSource) CanRead(path string) bool {
	return hasSuffixFold(path, ".parquet", ".parq", ".pq")
}

// Read loads the whole file into an arrow table and converts the required
// columns row by row.
func (parquetSource) Read(ctx context.Context, path string) ([]RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	mem := memory.DefaultAllocator
	tbl, err := pqarrow.ReadTable(ctx, f, parquet.NewReaderProperties(mem), pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	defer tbl.Release()
	return rowsFromTable(path, tbl)
}

func rowsFromTable(path string, tbl arrow.Table) ([]RawRow, error) {
	rows := make([]RawRow, int(tbl.NumRows()))
	schema := tbl.Schema()
	for _, name := range RequiredColumns {
		idx := schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, &MissingColumnError{Path: path, Column: name}
		}
		offset := 0
		for _, chunk := range tbl.Column(idx[0]).Data().Chunks() {
			for i := 0; i < chunk.Len(); i++ {
				if err := assignArrow(&rows[offset+i], name, chunk, i); err != nil {
					return nil, fmt.Errorf("column %s row %d: %w", name, offset+i, err)
				}
			}
			offset += chunk.Len()
		}
	}
	return rows, nil
}

func assignArrow(r *RawRow, col string, a arrow.Array, i int) error {
	if field, ok := stringFields[col]; ok {
		v, err := arrowString(a, i)
		*field(r) = v
		return err
	}
	if field, ok := floatFields[col]; ok {
		v, err := arrowFloat(a, i)
		*field(r) = v
		return err
	}
	if col == ColEffGasDay {
		v, err := arrowTime(a, i)
		r.EffGasDay = v
		return err
	}
	return nil
}

// arrowString reads string-like cells. Numeric categories are rendered as
// their shortest decimal text.
func arrowString(a arrow.Array, i int) (sql.NullString, error) {
	if a.IsNull(i) {
		return sql.NullString{}, nil
	}
	switch arr := a.(type) {
	case *array.String:
		return sql.NullString{String: arr.Value(i), Valid: true}, nil
	case *array.LargeString:
		return sql.NullString{String: arr.Value(i), Valid: true}, nil
	case *array.Binary:
		return sql.NullString{String: string(arr.Value(i)), Valid: true}, nil
	case *array.Dictionary:
		return arrowString(arr.Dictionary(), arr.GetValueIndex(i))
	}
	f, err := arrowFloat(a, i)
	if err != nil {
		return sql.NullString{}, err
	}
	if !f.Valid {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: strconv.FormatFloat(f.Float64, 'f', -1, 64), Valid: true}, nil
}

func arrowFloat(a arrow.Array, i int) (sql.NullFloat64, error) {
	if a.IsNull(i) {
		return sql.NullFloat64{}, nil
	}
	switch arr := a.(type) {
	case *array.Float64:
		return validFloat(arr.Value(i)), nil
	case *array.Float32:
		return validFloat(float64(arr.Value(i))), nil
	case *array.Int64:
		return validFloat(float64(arr.Value(i))), nil
	case *array.Int32:
		return validFloat(float64(arr.Value(i))), nil
	case *array.Int16:
		return validFloat(float64(arr.Value(i))), nil
	case *array.Int8:
		return validFloat(float64(arr.Value(i))), nil
	case *array.Uint64:
		return validFloat(float64(arr.Value(i))), nil
	case *array.Uint32:
		return validFloat(float64(arr.Value(i))), nil
	case *array.Uint16:
		return validFloat(float64(arr.Value(i))), nil
	case *array.Uint8:
		return validFloat(float64(arr.Value(i))), nil
	case *array.Boolean:
		if arr.Value(i) {
			return validFloat(1), nil
		}
		return validFloat(0), nil
	case *array.String:
		return parseFloat(arr.Value(i)), nil
	case *array.LargeString:
		return parseFloat(arr.Value(i)), nil
	case *array.Dictionary:
		return arrowFloat(arr.Dictionary(), arr.GetValueIndex(i))
	}
	return sql.NullFloat64{}, fmt.Errorf("unsupported numeric type %s", a.DataType())
}

func arrowTime(a arrow.Array, i int) (sql.NullTime, error) {
	if a.IsNull(i) {
		return sql.NullTime{}, nil
	}
	switch arr := a.(type) {
	case *array.Date32:
		return sql.NullTime{Time: arr.Value(i).ToTime(), Valid: true}, nil
	case *array.Date64:
		return sql.NullTime{Time: arr.Value(i).ToTime(), Valid: true}, nil
	case *array.Timestamp:
		tt := arr.DataType().(*arrow.TimestampType)
		t := arr.Value(i).ToTime(tt.Unit)
		if tt.TimeZone != "" {
			// Calendar fields are taken in the column's own zone.
			if loc, err := time.LoadLocation(tt.TimeZone); err == nil {
				t = t.In(loc)
			}
		}
		return sql.NullTime{Time: t, Valid: true}, nil
	case *array.String:
		return parseDate(arr.Value(i)), nil
	case *array.LargeString:
		return parseDate(arr.Value(i)), nil
	case *array.Dictionary:
		return arrowTime(arr.Dictionary(), arr.GetValueIndex(i))
	}
	return sql.NullTime{}, fmt.Errorf("unsupported date type %s", a.DataType())
}
