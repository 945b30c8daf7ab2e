package dataset

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/google/go-cmp/cmp"
)

const sampleCSV = "pipeline_name,loc_name,connecting_entity,rec_del_sign,category_short,state_abb,county_name,latitude,eff_gas_day,scheduled_quantity\n" +
	"Transco,Station 65,Sabine,1,Interconnect,LA,Calcasieu,30.2,2022-01-03,1500.5\n" +
	"ANR Pipeline,Defiance,Vector,-1,LDC,OH,Defiance,41.3,2022-02-14,\n" +
	"El Paso,Waha,Permian Hwy,1,Production,TX,Pecos,31.1,2023-12-31,250\n" +
	"Transco,Station 85,NA,-1,Storage,AL,Choctaw,32.0,2022-07-04,10\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadCSVAndClean(t *testing.T) {
	p := writeFile(t, "pipeline_data.csv", sampleCSV)

	raw, err := Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(raw) != 4 {
		t.Fatalf("expected 4 raw rows, got %d", len(raw))
	}
	if raw[1].ScheduledQuantity.Valid {
		t.Fatalf("empty scheduled_quantity should be missing")
	}
	if raw[3].ConnectingEntity.Valid {
		t.Fatalf("NA connecting_entity should be missing")
	}

	res := Clean(raw)
	if res.Dropped != 2 {
		t.Fatalf("expected 2 dropped rows, got %d", res.Dropped)
	}
	want := []Record{
		{PipelineName: "Transco", LocName: "Station 65", ConnectingEntity: "Sabine", RecDelSign: 1,
			CategoryShort: "Interconnect", StateAbb: "LA", CountyName: "Calcasieu",
			Year: 2022, Month: 1, DayOfMonth: 3, ScheduledQuantity: 1500.5},
		{PipelineName: "El Paso", LocName: "Waha", ConnectingEntity: "Permian Hwy", RecDelSign: 1,
			CategoryShort: "Production", StateAbb: "TX", CountyName: "Pecos",
			Year: 2023, Month: 12, DayOfMonth: 31, ScheduledQuantity: 250},
	}
	if diff := cmp.Diff(want, res.Table.Rows); diff != "" {
		t.Fatalf("cleaned rows mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCSVMissingColumn(t *testing.T) {
	p := writeFile(t, "bad.csv", "pipeline_name,loc_name\nA,B\n")
	_, err := Load(context.Background(), p)
	var mc *MissingColumnError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MissingColumnError, got %v", err)
	}
	if mc.Column != ColConnectingEntity {
		t.Fatalf("unexpected missing column %q", mc.Column)
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	p := writeFile(t, "data.json", "{}")
	if _, err := Load(context.Background(), p); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestCleanDropsAnyMissingField(t *testing.T) {
	full := RawRow{
		PipelineName:      sql.NullString{String: "P", Valid: true},
		LocName:           sql.NullString{String: "L", Valid: true},
		ConnectingEntity:  sql.NullString{String: "C", Valid: true},
		RecDelSign:        sql.NullFloat64{Float64: -1, Valid: true},
		CategoryShort:     sql.NullString{String: "K", Valid: true},
		StateAbb:          sql.NullString{String: "S", Valid: true},
		CountyName:        sql.NullString{String: "Y", Valid: true},
		EffGasDay:         sql.NullTime{Time: time.Date(2022, 5, 6, 0, 0, 0, 0, time.UTC), Valid: true},
		ScheduledQuantity: sql.NullFloat64{Float64: 3, Valid: true},
	}
	clear := []func(*RawRow){
		func(r *RawRow) { r.PipelineName.Valid = false },
		func(r *RawRow) { r.LocName.Valid = false },
		func(r *RawRow) { r.ConnectingEntity.Valid = false },
		func(r *RawRow) { r.RecDelSign.Valid = false },
		func(r *RawRow) { r.CategoryShort.Valid = false },
		func(r *RawRow) { r.StateAbb.Valid = false },
		func(r *RawRow) { r.CountyName.Valid = false },
		func(r *RawRow) { r.EffGasDay.Valid = false },
		func(r *RawRow) { r.ScheduledQuantity.Valid = false },
	}
	rows := []RawRow{full}
	for _, c := range clear {
		r := full
		c(&r)
		rows = append(rows, r)
	}
	res := Clean(rows)
	if res.Table.Len() != 1 || res.Dropped != len(clear) {
		t.Fatalf("expected 1 kept and %d dropped, got %d kept and %d dropped", len(clear), res.Table.Len(), res.Dropped)
	}
	if got := res.Table.Rows[0]; got.Year != 2022 || got.Month != 5 || got.DayOfMonth != 6 || got.RecDelSign != -1 {
		t.Fatalf("unexpected derived fields: %+v", got)
	}
}

func TestNumericalize(t *testing.T) {
	tbl := Table{Rows: []Record{
		{PipelineName: "Transco", LocName: "b", ConnectingEntity: "x", CategoryShort: "B", StateAbb: "TX", CountyName: "k", Year: 2022, ScheduledQuantity: 1},
		{PipelineName: "ANR", LocName: "a", ConnectingEntity: "x", CategoryShort: "A", StateAbb: "LA", CountyName: "k", Year: 2022, ScheduledQuantity: 2},
		{PipelineName: "Transco", LocName: "a", ConnectingEntity: "y", CategoryShort: "A", StateAbb: "TX", CountyName: "j", Year: 2023, ScheduledQuantity: 3},
		{PipelineName: "ANR", LocName: "c", ConnectingEntity: "x", CategoryShort: "C", StateAbb: "OK", CountyName: "j", Year: 2023, ScheduledQuantity: 4},
	}}
	enc, vocabs := Numericalize(tbl)
	if len(vocabs) != len(CategoricalColumns) {
		t.Fatalf("expected %d vocabularies, got %d", len(CategoricalColumns), len(vocabs))
	}
	var cat []int
	for _, r := range enc.Rows {
		cat = append(cat, r.CategoryShort)
	}
	if diff := cmp.Diff([]int{1, 0, 0, 2}, cat); diff != "" {
		t.Fatalf("category_short codes (-want +got):\n%s", diff)
	}
	for i, r := range enc.Rows {
		orig := tbl.Rows[i]
		if s, _ := vocabs[ColPipelineName].Value(r.PipelineName); s != orig.PipelineName {
			t.Fatalf("row %d pipeline decode %q != %q", i, s, orig.PipelineName)
		}
		if s, _ := vocabs[ColStateAbb].Value(r.StateAbb); s != orig.StateAbb {
			t.Fatalf("row %d state decode %q != %q", i, s, orig.StateAbb)
		}
		if r.Year != orig.Year || r.ScheduledQuantity != orig.ScheduledQuantity {
			t.Fatalf("row %d numeric fields not carried over: %+v", i, r)
		}
	}
}

func TestLoadParquet(t *testing.T) {
	p := filepath.Join(t.TempDir(), "pipeline_data.parquet")
	writeParquetFixture(t, p)

	raw, err := Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load parquet: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("expected 3 raw rows, got %d", len(raw))
	}
	res := Clean(raw)
	if res.Dropped != 1 {
		t.Fatalf("expected the row without scheduled_quantity to be dropped, got %d dropped", res.Dropped)
	}
	for _, r := range res.Table.Rows {
		if r.LocName == "Defiance" {
			t.Fatalf("row missing scheduled_quantity survived: %+v", r)
		}
	}
	first := res.Table.Rows[0]
	if first.Year != 2022 || first.Month != 1 || first.DayOfMonth != 3 || first.RecDelSign != 1 {
		t.Fatalf("unexpected first row: %+v", first)
	}
	if !strings.HasPrefix(res.Table.Rows[1].PipelineName, "El Paso") {
		t.Fatalf("unexpected second row: %+v", res.Table.Rows[1])
	}
}

func writeParquetFixture(t *testing.T, path string) {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: ColPipelineName, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: ColLocName, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: ColConnectingEntity, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: ColRecDelSign, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: ColCategoryShort, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: ColStateAbb, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: ColCountyName, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "latitude", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: ColEffGasDay, Type: arrow.FixedWidthTypes.Date32, Nullable: true},
		{Name: ColScheduledQuantity, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).AppendValues([]string{"Transco", "ANR Pipeline", "El Paso"}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"Station 65", "Defiance", "Waha"}, nil)
	b.Field(2).(*array.StringBuilder).AppendValues([]string{"Sabine", "Vector", "Permian Hwy"}, nil)
	b.Field(3).(*array.Int64Builder).AppendValues([]int64{1, -1, 1}, nil)
	b.Field(4).(*array.StringBuilder).AppendValues([]string{"Interconnect", "LDC", "Production"}, nil)
	b.Field(5).(*array.StringBuilder).AppendValues([]string{"LA", "OH", "TX"}, nil)
	b.Field(6).(*array.StringBuilder).AppendValues([]string{"Calcasieu", "Defiance", "Pecos"}, nil)
	b.Field(7).(*array.Float64Builder).AppendValues([]float64{30.2, 41.3, 31.1}, nil)
	b.Field(8).(*array.Date32Builder).AppendValues([]arrow.Date32{
		arrow.Date32FromTime(time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)),
		arrow.Date32FromTime(time.Date(2022, 2, 14, 0, 0, 0, 0, time.UTC)),
		arrow.Date32FromTime(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)),
	}, nil)
	b.Field(9).(*array.Float64Builder).AppendValues([]float64{1500.5, 0, 250}, []bool{true, false, true})

	rec := b.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create parquet: %v", err)
	}
	defer f.Close()
	if err := pqarrow.WriteTable(tbl, f, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
}

// pandasStyleTable mimics a pandas export: dictionary-encoded categories,
// timestamp[ns] dates and a float sign column. The third row has a null
// county_name.
func pandasStyleTable(t *testing.T) arrow.Table {
	t.Helper()
	mem := memory.NewGoAllocator()
	dict := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}
	schema := arrow.NewSchema([]arrow.Field{
		{Name: ColPipelineName, Type: dict, Nullable: true},
		{Name: ColLocName, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: ColConnectingEntity, Type: dict, Nullable: true},
		{Name: ColRecDelSign, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: ColCategoryShort, Type: dict, Nullable: true},
		{Name: ColStateAbb, Type: dict, Nullable: true},
		{Name: ColCountyName, Type: dict, Nullable: true},
		{Name: ColEffGasDay, Type: &arrow.TimestampType{Unit: arrow.Nanosecond}, Nullable: true},
		{Name: ColScheduledQuantity, Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	appendDict := func(i int, values ...string) {
		db := b.Field(i).(*array.BinaryDictionaryBuilder)
		for _, v := range values {
			if v == "" {
				db.AppendNull()
				continue
			}
			if err := db.AppendString(v); err != nil {
				t.Fatalf("append %q: %v", v, err)
			}
		}
	}
	appendDict(0, "Transco", "ANR Pipeline", "Transco")
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"Station 65", "Defiance", "Station 85"}, nil)
	appendDict(2, "Sabine", "Vector", "Sabine")
	b.Field(3).(*array.Float64Builder).AppendValues([]float64{1, -1, 1}, nil)
	appendDict(4, "Interconnect", "LDC", "Interconnect")
	appendDict(5, "LA", "OH", "AL")
	appendDict(6, "Calcasieu", "Defiance", "")
	ts := b.Field(7).(*array.TimestampBuilder)
	for _, d := range []time.Time{
		time.Date(2022, 12, 31, 23, 0, 0, 0, time.UTC),
		time.Date(2021, 2, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	} {
		ts.Append(arrow.Timestamp(d.UnixNano()))
	}
	b.Field(8).(*array.Float64Builder).AppendValues([]float64{1500.5, 250, 10}, nil)

	rec := b.NewRecord()
	defer rec.Release()
	return array.NewTableFromRecords(schema, []arrow.Record{rec})
}

var pandasStyleWant = []Record{
	{PipelineName: "Transco", LocName: "Station 65", ConnectingEntity: "Sabine", RecDelSign: 1, CategoryShort: "Interconnect",
		StateAbb: "LA", CountyName: "Calcasieu", Year: 2022, Month: 12, DayOfMonth: 31, ScheduledQuantity: 1500.5},
	{PipelineName: "ANR Pipeline", LocName: "Defiance", ConnectingEntity: "Vector", RecDelSign: -1, CategoryShort: "LDC",
		StateAbb: "OH", CountyName: "Defiance", Year: 2021, Month: 2, DayOfMonth: 3, ScheduledQuantity: 250},
}

func TestRowsFromDictionaryAndTimestampColumns(t *testing.T) {
	tbl := pandasStyleTable(t)
	defer tbl.Release()

	raw, err := rowsFromTable("memory", tbl)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if raw[2].CountyName.Valid {
		t.Fatalf("null dictionary cell read as %q", raw[2].CountyName.String)
	}
	res := Clean(raw)
	if res.Dropped != 1 {
		t.Fatalf("expected 1 dropped row, got %d", res.Dropped)
	}
	if diff := cmp.Diff(pandasStyleWant, res.Table.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadParquetDictionaryAndTimestamp(t *testing.T) {
	tbl := pandasStyleTable(t)
	defer tbl.Release()

	p := filepath.Join(t.TempDir(), "pipeline_data.parquet")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create parquet: %v", err)
	}
	props := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	if err := pqarrow.WriteTable(tbl, f, 1024, parquet.NewWriterProperties(), props); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close parquet: %v", err)
	}

	raw, err := Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load parquet: %v", err)
	}
	res := Clean(raw)
	if res.Dropped != 1 {
		t.Fatalf("expected 1 dropped row, got %d", res.Dropped)
	}
	if diff := cmp.Diff(pandasStyleWant, res.Table.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}
