package dataset

import "database/sql"

// Source column names.
const (
	ColPipelineName      = "pipeline_name"
	ColLocName           = "loc_name"
	ColConnectingEntity  = "connecting_entity"
	ColRecDelSign        = "rec_del_sign"
	ColCategoryShort     = "category_short"
	ColStateAbb          = "state_abb"
	ColCountyName        = "county_name"
	ColEffGasDay         = "eff_gas_day"
	ColScheduledQuantity = "scheduled_quantity"

	// Derived from eff_gas_day.
	ColYear       = "year"
	ColMonth      = "month"
	ColDayOfMonth = "day_of_month"
)

// RequiredColumns must be present in every source file.
var RequiredColumns = []string{
	ColPipelineName, ColLocName, ColConnectingEntity, ColRecDelSign, ColCategoryShort,
	ColStateAbb, ColCountyName, ColEffGasDay, ColScheduledQuantity,
}

// CategoricalColumns are numericalized, in the order their lookup files are
// written and checked.
var CategoricalColumns = []string{
	ColPipelineName, ColLocName, ColConnectingEntity, ColCategoryShort, ColStateAbb, ColCountyName,
}

// OutputColumns is the header of the cleaned table.
var OutputColumns = []string{
	ColPipelineName, ColLocName, ColConnectingEntity, ColRecDelSign, ColCategoryShort,
	ColStateAbb, ColCountyName, ColYear, ColMonth, ColDayOfMonth, ColScheduledQuantity,
}

// RawRow is one source row before cleaning. Every null representation the
// loaders understand is normalized to Valid == false.
type RawRow struct {
	PipelineName      sql.NullString
	LocName           sql.NullString
	ConnectingEntity  sql.NullString
	RecDelSign        sql.NullFloat64
	CategoryShort     sql.NullString
	StateAbb          sql.NullString
	CountyName        sql.NullString
	EffGasDay         sql.NullTime
	ScheduledQuantity sql.NullFloat64
}

// Record is one complete row of the cleaned table.
type Record struct {
	PipelineName      string
	LocName           string
	ConnectingEntity  string
	RecDelSign        int
	CategoryShort     string
	StateAbb          string
	CountyName        string
	Year              int
	Month             int
	DayOfMonth        int
	ScheduledQuantity float64
}

// Category returns the value of a categorical column.
func (r *Record) Category(col string) (string, bool) {
	switch col {
	case ColPipelineName:
		return r.PipelineName, true
	case ColLocName:
		return r.LocName, true
	case ColConnectingEntity:
		return r.ConnectingEntity, true
	case ColCategoryShort:
		return r.CategoryShort, true
	case ColStateAbb:
		return r.StateAbb, true
	case ColCountyName:
		return r.CountyName, true
	}
	return "", false
}

// EncodedRecord is a Record whose categorical columns hold integer codes.
type EncodedRecord struct {
	PipelineName      int
	LocName           int
	ConnectingEntity  int
	RecDelSign        int
	CategoryShort     int
	StateAbb          int
	CountyName        int
	Year              int
	Month             int
	DayOfMonth        int
	ScheduledQuantity float64
}

func (r *EncodedRecord) setCode(col string, code int) {
	switch col {
	case ColPipelineName:
		r.PipelineName = code
	case ColLocName:
		r.LocName = code
	case ColConnectingEntity:
		r.ConnectingEntity = code
	case ColCategoryShort:
		r.CategoryShort = code
	case ColStateAbb:
		r.StateAbb = code
	case ColCountyName:
		r.CountyName = code
	}
}

// Table is the cleaned, still string-valued table.
type Table struct {
	Rows []Record
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Column returns the values of a categorical column in row order.
func (t Table) Column(col string) []string {
	out := make([]string, 0, len(t.Rows))
	for i := range t.Rows {
		if v, ok := t.Rows[i].Category(col); ok {
			out = append(out, v)
		}
	}
	return out
}

// EncodedTable is the table written to disk.
type EncodedTable struct {
	Rows []EncodedRecord
}

// Len returns the number of rows.
func (t EncodedTable) Len() int { return len(t.Rows) }
