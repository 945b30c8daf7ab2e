package dataset

import (
	"database/sql"
	"math"
	"strconv"
	"strings"
	"time"
)

// NullMarkers are the text spellings treated as a missing value.
var NullMarkers = []string{"", "NA", "N/A", "NaN", "nan", "NaT", "null", "NULL", "None"}

var dateLayouts = []string{
	time.RFC3339Nano, time.RFC3339,
	"2006-01-02", "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05",
	"2006-01-02 15:04", "2006/01/02", "01/02/2006", "1/2/2006", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

func isNullMarker(s string) bool {
	s = strings.TrimSpace(s)
	for _, m := range NullMarkers {
		if s == m {
			return true
		}
	}
	return false
}

func parseString(s string) sql.NullString {
	if isNullMarker(s) {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseFloat(s string) sql.NullFloat64 {
	if isNullMarker(s) {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return validFloat(f)
}

func validFloat(f float64) sql.NullFloat64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func parseDate(s string) sql.NullTime {
	if isNullMarker(s) {
		return sql.NullTime{}
	}
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return sql.NullTime{Time: t, Valid: true}
		}
	}
	return sql.NullTime{}
}
