package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Source reads raw rows from a file format.
type Source interface {
	CanRead(path string) bool
	Read(ctx context.Context, path string) ([]RawRow, error)
}

var sources []Source

// Register adds a source implementation. Later registrations do not shadow
// earlier ones for the same extension.
func Register(s Source) {
	sources = append(sources, s)
}

// ErrUnsupported indicates no registered source understands the file.
var ErrUnsupported = errors.New("unsupported source format")

// Load selects a source by file name and reads every row of the file.
func Load(ctx context.Context, path string) ([]RawRow, error) {
	for _, s := range sources {
		if s.CanRead(path) {
			return s.Read(ctx, path)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

// MissingColumnError reports a required column absent from the source.
type MissingColumnError struct {
	Path   string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: required column %q not found", e.Path, e.Column)
}

func hasSuffixFold(path string, exts ...string) bool {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func init() {
	Register(parquetSource{})
	Register(csvSource{})
}

var stringFields = map[string]func(*RawRow) *sql.NullString{
	ColPipelineName:     func(r *RawRow) *sql.NullString { return &r.PipelineName },
	ColLocName:          func(r *RawRow) *sql.NullString { return &r.LocName },
	ColConnectingEntity: func(r *RawRow) *sql.NullString { return &r.ConnectingEntity },
	ColCategoryShort:    func(r *RawRow) *sql.NullString { return &r.CategoryShort },
	ColStateAbb:         func(r *RawRow) *sql.NullString { return &r.StateAbb },
	ColCountyName:       func(r *RawRow) *sql.NullString { return &r.CountyName },
}

var floatFields = map[string]func(*RawRow) *sql.NullFloat64{
	ColRecDelSign:        func(r *RawRow) *sql.NullFloat64 { return &r.RecDelSign },
	ColScheduledQuantity: func(r *RawRow) *sql.NullFloat64 { return &r.ScheduledQuantity },
}
