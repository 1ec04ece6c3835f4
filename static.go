package pgwire

import (
	"context"
	"database/sql/driver"
	"io"
)

// StaticSource is a Queryer that answers every statement with the same fixed
// result set. It is mainly useful for demos and tests, but also as a template
// for real backends: implement Queryer, return a driver.Rows, and the engine
// does the rest.
type StaticSource struct {
	cols  []string
	types []string
	data  [][]driver.Value
}

// NewStaticSource creates a StaticSource serving the provided columns and
// rows. types names the column types ("INT4", "TEXT", ...); a nil or short
// types slice leaves the remaining columns as TEXT.
func NewStaticSource(cols, types []string, data [][]driver.Value) *StaticSource {
	return &StaticSource{cols: cols, types: types, data: data}
}

// Query implements Queryer. Each call returns a fresh iterator over the full
// data set, so concurrent sessions don't share a read position.
func (s *StaticSource) Query(ctx context.Context, sql string) (Rows, error) {
	return &staticRows{source: s}, nil
}

type staticRows struct {
	source *StaticSource
	pos    int
}

func (r *staticRows) Columns() []string { return r.source.cols }

func (r *staticRows) ColumnTypeDatabaseTypeName(index int) string {
	if index < len(r.source.types) {
		return r.source.types[index]
	}
	return "TEXT"
}

func (r *staticRows) Close() error {
	r.pos = len(r.source.data)
	return nil
}

func (r *staticRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.source.data) {
		return io.EOF
	}
	copy(dest, r.source.data[r.pos])
	r.pos++
	return nil
}
