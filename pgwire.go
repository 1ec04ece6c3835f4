// Package pgwire implements the server side of the PostgreSQL frontend/
// backend wire protocol (version 3.0), letting an arbitrary data source
// masquerade as a real PostgreSQL server to unmodified client libraries.
//
// The protocol engine owns connection lifecycle, framing and the per-
// connection state machine; actual query results come from a pluggable
// Queryer implementation.
package pgwire

import (
	"context"
	"database/sql/driver"
	"net"
)

// Rows is the lazy row iterator a Queryer returns for a result set. It is the
// standard library's driver.Rows; implementations may additionally provide
// driver.RowsColumnTypeDatabaseTypeName to report typed columns — columns
// without a type name are described (and rendered) as TEXT.
type Rows driver.Rows

// Queryer resolves a statement into a result set. The engine forwards the
// statement text verbatim: one statement per Query message, no dialect
// assumptions. A (nil, nil) return means the statement produced no result
// set (no RowDescription is emitted, only a command tag).
//
// For statements executed through the extended protocol, the bound parameter
// values and their format codes are available on the context via
// ParamsFromContext and ParamFormatsFromContext.
type Queryer interface {
	Query(ctx context.Context, sql string) (Rows, error)
}

// Session provides an access to the connection-scoped arguments negotiated
// during startup (user, database, application_name, ...).
type Session interface {
	Set(k string, v interface{})
	Get(k string) interface{}
	Del(k string)
	All() map[string]interface{}
}

// Server is an interface for objects capable of handling the postgres
// protocol by serving client connections. Each connection is assigned a
// Session that's maintained in-memory until the connection is closed.
type Server interface {
	Queryer

	// Listen accepts connections on the provided address. It blocks; run in
	// a goroutine.
	Listen(laddr string) error

	// Manually serve a connection. This function is called internally by
	// Listen(), but can also be called directly.
	Serve(net.Conn) error
}

type ctxKey int

const (
	sqlCtxKey ctxKey = iota
	paramsCtxKey
	paramFormatsCtxKey
)

// QueryFromContext returns the raw statement text as saved in the given context
func QueryFromContext(ctx context.Context) string {
	sql, _ := ctx.Value(sqlCtxKey).(string)
	return sql
}

// ParamsFromContext returns the bound parameter values as saved in the given
// context, or nil outside of the extended protocol
func ParamsFromContext(ctx context.Context) [][]byte {
	params, _ := ctx.Value(paramsCtxKey).([][]byte)
	return params
}

// ParamFormatsFromContext returns the format codes (0=text, 1=binary) of the
// bound parameters, following the protocol's expansion rule: empty means all
// text, a single code applies to every parameter.
func ParamFormatsFromContext(ctx context.Context) []int16 {
	formats, _ := ctx.Value(paramFormatsCtxKey).([]int16)
	return formats
}
