package protocol

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// TypeOIDs maps between a type name and its corresponding OID
var TypeOIDs = map[string]uint32{
	"BOOL":        pgtype.BoolOID,
	"BYTEA":       pgtype.ByteaOID,
	"CHAR":        pgtype.QCharOID,
	"NAME":        pgtype.NameOID,
	"INT8":        pgtype.Int8OID,
	"INT2":        pgtype.Int2OID,
	"INT4":        pgtype.Int4OID,
	"TEXT":        pgtype.TextOID,
	"OID":         pgtype.OIDOID,
	"JSON":        pgtype.JSONOID,
	"FLOAT4":      pgtype.Float4OID,
	"FLOAT8":      pgtype.Float8OID,
	"BPCHAR":      pgtype.BPCharOID,
	"VARCHAR":     pgtype.VarcharOID,
	"DATE":        pgtype.DateOID,
	"TIME":        pgtype.TimeOID,
	"TIMESTAMP":   pgtype.TimestampOID,
	"TIMESTAMPTZ": pgtype.TimestamptzOID,
	"INTERVAL":    pgtype.IntervalOID,
	"NUMERIC":     pgtype.NumericOID,
	"UUID":        pgtype.UUIDOID,
	"JSONB":       pgtype.JSONBOID,
}

// fixed wire sizes per OID; everything else is variable-width (-1)
var typeSizes = map[uint32]int16{
	pgtype.BoolOID:        1,
	pgtype.QCharOID:       1,
	pgtype.Int2OID:        2,
	pgtype.Int4OID:        4,
	pgtype.Int8OID:        8,
	pgtype.OIDOID:         4,
	pgtype.Float4OID:      4,
	pgtype.Float8OID:      8,
	pgtype.DateOID:        4,
	pgtype.TimeOID:        8,
	pgtype.TimestampOID:   8,
	pgtype.TimestamptzOID: 8,
	pgtype.IntervalOID:    16,
	pgtype.UUIDOID:        16,
}

// OIDForType resolves a type name to its OID, defaulting to TEXT for names
// the table doesn't know.
func OIDForType(name string) uint32 {
	if oid, ok := TypeOIDs[strings.ToUpper(name)]; ok {
		return oid
	}
	return pgtype.TextOID
}

// TypeSize returns the fixed wire size of the given type, or -1 when it is
// variable-width.
func TypeSize(oid uint32) int16 {
	if size, ok := typeSizes[oid]; ok {
		return size
	}
	return -1
}
