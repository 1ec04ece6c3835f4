package pgwire

import (
	"database/sql/driver"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/snoe925/pgwire/protocol"
)

// Cursor adapts a backend Rows iterator to the wire: it owns the column
// descriptors, encodes values per the requested format codes and counts the
// rows it delivered so far for the final command tag.
type Cursor struct {
	rows    Rows
	columns []protocol.Column
	row     []driver.Value
	typeMap *pgtype.Map
	count   int
	eof     bool
}

// newCursor derives the column descriptors from the rows iterator.
// resultFormats follows the protocol's expansion rule: empty means all-text,
// a single code applies to every column.
func newCursor(rows Rows, resultFormats []int16) *Cursor {
	names := rows.Columns()
	typed, _ := rows.(driver.RowsColumnTypeDatabaseTypeName)
	formats := expandFormats(resultFormats, len(names))

	columns := make([]protocol.Column, len(names))
	for i, name := range names {
		oid := uint32(pgtype.TextOID)
		if typed != nil {
			oid = protocol.OIDForType(typed.ColumnTypeDatabaseTypeName(i))
		}
		columns[i] = protocol.Column{
			Name:         name,
			TypeOID:      oid,
			TypeSize:     protocol.TypeSize(oid),
			TypeModifier: -1,
			Format:       formats[i],
		}
	}

	return &Cursor{
		rows:    rows,
		columns: columns,
		row:     make([]driver.Value, len(names)),
		typeMap: pgtype.NewMap(),
	}
}

// Fetch delivers up to n rows (0 = all remaining) as DataRow messages. It
// returns the number of rows written in this call; c.eof reports whether the
// iterator was exhausted.
func (c *Cursor) Fetch(n int, w protocol.MessageWriter) (count int, err error) {
	for (n == 0 || count < n) && !c.eof {
		err = c.rows.Next(c.row)
		if err == io.EOF {
			c.eof = true
			err = nil
			break
		}
		if err != nil {
			return count, err
		}

		vals := make([][]byte, len(c.columns))
		for i, col := range c.columns {
			vals[i], err = c.encode(col, c.row[i])
			if err != nil {
				return count, err
			}
		}

		err = w.Write(protocol.DataRow(vals))
		if err != nil {
			return count, err
		}
		count++
	}

	c.count += count
	return count, nil
}

// encode renders one value in the column's declared type and format. Values
// the type map can't handle are rendered with their default textual form;
// a binary-format column has no such fallback and fails the fetch.
func (c *Cursor) encode(col protocol.Column, v driver.Value) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	buf, err := c.typeMap.Encode(col.TypeOID, col.Format, v, nil)
	if err == nil {
		return buf, nil
	}
	if col.Format == protocol.BinaryFormat {
		return nil, fmt.Errorf("cannot encode %T in binary format: %w", v, err)
	}
	return []byte(fmt.Sprintf("%v", v)), nil
}

// Tag returns the command tag for the provided statement, reflecting the
// total rows delivered through this cursor.
func (c *Cursor) Tag(sql string) string {
	return commandTag(sql, c.count)
}

// Close releases the underlying rows iterator.
func (c *Cursor) Close() error {
	return c.rows.Close()
}

// expandFormats applies the protocol's format-code expansion rule for n
// columns.
func expandFormats(formats []int16, n int) []int16 {
	res := make([]int16, n)
	switch len(formats) {
	case 0:
		// all text
	case 1:
		for i := range res {
			res[i] = formats[0]
		}
	default:
		copy(res, formats)
	}
	return res
}

func isEmptyStatement(sql string) bool {
	return strings.TrimSpace(sql) == ""
}

// commandTag derives the CommandComplete tag from the statement's leading
// keyword. Unknown statements are tagged as SELECT, which is what generic
// clients expect of a row-returning source.
func commandTag(sql string, rows int) string {
	verb := strings.ToUpper(firstWord(sql))
	switch verb {
	case "", "SELECT":
		return fmt.Sprintf("SELECT %d", rows)
	case "INSERT":
		// the middle digit is the inserted row's OID, always 0 since 12
		return fmt.Sprintf("INSERT 0 %d", rows)
	case "UPDATE", "DELETE", "FETCH", "MOVE", "COPY":
		return fmt.Sprintf("%s %d", verb, rows)
	default:
		return verb
	}
}

func firstWord(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
