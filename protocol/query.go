package protocol

import (
	"fmt"

	"github.com/jackc/pgio"
)

// Column describes a single field of a RowDescription message.
type Column struct {
	Name         string
	TableOID     uint32 // zero when the column is not backed by a table
	Attr         uint16 // zero when the column is not backed by a table
	TypeOID      uint32
	TypeSize     int16 // negative for variable-width types
	TypeModifier int32
	Format       int16 // TextFormat or BinaryFormat
}

// column value format codes
const (
	TextFormat   int16 = 0
	BinaryFormat int16 = 1
)

// ReadyForQuery is sent whenever the backend is ready for a new query cycle,
// carrying the current transaction status.
func ReadyForQuery(status byte) Message {
	return Message{'Z', 0, 0, 0, 5, status}
}

// EmptyQueryResponse substitutes for CommandComplete when a simple Query
// contained only whitespace.
var EmptyQueryResponse = Message{'I', 0, 0, 0, 4}

// NoData is the answer to a Describe of a statement or portal that produces
// no result rows.
var NoData = Message{'n', 0, 0, 0, 4}

// RowDescription is a message indicating that DataRow messages are about to
// be transmitted and delivers their schema (column names/types)
func RowDescription(cols []Column) Message {
	msg := Message{'T'}
	sp := len(msg)
	msg = pgio.AppendInt32(msg, -1)

	msg = pgio.AppendUint16(msg, uint16(len(cols)))
	for _, c := range cols {
		msg = append(msg, c.Name...)
		msg = append(msg, 0) // NULL TERMINATED
		msg = pgio.AppendUint32(msg, c.TableOID)
		msg = pgio.AppendUint16(msg, c.Attr)
		msg = pgio.AppendUint32(msg, c.TypeOID)
		msg = pgio.AppendInt16(msg, c.TypeSize)
		msg = pgio.AppendInt32(msg, c.TypeModifier)
		msg = pgio.AppendInt16(msg, c.Format)
	}

	pgio.SetInt32(msg[sp:], int32(len(msg[sp:])))
	return msg
}

// DataRow is sent for every row of the resulting row set. A nil value encodes
// SQL NULL (length -1, no payload); all other values are length-prefixed.
func DataRow(vals [][]byte) Message {
	msg := Message{'D'}
	sp := len(msg)
	msg = pgio.AppendInt32(msg, -1)

	msg = pgio.AppendUint16(msg, uint16(len(vals)))
	for _, v := range vals {
		if v == nil {
			msg = pgio.AppendInt32(msg, -1)
			continue
		}
		msg = pgio.AppendInt32(msg, int32(len(v)))
		msg = append(msg, v...)
	}

	pgio.SetInt32(msg[sp:], int32(len(msg[sp:])))
	return msg
}

// CommandComplete is sent when a statement was fully executed and the cursor
// reached the end of the row set
func CommandComplete(tag string) Message {
	msg := Message{'C'}
	sp := len(msg)
	msg = pgio.AppendInt32(msg, -1)
	msg = append(msg, tag...)
	msg = append(msg, 0) // NULL TERMINATED

	pgio.SetInt32(msg[sp:], int32(len(msg[sp:])))
	return msg
}

// ErrorResponse is sent whenever an error has occurred
func ErrorResponse(err error) Message {
	return errorFields('E', "ERROR", err)
}

// NoticeResponse delivers a warning the frontend should surface without
// failing the current operation
func NoticeResponse(err error) Message {
	return errorFields('N', "NOTICE", err)
}

// https://www.postgresql.org/docs/current/protocol-error-fields.html
func errorFields(typ byte, severity string, err error) Message {
	msg := Message{typ}
	sp := len(msg)
	msg = pgio.AppendInt32(msg, -1)

	appendField := func(code byte, value string) {
		msg = append(msg, code)
		msg = append(msg, value...)
		msg = append(msg, 0) // NULL TERMINATED
	}

	if e, ok := err.(interface{ Severity() string }); ok && e.Severity() != "" {
		severity = e.Severity()
	}
	appendField('S', severity)

	code := "XX000"
	if e, ok := err.(interface{ Code() string }); ok && e.Code() != "" {
		code = e.Code()
	}
	appendField('C', code)
	appendField('M', err.Error())

	if e, ok := err.(interface{ Detail() string }); ok && e.Detail() != "" {
		appendField('D', e.Detail())
	}
	if e, ok := err.(interface{ Hint() string }); ok && e.Hint() != "" {
		appendField('H', e.Hint())
	}
	if e, ok := err.(interface{ Position() int }); ok && e.Position() >= 0 {
		appendField('P', fmt.Sprintf("%d", e.Position()))
	}

	msg = append(msg, 0) // NULL TERMINATED

	pgio.SetInt32(msg[sp:], int32(len(msg[sp:])))
	return msg
}
