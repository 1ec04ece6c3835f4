package protocol

import (
	"bytes"
	"testing"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

// decode parses a backend message the way a real client library would.
func decode(t *testing.T, m Message) pgproto3.BackendMessage {
	t.Helper()
	frontend := pgproto3.NewFrontend(bytes.NewReader(m), nil)
	res, err := frontend.Receive()
	require.NoError(t, err)
	return res
}

func TestReadyForQuery(t *testing.T) {
	require.Equal(t, Message{'Z', 0, 0, 0, 5, 'I'}, ReadyForQuery(TxIdle))

	m := decode(t, ReadyForQuery(TxFailed))
	rfq, ok := m.(*pgproto3.ReadyForQuery)
	require.True(t, ok)
	require.Equal(t, byte('E'), rfq.TxStatus)
}

func TestRowDescription(t *testing.T) {
	msg := RowDescription([]Column{
		{Name: "id", TypeOID: pgtype.Int4OID, TypeSize: 4, TypeModifier: -1},
		{Name: "item", TypeOID: pgtype.TextOID, TypeSize: -1, TypeModifier: -1, Format: BinaryFormat},
	})
	require.Equal(t, byte('T'), msg.Type())

	m := decode(t, msg)
	rd, ok := m.(*pgproto3.RowDescription)
	require.True(t, ok)
	require.Len(t, rd.Fields, 2)

	require.Equal(t, []byte("id"), rd.Fields[0].Name)
	require.Equal(t, uint32(pgtype.Int4OID), rd.Fields[0].DataTypeOID)
	require.Equal(t, int16(4), rd.Fields[0].DataTypeSize)
	require.Equal(t, int16(TextFormat), rd.Fields[0].Format)

	require.Equal(t, []byte("item"), rd.Fields[1].Name)
	require.Equal(t, uint32(pgtype.TextOID), rd.Fields[1].DataTypeOID)
	require.Equal(t, int16(BinaryFormat), rd.Fields[1].Format)
}

func TestDataRow(t *testing.T) {
	m := decode(t, DataRow([][]byte{[]byte("Apple"), nil, {}}))
	dr, ok := m.(*pgproto3.DataRow)
	require.True(t, ok)
	require.Len(t, dr.Values, 3)
	require.Equal(t, []byte("Apple"), dr.Values[0])
	require.Nil(t, dr.Values[1], "nil value must travel as SQL NULL")
	require.Empty(t, dr.Values[2])
}

func TestCommandComplete(t *testing.T) {
	m := decode(t, CommandComplete("SELECT 2"))
	cc, ok := m.(*pgproto3.CommandComplete)
	require.True(t, ok)
	require.Equal(t, []byte("SELECT 2"), cc.CommandTag)
}

type wireErr struct {
	msg      string
	severity string
	code     string
	detail   string
	hint     string
	position int
}

func (e *wireErr) Error() string    { return e.msg }
func (e *wireErr) Severity() string { return e.severity }
func (e *wireErr) Code() string     { return e.code }
func (e *wireErr) Detail() string   { return e.detail }
func (e *wireErr) Hint() string     { return e.hint }
func (e *wireErr) Position() int    { return e.position }

func TestErrorResponse(t *testing.T) {
	t.Run("full fields", func(t *testing.T) {
		src := &wireErr{
			msg:      "everything is broken",
			severity: "FATAL",
			code:     "0A000",
			detail:   "more detail",
			hint:     "try again",
			position: 4,
		}
		msg := ErrorResponse(src)
		require.True(t, msg.IsError())

		m := decode(t, msg)
		er, ok := m.(*pgproto3.ErrorResponse)
		require.True(t, ok)
		require.Equal(t, "FATAL", er.Severity)
		require.Equal(t, "0A000", er.Code)
		require.Equal(t, "everything is broken", er.Message)
		require.Equal(t, "more detail", er.Detail)
		require.Equal(t, "try again", er.Hint)
		require.Equal(t, int32(4), er.Position)
	})

	t.Run("plain error gets defaults", func(t *testing.T) {
		m := decode(t, ErrorResponse(&testErr{msg: "oops"}))
		er, ok := m.(*pgproto3.ErrorResponse)
		require.True(t, ok)
		require.Equal(t, "ERROR", er.Severity)
		require.Equal(t, "XX000", er.Code)
		require.Equal(t, "oops", er.Message)
		require.Empty(t, er.Detail)
	})

	t.Run("negative position is omitted", func(t *testing.T) {
		m := decode(t, ErrorResponse(&wireErr{msg: "oops", position: -1}))
		er := m.(*pgproto3.ErrorResponse)
		require.Equal(t, int32(0), er.Position)
	})
}

func TestNoticeResponse(t *testing.T) {
	m := decode(t, NoticeResponse(&testErr{msg: "heads up"}))
	nr, ok := m.(*pgproto3.NoticeResponse)
	require.True(t, ok)
	require.Equal(t, "NOTICE", nr.Severity)
	require.Equal(t, "heads up", nr.Message)
}

func TestFixedMessages(t *testing.T) {
	require.Equal(t, Message{'I', 0, 0, 0, 4}, EmptyQueryResponse)
	require.Equal(t, Message{'n', 0, 0, 0, 4}, NoData)
}
