package protocol

import (
	"io"

	"github.com/jackc/pgx/v5/pgproto3"
)

// DefaultMaxMessageSize caps the declared body length of a typed frontend
// message. A frame announcing more than this is a protocol violation; without
// the cap a single garbled length field could force an arbitrary allocation.
const DefaultMaxMessageSize = 8 << 20

// NewTransport creates a Transport for a connection that has already passed
// the startup handshake.
func NewTransport(rw io.ReadWriter) *Transport {
	return &Transport{
		w:      rw,
		r:      newReader(rw),
		status: TxIdle,
	}
}

// Transport manages the underlying wire protocol between backend and frontend.
type Transport struct {
	w      io.Writer
	r      *reader
	batch  *batch
	status byte
}

// SetMaxMessageSize overrides DefaultMaxMessageSize for this connection.
func (t *Transport) SetMaxMessageSize(n int) {
	t.r.maxSize = n
}

// SetStatus changes the transaction status reported in ReadyForQuery.
func (t *Transport) SetStatus(status byte) { t.status = status }

// Status returns the transaction status currently reported in ReadyForQuery.
func (t *Transport) Status() byte { return t.status }

// InBatch reports whether an extended-query sequence is currently buffering
// responses, i.e. a Parse/Bind/Describe/Execute/Close arrived and no Sync
// closed the round yet.
func (t *Transport) InBatch() bool { return t.batch != nil }

func (t *Transport) beginBatch() {
	t.batch = &batch{transport: t, out: []Message{}}
}

func (t *Transport) endBatch() (err error) {
	err = t.batch.flush()
	t.batch = nil
	return
}

// NextFrontendMessage reads and returns a single decoded message from the
// connection when available. If within a batch, the batch will read from the
// connection, otherwise a ReadyForQuery message will first be sent to the
// frontend and then a single message will be read from the connection.
//
// NextFrontendMessage expects to be called only after the startup handshake
// completed without an error response.
func (t *Transport) NextFrontendMessage() (msg pgproto3.FrontendMessage, err error) {
	if t.batch != nil {
		msg, err = t.batch.next()
	} else {
		// when not in a batch, the client waits for ReadyForQuery before
		// sending its next message
		err = t.write(ReadyForQuery(t.status))
		if err != nil {
			return
		}
		msg, err = t.r.readFrontendMessage()
	}
	if err != nil {
		return
	}

	if t.batch == nil {
		switch msg.(type) {
		case *pgproto3.Parse, *pgproto3.Bind, *pgproto3.Describe, *pgproto3.Execute, *pgproto3.Close:
			t.beginBatch()
		}
	} else {
		switch msg.(type) {
		case *pgproto3.Query, *pgproto3.Sync:
			err = t.endBatch()
		}
	}

	return
}

// Flush delivers the responses buffered so far without closing the batch, so
// clients that pipeline on Flush alone don't wait for Sync. Outside a batch
// there is nothing buffered and Flush is a no-op.
func (t *Transport) Flush() error {
	if t.batch != nil {
		return t.batch.flush()
	}
	return nil
}

// Write writes the provided message to the client connection
func (t *Transport) Write(m Message) error {
	if t.batch != nil {
		return t.batch.write(m)
	}
	return t.write(m)
}

func (t *Transport) write(m Message) error {
	_, err := t.w.Write(m)
	return err
}

func newReader(r io.Reader) *reader {
	return &reader{r: r, maxSize: DefaultMaxMessageSize}
}

type reader struct {
	r           io.Reader
	maxSize     int
	frontReader *pgproto3.Backend
}

// readFrontendMessage reads and returns a single decoded typed message from
// the connection.
func (r *reader) readFrontendMessage() (pgproto3.FrontendMessage, error) {
	if r.frontReader == nil {
		r.frontReader = pgproto3.NewBackend(r.r, nil)
		r.frontReader.SetMaxBodyLen(r.maxSize)
	}
	msg, err := r.frontReader.Receive()
	if err != nil {
		if _, ok := err.(*pgproto3.ExceededMaxBodyLenErr); ok {
			return nil, protocolErrorf("frontend message exceeds maximum size %d", r.maxSize)
		}
		return nil, err
	}
	return msg, nil
}
