package protocol

import (
	"github.com/jackc/pgx/v5/pgproto3"
)

// batch represents one extended-query round: the responses produced between
// the first Parse/Bind/Describe and the closing Sync apply only on flush.
// Once an ErrorResponse is queued, everything written after it is dropped,
// matching the abort-until-Sync convention of the protocol.
type batch struct {
	transport *Transport
	out       []Message
	failed    bool
}

// next reads the next frontend message of the ongoing batch
func (b *batch) next() (pgproto3.FrontendMessage, error) {
	return b.transport.r.readFrontendMessage()
}

// write queues the provided message into the batch's outgoing buffer
func (b *batch) write(m Message) error {
	if b.failed {
		return nil
	}
	if m.IsError() {
		b.failed = true
	}
	b.out = append(b.out, m)
	return nil
}

func (b *batch) flush() (err error) {
	for len(b.out) > 0 {
		err = b.transport.write(b.out[0])
		if err != nil {
			break
		}
		b.out = b.out[1:]
	}
	return
}
