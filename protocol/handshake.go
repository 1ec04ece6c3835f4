package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// bounds for the length field of the untyped startup frame. The upper bound
// matches the sanity limit the real server applies before allocating.
const (
	minStartupLength = 8
	maxStartupLength = 10000
)

func NewHandshake(rw io.ReadWriter) *Handshake {
	return &Handshake{rw: rw}
}

// Handshake handles the very first message passing of the protocol
type Handshake struct {
	rw     io.ReadWriter
	passed bool
}

// Write implements MessageReadWriter
func (h *Handshake) Write(m Message) error {
	_, err := h.rw.Write(m)
	return err
}

// Read implements MessageReadWriter
func (h *Handshake) Read() (Message, error) {
	if h.passed {
		return h.readTypedMessage()
	}
	return h.readRawMessage(minStartupLength, maxStartupLength)
}

// Init receives and validates the very first messages from the frontend per
// session. SSLRequest and GSSENCRequest are each refused with a single 'N'
// byte, after which the frontend is expected to retry with a plain startup
// message; Init loops until a real StartupMessage (or a CancelRequest, which
// is returned as-is) arrives.
//
// once done, Init must not be called again, or error will be returned.
func (h *Handshake) Init() (res Message, err error) {
	if h.passed {
		err = fmt.Errorf("handshake already passed")
		return
	}

	for {
		// read the initial connection startup message
		res, err = h.readRawMessage(minStartupLength, maxStartupLength)
		if err != nil {
			return nil, err
		}

		if res.IsCancel() {
			return res, nil
		}

		// see SSLRequest and GSSENCRequest in
		// https://www.postgresql.org/docs/current/protocol-message-formats.html
		if res.IsTLSRequest() || res.IsGSSRequest() {
			// neither TLS nor GSS encryption is offered
			_, err = h.rw.Write(TLSResponse(false))
			if err != nil {
				return nil, err
			}
			continue
		}

		v, err := res.StartupVersion()
		if err != nil {
			return nil, err
		}
		if v != "3.0" {
			return nil, protocolErrorf("unsupported protocol version %s", v)
		}

		h.passed = true
		return res, nil
	}
}

// readTypedMessage reads a typed message exchanged during authentication. The
// startup sanity bounds don't apply here; a password frame can be shorter
// than the smallest startup packet.
func (h *Handshake) readTypedMessage() (Message, error) {
	msgType := Message(make([]byte, 1))
	_, err := h.rw.Read(msgType)
	if err != nil {
		return nil, err
	}

	body, err := h.readRawMessage(4, DefaultMaxMessageSize)
	if err != nil {
		return nil, err
	}
	return append(msgType, body...), nil
}

// readRawMessage reads an un-typed message from the connection. The message is
// comprised of an Int32 body-length (N), inclusive of the length itself
// followed by N-bytes of the actual body.
func (h *Handshake) readRawMessage(minLength, maxLength int) ([]byte, error) {
	// messages starts with an Int32 Length of message contents in bytes,
	// including self.
	lenBytes := make([]byte, 4)
	_, err := io.ReadFull(h.rw, lenBytes)
	if err != nil {
		return nil, err
	}

	// convert the 4-bytes to int
	length := int(binary.BigEndian.Uint32(lenBytes))
	if length < minLength || length > maxLength {
		return nil, protocolErrorf("invalid message length %d", length)
	}

	// read the remaining bytes in the message
	res := make([]byte, length)
	_, err = io.ReadFull(h.rw, res[4:]) // keep 4 bytes for the length
	if err != nil {
		return nil, err
	}

	// append the message content to the length bytes in order to rebuild the
	// original message in its entirety
	copy(res[:4], lenBytes)
	return res, nil
}
