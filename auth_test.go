package pgwire

import (
	"crypto/md5"
	"fmt"
	"testing"

	"github.com/snoe925/pgwire/protocol"
	"github.com/stretchr/testify/require"
)

// fakeRW is an in-memory MessageReadWriter fed with scripted frontend
// messages and recording everything the authenticator writes.
type fakeRW struct {
	toRead  []protocol.Message
	written []protocol.Message
}

func (rw *fakeRW) Write(m protocol.Message) error {
	rw.written = append(rw.written, m)
	return nil
}

func (rw *fakeRW) Read() (protocol.Message, error) {
	if len(rw.toRead) == 0 {
		return nil, fmt.Errorf("no more messages")
	}
	m := rw.toRead[0]
	rw.toRead = rw.toRead[1:]
	return m, nil
}

// passwordMessage frames a password the way a frontend would send it.
func passwordMessage(password []byte) protocol.Message {
	m := protocol.Message{'p', 0, 0, 0, byte(4 + len(password) + 1)}
	m = append(m, password...)
	return append(m, 0)
}

func TestNoPassword_authenticate(t *testing.T) {
	rw := &fakeRW{}
	err := (&noPassword{}).authenticate(rw, nil)
	require.NoError(t, err)
	require.Equal(t, []protocol.Message{protocol.AuthenticationOk()}, rw.written)
}

func TestClearTextAuthenticator(t *testing.T) {
	args := map[string]interface{}{"user": "bob"}

	t.Run("correct password", func(t *testing.T) {
		rw := &fakeRW{toRead: []protocol.Message{passwordMessage([]byte("meow"))}}
		a := &clearTextAuthenticator{pp: ConstantPassword([]byte("meow"))}

		err := a.authenticate(rw, args)
		require.NoError(t, err)
		require.Len(t, rw.written, 2)
		require.Equal(t, protocol.AuthenticationCleartextPassword(), rw.written[0])
		require.Equal(t, protocol.AuthenticationOk(), rw.written[1])
	})

	t.Run("wrong password", func(t *testing.T) {
		rw := &fakeRW{toRead: []protocol.Message{passwordMessage([]byte("woof"))}}
		a := &clearTextAuthenticator{pp: ConstantPassword([]byte("meow"))}

		authErr := a.authenticate(rw, args)
		require.Error(t, authErr)
		e := authErr.(*err)
		require.Equal(t, "28P01", e.Code())
		require.Equal(t, "FATAL", e.Severity())
	})

	t.Run("unexpected message type", func(t *testing.T) {
		rw := &fakeRW{toRead: []protocol.Message{{'Q', 0, 0, 0, 4}}}
		a := &clearTextAuthenticator{pp: ConstantPassword([]byte("meow"))}

		authErr := a.authenticate(rw, args)
		require.Error(t, authErr)
		require.Equal(t, "08P01", authErr.(*err).Code())
	})
}

func TestMD5Authenticator(t *testing.T) {
	args := map[string]interface{}{"user": "bob"}

	t.Run("correct password", func(t *testing.T) {
		a := &md5Authenticator{pp: MD5ConstantPassword([]byte("meow"))}

		// run once to capture the salt the server picked
		probe := &fakeRW{toRead: []protocol.Message{passwordMessage([]byte("nope"))}}
		_ = a.authenticate(probe, args)
		require.NotEmpty(t, probe.written)
		salt := probe.written[0][9:13]

		// client-side hash for that salt
		inner := md5.Sum([]byte("meowbob"))
		response := hashWithSalt(inner[:], salt)

		// the salt is random per attempt, so replay against a fixed-salt
		// authenticator is not possible; instead verify the hash chain the
		// server expects
		stored, err := a.pp.GetPassword("bob")
		require.NoError(t, err)
		require.Equal(t, hashWithSalt(stored, salt), response)
	})

	t.Run("wrong password", func(t *testing.T) {
		rw := &fakeRW{toRead: []protocol.Message{passwordMessage([]byte("md5deadbeef"))}}
		a := &md5Authenticator{pp: MD5ConstantPassword([]byte("meow"))}

		authErr := a.authenticate(rw, args)
		require.Error(t, authErr)
		require.Equal(t, "28P01", authErr.(*err).Code())
		require.Equal(t, protocol.Message{'R', 0, 0, 0, 12, 0, 0, 0, 5}, rw.written[0][:9],
			"expected an md5 password request")
	})

	t.Run("unexpected message type", func(t *testing.T) {
		rw := &fakeRW{toRead: []protocol.Message{{'X', 0, 0, 0, 4}}}
		a := &md5Authenticator{pp: MD5ConstantPassword([]byte("meow"))}

		authErr := a.authenticate(rw, args)
		require.Error(t, authErr)
		require.Equal(t, "08P01", authErr.(*err).Code())
	})
}

func TestHashWithSalt(t *testing.T) {
	inner := md5.Sum([]byte("meowbob"))
	salt := []byte{1, 2, 3, 4}

	expected := fmt.Sprintf("%x", inner)
	outer := md5.Sum(append([]byte(expected), salt...))
	require.Equal(t, []byte(fmt.Sprintf("md5%x", outer)), hashWithSalt(inner[:], salt))
}

func TestExtractPassword(t *testing.T) {
	require.Equal(t, []byte("meow"), extractPassword(passwordMessage([]byte("meow"))))
	require.Empty(t, extractPassword(passwordMessage(nil)))
}
