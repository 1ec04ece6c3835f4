package pgwire

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"fmt"

	"github.com/snoe925/pgwire/protocol"
)

// authenticator interface defines objects able to perform user authentication
// that happens at the very beginning of every session.
type authenticator interface {
	authenticate(rw protocol.MessageReadWriter, args map[string]interface{}) error
}

// noPassword responds with AuthenticationOk immediately.
type noPassword struct{}

func (*noPassword) authenticate(rw protocol.MessageReadWriter, args map[string]interface{}) error {
	return rw.Write(protocol.AuthenticationOk())
}

// PasswordProvider describes objects that are able to provide a password
// given a user name.
type PasswordProvider interface {
	GetPassword(user string) ([]byte, error)
}

// constantPasswordProvider is a password provider that always returns the same
// password, which it is given during the initialization.
type constantPasswordProvider struct {
	password []byte
}

// ConstantPassword creates a PasswordProvider that accepts a single password
// for every user.
func ConstantPassword(password []byte) PasswordProvider {
	return &constantPasswordProvider{password: password}
}

func (cpp *constantPasswordProvider) GetPassword(user string) ([]byte, error) {
	return cpp.password, nil
}

// md5ConstantPasswordProvider is a password provider that returns md5 hash of
// a given username and a constant password as md5(concat(password, user)).
type md5ConstantPasswordProvider struct {
	password []byte
}

// MD5ConstantPassword creates a PasswordProvider for md5 authentication that
// stores md5(concat(password, user)) rather than the clear text password.
func MD5ConstantPassword(password []byte) PasswordProvider {
	return &md5ConstantPasswordProvider{password: password}
}

func (cpp *md5ConstantPasswordProvider) GetPassword(user string) ([]byte, error) {
	pu := append(append([]byte{}, cpp.password...), []byte(user)...)
	puHash := md5.Sum(pu)
	return puHash[:], nil
}

// clearTextAuthenticator requests and accepts a clear text password.
// It is not recommended to use it for security reasons.
type clearTextAuthenticator struct {
	pp PasswordProvider
}

func (a *clearTextAuthenticator) authenticate(rw protocol.MessageReadWriter, args map[string]interface{}) error {
	err := rw.Write(protocol.AuthenticationCleartextPassword())
	if err != nil {
		return err
	}

	m, err := rw.Read()
	if err != nil {
		return err
	}

	if m.Type() != protocol.Password {
		return protocolFailed(fmt.Errorf("expected password response, got message type %c", m.Type()))
	}

	user := args["user"].(string)
	expectedPassword, err := a.pp.GetPassword(user)
	if err != nil {
		return err
	}

	if !bytes.Equal(expectedPassword, extractPassword(m)) {
		return authFailed(user)
	}

	return rw.Write(protocol.AuthenticationOk())
}

// md5Authenticator requests and accepts an MD5 hashed password from the client.
type md5Authenticator struct {
	pp PasswordProvider
}

func (a *md5Authenticator) authenticate(rw protocol.MessageReadWriter, args map[string]interface{}) error {
	salt := getRandomSalt()
	err := rw.Write(protocol.AuthenticationMD5Password(salt))
	if err != nil {
		return err
	}

	m, err := rw.Read()
	if err != nil {
		return err
	}

	if m.Type() != protocol.Password {
		return protocolFailed(fmt.Errorf("expected password response, got message type %c", m.Type()))
	}

	user := args["user"].(string)
	storedHash, err := a.pp.GetPassword(user)
	if err != nil {
		return err
	}
	expectedHash := hashWithSalt(storedHash, salt)

	if !bytes.Equal(expectedHash, extractPassword(m)) {
		return authFailed(user)
	}

	return rw.Write(protocol.AuthenticationOk())
}

// getRandomSalt returns a cryptographically secure random slice of 4 bytes.
func getRandomSalt() []byte {
	salt := make([]byte, 4)
	rand.Read(salt)
	return salt
}

// extractPassword extracts the password from a provided 'p' message.
// It assumes that the message is valid.
func extractPassword(m protocol.Message) []byte {
	// password starts after the size (4 bytes) and lasts until null-terminator
	return m[5 : len(m)-1]
}

// hashWithSalt salts the provided md5 hash and hashes the result using md5.
// The provided hash must be md5(concat(password, username))
func hashWithSalt(hash, salt []byte) []byte {
	// concat('md5', md5(concat(md5(concat(password, username)), random-salt)))
	// the inner part (md5(concat())) is provided as hash argument
	puHash := fmt.Sprintf("%x", hash)
	puHashSalted := append([]byte(puHash), salt...)
	finalHash := fmt.Sprintf("md5%x", md5.Sum(puHashSalted))
	return []byte(finalHash)
}
