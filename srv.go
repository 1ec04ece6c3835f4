package pgwire

import (
	"context"
	"fmt"
	"net"

	"github.com/snoe925/pgwire/protocol"
)

// Logf is the logging hook used by the server; replace it to route logs into
// the embedding application's logger.
var Logf = fmt.Printf

type server struct {
	queryer        Queryer
	authenticator  authenticator
	version        string
	params         [][2]string // extra ParameterStatus pairs
	maxMessageSize int
}

// Option configures a Server created by New.
type Option func(*server)

// WithCleartextAuth makes the server request a clear text password and verify
// it against the provided PasswordProvider.
func WithCleartextAuth(pp PasswordProvider) Option {
	return func(s *server) { s.authenticator = &clearTextAuthenticator{pp: pp} }
}

// WithMD5Auth makes the server request an md5-hashed password and verify it
// against the provided PasswordProvider, which must return
// md5(concat(password, user)).
func WithMD5Auth(pp PasswordProvider) Option {
	return func(s *server) { s.authenticator = &md5Authenticator{pp: pp} }
}

// WithVersion overrides the server_version parameter reported to clients.
func WithVersion(version string) Option {
	return func(s *server) { s.version = version }
}

// WithParameter adds a ParameterStatus pair to the post-authentication
// preamble.
func WithParameter(name, value string) Option {
	return func(s *server) { s.params = append(s.params, [2]string{name, value}) }
}

// WithMaxMessageSize caps the declared length of frontend messages; frames
// announcing more are treated as a protocol violation.
func WithMaxMessageSize(n int) Option {
	return func(s *server) { s.maxMessageSize = n }
}

// New creates a Server that resolves queries with the provided Queryer. By
// default no credentials are requested; see WithCleartextAuth and
// WithMD5Auth.
func New(queryer Queryer, opts ...Option) Server {
	s := &server{
		queryer:        queryer,
		authenticator:  &noPassword{},
		version:        "13.0",
		maxMessageSize: protocol.DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query implements Queryer by delegating to the mounted backend.
func (s *server) Query(ctx context.Context, sql string) (Rows, error) {
	return s.queryer.Query(ctx, sql)
}

func (s *server) Listen(laddr string) error {
	ln, err := net.Listen("tcp", laddr)
	if err != nil {
		return err
	}

	Logf("listening on %s...\n", laddr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}

		go func() {
			err := s.Serve(conn)
			if err != nil {
				Logf("serve %s: %s\n", conn.RemoteAddr(), err.Error())
			}
		}()
	}
}

func (s *server) Serve(conn net.Conn) error {
	defer conn.Close()

	sess := &session{Server: s, Conn: conn}
	return sess.Serve()
}
