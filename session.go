package pgwire

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/snoe925/pgwire/protocol"
)

// allSessions maps a backend process id to its live session so that a
// CancelRequest arriving on a separate connection can find its target.
var allSessions sync.Map

// errSessionClosed marks an intentional teardown (Terminate, cancel
// connection) as opposed to a failure.
var errSessionClosed = errors.New("session closed")

// statement is a Prepared Statement: created by Parse, looked up by
// Bind/Describe, replaced by a new Parse under the same name.
type statement struct {
	name      string
	sql       string
	paramOIDs []uint32
}

// portal is a bound, executable instance of a prepared statement. Its cursor
// is created on first Describe/Execute and consumed across successive
// Execute calls, preserving row order and exactly-once delivery.
type portal struct {
	stmt          *statement
	params        [][]byte
	paramFormats  []int16
	resultFormats []int16
	cursor        *Cursor
	executed      bool
}

// session represents a single client-connection, and handles all of the
// communications with that client.
//
// see: https://www.postgresql.org/docs/current/protocol.html
// for postgres protocol and startup handshake process
type session struct {
	Server     *server
	Conn       io.ReadWriteCloser
	Args       map[string]interface{}
	Secret     int32 // used for cancelling requests
	Ctx        context.Context
	CancelFunc context.CancelFunc
	stmts      map[string]*statement
	portals    map[string]*portal

	// pendingErr is set when an extended-protocol step failed; while set,
	// every Parse/Bind/Describe/Execute/Close is discarded until the next
	// Sync, per the abort-until-Sync convention.
	pendingErr bool
}

// Serve drives the connection: handshake, authentication, then the query
// cycle until the client terminates or the stream breaks.
func (s *session) Serve() error {
	handshake := protocol.NewHandshake(s.Conn)
	msg, err := handshake.Init()
	if err != nil {
		return err
	}

	if msg.IsCancel() {
		pid, secret, err := msg.CancelKeyData()
		if err != nil {
			return err
		}

		if other, ok := allSessions.Load(pid); ok && other != nil {
			target := other.(*session)
			if target.Secret == secret {
				target.CancelFunc() // intentionally doesn't report success to frontend
			}
		}

		return nil // cancel connections disconnect immediately
	}

	s.Args, err = msg.StartupArgs()
	if err != nil {
		return err
	}
	user, _ := s.Args["user"].(string)
	if user == "" {
		startupErr := WithSeverity(Invalid("startup packet: no user provided"), "FATAL")
		_ = handshake.Write(protocol.ErrorResponse(WithCode(startupErr, "28000")))
		return startupErr
	}
	if _, ok := s.Args["database"]; !ok {
		s.Args["database"] = user
	}

	// handle authentication
	err = s.Server.authenticator.authenticate(handshake, s.Args)
	if err != nil {
		_ = handshake.Write(protocol.ErrorResponse(err))
		return err
	}

	for _, p := range s.startupParams() {
		err = handshake.Write(protocol.ParameterStatus(p[0], p[1]))
		if err != nil {
			return err
		}
	}

	// generate cancellation pid and secret for this session
	s.Secret = rand.Int31()

	pid := rand.Int31()
	for {
		if _, ok := allSessions.Load(pid); !ok {
			break
		}
		pid++
	}

	allSessions.Store(pid, s)
	defer allSessions.Delete(pid)

	// notify the client of the pid and secret to be passed back when it
	// wishes to interrupt this session
	s.Ctx, s.CancelFunc = context.WithCancel(context.Background())
	err = handshake.Write(protocol.BackendKeyData(pid, s.Secret))
	if err != nil {
		return err
	}

	s.stmts = map[string]*statement{}
	s.portals = map[string]*portal{}
	t := protocol.NewTransport(s.Conn)
	t.SetMaxMessageSize(s.Server.maxMessageSize)

	// query-cycle
	for {
		msg, err := t.NextFrontendMessage()
		if err != nil {
			if err == io.EOF {
				return nil // client hung up between commands
			}
			// framing can no longer be trusted; best-effort report, then close
			_ = t.Write(protocol.ErrorResponse(protocolFailed(err)))
			return err
		}

		err = s.handleFrontendMessage(t, msg)
		if err == errSessionClosed {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// startupParams assembles the ParameterStatus pairs of the post-auth
// preamble in a stable order.
func (s *session) startupParams() [][2]string {
	params := [][2]string{
		{"server_version", s.Server.version},
		{"server_encoding", "UTF8"},
		{"client_encoding", "UTF8"},
		{"DateStyle", "ISO, MDY"},
	}
	return append(params, s.Server.params...)
}

func (s *session) handleFrontendMessage(t *protocol.Transport, msg pgproto3.FrontendMessage) (err error) {
	var res []protocol.Message
	switch v := msg.(type) {
	case *pgproto3.Terminate:
		_ = s.Conn.Close()
		return errSessionClosed // client terminated intentionally
	case *pgproto3.Query:
		s.pendingErr = false
		err = s.simpleQuery(t, v.String)
		// postgres doesn't keep the unnamed statement across a simple query,
		// so we imitate this behaviour
		delete(s.stmts, "")
	case *pgproto3.Parse:
		if s.pendingErr {
			return nil
		}
		res = s.prepare(v)
	case *pgproto3.Bind:
		if s.pendingErr {
			return nil
		}
		res = s.bind(v)
	case *pgproto3.Describe:
		if s.pendingErr {
			return nil
		}
		res = s.describe(v)
	case *pgproto3.Execute:
		if s.pendingErr {
			return nil
		}
		res, err = s.execute(t, v)
	case *pgproto3.Close:
		if s.pendingErr {
			return nil
		}
		res = s.closeObject(v)
	case *pgproto3.Sync:
		s.pendingErr = false
	case *pgproto3.Flush:
		err = t.Flush()
	default:
		res = append(res, protocol.ErrorResponse(Unsupported("message type %T", msg)))
	}
	if err != nil {
		return err
	}

	for _, m := range res {
		err = t.Write(m)
		if err != nil {
			return err
		}
	}

	// an error inside an extended-query batch aborts the rest of the round
	if t.InBatch() && len(res) > 0 && res[len(res)-1].IsError() {
		s.pendingErr = true
	}
	return nil
}

// simpleQuery runs one statement of the simple query protocol. Backend
// failures are reported in-band and never close the connection.
func (s *session) simpleQuery(t *protocol.Transport, sql string) error {
	if isEmptyStatement(sql) {
		return t.Write(protocol.EmptyQueryResponse)
	}

	rows, err := s.Server.Query(s.queryContext(sql, nil, nil), sql)
	if err != nil {
		return t.Write(protocol.ErrorResponse(err))
	}
	if rows == nil {
		// no result set: command tag only, no RowDescription
		return t.Write(protocol.CommandComplete(commandTag(sql, 0)))
	}

	c := newCursor(rows, nil)
	defer c.Close()

	if err = t.Write(protocol.RowDescription(c.columns)); err != nil {
		return err
	}
	if _, err = c.Fetch(0, t); err != nil {
		return t.Write(protocol.ErrorResponse(err))
	}
	return t.Write(protocol.CommandComplete(c.Tag(sql)))
}

// prepare stores a Prepared Statement. Re-parsing under an existing name
// replaces the prior statement.
func (s *session) prepare(v *pgproto3.Parse) []protocol.Message {
	s.stmts[v.Name] = &statement{
		name:      v.Name,
		sql:       v.Query,
		paramOIDs: v.ParameterOIDs,
	}
	return []protocol.Message{protocol.ParseComplete}
}

// bind creates a Portal from a Prepared Statement and concrete parameter
// values. A Bind to an already used portal name replaces the old portal.
func (s *session) bind(v *pgproto3.Bind) []protocol.Message {
	stmt, ok := s.stmts[v.PreparedStatement]
	if !ok {
		return []protocol.Message{protocol.ErrorResponse(UnknownStatement(v.PreparedStatement))}
	}
	if len(stmt.paramOIDs) > 0 && len(v.Parameters) != len(stmt.paramOIDs) {
		mismatch := Invalid("bind message supplies %d parameters, but prepared statement %q requires %d",
			len(v.Parameters), stmt.name, len(stmt.paramOIDs))
		return []protocol.Message{protocol.ErrorResponse(WithCode(mismatch, "08P01"))}
	}

	s.portals[v.DestinationPortal] = &portal{
		stmt:          stmt,
		params:        v.Parameters,
		paramFormats:  v.ParameterFormatCodes,
		resultFormats: v.ResultFormatCodes,
	}
	return []protocol.Message{protocol.BindComplete}
}

// describe reports the shape of a statement or portal without running it to
// completion.
func (s *session) describe(v *pgproto3.Describe) []protocol.Message {
	switch v.ObjectType {
	case protocol.DescribeStatement:
		stmt, ok := s.stmts[v.Name]
		if !ok {
			return []protocol.Message{protocol.ErrorResponse(UnknownStatement(v.Name))}
		}

		// the backend contract is a single resolve call, so describing means
		// resolving with no parameters and dropping the rows unread
		rows, err := s.Server.Query(s.queryContext(stmt.sql, nil, nil), stmt.sql)
		if err != nil {
			return []protocol.Message{protocol.ErrorResponse(err)}
		}
		res := []protocol.Message{protocol.ParameterDescription(stmt.paramOIDs)}
		if rows == nil {
			return append(res, protocol.NoData)
		}
		c := newCursor(rows, nil)
		_ = c.Close()
		return append(res, protocol.RowDescription(c.columns))
	case protocol.DescribePortal:
		p, ok := s.portals[v.Name]
		if !ok {
			return []protocol.Message{protocol.ErrorResponse(UnknownPortal(v.Name))}
		}
		if err := s.ensureCursor(p); err != nil {
			return []protocol.Message{protocol.ErrorResponse(err)}
		}
		if p.cursor == nil {
			return []protocol.Message{protocol.NoData}
		}
		return []protocol.Message{protocol.RowDescription(p.cursor.columns)}
	default:
		badType := Invalid("describe object type %q", v.ObjectType)
		return []protocol.Message{protocol.ErrorResponse(WithCode(badType, "08P01"))}
	}
}

// ensureCursor resolves the portal's statement against the backend exactly
// once; Describe and successive Executes then share the cursor.
func (s *session) ensureCursor(p *portal) error {
	if p.executed {
		return nil
	}

	ctx := s.queryContext(p.stmt.sql, p.params, p.paramFormats)
	rows, err := s.Server.Query(ctx, p.stmt.sql)
	if err != nil {
		return err
	}
	p.executed = true
	if rows != nil {
		p.cursor = newCursor(rows, p.resultFormats)
	}
	return nil
}

// execute consumes the bound portal, optionally capped by a row limit
// (0 = unlimited). A limited Execute that doesn't exhaust the portal answers
// PortalSuspended and leaves the cursor resumable.
func (s *session) execute(t *protocol.Transport, v *pgproto3.Execute) (res []protocol.Message, err error) {
	p, ok := s.portals[v.Portal]
	if !ok {
		res = append(res, protocol.ErrorResponse(UnknownPortal(v.Portal)))
		return
	}
	if err := s.ensureCursor(p); err != nil {
		res = append(res, protocol.ErrorResponse(err))
		return res, nil
	}
	if p.cursor == nil {
		res = append(res, protocol.CommandComplete(commandTag(p.stmt.sql, 0)))
		return
	}

	_, err = p.cursor.Fetch(int(v.MaxRows), t)
	if err != nil {
		res = append(res, protocol.ErrorResponse(err))
		return res, nil
	}
	if !p.cursor.eof {
		res = append(res, protocol.PortalSuspended)
		return
	}
	res = append(res, protocol.CommandComplete(p.cursor.Tag(p.stmt.sql)))
	return
}

// closeObject drops a named statement or portal. Closing a missing object is
// not an error, per the protocol.
func (s *session) closeObject(v *pgproto3.Close) []protocol.Message {
	switch v.ObjectType {
	case protocol.DescribeStatement:
		delete(s.stmts, v.Name)
	case protocol.DescribePortal:
		delete(s.portals, v.Name)
	default:
		badType := Invalid("close object type %q", v.ObjectType)
		return []protocol.Message{protocol.ErrorResponse(WithCode(badType, "08P01"))}
	}
	return []protocol.Message{protocol.CloseComplete}
}

// queryContext builds the context handed to the backend for one resolve
// call: session cancellation plus the statement text and any bound
// parameters.
func (s *session) queryContext(sql string, params [][]byte, formats []int16) context.Context {
	ctx := s.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, sqlCtxKey, sql)
	if params != nil {
		ctx = context.WithValue(ctx, paramsCtxKey, params)
	}
	if formats != nil {
		ctx = context.WithValue(ctx, paramFormatsCtxKey, formats)
	}
	return ctx
}

func (s *session) Set(k string, v interface{}) { s.Args[k] = v }
func (s *session) Get(k string) interface{}    { return s.Args[k] }
func (s *session) Del(k string)                { delete(s.Args, k) }
func (s *session) All() map[string]interface{} { return s.Args }
