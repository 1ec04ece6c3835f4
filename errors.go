package pgwire

import (
	"fmt"
)

// err is the wire-ready error implementation. It carries the fields of an
// ErrorResponse message; see the SQLSTATE listing at
// https://www.postgresql.org/docs/current/errcodes-appendix.html
type err struct {
	S string // Severity
	C string // Code (SQLSTATE)
	M string // Message
	D string // Detail
	H string // Hint
	P int    // Position, -1 when unknown
}

func (e *err) Error() string    { return e.M }
func (e *err) Severity() string { return e.S }
func (e *err) Code() string     { return e.C }
func (e *err) Detail() string   { return e.D }
func (e *err) Hint() string     { return e.H }
func (e *err) Position() int    { return e.P }

// fromErr converts any error to *err, preserving the wire fields of errors
// that already expose them.
func fromErr(e error) *err {
	res, ok := e.(*err)
	if ok {
		return res
	}

	res = &err{M: e.Error(), P: -1}
	if s, ok := e.(interface{ Severity() string }); ok {
		res.S = s.Severity()
	}
	if c, ok := e.(interface{ Code() string }); ok {
		res.C = c.Code()
	}
	if d, ok := e.(interface{ Detail() string }); ok {
		res.D = d.Detail()
	}
	if h, ok := e.(interface{ Hint() string }); ok {
		res.H = h.Hint()
	}
	if p, ok := e.(interface{ Position() int }); ok {
		res.P = p.Position()
	}
	return res
}

// WithSeverity sets the severity field ("ERROR", "FATAL", "NOTICE", ...)
// reported for the provided error.
func WithSeverity(e error, severity string) error {
	if e == nil {
		return nil
	}
	res := fromErr(e)
	res.S = severity
	return res
}

// WithCode sets the SQLSTATE code reported for the provided error.
func WithCode(e error, code string) error {
	if e == nil {
		return nil
	}
	res := fromErr(e)
	res.C = code
	return res
}

// WithDetail attaches a detail field to the provided error.
func WithDetail(e error, detail string) error {
	if e == nil {
		return nil
	}
	res := fromErr(e)
	res.D = detail
	return res
}

// WithHint attaches a hint field to the provided error.
func WithHint(e error, hint string) error {
	if e == nil {
		return nil
	}
	res := fromErr(e)
	res.H = hint
	return res
}

// WithPosition attaches a statement cursor position to the provided error.
func WithPosition(e error, position int) error {
	if e == nil {
		return nil
	}
	res := fromErr(e)
	res.P = position
	return res
}

// Unrecognized indicates that a certain entity (function, column, etc.) is
// not registered or otherwise unknown.
func Unrecognized(msg string, args ...interface{}) error {
	return &err{C: "42000", M: fmt.Sprintf("unrecognized "+msg, args...), P: -1}
}

// Invalid indicates that the user request is invalid or otherwise incorrect.
// It's very much similar to a syntax error, except that the invalidity is
// logical within the request rather than syntactic.
func Invalid(msg string, args ...interface{}) error {
	return &err{C: "42000", M: fmt.Sprintf("invalid "+msg, args...), P: -1}
}

// Disallowed indicates that the request is valid but the server refuses to
// execute it.
func Disallowed(msg string, args ...interface{}) error {
	return &err{C: "42000", M: fmt.Sprintf("disallowed "+msg, args...), P: -1}
}

// Unsupported indicates that a message or feature is recognized but not
// implemented by this server.
func Unsupported(msg string, args ...interface{}) error {
	return &err{C: "0A000", M: fmt.Sprintf("unsupported "+msg, args...), P: -1}
}

// UnknownStatement is the typed error for Bind/Describe/Close naming a
// prepared statement that does not exist.
func UnknownStatement(name string) error {
	return &err{C: "26000", M: fmt.Sprintf("prepared statement %q does not exist", name), P: -1}
}

// UnknownPortal is the typed error for Execute/Describe/Close naming a
// portal that does not exist.
func UnknownPortal(name string) error {
	return &err{C: "34000", M: fmt.Sprintf("portal %q does not exist", name), P: -1}
}

func authFailed(user string) error {
	return &err{
		S: "FATAL",
		C: "28P01",
		M: fmt.Sprintf("password authentication failed for user %q", user),
		P: -1,
	}
}

func protocolFailed(e error) error {
	return &err{S: "FATAL", C: "08P01", M: e.Error(), P: -1}
}
