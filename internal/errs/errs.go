// Package errs provides the typed error kinds shared across the lexer,
// parser, key-value plane, and executor.
//
// What: A closed set of sentinel "kinds" (Parse, Lex, Conflict, ...) plus an
// *Error wrapper that attaches a message, structured fields, and a captured
// stack trace, and can marshal itself to the {code,message,details} wire
// form external callers see.
// How: Wrap(kind, err, msg, fields...) captures a stack via
// github.com/pkg/errors and stores fields in an ordered slice so JSON output
// is stable. errors.Is/As delegate to the wrapped kind and cause.
// Why: The core must surface stable error codes to callers while keeping
// call-site context (table name, key, statement span) for logs, without
// forcing every call site to hand-roll a wrapping type.
package errs

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Kind is a stable, closed error classification. String() is the wire code.
type Kind int

const (
	Parse Kind = iota
	Lex
	Unexpected
	InvalidUrl
	InvalidFunction
	PermissionDenied
	Timeout
	Arithmetic
	Conversion
	Ignore
	Http
	Serialization
	Deserialization
	Conflict
	NotFound
	AlreadyExists
	Unsupported
	Internal
	// DecodeRevision and DecodeVariant are the two typed decode failures
	// spec.md §4.4 calls out by name: an unrecognized outer wire version,
	// and an unrecognized per-variant discriminant, respectively. Both are
	// a more specific subtype of Deserialization.
	DecodeRevision
	DecodeVariant
)

var kindNames = map[Kind]string{
	Parse:            "Parse",
	Lex:              "Lex",
	Unexpected:       "Unexpected",
	InvalidUrl:       "InvalidUrl",
	InvalidFunction:  "InvalidFunction",
	PermissionDenied: "PermissionDenied",
	Timeout:          "Timeout",
	Arithmetic:       "Arithmetic",
	Conversion:       "Conversion",
	Ignore:           "Ignore",
	Http:             "Http",
	Serialization:    "Serialization",
	Deserialization:  "Deserialization",
	Conflict:         "Conflict",
	NotFound:         "NotFound",
	AlreadyExists:    "AlreadyExists",
	Unsupported:      "Unsupported",
	Internal:         "Internal",
	DecodeRevision:   "DecodeRevision",
	DecodeVariant:    "DecodeVariant",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Retriable reports whether the executor should retry the operation that
// produced an error of this kind (only Conflict, per spec.md §7).
func (k Kind) Retriable() bool { return k == Conflict }

// Fields is an ordered list of key/value pairs attached to an Error.
type Fields []Field

// Field is a single named value attached to an Error for diagnostics.
type Field struct {
	Key   string
	Value any
}

// Error is the core's error type: a kind, a message, optional fields, and a
// stack-traced cause.
type Error struct {
	kind   Kind
	msg    string
	fields Fields
	cause  error
}

var (
	_ error          = (*Error)(nil)
	_ json.Marshaler = (*Error)(nil)
)

// New creates an Error of the given kind with no wrapped cause.
func New(kind Kind, msg string, fields ...Field) *Error {
	return &Error{kind: kind, msg: msg, fields: fields, cause: errors.New(msg)}
}

// Wrap attaches kind and msg to an existing error, capturing a stack trace
// at the call site via github.com/pkg/errors.
func Wrap(kind Kind, cause error, msg string, fields ...Field) *Error {
	if cause == nil {
		return New(kind, msg, fields...)
	}
	return &Error{kind: kind, msg: msg, fields: fields, cause: errors.WithMessage(errors.WithStack(cause), msg)}
}

// F builds a Field inline: errs.Wrap(errs.NotFound, err, "no such table", errs.F("table", name))
func F(key string, value any) Field { return Field{Key: key, Value: value} }

func (e *Error) Error() string {
	if len(e.fields) == 0 {
		return fmt.Sprintf("%s: %s", e.kind, e.msg)
	}
	return fmt.Sprintf("%s: %s (%s)", e.kind, e.msg, e.fields.String())
}

func (s Fields) String() string {
	out := ""
	for i, f := range s {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%v", f.Key, f.Value)
	}
	return out
}

// Unwrap exposes the captured cause to errors.Is/As/Unwrap.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Is reports whether target is a *Error of the same Kind; a target of any
// other type never matches.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.kind == e.kind
}

// wireForm is the §6/§7 error wire shape: {code, message, details?}.
type wireForm struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// MarshalJSON renders the stable {code,message,details} wire form.
func (e *Error) MarshalJSON() ([]byte, error) {
	w := wireForm{Code: e.kind.String(), Message: e.msg}
	if len(e.fields) > 0 {
		w.Details = make(map[string]any, len(e.fields))
		for _, f := range e.fields {
			w.Details[f.Key] = f.Value
		}
	}
	return json.Marshal(w)
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error, defaulting
// to Internal for unrecognized errors so callers always have a wire code.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return Internal
}
