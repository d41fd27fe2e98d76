package wasm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies backend failures. Induction-variable
// inconsistency is deliberately absent: it degrades a trip count to
// unknown instead of failing the compile.
type ErrorKind uint8

const (
	ErrUnsupportedType ErrorKind = iota + 1
	ErrDanglingReference
	ErrInvalidTerminator
	ErrEncodingOverflow
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupportedType:
		return "unsupported type"
	case ErrDanglingReference:
		return "dangling reference"
	case ErrInvalidTerminator:
		return "invalid terminator"
	case ErrEncodingOverflow:
		return "encoding overflow"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

// Error is the typed backend error. Fn names the function being
// compiled when one is in scope.
type Error struct {
	Kind ErrorKind
	Fn   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := "wasm: " + e.Kind.String()
	if e.Fn != "" {
		s += " in " + e.Fn
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func errf(kind ErrorKind, fn, format string, args ...any) *Error {
	return &Error{Kind: kind, Fn: fn, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is (or wraps) a backend Error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == k
}
