// Package errs defines the error kinds surfaced by the snapshot pipeline.
//
// Every error that leaves a pipeline component carries exactly one kind so callers
// can branch with errors.Is without parsing messages:
//
//	if errors.Is(err, errs.ErrMissingPrice) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrConfig            = errors.New("config")
	ErrTransport         = errors.New("transport")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrEncode            = errors.New("encode")
	ErrDecode            = errors.New("decode")
	ErrContract          = errors.New("contract")
	ErrMissingPrice      = errors.New("missing price")
	ErrArithmetic        = errors.New("arithmetic")
	ErrIO                = errors.New("io")
)

// Error is a kinded error with the operation that produced it.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// E wraps err with a kind and an operation name. A nil err yields a kinded error
// whose message is the operation alone.
func E(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef builds a kinded error from a format string.
func Ef(kind error, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// MissingPrice reports a price id absent from the price source.
func MissingPrice(id string) error {
	return Ef(ErrMissingPrice, "price", "no usd price for %q", id)
}

// KindOf returns the first known kind found in err's chain, or nil.
func KindOf(err error) error {
	for _, k := range []error{
		ErrConfig, ErrRateLimitExceeded, ErrTransport, ErrEncode, ErrDecode,
		ErrContract, ErrMissingPrice, ErrArithmetic, ErrIO,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
