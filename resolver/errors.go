package resolver

import "fmt"

// Kind discriminates the resolver's error taxonomy.
type Kind int

const (
	// KindServFail is a logic-level failure: depth cap, loop detected,
	// nameservers exhausted, bad NS rdata, and so on.
	KindServFail Kind = iota
	// KindNXDomain means an upstream returned NXDOMAIN.
	KindNXDomain
	// KindIOError means a socket or buffer failure during a backend call.
	KindIOError
	// KindProtocolError means a wire decode failure.
	KindProtocolError
)

// Error is the resolver's error type. All terminal failures out of Resolve
// are *Error; use errors.As to recover the Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NXDomain returns a KindNXDomain *Error.
func NXDomain() *Error {
	return &Error{Kind: KindNXDomain, Message: "NXDOMAIN response"}
}

// ServFail returns a KindServFail *Error with the given message.
func ServFail(message string) *Error {
	return &Error{Kind: KindServFail, Message: message}
}

// ioError wraps a backend transport failure.
func ioError(message string, cause error) *Error {
	return &Error{Kind: KindIOError, Message: message, Err: cause}
}

// protocolError wraps a wire-decode failure.
func protocolError(message string, cause error) *Error {
	return &Error{Kind: KindProtocolError, Message: message, Err: cause}
}
