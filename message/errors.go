// Package message defines the wire message model: error kinds, the
// MessageFactory registry, and the proto3-wire-compatible message types
// carried across the front and back tiers.
package message

import "fmt"

// ErrorKind classifies the fallible outcomes the message plane can produce.
// A client-visible RPC failure surfaces one of these inside a synthetic
// RpcMessageFResponse; a connection-level failure closes the connection.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindProtocolError
	ErrorKindAuthFailed
	ErrorKindDuplicateIdentity
	ErrorKindRegistrationTimeout
	ErrorKindNoRoute
	ErrorKindUnknownHandler
	ErrorKindDecodeFailed
	ErrorKindSendBackpressure
	ErrorKindPeerGone
	ErrorKindServerShutdown
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindProtocolError:
		return "ProtocolError"
	case ErrorKindAuthFailed:
		return "AuthFailed"
	case ErrorKindDuplicateIdentity:
		return "DuplicateIdentity"
	case ErrorKindRegistrationTimeout:
		return "RegistrationTimeout"
	case ErrorKindNoRoute:
		return "NoRoute"
	case ErrorKindUnknownHandler:
		return "UnknownHandler"
	case ErrorKindDecodeFailed:
		return "DecodeFailed"
	case ErrorKindSendBackpressure:
		return "SendBackpressure"
	case ErrorKindPeerGone:
		return "PeerGone"
	case ErrorKindServerShutdown:
		return "ServerShutdown"
	default:
		return "None"
	}
}

// Error wraps an ErrorKind with the underlying cause, if any. It implements
// error and Unwrap so call sites can both log a stable kind and retain the
// original cause for debugging.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf extracts the ErrorKind from err, defaulting to ErrorKindNone when
// err is nil or not a *Error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}
	var me *Error
	if ok := asError(err, &me); ok {
		return me.Kind
	}
	return ErrorKindNone
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
