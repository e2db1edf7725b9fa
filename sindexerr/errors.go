// Package sindexerr collects the sentinel errors this subsystem returns,
// following the flat var-block convention of chotki's chotki_errors
// package rather than a bespoke error type hierarchy.
package sindexerr

import "errors"

var (
	// ErrInvalidArgument is returned for requests that fail validation
	// before any state changes.
	ErrInvalidArgument = errors.New("sindex: invalid argument")
	// ErrUnsupported is returned when a FIND request sets both or
	// neither of INTERSECT/UNITE.
	ErrUnsupported = errors.New("sindex: unsupported request")

	ErrNotFound = errors.New("sindex: key not found")

	ErrRouterUnknown    = errors.New("sindex: routing id has no known owner")
	ErrTransportClosed  = errors.New("sindex: transport is closed")
	ErrDispatchFailed   = errors.New("sindex: dispatch failed")
	ErrDuplicateReply   = errors.New("sindex: terminal reply already delivered")
	ErrUnknownTransport = errors.New("sindex: unknown transaction id")
)
