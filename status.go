package sindex

import (
	"github.com/pkg/errors"

	"github.com/drpcorg/sindex/sindexerr"
)

// POSIX-style negative errno values carried in reply status fields. Only
// the handful this subsystem actually distinguishes are named; anything
// else falls back to EIO.
const (
	statusOK      int32 = 0
	statusEINVAL  int32 = -22
	statusENOENT  int32 = -2
	statusENOTSUP int32 = -95
	statusEIO     int32 = -5
)

// statusOf maps an error observed by a driver to the wire status it
// surfaces in a reply entry.
func statusOf(err error) int32 {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, sindexerr.ErrInvalidArgument):
		return statusEINVAL
	case errors.Is(err, sindexerr.ErrUnsupported):
		return statusENOTSUP
	case errors.Is(err, sindexerr.ErrNotFound):
		return statusENOENT
	default:
		return statusEIO
	}
}
