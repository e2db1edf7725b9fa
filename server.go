package sindex

import (
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/drpcorg/sindex/host"
)

// Server is the request handler attached to the inbound command dispatcher,
// exposing HandleUpdate/HandleInternal/HandleFind over a host.Host-shaped
// set of external collaborators.
type Server struct {
	host host.Host

	objectLocks     *KeyLocker
	membershipLocks *KeyLocker

	// tasks is bookkeeping only: dispatch routing runs through closures
	// captured at HandleUpdate call time, but every in-flight UPDATE is
	// also registered here under a fresh transaction id so the host can
	// inspect what's outstanding, the same xsync.MapOf-of-live-work shape
	// chotki's network layer keeps for its connection table.
	tasks *xsync.MapOf[uuid.UUID, *updateTask]
}

func NewServer(h host.Host) *Server {
	return &Server{
		host:            h,
		objectLocks:     &KeyLocker{},
		membershipLocks: &KeyLocker{},
		tasks:           xsync.NewMapOf[uuid.UUID, *updateTask](),
	}
}

func (srv *Server) TaskCount() int {
	return srv.tasks.Size()
}
