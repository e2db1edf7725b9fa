// Package transport provides the dispatch primitive the update driver
// consumes to hand off INTERNAL sub-requests to remote nodes, plus an
// in-memory fake for tests and a TCP implementation for real deployments.
package transport

import (
	"context"

	"github.com/drpcorg/sindex/cluster"
	"github.com/drpcorg/sindex/wire"
)

// Reply is one callback invocation from Dispatch: zero or more
// intermediate calls carrying a forwarded reply frame, then exactly one
// terminal call.
type Reply struct {
	Body     []byte
	Status   int32
	Terminal bool
}

type ReplyFunc func(reply Reply)

// Transport dispatches a command to another cluster node and delivers its
// reply stream back through onReply.
type Transport interface {
	Dispatch(ctx context.Context, node cluster.NodeHandle, cmd wire.Command, body []byte, onReply ReplyFunc) error
}
