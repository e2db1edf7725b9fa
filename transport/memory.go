package transport

import (
	"context"
	"sync"

	"github.com/drpcorg/sindex/cluster"
	"github.com/drpcorg/sindex/sindexerr"
	"github.com/drpcorg/sindex/wire"
)

// Handler answers one dispatched command with the frame body and status to
// deliver back as the (sole, terminal) reply.
type Handler func(ctx context.Context, cmd wire.Command, body []byte) (respBody []byte, status int32)

// Memory is an in-process Transport fake wiring node handles to Handlers,
// used to simulate a multi-node cluster within a single test binary.
type Memory struct {
	mu    sync.RWMutex
	nodes map[cluster.NodeHandle]Handler
	fail  map[cluster.NodeHandle]bool
}

func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[cluster.NodeHandle]Handler),
		fail:  make(map[cluster.NodeHandle]bool),
	}
}

func (m *Memory) Register(node cluster.NodeHandle, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[node] = h
}

// FailDispatch makes every subsequent Dispatch to node return an error
// immediately, simulating a dispatch-layer failure.
func (m *Memory) FailDispatch(node cluster.NodeHandle, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[node] = fail
}

func (m *Memory) Dispatch(ctx context.Context, node cluster.NodeHandle, cmd wire.Command, body []byte, onReply ReplyFunc) error {
	m.mu.RLock()
	h, ok := m.nodes[node]
	shouldFail := m.fail[node]
	m.mu.RUnlock()

	if shouldFail {
		return errorsWrap(sindexerr.ErrDispatchFailed, node)
	}
	if !ok {
		return errorsWrap(sindexerr.ErrRouterUnknown, node)
	}

	respBody, status := h(ctx, cmd, body)
	onReply(Reply{Body: respBody, Status: status, Terminal: true})
	return nil
}

func errorsWrap(err error, node cluster.NodeHandle) error {
	return &dispatchError{node: node, err: err}
}

type dispatchError struct {
	node cluster.NodeHandle
	err  error
}

func (e *dispatchError) Error() string { return string(e.node) + ": " + e.err.Error() }
func (e *dispatchError) Unwrap() error { return e.err }
