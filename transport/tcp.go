package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/drpcorg/sindex/cluster"
	"github.com/drpcorg/sindex/sindexerr"
	"github.com/drpcorg/sindex/utils"
	"github.com/drpcorg/sindex/wire"
)

// Record types framed on the wire, distinguishing a dispatched command from
// its reply within the same TLV stream.
const (
	litRequest byte = 'Q'
	litReply   byte = 'A'
)

// InboundHandler answers a command this node received over the wire.
type InboundHandler func(ctx context.Context, cmd wire.Command, body []byte) (respBody []byte, status int32)

// TCP is a Transport that dials one persistent connection per remote node
// and demultiplexes replies by transaction id, grounded on chotki's own
// connection-pool pattern (an xsync.MapOf of live connections, reconnect
// on demand) and its read/write loop split into separate goroutines.
type TCP struct {
	log     utils.Logger
	handler InboundHandler

	addrs *xsync.MapOf[cluster.NodeHandle, string]
	conns *xsync.MapOf[cluster.NodeHandle, *outConn]

	pending *xsync.MapOf[uuid.UUID, ReplyFunc]

	listener net.Listener
	closed   chan struct{}
}

type outConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func NewTCP(log utils.Logger, handler InboundHandler) *TCP {
	return &TCP{
		log:     log,
		handler: handler,
		addrs:   xsync.NewMapOf[cluster.NodeHandle, string](),
		conns:   xsync.NewMapOf[cluster.NodeHandle, *outConn](),
		pending: xsync.NewMapOf[uuid.UUID, ReplyFunc](),
		closed:  make(chan struct{}),
	}
}

// Register records the dial address for a node handle. Dispatch connects
// lazily on first use.
func (t *TCP) Register(node cluster.NodeHandle, addr string) {
	t.addrs.Store(node, addr)
}

func (t *TCP) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "transport: listen %s", addr)
	}
	t.listener = l
	go t.acceptLoop()
	return nil
}

func (t *TCP) Close() error {
	close(t.closed)
	if t.listener != nil {
		_ = t.listener.Close()
	}
	t.conns.Range(func(_ cluster.NodeHandle, oc *outConn) bool {
		oc.mu.Lock()
		if oc.conn != nil {
			_ = oc.conn.Close()
		}
		oc.mu.Unlock()
		return true
	})
	return nil
}

func (t *TCP) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
				t.log.Error("transport: accept failed", "err", err)
				continue
			}
		}
		go t.serveInbound(conn)
	}
}

func (t *TCP) serveInbound(conn net.Conn) {
	defer conn.Close()
	var buf bytes.Buffer
	tmp := make([]byte, 4096)
	for {
		n, err := conn.Read(tmp)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil {
			return
		}
		recs, splitErr := wire.Split(&buf)
		if splitErr != nil {
			t.log.Error("transport: bad inbound frame", "err", splitErr)
			return
		}
		for _, rec := range recs {
			body, _ := wire.Take(litRequest, rec)
			if body == nil {
				continue
			}
			txn, cmd, payload, err := decodeRequestFrame(body)
			if err != nil {
				t.log.Error("transport: bad request frame", "err", err)
				continue
			}
			respBody, status := t.handler(context.Background(), cmd, payload)
			reply := wire.Record(litReply, encodeReplyFrame(txn, true, status, respBody))
			if _, werr := conn.Write(reply); werr != nil {
				t.log.Error("transport: reply write failed", "err", werr)
				return
			}
		}
	}
}

func (t *TCP) dial(node cluster.NodeHandle) (*outConn, error) {
	if oc, ok := t.conns.Load(node); ok {
		oc.mu.Lock()
		alive := oc.conn != nil
		oc.mu.Unlock()
		if alive {
			return oc, nil
		}
	}
	addr, ok := t.addrs.Load(node)
	if !ok {
		return nil, errors.Wrapf(sindexerr.ErrRouterUnknown, "node %s", node)
	}
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, errors.Wrapf(err, "transport: dial %s", addr)
	}
	oc := &outConn{conn: conn}
	t.conns.Store(node, oc)
	go t.readReplies(node, oc)
	return oc, nil
}

func (t *TCP) readReplies(node cluster.NodeHandle, oc *outConn) {
	var buf bytes.Buffer
	tmp := make([]byte, 4096)
	for {
		n, err := oc.conn.Read(tmp)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil {
			t.conns.Delete(node)
			oc.mu.Lock()
			oc.conn = nil
			oc.mu.Unlock()
			return
		}
		recs, splitErr := wire.Split(&buf)
		if splitErr != nil {
			t.log.Error("transport: bad reply frame", "node", node, "err", splitErr)
			continue
		}
		for _, rec := range recs {
			body, _ := wire.Take(litReply, rec)
			if body == nil {
				continue
			}
			txn, terminal, status, payload, err := decodeReplyFrame(body)
			if err != nil {
				t.log.Error("transport: bad reply payload", "err", err)
				continue
			}
			onReply, ok := t.pending.Load(txn)
			if !ok {
				continue
			}
			if terminal {
				t.pending.Delete(txn)
			}
			onReply(Reply{Body: payload, Status: status, Terminal: terminal})
		}
	}
}

func (t *TCP) Dispatch(ctx context.Context, node cluster.NodeHandle, cmd wire.Command, body []byte, onReply ReplyFunc) error {
	oc, err := t.dial(node)
	if err != nil {
		return errors.Wrap(sindexerr.ErrDispatchFailed, err.Error())
	}
	txn := uuid.Must(uuid.NewV7())
	t.pending.Store(txn, onReply)

	frame := wire.Record(litRequest, encodeRequestFrame(txn, cmd, body))
	oc.mu.Lock()
	_, werr := oc.conn.Write(frame)
	oc.mu.Unlock()
	if werr != nil {
		t.pending.Delete(txn)
		return errors.Wrap(sindexerr.ErrDispatchFailed, werr.Error())
	}
	return nil
}

func encodeRequestFrame(txn uuid.UUID, cmd wire.Command, body []byte) []byte {
	buf := make([]byte, 0, 16+1+len(body))
	buf = append(buf, txn[:]...)
	buf = append(buf, byte(cmd))
	buf = append(buf, body...)
	return buf
}

func decodeRequestFrame(body []byte) (uuid.UUID, wire.Command, []byte, error) {
	if len(body) < 17 {
		return uuid.UUID{}, 0, nil, errors.New("transport: short request frame")
	}
	var txn uuid.UUID
	copy(txn[:], body[:16])
	return txn, wire.Command(body[16]), body[17:], nil
}

func encodeReplyFrame(txn uuid.UUID, terminal bool, status int32, body []byte) []byte {
	buf := make([]byte, 0, 16+1+4+len(body))
	buf = append(buf, txn[:]...)
	if terminal {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(status))
	buf = append(buf, body...)
	return buf
}

func decodeReplyFrame(body []byte) (uuid.UUID, bool, int32, []byte, error) {
	if len(body) < 21 {
		return uuid.UUID{}, false, 0, nil, errors.New("transport: short reply frame")
	}
	var txn uuid.UUID
	copy(txn[:], body[:16])
	terminal := body[16] != 0
	status := int32(binary.BigEndian.Uint32(body[17:21]))
	return txn, terminal, status, body[21:], nil
}
