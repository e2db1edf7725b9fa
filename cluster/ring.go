package cluster

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/drpcorg/sindex/rdx"
)

// NodeHandle is an opaque reference to a remote node, returned by
// Router.Owner and threaded through to transport.Transport.Dispatch.
type NodeHandle string

// Router resolves owner_of(routing_id) -> local | remote(node_handle).
type Router interface {
	Owner(routingID rdx.ID) (local bool, node NodeHandle)
}

// Ring is a Router backed by a static node assignment plus an LRU cache of
// recent lookups, grounded on index_manager.go's classCache/hashIndexCache
// pair: a concurrent map holds ground truth, the LRU shortcuts repeat
// lookups on hot routing ids.
type Ring struct {
	self    NodeHandle
	nodes   *xsync.MapOf[rdx.ID, NodeHandle]
	lookups *lru.Cache[rdx.ID, NodeHandle]
}

func NewRing(self NodeHandle, cacheSize int) *Ring {
	cache, _ := lru.New[rdx.ID, NodeHandle](cacheSize)
	return &Ring{
		self:    self,
		nodes:   xsync.NewMapOf[rdx.ID, NodeHandle](),
		lookups: cache,
	}
}

// Assign records that routingID is owned by node, overriding whatever a
// prior assignment (or the default owner, self) said.
func (r *Ring) Assign(routingID rdx.ID, node NodeHandle) {
	r.nodes.Store(routingID, node)
	r.lookups.Remove(routingID)
}

func (r *Ring) Owner(routingID rdx.ID) (bool, NodeHandle) {
	if node, ok := r.lookups.Get(routingID); ok {
		return node == r.self, node
	}
	node, ok := r.nodes.Load(routingID)
	if !ok {
		node = r.self
	}
	r.lookups.Add(routingID, node)
	return node == r.self, node
}
