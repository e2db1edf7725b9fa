package sindex

import (
	"context"

	"github.com/pkg/errors"

	"github.com/drpcorg/sindex/cluster"
	"github.com/drpcorg/sindex/metrics"
	"github.com/drpcorg/sindex/rdx"
	"github.com/drpcorg/sindex/sindexerr"
	"github.com/drpcorg/sindex/storage"
	"github.com/drpcorg/sindex/wire"
)

// routingKeyFor is the storage key an INTERNAL request mutates: the
// membership table for index_id on the shard the entry's routing id lands on.
func routingKeyFor(indexID rdx.ID, shardID, shardCount uint32) []byte {
	return cluster.ShardTransform(indexID, shardID, shardCount).Bytes()
}

// HandleInternal mutates a single index-membership table by inserting,
// updating or removing one entry.
func (srv *Server) HandleInternal(ctx context.Context, req wire.Request) wire.Reply {
	if len(req.Entries) != 1 {
		return wire.Reply{
			Flags:   wire.FlagAck,
			Entries: []wire.ReplyEntry{{IndexID: rdx.BadID, Status: statusOf(sindexerr.ErrInvalidArgument)}},
		}
	}
	entry := req.Entries[0]
	insert := entry.Flags&wire.FlagInsert != 0
	remove := entry.Flags&wire.FlagRemove != 0
	if insert == remove {
		return wire.Reply{
			Flags:   wire.FlagAck,
			Entries: []wire.ReplyEntry{{IndexID: entry.IndexID, Status: statusOf(sindexerr.ErrInvalidArgument)}},
		}
	}

	status := srv.applyMembership(ctx, req.ObjectID, entry.IndexID, entry.Payload, insert, req.ShardID, req.ShardCount)
	return wire.Reply{
		Flags:   wire.FlagAck,
		Entries: []wire.ReplyEntry{{IndexID: entry.IndexID, Status: status}},
	}
}

// applyMembership performs one INSERT/REMOVE against the membership table
// keyed by shard_transform(indexID, shardID), returning the wire status to
// report for it. It is also called in-process by the update driver for
// locally-owned membership edits.
func (srv *Server) applyMembership(ctx context.Context, objectID, indexID rdx.ID, payload []byte, insert bool, shardID, shardCount uint32) int32 {
	key := routingKeyFor(indexID, shardID, shardCount)
	routingID := cluster.ShardTransform(indexID, shardID, shardCount)

	unlock := srv.membershipLocks.Lock(routingID)
	defer unlock()

	blob, err := srv.host.Storage().Read(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return statusOf(err)
	}
	tbl, err := decodeTable(blob)
	if err != nil {
		return statusOf(err)
	}
	if tbl.ShardCount == 0 {
		tbl.ShardID, tbl.ShardCount = shardID, shardCount
	}

	action := "remove"
	if insert {
		action = "insert"
	}

	idx, found := search(tbl.Entries, objectID)
	mutated := false
	switch {
	case found && insert && string(tbl.Entries[idx].Payload) == string(payload):
		// no-op: identical payload already present
	case found && insert:
		tbl.Entries[idx].Payload = payload
		mutated = true
	case found && !insert:
		tbl.Entries = append(tbl.Entries[:idx], tbl.Entries[idx+1:]...)
		mutated = true
	case !found && insert:
		tbl.Entries = append(tbl.Entries, Entry{})
		copy(tbl.Entries[idx+1:], tbl.Entries[idx:])
		tbl.Entries[idx] = Entry{Key: objectID, Payload: payload}
		mutated = true
	case !found && !insert:
		// no-op: idempotent remove
	}

	if !mutated {
		metrics.InternalResults.WithLabelValues(action, "noop").Inc()
		return statusOK
	}
	if err := srv.host.Storage().Write(ctx, key, encodeTable(tbl)); err != nil {
		metrics.InternalResults.WithLabelValues(action, "error").Inc()
		return statusOf(err)
	}
	metrics.InternalResults.WithLabelValues(action, "applied").Inc()
	return statusOK
}
