package sindex

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/drpcorg/sindex/metrics"
	"github.com/drpcorg/sindex/rdx"
	"github.com/drpcorg/sindex/sindexerr"
	"github.com/drpcorg/sindex/storage"
	"github.com/drpcorg/sindex/wire"
)

// HandleFind is the query engine: INTERSECT or UNITE over a set of
// index-membership tables on this shard.
func (srv *Server) HandleFind(ctx context.Context, req wire.Request) wire.FindReply {
	intersect := req.Flags&wire.FlagIntersect != 0
	unite := req.Flags&wire.FlagUnite != 0
	if intersect == unite {
		return wire.FindReply{Status: statusOf(sindexerr.ErrUnsupported)}
	}

	mode := "intersect"
	if unite {
		mode = "unite"
	}
	start := time.Now()
	defer func() { metrics.FindDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds()) }()

	indexIDs := make([]rdx.ID, len(req.Entries))
	for i, e := range req.Entries {
		indexIDs[i] = e.IndexID
	}

	var reply wire.FindReply
	if unite {
		reply = srv.findUnite(ctx, req.ShardID, req.ShardCount, indexIDs)
	} else {
		reply = srv.findIntersect(ctx, req.ShardID, req.ShardCount, indexIDs)
	}
	if reply.Status != 0 {
		metrics.FindErrors.WithLabelValues(mode).Inc()
	}
	return reply
}

func (srv *Server) readMembership(ctx context.Context, indexID rdx.ID, shardID, shardCount uint32) (Table, error) {
	key := routingKeyFor(indexID, shardID, shardCount)
	blob, err := srv.host.Storage().Read(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Table{}, err
	}
	return decodeTable(blob)
}

func (srv *Server) findUnite(ctx context.Context, shardID, shardCount uint32, indexIDs []rdx.ID) wire.FindReply {
	order := make([]rdx.ID, 0)
	byObject := make(map[rdx.ID]*wire.FindResultEntry)
	var lastErr error

	for _, indexID := range indexIDs {
		tbl, err := srv.readMembership(ctx, indexID, shardID, shardCount)
		if err != nil {
			if lastErr == nil {
				lastErr = err
			}
			continue
		}
		for _, e := range tbl.Entries {
			entry, ok := byObject[e.Key]
			if !ok {
				entry = &wire.FindResultEntry{ID: e.Key}
				byObject[e.Key] = entry
				order = append(order, e.Key)
			}
			entry.Annotations = append(entry.Annotations, wire.FindAnnotation{IndexID: indexID, Payload: e.Payload})
		}
	}

	entries := make([]wire.FindResultEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, *byObject[id])
	}
	return wire.FindReply{Status: statusOf(lastErr), Entries: entries}
}

func (srv *Server) findIntersect(ctx context.Context, shardID, shardCount uint32, indexIDs []rdx.ID) wire.FindReply {
	if len(indexIDs) == 0 {
		return wire.FindReply{}
	}

	seedTbl, err := srv.readMembership(ctx, indexIDs[0], shardID, shardCount)
	if err != nil {
		return wire.FindReply{Status: statusOf(err)}
	}
	entries := make([]wire.FindResultEntry, len(seedTbl.Entries))
	for i, e := range seedTbl.Entries {
		entries[i] = wire.FindResultEntry{
			ID:          e.Key,
			Annotations: []wire.FindAnnotation{{IndexID: indexIDs[0], Payload: e.Payload}},
		}
	}

	for _, indexID := range indexIDs[1:] {
		tbl, err := srv.readMembership(ctx, indexID, shardID, shardCount)
		if err != nil {
			return wire.FindReply{Status: statusOf(err)}
		}
		entries = intersectSorted(entries, tbl.Entries, indexID)
		if len(entries) == 0 {
			break
		}
	}
	return wire.FindReply{Entries: entries}
}

// intersectSorted merges the current result set (sorted by object id, since
// every membership table is) with one more index's entries in linear time,
// appending the matching (indexID, payload) annotation on each hit.
func intersectSorted(current []wire.FindResultEntry, next []Entry, indexID rdx.ID) []wire.FindResultEntry {
	out := current[:0]
	i, j := 0, 0
	for i < len(current) && j < len(next) {
		switch cmp := rdx.Compare(current[i].ID, next[j].Key); {
		case cmp < 0:
			i++
		case cmp > 0:
			j++
		default:
			current[i].Annotations = append(current[i].Annotations, wire.FindAnnotation{IndexID: indexID, Payload: next[j].Payload})
			out = append(out, current[i])
			i++
			j++
		}
	}
	return out
}
