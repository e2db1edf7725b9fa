// Package sindex implements the secondary-index subsystem: the object-side
// update driver, the index-side membership driver and the intersect/union
// query engine, wired together by Server.
package sindex

import (
	"sort"

	"github.com/drpcorg/sindex/rdx"
	"github.com/drpcorg/sindex/wire"
)

// Entry is one (key, payload) pair of a table, generic over whether key
// means an index id (object-index table) or an object id (membership
// table).
type Entry struct {
	Key     rdx.ID
	Payload []byte
}

// Table is an in-memory decoded object-index or index-membership table,
// always sorted and deduplicated on Key.
type Table struct {
	ShardID    uint32
	ShardCount uint32
	Entries    []Entry
}

func decodeTable(blob []byte) (Table, error) {
	t, err := wire.DecodeTable(blob)
	if err != nil {
		return Table{}, err
	}
	entries := make([]Entry, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = Entry{Key: e.Key, Payload: e.Payload}
	}
	return Table{ShardID: t.ShardID, ShardCount: t.ShardCount, Entries: entries}, nil
}

func encodeTable(t Table) []byte {
	wt := wire.Table{ShardID: t.ShardID, ShardCount: t.ShardCount, Entries: make([]wire.Entry, len(t.Entries))}
	for i, e := range t.Entries {
		wt.Entries[i] = wire.Entry{Key: e.Key, Payload: e.Payload}
	}
	return wire.EncodeTable(wt)
}

// search returns the index at which key is found (found=true) or the
// insertion point that keeps entries sorted (found=false).
func search(entries []Entry, key rdx.ID) (idx int, found bool) {
	idx = sort.Search(len(entries), func(i int) bool {
		return !entries[i].Key.Less(key)
	})
	found = idx < len(entries) && entries[idx].Key.Equal(key)
	return
}

// sortDedup sorts by Key and, for duplicate keys, keeps the last occurrence
// in original input order (last-in-input wins).
func sortDedup(entries []Entry) []Entry {
	// Stable sort by Key so ties (equal Key) keep relative input order;
	// then a single pass keeps the last of each run.
	indexed := make([]struct {
		Entry
		pos int
	}, len(entries))
	for i, e := range entries {
		indexed[i] = struct {
			Entry
			pos int
		}{e, i}
	}
	sort.SliceStable(indexed, func(i, j int) bool {
		return indexed[i].Key.Less(indexed[j].Key)
	})

	out := make([]Entry, 0, len(entries))
	for i := 0; i < len(indexed); i++ {
		if i+1 < len(indexed) && indexed[i+1].Key.Equal(indexed[i].Key) {
			continue // a later occurrence of the same key follows; skip this one
		}
		out = append(out, indexed[i].Entry)
	}
	return out
}

func entriesEqual(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Key.Equal(b[i].Key) || string(a[i].Payload) != string(b[i].Payload) {
			return false
		}
	}
	return true
}
