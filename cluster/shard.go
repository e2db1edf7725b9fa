// Package cluster provides the routing primitive the update driver
// consumes: shard_transform and an owner lookup from routing id to node.
package cluster

import (
	"encoding/binary"

	"github.com/cespare/xxhash"

	"github.com/drpcorg/sindex/rdx"
)

// ShardTransform computes shard_transform(index_id, shard_id) -> routing_id.
// It hashes the index id together with the shard id and folds the result
// into shard_count buckets, the way index_manager.go's hashKey folds a
// field/hash pair into a lookup key. The bucket number is XORed into the
// last four bytes of the index id, so for one bucket distinct index ids
// keep distinct routing ids, and bucket 0 leaves the index id unchanged.
func ShardTransform(indexID rdx.ID, shardID, shardCount uint32) rdx.ID {
	if shardCount == 0 {
		shardCount = 1
	}
	var buf [rdx.IDSize + 4]byte
	copy(buf[:rdx.IDSize], indexID[:])
	binary.BigEndian.PutUint32(buf[rdx.IDSize:], shardID)
	hash := xxhash.Sum64(buf[:])
	bucket := uint32(hash % uint64(shardCount))

	var routing rdx.ID
	copy(routing[:], indexID[:])
	tail := binary.BigEndian.Uint32(routing[rdx.IDSize-4:])
	binary.BigEndian.PutUint32(routing[rdx.IDSize-4:], tail^bucket)
	return routing
}
