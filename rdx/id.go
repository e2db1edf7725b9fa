// Package rdx defines the fixed-width identifiers used throughout the
// secondary-index subsystem: object ids, index ids and the group selector
// that scopes a request to a replication group.
package rdx

import (
	"bytes"
	"encoding/hex"
)

// IDSize is the fixed width of every object id and index id, in bytes.
const IDSize = 64

// ID is a fixed-width, opaque identifier. Ordering is lexicographic byte
// comparison.
type ID [IDSize]byte

// BadID is the zero ID, used as the index id of reply entries that carry a
// request-wide status rather than one index's.
var BadID ID

// GroupID selects a replication group. Its contents are opaque to this
// subsystem; it is carried alongside an ID to make it "fully qualified"
// but never itself hashed, sharded or compared.
type GroupID uint64

// FQID is an ID scoped to a replication group.
type FQID struct {
	ID    ID
	Group GroupID
}

// IDFromBytes copies b into a new ID. Panics if len(b) != IDSize, the same
// fixed-key assumption chotki's OKeyIdRdt slicing makes.
func IDFromBytes(b []byte) (id ID) {
	if len(b) != IDSize {
		panic("rdx: id must be exactly IDSize bytes")
	}
	copy(id[:], b)
	return
}

func (id ID) Bytes() []byte {
	out := make([]byte, IDSize)
	copy(out, id[:])
	return out
}

// Less implements the lexicographic byte ordering used to sort index
// entries and object entries by their primary key.
func (id ID) Less(other ID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

func (id ID) Equal(other ID) bool {
	return id == other
}

func (id ID) IsZero() bool {
	return id == ID{}
}

// String renders the first and last 8 hex digits, mirroring the way
// chotki's ID.String() trims a verbose identifier for logs rather than
// dumping the full width.
func (id ID) String() string {
	full := hex.EncodeToString(id[:])
	if len(full) <= 16 {
		return full
	}
	return full[:8] + ".." + full[len(full)-8:]
}

// Compare orders a and b like bytes.Compare; find.go's intersectSorted
// merge uses it.
func Compare(a, b ID) int {
	return bytes.Compare(a[:], b[:])
}
