package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/drpcorg/sindex/rdx"
)

// Magic tags every non-empty persisted table.
const Magic uint64 = 0x494e44585442 // "INDXTB" packed into 8 bytes

const magicLen = 8

var ErrTruncated = errors.New("wire: truncated table body")

// Entry is one (key, payload) pair, whether it's an object's index
// membership (index_id, payload) or an index's object membership
// (object_id, payload).
type Entry struct {
	Key     rdx.ID
	Payload []byte
}

// Table is the packed shape both the object-index table and the
// index-membership table share: shard parameters plus a sorted,
// deduplicated sequence of entries.
type Table struct {
	ShardID    uint32
	ShardCount uint32
	Entries    []Entry
}

// EncodeTable serializes t with the magic prefix. Field order and widths
// are fixed so two logically-equal tables always produce identical bytes,
// which the drivers rely on to skip no-op writes.
func EncodeTable(t Table) []byte {
	size := magicLen + 4 + 4 + 4
	for _, e := range t.Entries {
		size += rdx.IDSize + 4 + len(e.Payload)
	}
	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint64(buf, Magic)
	buf = binary.BigEndian.AppendUint32(buf, t.ShardID)
	buf = binary.BigEndian.AppendUint32(buf, t.ShardCount)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(t.Entries)))
	for _, e := range t.Entries {
		buf = append(buf, e.Key[:]...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Payload)))
		buf = append(buf, e.Payload...)
	}
	return buf
}

// DecodeTable parses a stored blob. An empty blob, or one that does not
// start with Magic, decodes as an empty table rather than an error: a blob
// without the magic, or with no bytes at all, means "no table". A blob
// that does carry the magic but is malformed after that point is a real
// error.
func DecodeTable(blob []byte) (Table, error) {
	if len(blob) == 0 {
		return Table{}, nil
	}
	if len(blob) < magicLen || binary.BigEndian.Uint64(blob[:magicLen]) != Magic {
		return Table{}, nil
	}
	body := blob[magicLen:]
	if len(body) < 12 {
		return Table{}, errors.Wrap(ErrTruncated, "header")
	}
	t := Table{
		ShardID:    binary.BigEndian.Uint32(body[0:4]),
		ShardCount: binary.BigEndian.Uint32(body[4:8]),
	}
	count := binary.BigEndian.Uint32(body[8:12])
	body = body[12:]
	t.Entries = make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(body) < rdx.IDSize+4 {
			return Table{}, errors.Wrapf(ErrTruncated, "entry %d header", i)
		}
		key := rdx.IDFromBytes(body[:rdx.IDSize])
		body = body[rdx.IDSize:]
		plen := binary.BigEndian.Uint32(body[:4])
		body = body[4:]
		if uint32(len(body)) < plen {
			return Table{}, errors.Wrapf(ErrTruncated, "entry %d payload", i)
		}
		payload := append([]byte(nil), body[:plen]...)
		body = body[plen:]
		t.Entries = append(t.Entries, Entry{Key: key, Payload: payload})
	}
	return t, nil
}
