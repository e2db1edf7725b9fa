package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/drpcorg/sindex/rdx"
)

// Command identifies which of the three inbound wire commands a frame
// carries.
type Command byte

const (
	CmdUpdate   Command = 'U'
	CmdInternal Command = 'N'
	CmdFind     Command = 'D'
)

// Flag bits, packed into the request/entry flags word. "UPDATE_ONLY" is
// bit 0, matching the update-driver mode flag; the index-side action and
// query-mode bits share the rest of the low byte since a given request
// only ever sets one flag family.
const (
	FlagUpdateOnly uint32 = 1 << 0

	FlagInsert uint32 = 1 << 1
	FlagRemove uint32 = 1 << 2

	FlagIntersect uint32 = 1 << 3
	FlagUnite     uint32 = 1 << 4

	// Reply-side flags.
	FlagMore uint32 = 1 << 5
	FlagAck  uint32 = 1 << 6
)

var (
	ErrBadFrame = errors.New("wire: malformed frame")
)

// RequestEntry is one (index_id, payload) the caller wants inserted,
// removed or looked up.
type RequestEntry struct {
	IndexID rdx.ID
	Flags   uint32
	Payload []byte
}

// Request is the shared body shape of INDEXES_UPDATE, INDEXES_INTERNAL and
// INDEXES_FIND.
type Request struct {
	ObjectID   rdx.ID
	ShardID    uint32
	ShardCount uint32
	Flags      uint32
	Entries    []RequestEntry
}

func EncodeRequest(r Request) []byte {
	size := rdx.IDSize + 4 + 4 + 4 + 4
	for _, e := range r.Entries {
		size += rdx.IDSize + 4 + 4 + 4 + len(e.Payload)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, r.ObjectID[:]...)
	buf = binary.BigEndian.AppendUint32(buf, r.ShardID)
	buf = binary.BigEndian.AppendUint32(buf, r.ShardCount)
	buf = binary.BigEndian.AppendUint32(buf, r.Flags)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Entries)))
	for _, e := range r.Entries {
		buf = append(buf, e.IndexID[:]...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Payload)))
		buf = binary.BigEndian.AppendUint32(buf, e.Flags)
		buf = append(buf, e.Payload...)
	}
	return buf
}

func DecodeRequest(body []byte) (Request, error) {
	if len(body) < rdx.IDSize+16 {
		return Request{}, errors.Wrap(ErrBadFrame, "request header")
	}
	r := Request{ObjectID: rdx.IDFromBytes(body[:rdx.IDSize])}
	body = body[rdx.IDSize:]
	r.ShardID = binary.BigEndian.Uint32(body[0:4])
	r.ShardCount = binary.BigEndian.Uint32(body[4:8])
	r.Flags = binary.BigEndian.Uint32(body[8:12])
	count := binary.BigEndian.Uint32(body[12:16])
	body = body[16:]
	r.Entries = make([]RequestEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(body) < rdx.IDSize+8 {
			return Request{}, errors.Wrapf(ErrBadFrame, "entry %d header", i)
		}
		idxID := rdx.IDFromBytes(body[:rdx.IDSize])
		body = body[rdx.IDSize:]
		size := binary.BigEndian.Uint32(body[0:4])
		flags := binary.BigEndian.Uint32(body[4:8])
		body = body[8:]
		if uint32(len(body)) < size {
			return Request{}, errors.Wrapf(ErrBadFrame, "entry %d payload", i)
		}
		payload := append([]byte(nil), body[:size]...)
		body = body[size:]
		r.Entries = append(r.Entries, RequestEntry{IndexID: idxID, Flags: flags, Payload: payload})
	}
	return r, nil
}

// ReplyEntry carries the outcome of one index update.
type ReplyEntry struct {
	IndexID rdx.ID
	Status  int32 // negative errno, 0 on success
}

// Reply is the outbound frame shape shared by UPDATE's intermediate and
// terminal frames and by INTERNAL's single terminal frame.
type Reply struct {
	Flags   uint32 // FlagMore xor FlagAck
	Entries []ReplyEntry
}

func EncodeReply(r Reply) []byte {
	buf := make([]byte, 0, 8+len(r.Entries)*(rdx.IDSize+4))
	buf = binary.BigEndian.AppendUint32(buf, r.Flags)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Entries)))
	for _, e := range r.Entries {
		buf = append(buf, e.IndexID[:]...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(e.Status))
	}
	return buf
}

func DecodeReply(body []byte) (Reply, error) {
	if len(body) < 8 {
		return Reply{}, errors.Wrap(ErrBadFrame, "reply header")
	}
	r := Reply{Flags: binary.BigEndian.Uint32(body[0:4])}
	count := binary.BigEndian.Uint32(body[4:8])
	body = body[8:]
	r.Entries = make([]ReplyEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(body) < rdx.IDSize+4 {
			return Reply{}, errors.Wrapf(ErrBadFrame, "entry %d", i)
		}
		id := rdx.IDFromBytes(body[:rdx.IDSize])
		status := int32(binary.BigEndian.Uint32(body[rdx.IDSize : rdx.IDSize+4]))
		body = body[rdx.IDSize+4:]
		r.Entries = append(r.Entries, ReplyEntry{IndexID: id, Status: status})
	}
	return r, nil
}

// FindAnnotation is one (input_index_id, payload) pair an object matched.
type FindAnnotation struct {
	IndexID rdx.ID
	Payload []byte
}

// FindResultEntry is one object id and every input index annotation it
// carries.
type FindResultEntry struct {
	ID          rdx.ID
	Annotations []FindAnnotation
}

// FindReply is FIND's single reply frame: a status (the first tolerated
// read error under UNITE, or the fatal error under INTERSECT) plus the
// packed result vector.
type FindReply struct {
	Status  int32
	Entries []FindResultEntry
}

func EncodeFindReply(r FindReply) []byte {
	size := 8
	for _, e := range r.Entries {
		size += rdx.IDSize + 4
		for _, a := range e.Annotations {
			size += rdx.IDSize + 4 + len(a.Payload)
		}
	}
	buf := make([]byte, 0, size)
	buf = binary.BigEndian.AppendUint32(buf, uint32(r.Status))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Entries)))
	for _, e := range r.Entries {
		buf = append(buf, e.ID[:]...)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Annotations)))
		for _, a := range e.Annotations {
			buf = append(buf, a.IndexID[:]...)
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(a.Payload)))
			buf = append(buf, a.Payload...)
		}
	}
	return buf
}

func DecodeFindReply(body []byte) (FindReply, error) {
	if len(body) < 8 {
		return FindReply{}, errors.Wrap(ErrBadFrame, "find reply header")
	}
	r := FindReply{Status: int32(binary.BigEndian.Uint32(body[0:4]))}
	count := binary.BigEndian.Uint32(body[4:8])
	body = body[8:]
	r.Entries = make([]FindResultEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(body) < rdx.IDSize+4 {
			return FindReply{}, errors.Wrapf(ErrBadFrame, "entry %d", i)
		}
		id := rdx.IDFromBytes(body[:rdx.IDSize])
		body = body[rdx.IDSize:]
		acount := binary.BigEndian.Uint32(body[0:4])
		body = body[4:]
		entry := FindResultEntry{ID: id, Annotations: make([]FindAnnotation, 0, acount)}
		for j := uint32(0); j < acount; j++ {
			if len(body) < rdx.IDSize+4 {
				return FindReply{}, errors.Wrapf(ErrBadFrame, "entry %d annotation %d", i, j)
			}
			aid := rdx.IDFromBytes(body[:rdx.IDSize])
			body = body[rdx.IDSize:]
			plen := binary.BigEndian.Uint32(body[0:4])
			body = body[4:]
			if uint32(len(body)) < plen {
				return FindReply{}, errors.Wrapf(ErrBadFrame, "entry %d annotation %d payload", i, j)
			}
			payload := append([]byte(nil), body[:plen]...)
			body = body[plen:]
			entry.Annotations = append(entry.Annotations, FindAnnotation{IndexID: aid, Payload: payload})
		}
		r.Entries = append(r.Entries, entry)
	}
	return r, nil
}
