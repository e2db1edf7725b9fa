// Package wire implements the binary framing this subsystem uses both for
// persisted tables and for the inbound/outbound command frames exchanged
// with the dispatcher and the transport layer.
//
// Framing is adapted from chotki's ToyTLV-derived protocol package: a
// length-prefixed record whose header case selects a short (1-byte length,
// up to 255 bytes) or long (4-byte length) body. This variant drops the
// single-byte "tiny" format, since every record this subsystem frames (a
// transport request or reply) is expected to exceed a handful of bytes.
// Persisted tables are not TLV-framed; they carry the Magic prefix instead.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// caseBit flips an uppercase ASCII letter to lowercase and back; used to
// tag short-form headers the same way chotki's TLV does.
const caseBit = 'a' - 'A'

var (
	ErrIncomplete = errors.New("wire: incomplete record")
	ErrBadRecord  = errors.New("wire: malformed record header")
)

// ProbeHeader inspects the start of data and reports the record's type,
// header length and body length, without consuming anything. lit is 0 if
// data is too short to tell, or '-' if the header is malformed.
func ProbeHeader(data []byte) (lit byte, hdrLen, bodyLen int) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	b := data[0]
	switch {
	case b >= 'a' && b <= 'z':
		if len(data) < 2 {
			return 0, 0, 0
		}
		return b - caseBit, 2, int(data[1])
	case b >= 'A' && b <= 'Z':
		if len(data) < 5 {
			return 0, 0, 0
		}
		n := binary.BigEndian.Uint32(data[1:5])
		if n > 0x7fffffff {
			return '-', 0, 0
		}
		return b, 5, int(n)
	default:
		return '-', 0, 0
	}
}

// AppendHeader appends a record header for a body of bodyLen bytes. A
// lowercase lit selects the short form when it fits.
func AppendHeader(into []byte, lit byte, bodyLen int) []byte {
	upper := lit &^ caseBit
	if upper < 'A' || upper > 'Z' {
		panic("wire: record type must be A-Z")
	}
	if bodyLen <= 0xff && (lit&caseBit) != 0 {
		return append(into, lit, byte(bodyLen))
	}
	if bodyLen > 0x7fffffff {
		panic("wire: record too large")
	}
	into = append(into, upper)
	return binary.BigEndian.AppendUint32(into, uint32(bodyLen))
}

// Record builds a complete header+body record.
func Record(lit byte, body ...[]byte) []byte {
	total := 0
	for _, b := range body {
		total += len(b)
	}
	out := make([]byte, 0, total+5)
	out = AppendHeader(out, lit, total)
	for _, b := range body {
		out = append(out, b...)
	}
	return out
}

// Take extracts a record of the given type from the front of data. If data
// does not yet hold a complete record, body is nil and rest echoes data
// back unchanged so callers can wait for more; if the record is of another
// type, both body and rest are nil.
func Take(lit byte, data []byte) (body, rest []byte) {
	flit, hdrLen, bodyLen := ProbeHeader(data)
	if flit == 0 || hdrLen+bodyLen > len(data) {
		return nil, data
	}
	if flit != lit&^caseBit {
		return nil, nil
	}
	return data[hdrLen : hdrLen+bodyLen], data[hdrLen+bodyLen:]
}

// TakeWary is Take for untrusted input: it reports why extraction failed
// instead of returning a bare nil.
func TakeWary(lit byte, data []byte) (body, rest []byte, err error) {
	flit, hdrLen, bodyLen := ProbeHeader(data)
	if flit == '-' {
		return nil, data, ErrBadRecord
	}
	if flit == 0 || hdrLen+bodyLen > len(data) {
		return nil, data, ErrIncomplete
	}
	if flit != lit&^caseBit {
		return nil, data, ErrBadRecord
	}
	return data[hdrLen : hdrLen+bodyLen], data[hdrLen+bodyLen:], nil
}

// Split parses every complete record out of buf, consuming them, and
// leaves any trailing partial record in place for the next read.
func Split(buf *bytes.Buffer) (recs [][]byte, err error) {
	for buf.Len() > 0 {
		lit, hdrLen, bodyLen := ProbeHeader(buf.Bytes())
		if lit == '-' {
			return recs, ErrBadRecord
		}
		if lit == 0 {
			return recs, nil
		}
		total := hdrLen + bodyLen
		if total > buf.Len() {
			return recs, nil
		}
		rec := make([]byte, total)
		if _, err := buf.Read(rec); err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
