package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drpcorg/sindex/rdx"
)

func TestTableRoundTrip(t *testing.T) {
	tbl := Table{
		ShardID:    3,
		ShardCount: 16,
		Entries: []Entry{
			{Key: mkID(1), Payload: []byte("x")},
			{Key: mkID(2), Payload: nil},
		},
	}
	blob := EncodeTable(tbl)
	got, err := DecodeTable(blob)
	assert.NoError(t, err)
	assert.Equal(t, tbl.ShardID, got.ShardID)
	assert.Equal(t, tbl.ShardCount, got.ShardCount)
	assert.Equal(t, tbl.Entries, got.Entries)
}

func TestTableEmptyBlobIsEmptyTable(t *testing.T) {
	got, err := DecodeTable(nil)
	assert.NoError(t, err)
	assert.Empty(t, got.Entries)
}

func TestTableMagiclessBlobIsEmptyTable(t *testing.T) {
	got, err := DecodeTable([]byte("not a table, no magic here"))
	assert.NoError(t, err)
	assert.Empty(t, got.Entries)
}

func TestTableReserializationIsByteIdentical(t *testing.T) {
	tbl := Table{ShardID: 1, ShardCount: 4, Entries: []Entry{{Key: mkID(7), Payload: []byte("p")}}}
	a := EncodeTable(tbl)
	decoded, err := DecodeTable(a)
	assert.NoError(t, err)
	b := EncodeTable(decoded)
	assert.Equal(t, a, b)
}

func mkID(b byte) (id rdx.ID) {
	id[rdx.IDSize-1] = b
	return
}
