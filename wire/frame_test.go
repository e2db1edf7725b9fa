package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestRoundTrip(t *testing.T) {
	req := Request{
		ObjectID:   mkID(9),
		ShardID:    2,
		ShardCount: 8,
		Flags:      FlagUpdateOnly,
		Entries: []RequestEntry{
			{IndexID: mkID(1), Flags: FlagInsert, Payload: []byte("a")},
			{IndexID: mkID(2), Flags: FlagRemove},
		},
	}
	got, err := DecodeRequest(EncodeRequest(req))
	assert.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestReplyRoundTrip(t *testing.T) {
	rep := Reply{
		Flags: FlagMore,
		Entries: []ReplyEntry{
			{IndexID: mkID(1), Status: 0},
			{IndexID: mkID(2), Status: -2},
		},
	}
	got, err := DecodeReply(EncodeReply(rep))
	assert.NoError(t, err)
	assert.Equal(t, rep, got)
}

func TestFindReplyRoundTrip(t *testing.T) {
	fr := FindReply{
		Status: -2,
		Entries: []FindResultEntry{
			{ID: mkID(3), Annotations: []FindAnnotation{
				{IndexID: mkID(1), Payload: []byte("x")},
				{IndexID: mkID(2), Payload: []byte("y")},
			}},
		},
	}
	got, err := DecodeFindReply(EncodeFindReply(fr))
	assert.NoError(t, err)
	assert.Equal(t, fr, got)
}

func TestDecodeRequestRejectsTruncated(t *testing.T) {
	_, err := DecodeRequest([]byte("short"))
	assert.Error(t, err)
}
