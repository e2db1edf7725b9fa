package sindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drpcorg/sindex/cluster"
	"github.com/drpcorg/sindex/host"
	"github.com/drpcorg/sindex/rdx"
	"github.com/drpcorg/sindex/storage"
	"github.com/drpcorg/sindex/transport"
	"github.com/drpcorg/sindex/wire"
)

func updateRequest(objectID rdx.ID, updateOnly bool, entries ...wire.RequestEntry) wire.Request {
	var flags uint32
	if updateOnly {
		flags = wire.FlagUpdateOnly
	}
	return wire.Request{ObjectID: objectID, ShardID: 0, ShardCount: 1, Flags: flags, Entries: entries}
}

func collectReplies(srv *Server, req wire.Request) []wire.Reply {
	var replies []wire.Reply
	done := make(chan struct{})
	srv.HandleUpdate(context.Background(), req, func(r wire.Reply) {
		replies = append(replies, r)
		if r.Flags&wire.FlagAck != 0 {
			close(done)
		}
	})
	<-done
	return replies
}

// O1 has {A("x"), B("y")}; REPLACE with {B("y'"), C("z")}.
func TestUpdateReplaceScenario1(t *testing.T) {
	mem := storage.NewMemory()
	srv := newTestServer(mem)
	o1 := mkID(1)
	a, b, c := mkID(0xA), mkID(0xB), mkID(0xC)

	replies := collectReplies(srv, updateRequest(o1, false,
		wire.RequestEntry{IndexID: a, Payload: []byte("x")},
		wire.RequestEntry{IndexID: b, Payload: []byte("y")},
	))
	require.NotEmpty(t, replies)

	replies = collectReplies(srv, updateRequest(o1, false,
		wire.RequestEntry{IndexID: b, Payload: []byte("y'")},
		wire.RequestEntry{IndexID: c, Payload: []byte("z")},
	))

	objTbl, err := decodeTable(mustRead(t, mem, o1.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Key: b, Payload: []byte("y'")}, {Key: c, Payload: []byte("z")}}, objTbl.Entries)

	aTbl, err := srv.readMembership(context.Background(), a, 0, 1)
	require.NoError(t, err)
	assert.Empty(t, aTbl.Entries)

	bTbl, err := srv.readMembership(context.Background(), b, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Key: o1, Payload: []byte("y'")}}, bTbl.Entries)

	cTbl, err := srv.readMembership(context.Background(), c, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Key: o1, Payload: []byte("z")}}, cTbl.Entries)

	terminal := replies[len(replies)-1]
	assert.True(t, terminal.Flags&wire.FlagAck != 0)
}

// Same start, UPDATE_ONLY {B("y'')"} -> union, zero membership writes.
func TestUpdateOnlyScenario2(t *testing.T) {
	counting := storage.NewCounting(storage.NewMemory())
	srv := newTestServer(counting)
	o1 := mkID(1)
	a, b := mkID(0xA), mkID(0xB)

	collectReplies(srv, updateRequest(o1, false,
		wire.RequestEntry{IndexID: a, Payload: []byte("x")},
		wire.RequestEntry{IndexID: b, Payload: []byte("y")},
	))

	aKey, bKey := routingKeyFor(a, 0, 1), routingKeyFor(b, 0, 1)
	aWritesBefore, bWritesBefore := counting.WriteCount(aKey), counting.WriteCount(bKey)

	collectReplies(srv, updateRequest(o1, true, wire.RequestEntry{IndexID: b, Payload: []byte("y''")}))

	objTbl, err := decodeTable(mustRead(t, counting, o1.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Key: a, Payload: []byte("x")}, {Key: b, Payload: []byte("y''")}}, objTbl.Entries)
	assert.Equal(t, aWritesBefore, counting.WriteCount(aKey))
	assert.Equal(t, bWritesBefore, counting.WriteCount(bKey))
}

// Round-trip law: REPLACE(O, S) twice issues zero membership writes the
// second time.
func TestUpdateReplaceIsIdempotent(t *testing.T) {
	backing := storage.NewMemory()
	counting := storage.NewCounting(backing)
	srv := newTestServer(counting)
	o1 := mkID(1)
	req := updateRequest(o1, false,
		wire.RequestEntry{IndexID: mkID(0xA), Payload: []byte("x")},
		wire.RequestEntry{IndexID: mkID(0xB), Payload: []byte("y")},
	)

	collectReplies(srv, req)
	totalAfterFirst := counting.TotalWrites()
	collectReplies(srv, req)
	assert.Equal(t, totalAfterFirst, counting.TotalWrites())
}

// Boundary: empty REPLACE clears all memberships.
func TestUpdateReplaceEmptyClearsAll(t *testing.T) {
	backing := storage.NewMemory()
	srv := newTestServer(backing)
	o1 := mkID(1)
	a := mkID(0xA)
	collectReplies(srv, updateRequest(o1, false, wire.RequestEntry{IndexID: a, Payload: []byte("x")}))

	collectReplies(srv, updateRequest(o1, false))

	objTbl, err := decodeTable(mustRead(t, backing, o1.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, objTbl.Entries)

	aTbl, err := srv.readMembership(context.Background(), a, 0, 1)
	require.NoError(t, err)
	assert.Empty(t, aTbl.Entries)
}

// Scenario 6: REPLACE with 4 inserts, 2 local + 2 remote.
func TestUpdateReplaceFansOutLocalAndRemote(t *testing.T) {
	local := storage.NewMemory()
	remote := storage.NewMemory()

	remoteSrv := newTestServer(remote)
	mtransport := transport.NewMemory()
	mtransport.Register("remote-node", func(ctx context.Context, cmd wire.Command, body []byte) ([]byte, int32) {
		req, err := wire.DecodeRequest(body)
		require.NoError(t, err)
		reply := remoteSrv.HandleInternal(ctx, req)
		return wire.EncodeReply(reply), 0
	})

	ring := cluster.NewRing(cluster.NodeHandle("self"), 64)
	o1 := mkID(1)
	i1, i2, i3, i4 := mkID(0xA), mkID(0xB), mkID(0xC), mkID(0xD)
	// i3, i4 route to the remote node; i1, i2 stay local (ring default).
	ring.Assign(cluster.ShardTransform(i3, 0, 1), cluster.NodeHandle("remote-node"))
	ring.Assign(cluster.ShardTransform(i4, 0, 1), cluster.NodeHandle("remote-node"))

	h := &host.Static{St: local, Rt: ring, Tr: mtransport, Log: testLogger(), Cfg: host.Config{ShardCount: 1}}
	srv := NewServer(h)

	replies := collectReplies(srv, updateRequest(o1, false,
		wire.RequestEntry{IndexID: i1, Payload: []byte("1")},
		wire.RequestEntry{IndexID: i2, Payload: []byte("2")},
		wire.RequestEntry{IndexID: i3, Payload: []byte("3")},
		wire.RequestEntry{IndexID: i4, Payload: []byte("4")},
	))

	var moreCount, ackCount int
	totalEntries := 0
	for _, r := range replies {
		if r.Flags&wire.FlagAck != 0 {
			ackCount++
		} else if r.Flags&wire.FlagMore != 0 {
			moreCount++
			totalEntries += len(r.Entries)
		}
	}
	assert.Equal(t, 1, ackCount)
	assert.Equal(t, 3, moreCount) // 1 local batch + 2 remote forwards
	assert.Equal(t, 4, totalEntries)

	for _, idx := range []rdx.ID{i1, i2} {
		tbl, err := srv.readMembership(context.Background(), idx, 0, 1)
		require.NoError(t, err)
		assert.Len(t, tbl.Entries, 1)
	}
	for _, idx := range []rdx.ID{i3, i4} {
		tbl, err := remoteSrv.readMembership(context.Background(), idx, 0, 1)
		require.NoError(t, err)
		assert.Len(t, tbl.Entries, 1)
	}
}

// A failed local membership write must still surface on the terminal ack,
// not just the object-table write and remote-dispatch failure sites.
func TestUpdateReplaceFoldsFailedLocalMembershipWriteIntoAck(t *testing.T) {
	o1, a := mkID(1), mkID(0xA)
	failing := &failingStorage{Storage: storage.NewMemory(), failWriteKeys: map[string]error{
		string(routingKeyFor(a, 0, 1)): errSimulatedReadFailure,
	}}
	srv := newTestServer(failing)

	replies := collectReplies(srv, updateRequest(o1, false, wire.RequestEntry{IndexID: a, Payload: []byte("x")}))

	terminal := replies[len(replies)-1]
	require.True(t, terminal.Flags&wire.FlagAck != 0)
	require.Len(t, terminal.Entries, 1)
	assert.Equal(t, rdx.BadID, terminal.Entries[0].IndexID)
	assert.NotEqual(t, int32(0), terminal.Entries[0].Status)
}

func mustRead(t *testing.T, st storage.Storage, key []byte) []byte {
	t.Helper()
	blob, err := st.Read(context.Background(), key)
	require.NoError(t, err)
	return blob
}
