package sindex

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/drpcorg/sindex/cluster"
	"github.com/drpcorg/sindex/host"
	"github.com/drpcorg/sindex/rdx"
	"github.com/drpcorg/sindex/storage"
	"github.com/drpcorg/sindex/transport"
	"github.com/drpcorg/sindex/utils"
)

func mkID(b byte) (id rdx.ID) {
	id[rdx.IDSize-1] = b
	return
}

func testLogger() utils.Logger {
	return utils.NewDefaultLogger(slog.LevelError)
}

// newTestServer wires a Server against an in-memory storage/self-owning
// router/no-op transport, suitable for single-node scenarios.
func newTestServer(st storage.Storage) *Server {
	h := &host.Static{
		St:  st,
		Rt:  cluster.NewRing(cluster.NodeHandle("self"), 64),
		Tr:  transport.NewMemory(),
		Log: testLogger(),
		Cfg: host.Config{ShardID: 0, ShardCount: 1, Self: cluster.NodeHandle("self")},
	}
	return NewServer(h)
}

// failingStorage returns a fixed error for a set of keys and otherwise
// delegates, used to simulate a membership-table read or write failure.
type failingStorage struct {
	storage.Storage
	failKeys      map[string]error
	failWriteKeys map[string]error
}

func (f *failingStorage) Read(ctx context.Context, key []byte) ([]byte, error) {
	if err, ok := f.failKeys[string(key)]; ok {
		return nil, err
	}
	return f.Storage.Read(ctx, key)
}

func (f *failingStorage) Write(ctx context.Context, key, value []byte) error {
	if err, ok := f.failWriteKeys[string(key)]; ok {
		return err
	}
	return f.Storage.Write(ctx, key, value)
}

var errSimulatedReadFailure = errors.New("simulated read failure")
