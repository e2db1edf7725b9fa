// Package host defines the Host interface sindex.Server runs against,
// aggregating storage, routing, transport and logging the same way
// chotki.Chotki aggregates its own storage/broadcast surface.
package host

import (
	"github.com/drpcorg/sindex/cluster"
	"github.com/drpcorg/sindex/storage"
	"github.com/drpcorg/sindex/transport"
	"github.com/drpcorg/sindex/utils"
)

// Config carries the cluster placement parameters this node was started
// with, following the shape of chotki.Options.
type Config struct {
	ShardID    uint32
	ShardCount uint32
	Self       cluster.NodeHandle
}

func (c *Config) SetDefaults() {
	if c.ShardCount == 0 {
		c.ShardCount = 1
	}
}

type Host interface {
	Storage() storage.Storage
	Router() cluster.Router
	Transport() transport.Transport
	Logger() utils.Logger
	Config() Config
}

// Static is the straightforward Host built by cmd/sindexd, wiring one
// concrete implementation of each collaborator.
type Static struct {
	St  storage.Storage
	Rt  cluster.Router
	Tr  transport.Transport
	Log utils.Logger
	Cfg Config
}

func (s *Static) Storage() storage.Storage       { return s.St }
func (s *Static) Router() cluster.Router         { return s.Rt }
func (s *Static) Transport() transport.Transport { return s.Tr }
func (s *Static) Logger() utils.Logger           { return s.Log }
func (s *Static) Config() Config                 { return s.Cfg }
