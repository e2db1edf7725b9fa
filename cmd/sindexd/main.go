// Command sindexd runs the secondary-index subsystem as a standalone
// process: a pebble-backed store, a static routing ring and a TCP
// transport wired to a sindex.Server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/drpcorg/sindex"
	"github.com/drpcorg/sindex/cluster"
	"github.com/drpcorg/sindex/host"
	"github.com/drpcorg/sindex/storage"
	"github.com/drpcorg/sindex/transport"
	"github.com/drpcorg/sindex/utils"
	"github.com/drpcorg/sindex/wire"
)

func main() {
	var (
		dataDir    = flag.String("data", "sindex-data", "pebble data directory")
		listenAddr = flag.String("listen", ":7420", "address to accept peer connections on")
		selfNode   = flag.String("self", "node-1", "this node's handle, used as the default routing owner")
		shardID    = flag.Uint("shard", 0, "shard id this process serves")
		shardCount = flag.Uint("shards", 1, "cluster-wide shard count")
		peers      = flag.String("peers", "", "comma-separated node=addr pairs for other cluster members")
	)
	flag.Parse()

	log := utils.NewDefaultLogger(slog.LevelInfo)

	st, err := storage.OpenPebble(*dataDir)
	if err != nil {
		log.Error("sindexd: failed to open storage", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	cfg := host.Config{ShardID: uint32(*shardID), ShardCount: uint32(*shardCount), Self: cluster.NodeHandle(*selfNode)}
	cfg.SetDefaults()

	ring := cluster.NewRing(cfg.Self, 4096)

	var srv *sindex.Server
	tcp := transport.NewTCP(log, func(ctx context.Context, cmd wire.Command, body []byte) ([]byte, int32) {
		return dispatchInbound(ctx, srv, cmd, body)
	})
	for node, addr := range parsePeers(*peers) {
		tcp.Register(node, addr)
	}

	h := &host.Static{St: st, Rt: ring, Tr: tcp, Log: log, Cfg: cfg}
	srv = sindex.NewServer(h)

	if err := tcp.Listen(*listenAddr); err != nil {
		log.Error("sindexd: failed to listen", "addr", *listenAddr, "err", err)
		os.Exit(1)
	}
	defer tcp.Close()

	log.Info("sindexd: listening", "addr", *listenAddr, "self", cfg.Self, "shard", cfg.ShardID, "shards", cfg.ShardCount)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()
	fmt.Fprintln(os.Stderr, "sindexd: shutting down")
}

// dispatchInbound answers a request framed by another node. INDEXES_INTERNAL
// and INDEXES_FIND already fit the one-request/one-reply shape a TCP peer
// connection speaks; INDEXES_UPDATE's intermediate frames are a local-API
// concern (see sindex.Server.HandleUpdate and its tests) so only the
// terminal outcome is reported to a remote caller here.
func dispatchInbound(ctx context.Context, srv *sindex.Server, cmd wire.Command, body []byte) ([]byte, int32) {
	switch cmd {
	case wire.CmdInternal:
		req, err := wire.DecodeRequest(body)
		if err != nil {
			return nil, -22
		}
		reply := srv.HandleInternal(ctx, req)
		return wire.EncodeReply(reply), 0

	case wire.CmdFind:
		req, err := wire.DecodeRequest(body)
		if err != nil {
			return nil, -22
		}
		reply := srv.HandleFind(ctx, req)
		return wire.EncodeFindReply(reply), reply.Status

	case wire.CmdUpdate:
		req, err := wire.DecodeRequest(body)
		if err != nil {
			return nil, -22
		}
		var terminal wire.Reply
		done := make(chan struct{})
		srv.HandleUpdate(ctx, req, func(r wire.Reply) {
			if r.Flags&wire.FlagAck != 0 {
				terminal = r
				close(done)
			}
		})
		<-done
		return wire.EncodeReply(terminal), 0

	default:
		return nil, -95
	}
}

func parsePeers(spec string) map[cluster.NodeHandle]string {
	out := map[cluster.NodeHandle]string{}
	if spec == "" {
		return out
	}
	for _, pair := range strings.Split(spec, ",") {
		node, addr, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[cluster.NodeHandle(node)] = addr
	}
	return out
}
