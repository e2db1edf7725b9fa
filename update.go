package sindex

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drpcorg/sindex/cluster"
	"github.com/drpcorg/sindex/metrics"
	"github.com/drpcorg/sindex/rdx"
	"github.com/drpcorg/sindex/sindexerr"
	"github.com/drpcorg/sindex/transport"
	"github.com/drpcorg/sindex/wire"
)

// updateTask is the shared state a running UPDATE's local path and every
// dispatched remote sub-request contribute to: the in-flight counter and
// the final ack's table-write status, a reference-counted functor reworked
// as a task record. Sub-request callbacks hold it directly; Server.tasks
// also lists it under a transaction id for bookkeeping.
type updateTask struct {
	mu          sync.Mutex
	counter     int
	tableStatus int32
	onReply     func(wire.Reply)
	unlockObj   func()
	started     time.Time
	mode        string
}

// decrement drops the in-flight counter by one; the goroutine that brings
// it to zero emits the final ack and releases the object lock. Only one
// goroutine can ever observe the zero transition since the counter is
// mutated under the task's own mutex.
func (t *updateTask) decrement() {
	t.mu.Lock()
	t.counter--
	fire := t.counter == 0
	t.mu.Unlock()
	if fire {
		t.finalize()
	}
}

func (t *updateTask) finalize() {
	var entries []wire.ReplyEntry
	if t.tableStatus != 0 {
		entries = []wire.ReplyEntry{{IndexID: rdx.BadID, Status: t.tableStatus}}
	}
	t.onReply(wire.Reply{Flags: wire.FlagAck, Entries: entries})
	t.unlockObj()
	metrics.UpdateDuration.WithLabelValues(t.mode).Observe(time.Since(t.started).Seconds())
}

func (t *updateTask) sendIntermediate(entries []wire.ReplyEntry) {
	t.onReply(wire.Reply{Flags: wire.FlagMore, Entries: entries})
}

// HandleUpdate is the object-side update driver. onReply is invoked with
// zero or more MORE frames followed by exactly one ACK frame.
func (srv *Server) HandleUpdate(ctx context.Context, req wire.Request, onReply func(wire.Reply)) {
	log := srv.host.Logger()
	unlock := srv.objectLocks.Lock(req.ObjectID)

	// any read failure, not just ErrNotFound, is treated as an empty table
	// and the write proceeds
	oldBlob, err := srv.host.Storage().Read(ctx, req.ObjectID.Bytes())
	if err != nil {
		oldBlob = nil
	}
	oldTable, err := decodeTable(oldBlob)
	if err != nil {
		unlock()
		onReply(wire.Reply{Flags: wire.FlagAck, Entries: []wire.ReplyEntry{{IndexID: rdx.BadID, Status: statusOf(err)}}})
		return
	}

	incoming := make([]Entry, len(req.Entries))
	for i, e := range req.Entries {
		incoming[i] = Entry{Key: e.IndexID, Payload: e.Payload}
	}
	incoming = sortDedup(incoming)

	updateOnly := req.Flags&wire.FlagUpdateOnly != 0
	mode := "replace"
	if updateOnly {
		mode = "update_only"
	}

	var newTable Table
	if updateOnly {
		merged := append(append([]Entry(nil), oldTable.Entries...), incoming...)
		newTable = Table{ShardID: req.ShardID, ShardCount: req.ShardCount, Entries: sortDedup(merged)}
	} else {
		newTable = Table{ShardID: req.ShardID, ShardCount: req.ShardCount, Entries: incoming}
	}

	txn := uuid.Must(uuid.NewV7())
	unlockObj := func() {
		srv.tasks.Delete(txn)
		unlock()
	}
	task := &updateTask{counter: 1, onReply: onReply, unlockObj: unlockObj, started: time.Now(), mode: mode}
	srv.tasks.Store(txn, task)

	if !entriesEqual(oldTable.Entries, newTable.Entries) {
		if err := srv.host.Storage().Write(ctx, req.ObjectID.Bytes(), encodeTable(newTable)); err != nil {
			task.tableStatus = statusOf(err)
			log.ErrorCtx(ctx, "update: object table write failed", "object", req.ObjectID.String(), "err", err)
			task.decrement()
			return
		}
	}

	if updateOnly {
		task.decrement()
		return
	}

	insertSet, removeSet := diff(oldTable.Entries, newTable.Entries)
	if len(insertSet) == 0 && len(removeSet) == 0 {
		task.decrement()
		return
	}

	localResults := make([]wire.ReplyEntry, 0, len(insertSet)+len(removeSet))
	localInserted, localRemoved, remoteInserted, remoteRemoved := 0, 0, 0, 0

	dispatchAborted := false
	dispatch := func(e Entry, insert bool) {
		if dispatchAborted {
			return
		}
		routingID := cluster.ShardTransform(e.Key, req.ShardID, req.ShardCount)
		local, node := srv.host.Router().Owner(routingID)
		if local {
			status := srv.applyMembership(ctx, req.ObjectID, e.Key, e.Payload, insert, req.ShardID, req.ShardCount)
			localResults = append(localResults, wire.ReplyEntry{IndexID: e.Key, Status: status})
			if status != 0 {
				task.mu.Lock()
				task.tableStatus = status
				task.mu.Unlock()
			}
			metrics.UpdateFanout.WithLabelValues("local").Inc()
			if insert {
				localInserted++
			} else {
				localRemoved++
			}
			return
		}

		flags := uint32(wire.FlagInsert)
		if !insert {
			flags = wire.FlagRemove
		}
		internalReq := wire.Request{
			ObjectID:   req.ObjectID,
			ShardID:    req.ShardID,
			ShardCount: req.ShardCount,
			Entries:    []wire.RequestEntry{{IndexID: e.Key, Flags: flags, Payload: e.Payload}},
		}
		body := wire.EncodeRequest(internalReq)

		task.mu.Lock()
		task.counter++
		task.mu.Unlock()

		derr := srv.host.Transport().Dispatch(ctx, node, wire.CmdInternal, body, func(reply transport.Reply) {
			if reply.Body != nil {
				if rep, err := wire.DecodeReply(reply.Body); err == nil {
					task.sendIntermediate(rep.Entries)
				}
			}
			task.decrement()
		})
		if derr != nil {
			task.mu.Lock()
			task.counter--
			task.mu.Unlock()
			metrics.UpdateDispatchFailures.WithLabelValues("dispatch").Inc()
			task.mu.Lock()
			task.tableStatus = statusOf(sindexerr.ErrDispatchFailed)
			task.mu.Unlock()
			dispatchAborted = true
			return
		}
		metrics.UpdateFanout.WithLabelValues("remote").Inc()
		if insert {
			remoteInserted++
		} else {
			remoteRemoved++
		}
	}

	for _, e := range insertSet {
		dispatch(e, true)
	}
	for _, e := range removeSet {
		dispatch(e, false)
	}

	task.sendIntermediate(localResults)
	log.InfoCtx(ctx, "update: local phase complete",
		"object", req.ObjectID.String(), "mode", mode,
		"local_inserted", localInserted, "local_removed", localRemoved,
		"remote_inserted", remoteInserted, "remote_removed", remoteRemoved)

	task.decrement()
}

// diff computes the key-based insert/remove sets between two sorted,
// deduplicated tables: insertSet carries every key that is new or whose
// payload changed, removeSet the keys present only in old.
func diff(oldEntries, newEntries []Entry) (insertSet, removeSet []Entry) {
	i, j := 0, 0
	for i < len(oldEntries) && j < len(newEntries) {
		switch {
		case oldEntries[i].Key.Equal(newEntries[j].Key):
			if string(oldEntries[i].Payload) != string(newEntries[j].Payload) {
				insertSet = append(insertSet, newEntries[j])
			}
			i++
			j++
		case oldEntries[i].Key.Less(newEntries[j].Key):
			removeSet = append(removeSet, oldEntries[i])
			i++
		default:
			insertSet = append(insertSet, newEntries[j])
			j++
		}
	}
	for ; i < len(oldEntries); i++ {
		removeSet = append(removeSet, oldEntries[i])
	}
	for ; j < len(newEntries); j++ {
		insertSet = append(insertSet, newEntries[j])
	}
	return
}
