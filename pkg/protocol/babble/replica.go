package babble

import (
	"fmt"
	"sort"

	"github.com/jabolina/bft-sim/pkg/replica"
	"github.com/jabolina/bft-sim/pkg/simcore"
)

// runState is the per-replica state machine of spec §4.5: Running is
// the only state with outbound transitions (to Decided or
// Suspended); Suspended has none within a run.
type runState int

const (
	stateRunning runState = iota
	stateSuspended
	stateDecided
)

type syncTimerMeta struct{}
type heartbeatTimerMeta struct{}

// Replica implements the replica.Replica contract for the Hashgraph
// reference protocol.
type Replica struct {
	id      simcore.ReplicaID
	n       int
	f       int
	cfg     Config
	call    replica.Callables
	graph   *Graph
	state   runState
	lastSync map[simcore.ReplicaID]float64

	// pendingVotes buffers signatures for a block hash this replica
	// hasn't produced locally yet (its own graph hasn't closed that
	// round); applied once the matching block appears (spec §4.5
	// block finalization -- see afterProgress).
	pendingVotes map[Hash]map[simcore.ReplicaID]bool
	// acked records, per block hash, which peers this replica has
	// already echoed its own signature back to, so a resent
	// BlockSignatureMsg doesn't trigger a duplicate reply.
	acked map[Hash]map[simcore.ReplicaID]bool
}

// New builds a Babble replica. It satisfies replica.Constructor so
// the run controller can load it by the "ssb-babble"/"libp2p-babble"
// config tag without importing this package's concrete type.
func New(cfg replica.Config, call replica.Callables) replica.Replica {
	r := &Replica{
		id:           cfg.ID,
		n:            cfg.N,
		f:            cfg.F,
		cfg:          configFromExtra(cfg.Extra),
		call:         call,
		graph:        NewGraph(),
		lastSync:     make(map[simcore.ReplicaID]float64),
		pendingVotes: make(map[Hash]map[simcore.ReplicaID]bool),
		acked:        make(map[Hash]map[simcore.ReplicaID]bool),
	}
	for id := simcore.ReplicaID(1); id <= simcore.ReplicaID(r.n); id++ {
		if id != r.id {
			r.lastSync[id] = -1
		}
	}

	genesis := NewEvent(r.id, nil, nil, r.call.Clock(), nil)
	r.graph.Insert(genesis)

	r.call.RegisterTimer(syncTimerMeta{}, r.cfg.SyncInterval)
	r.call.RegisterTimer(heartbeatTimerMeta{}, r.cfg.HeartbeatInterval)
	return r
}

func (r *Replica) quorum() int { return 2*r.f + 1 }

// FinalizedBlocks reports how many of this replica's own locally
// produced blocks have reached signature quorum (spec §4.5 block
// finalization). The run controller's termination predicate doesn't
// depend on it -- IsDecided is purely a block count -- this is
// exposed for diagnostics and tests of the finalization handshake.
func (r *Replica) FinalizedBlocks() int {
	n := 0
	for _, b := range r.graph.Blocks() {
		if b.Final {
			n++
		}
	}
	return n
}

// IsDecided implements replica.Replica.
func (r *Replica) IsDecided() bool {
	return len(r.graph.Blocks()) > r.cfg.DecisionThreshold
}

// Reset implements replica.Replica: the run controller normally just
// reconstructs protocols per run, but Reset is provided for callers
// that prefer to reuse the instance.
func (r *Replica) Reset() {
	r.graph = NewGraph()
	r.state = stateRunning
	for id := range r.lastSync {
		r.lastSync[id] = -1
	}
	r.pendingVotes = make(map[Hash]map[simcore.ReplicaID]bool)
	r.acked = make(map[Hash]map[simcore.ReplicaID]bool)
	genesis := NewEvent(r.id, nil, nil, r.call.Clock(), nil)
	r.graph.Insert(genesis)
}

// OnTimer implements replica.Replica.
func (r *Replica) OnTimer(meta interface{}) {
	if r.state == stateSuspended {
		return // suspension stops scheduling new sync/heartbeat timers
	}
	switch meta.(type) {
	case syncTimerMeta:
		r.doSync()
		r.afterProgress()
		if r.state != stateSuspended {
			r.call.RegisterTimer(syncTimerMeta{}, r.cfg.SyncInterval)
		}
	case heartbeatTimerMeta:
		r.createOwnEvent(nil)
		r.afterProgress()
		if r.state != stateSuspended {
			r.call.RegisterTimer(heartbeatTimerMeta{}, r.cfg.HeartbeatInterval)
		}
	default:
		r.call.Log("warn", map[string]interface{}{"replica": r.id}, "unknown timer meta")
	}
}

// OnMessage implements replica.Replica.
func (r *Replica) OnMessage(src simcore.ReplicaID, content interface{}) {
	switch m := content.(type) {
	case SyncRequest:
		r.handleSyncRequest(m)
	case SyncResponse:
		r.handleSyncResponse(m)
	case BlockSignatureMsg:
		r.handleBlockSignature(m)
	default:
		bad := Malformed{Reason: fmt.Sprintf("unrecognized content %#v", content)}
		r.call.Log("warn", map[string]interface{}{"replica": r.id, "from": src}, "dropping malformed content: "+bad.Reason)
	}
}

// pickSyncPeer implements the "peer least recently synced with"
// policy (spec §4.5 gossip sync).
func (r *Replica) pickSyncPeer() simcore.ReplicaID {
	var best simcore.ReplicaID
	bestAt := float64(0)
	first := true
	ids := make([]simcore.ReplicaID, 0, len(r.lastSync))
	for id := range r.lastSync {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		at := r.lastSync[id]
		if first || at < bestAt {
			best, bestAt, first = id, at, false
		}
	}
	return best
}

func (r *Replica) doSync() {
	if len(r.lastSync) == 0 {
		return
	}
	peer := r.pickSyncPeer()
	known := make(map[simcore.ReplicaID]int, len(r.lastSync)+1)
	known[r.id] = r.graph.Height(r.id)
	for id := range r.lastSync {
		known[id] = r.graph.Height(id)
	}
	r.lastSync[peer] = r.call.Clock()
	r.call.Send(peer, SyncRequest{From: r.id, KnownHeight: known})
}

func (r *Replica) handleSyncRequest(m SyncRequest) {
	remaining := r.cfg.SyncResponseLimit
	ids := make([]simcore.ReplicaID, 0, r.n)
	for id := simcore.ReplicaID(1); id <= simcore.ReplicaID(r.n); id++ {
		ids = append(ids, id)
	}
	var events []Event
	for _, creator := range ids {
		if remaining <= 0 {
			break
		}
		height := m.KnownHeight[creator]
		got := r.graph.EventsFrom(creator, height, remaining)
		events = append(events, got...)
		remaining -= len(got)
	}
	r.call.Send(m.From, SyncResponse{From: r.id, Events: events})
}

func (r *Replica) handleSyncResponse(m SyncResponse) {
	if len(m.Events) == 0 {
		return
	}
	var lastNew Hash
	gotAny := false
	for _, e := range m.Events {
		if _, inserted := r.graph.Insert(e); inserted {
			lastNew = e.Hash
			gotAny = true
		}
	}
	if gotAny {
		r.createOwnEvent(&lastNew)
	}
	r.afterProgress()
}

// createOwnEvent appends a new event to this replica's own chain,
// optionally linking otherParent (the tip learned from a sync
// exchange). Heartbeat-only creation passes nil. Every created event
// carries one synthetic transaction so non-genesis rounds have
// something to commit (spec §4.5's block step otherwise has nothing
// to de-duplicate in a simulation with no external client writes).
func (r *Replica) createOwnEvent(otherParent *Hash) {
	var selfParent *Hash
	if h, ok := r.graph.Head(r.id); ok {
		selfParent = &h
	}
	now := r.call.Clock()
	tx := []byte(fmt.Sprintf("r%d@%.6f", r.id, now))
	e := NewEvent(r.id, selfParent, otherParent, now, [][]byte{tx})
	r.graph.Insert(e)
}

// afterProgress runs the consensus/finalization step and the
// suspension check that must happen after any graph mutation.
func (r *Replica) afterProgress() {
	blocks := r.graph.CloseRounds()
	for _, b := range blocks {
		r.call.Log("info", map[string]interface{}{"replica": r.id, "round": b.Round, "index": b.Index}, "produced block")
		r.call.Send(simcore.Broadcast, BlockSignatureMsg{From: r.id, BlockIndex: b.Index, BlockHash: b.Hash})
		if final, justFinal := r.graph.MarkSigned(b.Index, r.id, r.quorum()); justFinal {
			r.call.Log("info", map[string]interface{}{"replica": r.id, "index": final.Index}, "block finalized")
		}
		// Apply any signatures peers sent us before we had produced
		// this block ourselves, and echo our own signature back to
		// them now that we can (spec §4.5 block finalization).
		if votes, ok := r.pendingVotes[b.Hash]; ok {
			for signer := range votes {
				if final, justFinal := r.graph.MarkSigned(b.Index, signer, r.quorum()); justFinal {
					r.call.Log("info", map[string]interface{}{"replica": r.id, "index": final.Index}, "block finalized")
				}
				r.ackSignature(b.Hash, b.Index, signer)
			}
			delete(r.pendingVotes, b.Hash)
		}
	}

	if r.state == stateRunning && float64(r.graph.PendingCount()) > r.cfg.SuspendLimit*float64(r.n) {
		r.state = stateSuspended
		r.call.Log("warn", map[string]interface{}{"replica": r.id}, "suspending: pending events exceed suspend_limit*N")
		return
	}
	if r.state == stateRunning && r.IsDecided() {
		r.state = stateDecided
	}
}

// handleBlockSignature implements the peer side of block finalization
// (spec §4.5): m.From's signature only counts toward m.From's own
// notion of the block (its BlockIndex is local to the sender), so a
// receiver locates the matching block by hash in its own graph. If it
// already holds that block, it records the vote and echoes its own
// signature back so the original sender can accumulate 2f+1 distinct
// signatures; otherwise the vote is buffered until this replica
// produces the same block itself (see afterProgress).
func (r *Replica) handleBlockSignature(m BlockSignatureMsg) {
	idx, ok := r.graph.BlockIndexByHash(m.BlockHash)
	if !ok {
		votes := r.pendingVotes[m.BlockHash]
		if votes == nil {
			votes = make(map[simcore.ReplicaID]bool)
			r.pendingVotes[m.BlockHash] = votes
		}
		votes[m.From] = true
		return
	}
	if final, justFinal := r.graph.MarkSigned(idx, m.From, r.quorum()); justFinal {
		r.call.Log("info", map[string]interface{}{"replica": r.id, "index": final.Index}, "block finalized")
	}
	r.ackSignature(m.BlockHash, idx, m.From)
}

// ackSignature sends this replica's own signature for the block at
// idx/hash back to peer, at most once, so peers don't loop replying
// to each other's acks forever.
func (r *Replica) ackSignature(hash Hash, idx int, to simcore.ReplicaID) {
	acked := r.acked[hash]
	if acked == nil {
		acked = make(map[simcore.ReplicaID]bool)
		r.acked[hash] = acked
	}
	if acked[to] {
		return
	}
	acked[to] = true
	r.call.Send(to, BlockSignatureMsg{From: r.id, BlockIndex: idx, BlockHash: hash})
}
