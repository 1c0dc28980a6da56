package pbft

import (
	"fmt"

	"github.com/jabolina/bft-sim/pkg/replica"
	"github.com/jabolina/bft-sim/pkg/simcore"
)

type instanceKey struct {
	view int
	seq  int
}

// Replica is the minimal single-view PBFT participant.
type Replica struct {
	id   simcore.ReplicaID
	n    int
	f    int
	call replica.Callables

	view int
	seq  int

	preprepared map[instanceKey]Digest
	prepares    map[instanceKey]map[simcore.ReplicaID]bool
	commits     map[instanceKey]map[simcore.ReplicaID]bool
	sentPrepare map[instanceKey]bool
	sentCommit  map[instanceKey]bool
	decided     bool
}

// New builds a PBFT replica and, if it is the view-0 primary,
// immediately broadcasts the bootstrap request's PrePrepare (spec
// §4.6 step 4: bootstrap may emit initial packets).
func New(cfg replica.Config, call replica.Callables) replica.Replica {
	r := &Replica{
		id:          cfg.ID,
		n:           cfg.N,
		f:           cfg.F,
		call:        call,
		preprepared: make(map[instanceKey]Digest),
		prepares:    make(map[instanceKey]map[simcore.ReplicaID]bool),
		commits:     make(map[instanceKey]map[simcore.ReplicaID]bool),
		sentPrepare: make(map[instanceKey]bool),
		sentCommit:  make(map[instanceKey]bool),
	}
	r.seq = 1
	if r.isPrimary() {
		digest := Digest(fmt.Sprintf("req-%d", r.seq))
		r.call.Send(simcore.Broadcast, PrePrepare{View: r.view, Seq: r.seq, Digest: digest, Value: "bootstrap"})
	}
	return r
}

func (r *Replica) isPrimary() bool {
	return int(r.id) == (r.view%r.n)+1
}

func (r *Replica) quorum() int { return 2*r.f + 1 }

// IsDecided implements replica.Replica.
func (r *Replica) IsDecided() bool { return r.decided }

// Reset implements replica.Replica.
func (r *Replica) Reset() {
	r.preprepared = make(map[instanceKey]Digest)
	r.prepares = make(map[instanceKey]map[simcore.ReplicaID]bool)
	r.commits = make(map[instanceKey]map[simcore.ReplicaID]bool)
	r.sentPrepare = make(map[instanceKey]bool)
	r.sentCommit = make(map[instanceKey]bool)
	r.decided = false
	r.view = 0
	r.seq = 1
	if r.isPrimary() {
		digest := Digest(fmt.Sprintf("req-%d", r.seq))
		r.call.Send(simcore.Broadcast, PrePrepare{View: r.view, Seq: r.seq, Digest: digest, Value: "bootstrap"})
	}
}

// OnTimer implements replica.Replica; this minimal protocol has no
// timers (no view-change timeout).
func (r *Replica) OnTimer(interface{}) {}

// OnMessage implements replica.Replica.
func (r *Replica) OnMessage(src simcore.ReplicaID, content interface{}) {
	switch m := content.(type) {
	case PrePrepare:
		r.onPrePrepare(m)
	case Prepare:
		r.onPrepare(m)
	case Commit:
		r.onCommit(m)
	default:
		bad := Malformed{Reason: fmt.Sprintf("unrecognized content %#v", content)}
		r.call.Log("warn", map[string]interface{}{"replica": r.id, "from": src}, "dropping malformed content: "+bad.Reason)
	}
}

func (r *Replica) onPrePrepare(m PrePrepare) {
	key := instanceKey{m.View, m.Seq}
	if _, ok := r.preprepared[key]; ok {
		return // already accepted a pre-prepare for this instance
	}
	r.preprepared[key] = m.Digest
	r.broadcastPrepare(key, m.Digest)
}

func (r *Replica) broadcastPrepare(key instanceKey, digest Digest) {
	if r.sentPrepare[key] {
		return
	}
	r.sentPrepare[key] = true
	r.recordVote(r.prepares, key, r.id)
	r.call.Send(simcore.Broadcast, Prepare{View: key.view, Seq: key.seq, Digest: digest, From: r.id})
	r.maybeCommit(key, digest)
}

func (r *Replica) onPrepare(m Prepare) {
	key := instanceKey{m.View, m.Seq}
	r.recordVote(r.prepares, key, m.From)
	r.maybeCommit(key, m.Digest)
}

func (r *Replica) recordVote(set map[instanceKey]map[simcore.ReplicaID]bool, key instanceKey, from simcore.ReplicaID) {
	votes := set[key]
	if votes == nil {
		votes = make(map[simcore.ReplicaID]bool)
		set[key] = votes
	}
	votes[from] = true
}

// maybeCommit sends Commit once the prepare quorum (2f, since the
// primary's PrePrepare already certifies the digest) is reached.
func (r *Replica) maybeCommit(key instanceKey, digest Digest) {
	if r.sentCommit[key] {
		return
	}
	if len(r.prepares[key]) < 2*r.f {
		return
	}
	r.sentCommit[key] = true
	r.recordVote(r.commits, key, r.id)
	r.call.Send(simcore.Broadcast, Commit{View: key.view, Seq: key.seq, Digest: digest, From: r.id})
	r.maybeDecide(key)
}

func (r *Replica) onCommit(m Commit) {
	key := instanceKey{m.View, m.Seq}
	r.recordVote(r.commits, key, m.From)
	r.maybeDecide(key)
}

func (r *Replica) maybeDecide(key instanceKey) {
	if r.decided {
		return
	}
	if len(r.commits[key]) >= r.quorum() {
		r.decided = true
		r.call.Log("info", map[string]interface{}{"replica": r.id, "seq": key.seq}, "committed request")
	}
}
