package babble_test

import (
	"testing"

	"github.com/jabolina/bft-sim/pkg/protocol/babble"
	"github.com/jabolina/bft-sim/pkg/replica"
	"github.com/jabolina/bft-sim/pkg/simcore"
	"github.com/jabolina/bft-sim/pkg/simnet"
)

// harness wires the babble protocol to a real Scheduler+Transport,
// mirroring (in miniature) what pkg/runner does, to exercise the
// Replica contract end to end without depending on the runner
// package (avoiding an import cycle in tests).
type harness struct {
	sched     *simcore.Scheduler
	transport *simnet.Transport
	replicas  map[simcore.ReplicaID]replica.Replica
}

func newHarness(t *testing.T, n int, maxEvents int) *harness {
	t.Helper()
	h := &harness{
		sched:    simcore.NewScheduler(maxEvents),
		replicas: make(map[simcore.ReplicaID]replica.Replica),
	}

	deliver := func(deliverAt float64, p simnet.Packet) {
		h.sched.Schedule(&simcore.Event{
			Time:   deliverAt,
			Kind:   simcore.MessageDelivery,
			Owner:  p.Dst,
			Packet: p,
		})
	}
	ids := make([]simcore.ReplicaID, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, simcore.ReplicaID(i))
	}
	h.transport = simnet.NewTransport(
		simnet.DelayModel{Mean: 0.05, Std: 0},
		simcore.NewRNG(42),
		nil,
		ids,
		h.sched.CurrentClock,
		nil,
		deliver,
	)

	for _, id := range ids {
		id := id
		call := replica.Callables{
			Send: func(dst simcore.ReplicaID, content interface{}) {
				_ = h.transport.Send([]simnet.Packet{{Src: id, Dst: dst, Content: content}})
			},
			RegisterTimer: func(meta interface{}, delay float64) {
				h.sched.Schedule(&simcore.Event{
					Time:    h.sched.CurrentClock() + delay,
					Kind:    simcore.ReplicaTimer,
					Owner:   id,
					Payload: meta,
				})
			},
			Clock: h.sched.CurrentClock,
			Log:   func(string, map[string]interface{}, string) {},
		}
		cfg := replica.Config{ID: id, N: n, F: replica.DefaultF(n), Lambda: 1, Extra: nil}
		h.replicas[id] = babble.New(cfg, call)
	}
	return h
}

func (h *harness) run(maxClock float64, allDecided func() bool) {
	h.sched.RunUntil(func(e *simcore.Event) {
		switch e.Kind {
		case simcore.MessageDelivery:
			p := e.Packet.(simnet.Packet)
			h.replicas[p.Dst].OnMessage(p.Src, p.Content)
		case simcore.ReplicaTimer:
			h.replicas[e.Owner].OnTimer(e.Payload)
		}
	}, func(sc *simcore.Scheduler) bool {
		return allDecided() || sc.CurrentClock() > maxClock
	})
}

func TestBabbleReplica_ReachesDecisionWithoutFaults(t *testing.T) {
	h := newHarness(t, 4, 200000)
	h.run(200, func() bool {
		for _, r := range h.replicas {
			if !r.IsDecided() {
				return false
			}
		}
		return true
	})

	for id, r := range h.replicas {
		if !r.IsDecided() {
			t.Fatalf("replica %v never decided by clock %v", id, h.sched.CurrentClock())
		}
	}
}

func TestBabbleReplica_BlockFinalizationReachesQuorum(t *testing.T) {
	// With f=1 the finalization quorum is 2f+1=3; since a producer only
	// self-signs its own block, this can only pass if peers echo their
	// own signatures back on receiving the producer's BlockSignatureMsg.
	h := newHarness(t, 4, 200000)
	h.run(200, func() bool {
		for _, r := range h.replicas {
			if !r.IsDecided() {
				return false
			}
		}
		return true
	})

	finalized := false
	for _, r := range h.replicas {
		if r.(*babble.Replica).FinalizedBlocks() > 0 {
			finalized = true
			break
		}
	}
	if !finalized {
		t.Fatal("expected at least one replica to finalize a block via the signature echo, got none")
	}
}

func TestBabbleReplica_IsDecidedNeverFlapsBackToFalse(t *testing.T) {
	h := newHarness(t, 4, 50000)
	sawDecided := make(map[simcore.ReplicaID]bool)
	h.sched.RunUntil(func(e *simcore.Event) {
		switch e.Kind {
		case simcore.MessageDelivery:
			p := e.Packet.(simnet.Packet)
			h.replicas[p.Dst].OnMessage(p.Src, p.Content)
		case simcore.ReplicaTimer:
			h.replicas[e.Owner].OnTimer(e.Payload)
		}
		for id, r := range h.replicas {
			if r.IsDecided() {
				sawDecided[id] = true
			} else if sawDecided[id] {
				t.Fatalf("replica %v regressed from decided to not-decided", id)
			}
		}
	}, func(sc *simcore.Scheduler) bool { return sc.CurrentClock() > 60 })
}
