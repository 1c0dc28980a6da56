package pbft_test

import (
	"testing"

	"github.com/jabolina/bft-sim/pkg/protocol/pbft"
	"github.com/jabolina/bft-sim/pkg/replica"
	"github.com/jabolina/bft-sim/pkg/simcore"
	"github.com/jabolina/bft-sim/pkg/simnet"
)

func runCluster(t *testing.T, n int, attacker simnet.Attacker) (map[simcore.ReplicaID]replica.Replica, *simcore.Scheduler, *simnet.Transport) {
	t.Helper()
	sched := simcore.NewScheduler(100000)
	replicas := make(map[simcore.ReplicaID]replica.Replica)

	deliver := func(deliverAt float64, p simnet.Packet) {
		sched.Schedule(&simcore.Event{Time: deliverAt, Kind: simcore.MessageDelivery, Owner: p.Dst, Packet: p})
	}
	ids := make([]simcore.ReplicaID, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, simcore.ReplicaID(i))
	}
	transport := simnet.NewTransport(simnet.DelayModel{Mean: 0.1, Std: 0}, simcore.NewRNG(1), attacker, ids, sched.CurrentClock, nil, deliver)

	f := replica.DefaultF(n)
	for _, id := range ids {
		id := id
		call := replica.Callables{
			Send: func(dst simcore.ReplicaID, content interface{}) {
				_ = transport.Send([]simnet.Packet{{Src: id, Dst: dst, Content: content}})
			},
			RegisterTimer: func(meta interface{}, delay float64) {
				sched.Schedule(&simcore.Event{Time: sched.CurrentClock() + delay, Kind: simcore.ReplicaTimer, Owner: id, Payload: meta})
			},
			Clock: sched.CurrentClock,
			Log:   func(string, map[string]interface{}, string) {},
		}
		replicas[id] = pbft.New(replica.Config{ID: id, N: n, F: f}, call)
	}

	sched.RunUntil(func(e *simcore.Event) {
		switch e.Kind {
		case simcore.MessageDelivery:
			p := e.Packet.(simnet.Packet)
			replicas[p.Dst].OnMessage(p.Src, p.Content)
		case simcore.ReplicaTimer:
			replicas[e.Owner].OnTimer(e.Payload)
		}
	}, func(sc *simcore.Scheduler) bool {
		for _, r := range replicas {
			if !r.IsDecided() {
				return false
			}
		}
		return true
	})
	return replicas, sched, transport
}

// S1: identity attacker (none wired in), PBFT, N=4, f=1.
func TestPBFT_AllCorrectReplicasDecide_N4F1(t *testing.T) {
	replicas, sched, _ := runCluster(t, 4, nil)
	for id, r := range replicas {
		if !r.IsDecided() {
			t.Fatalf("replica %v never decided by clock %v", id, sched.CurrentClock())
		}
	}
}

// S3: fail-stop attacker silences the faulty ids; the remaining
// correct replicas must still decide.
func TestPBFT_FailStopSilencedFaultyStillDecides(t *testing.T) {
	n, f := 16, 4
	silenced := make([]simcore.ReplicaID, 0, f)
	for id := n - f + 1; id <= n; id++ {
		silenced = append(silenced, simcore.ReplicaID(id))
	}
	attacker := simnet.NewFailStopAttacker(silenced)(simnet.AttackerContext{})

	sched := simcore.NewScheduler(500000)
	replicas := make(map[simcore.ReplicaID]replica.Replica)
	deliver := func(deliverAt float64, p simnet.Packet) {
		sched.Schedule(&simcore.Event{Time: deliverAt, Kind: simcore.MessageDelivery, Owner: p.Dst, Packet: p})
	}
	ids := make([]simcore.ReplicaID, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, simcore.ReplicaID(i))
	}
	transport := simnet.NewTransport(simnet.DelayModel{Mean: 0.1, Std: 0}, simcore.NewRNG(2), attacker, ids, sched.CurrentClock, nil, deliver)
	for _, id := range ids {
		id := id
		if int(id) > n-f {
			continue // faulty ids never constructed as active participants of interest
		}
		call := replica.Callables{
			Send: func(dst simcore.ReplicaID, content interface{}) {
				_ = transport.Send([]simnet.Packet{{Src: id, Dst: dst, Content: content}})
			},
			RegisterTimer: func(meta interface{}, delay float64) {
				sched.Schedule(&simcore.Event{Time: sched.CurrentClock() + delay, Kind: simcore.ReplicaTimer, Owner: id, Payload: meta})
			},
			Clock: sched.CurrentClock,
			Log:   func(string, map[string]interface{}, string) {},
		}
		replicas[id] = pbft.New(replica.Config{ID: id, N: n, F: f}, call)
	}

	sched.RunUntil(func(e *simcore.Event) {
		switch e.Kind {
		case simcore.MessageDelivery:
			p := e.Packet.(simnet.Packet)
			if r, ok := replicas[p.Dst]; ok {
				r.OnMessage(p.Src, p.Content)
			}
		case simcore.ReplicaTimer:
			if r, ok := replicas[e.Owner]; ok {
				r.OnTimer(e.Payload)
			}
		}
	}, func(sc *simcore.Scheduler) bool {
		for _, r := range replicas {
			if !r.IsDecided() {
				return false
			}
		}
		return true
	})

	for id, r := range replicas {
		if !r.IsDecided() {
			t.Fatalf("correct replica %v never decided with %d faulty replicas silenced", id, f)
		}
	}
}
