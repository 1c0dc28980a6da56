// Package runner is the run controller: it wires one simcore.Scheduler,
// one simnet.Transport, a pool of replica.Replica instances, and one
// simnet.Attacker together for a single run, drives the scheduler to
// the termination predicate of spec §4.6, and aggregates the outcome
// into a RunResult (spec §6.5).
package runner

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jabolina/bft-sim/internal/config"
	"github.com/jabolina/bft-sim/pkg/replica"
	"github.com/jabolina/bft-sim/pkg/simcore"
	"github.com/jabolina/bft-sim/pkg/simnet"
)

// ErrProtocolAbort is recorded (never returned) when a replica
// dispatch panics; the run continues per spec §7's non-fatal
// ProtocolAbort policy, the panic is logged, and that replica's future
// progress is simply whatever it manages from then on.
var ErrProtocolAbort = fmt.Errorf("runner: replica dispatch aborted")

// Run executes repeat_time independent runs of cfg and returns every
// RunResult plus the run batch's identifier (spec §6.1 repeat_time,
// §6.5).
func Run(cfg config.Config, log replica.LogFunc) ([]RunResult, string, error) {
	ctor, err := LoadProtocol(cfg.Protocol)
	if err != nil {
		return nil, "", err
	}
	batchID := uuid.NewString()

	results := make([]RunResult, 0, cfg.RepeatTime)
	for i := 0; i < cfg.RepeatTime; i++ {
		r, err := RunOnce(cfg, ctor, i, log)
		if err != nil {
			return results, batchID, err
		}
		results = append(results, r)
	}
	return results, batchID, nil
}

// RunOnce executes one run of cfg with the given protocol constructor
// and run index, returning its RunResult.
func RunOnce(cfg config.Config, ctor replica.Constructor, runIndex int, log replica.LogFunc) (RunResult, error) {
	if log == nil {
		log = func(string, map[string]interface{}, string) {}
	}
	seed := simcore.Seed(cfg.Seed, runIndex)
	rng := simcore.NewRNG(seed)
	sched := simcore.NewScheduler(cfg.MaxEvents)

	n, f := cfg.NodeNum, cfg.ByzantineNodeNum
	ids := make([]simcore.ReplicaID, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, simcore.ReplicaID(i))
	}

	deliver := func(deliverAt float64, p simnet.Packet) {
		_ = sched.Schedule(&simcore.Event{
			Time:   deliverAt,
			Kind:   simcore.MessageDelivery,
			Owner:  p.Dst,
			Packet: p,
		})
	}

	attackerCtx := simnet.AttackerContext{
		RegisterTimer: func(meta interface{}, delay float64) {
			_ = sched.Schedule(&simcore.Event{Time: sched.CurrentClock() + delay, Kind: simcore.AttackerTimer, Payload: meta})
		},
		Clock: sched.CurrentClock,
		Log:   func(level string, fields map[string]interface{}, msg string) { log(level, fields, msg) },
		RNG:   rng,
	}
	attacker, err := LoadAttacker(cfg.Attacker, n, f, cfg.Babble, attackerCtx)
	if err != nil {
		return RunResult{}, err
	}

	delay := simnet.DelayModel{Mean: cfg.NetworkDelay.Mean, Std: cfg.NetworkDelay.Std}
	transport := simnet.NewTransport(delay, rng, attacker, ids, sched.CurrentClock,
		func(level string, fields map[string]interface{}, msg string) { log(level, fields, msg) },
		deliver)

	replicas := make(map[simcore.ReplicaID]replica.Replica, n)
	correct := make([]simcore.ReplicaID, 0, n-f)
	// outbox collects every send issued during one dispatch (or one
	// constructor call); flush hands them to the transport as a single
	// batch, so the attacker sees them together in the order emitted.
	var outbox []simnet.Packet
	flush := func() {
		if len(outbox) == 0 {
			return
		}
		batch := outbox
		outbox = nil
		_ = transport.Send(batch)
	}
	for _, id := range ids {
		id := id
		call := replica.Callables{
			Send: func(dst simcore.ReplicaID, content interface{}) {
				outbox = append(outbox, simnet.Packet{Src: id, Dst: dst, Content: content})
			},
			RegisterTimer: func(meta interface{}, delay float64) {
				_ = sched.Schedule(&simcore.Event{Time: sched.CurrentClock() + delay, Kind: simcore.ReplicaTimer, Owner: id, Payload: meta})
			},
			Clock: sched.CurrentClock,
			Log:   func(level string, fields map[string]interface{}, msg string) { log(level, fields, msg) },
		}
		rcfg := replica.Config{ID: id, N: n, F: f, Lambda: cfg.Lambda, Extra: cfg.Babble}
		replicas[id] = protectConstruct(ctor, rcfg, call, log)
		flush()
		if int(id) <= n-f {
			correct = append(correct, id)
		}
	}

	allCorrectDecided := func() bool {
		for _, id := range correct {
			if !replicas[id].IsDecided() {
				return false
			}
		}
		return true
	}

	// firstDecisionAt is the virtual time of the first correct
	// replica's first decision (spec §4.6 step 6 "clock_at_first_
	// decision", §2's "time of first decision minus run start"), which
	// is earlier than the termination predicate below (every correct
	// replica decided) unless there is only one correct replica.
	firstDecisionAt := undefinedLatency
	firstDecisionSeen := false

	sched.RunUntil(func(e *simcore.Event) {
		switch e.Kind {
		case simcore.MessageDelivery:
			p := e.Packet.(simnet.Packet)
			r, ok := replicas[p.Dst]
			if !ok {
				return
			}
			protectDispatch(func() { r.OnMessage(p.Src, p.Content) }, log)
		case simcore.ReplicaTimer:
			r, ok := replicas[e.Owner]
			if !ok {
				return
			}
			protectDispatch(func() { r.OnTimer(e.Payload) }, log)
		case simcore.AttackerTimer:
			protectDispatch(func() { attacker.OnTimer(e.Payload) }, log)
		}
		flush()
		if !firstDecisionSeen {
			for _, id := range correct {
				if replicas[id].IsDecided() {
					firstDecisionAt = sched.CurrentClock()
					firstDecisionSeen = true
					break
				}
			}
		}
	}, func(sc *simcore.Scheduler) bool {
		return allCorrectDecided() || sc.CurrentClock() > cfg.VirtualTimeCeiling
	})

	decidedAt := undefinedLatency
	success := allCorrectDecided()
	if success {
		decidedAt = firstDecisionAt
	}

	return RunResult{
		Latency:       decidedAt,
		TotalMsgCount: transport.DeliveredCount(),
		DroppedCount:  transport.DroppedCount(),
		Success:       success,
	}, nil
}

// protectConstruct and protectDispatch recover a panicking plug-in
// call so one misbehaving replica can't crash the whole batch (spec
// §7 ProtocolAbort: non-fatal, run continues).
func protectConstruct(ctor replica.Constructor, cfg replica.Config, call replica.Callables, log replica.LogFunc) (r replica.Replica) {
	defer func() {
		if rec := recover(); rec != nil {
			log("error", map[string]interface{}{"replica": cfg.ID, "panic": rec}, ErrProtocolAbort.Error())
			r = noopReplica{}
		}
	}()
	return ctor(cfg, call)
}

func protectDispatch(fn func(), log replica.LogFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			log("error", map[string]interface{}{"panic": rec}, ErrProtocolAbort.Error())
		}
	}()
	fn()
}

// noopReplica stands in for a replica whose constructor panicked: it
// never decides, so the run correctly reports failure rather than
// crashing.
type noopReplica struct{}

func (noopReplica) OnMessage(simcore.ReplicaID, interface{}) {}
func (noopReplica) OnTimer(interface{})                      {}
func (noopReplica) IsDecided() bool                          { return false }
func (noopReplica) Reset()                                   {}
