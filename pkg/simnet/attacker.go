package simnet

import (
	"github.com/jabolina/bft-sim/pkg/simcore"
)

// RegisterAttackerTimerFunc lets an attacker schedule a callback to
// itself at a future virtual time. Timers cannot be cancelled once
// registered (spec §5).
type RegisterAttackerTimerFunc func(meta interface{}, delay float64)

// ClockFunc reads the current virtual clock.
type ClockFunc func() float64

// LogFunc is the structured diagnostic sink handed to plug-ins.
type LogFunc func(level string, fields map[string]interface{}, msg string)

// AttackerContext bundles the callables the kernel injects into an
// Attacker constructor, mirroring the callables a Replica receives
// (spec §4.4) so both plug-in kinds are wired the same way.
type AttackerContext struct {
	RegisterTimer RegisterAttackerTimerFunc
	Clock         ClockFunc
	Log           LogFunc
	RNG           *simcore.RNG
}

// Attacker is the mandatory interposition layer between every send and
// every delivery (spec §4.3). It sees each outgoing batch exactly
// once per tick and returns the batch that will actually be
// delivered: omitting a packet drops it, returning a mutated packet
// delivers the mutation, returning extra packets injects them.
type Attacker interface {
	// Attack receives batch by value and returns the batch to deliver,
	// also by value -- no shared mutable aliasing crosses this call.
	Attack(batch []Packet) []Packet

	// OnTimer fires when a timer this attacker registered comes due.
	OnTimer(meta interface{})
}

// IdentityAttacker returns every batch unchanged. Runs with no
// adversary wired in share this exact code path (spec §4.3, invariant
// 6: identity attacker == no attacker).
type IdentityAttacker struct{}

// NewIdentityAttacker builds the trivial pass-through attacker.
func NewIdentityAttacker(AttackerContext) *IdentityAttacker {
	return &IdentityAttacker{}
}

func (IdentityAttacker) Attack(batch []Packet) []Packet { return batch }
func (IdentityAttacker) OnTimer(interface{})             {}

// FailStopAttacker silences a fixed set of replicas: any packet whose
// source is in Silenced is dropped, everything else passes through.
// Used for scenario S3/S10.
type FailStopAttacker struct {
	silenced map[simcore.ReplicaID]struct{}
}

// NewFailStopAttacker builds an attacker that drops every packet sent
// by one of the given replica ids.
func NewFailStopAttacker(silenced []simcore.ReplicaID) func(AttackerContext) *FailStopAttacker {
	return func(AttackerContext) *FailStopAttacker {
		m := make(map[simcore.ReplicaID]struct{}, len(silenced))
		for _, id := range silenced {
			m[id] = struct{}{}
		}
		return &FailStopAttacker{silenced: m}
	}
}

func (a *FailStopAttacker) Attack(batch []Packet) []Packet {
	out := make([]Packet, 0, len(batch))
	for _, p := range batch {
		if _, silenced := a.silenced[p.Src]; silenced {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (*FailStopAttacker) OnTimer(interface{}) {}

// EquivocationAttacker lets a fixed set of Byzantine replicas' packets
// through unmodified (kernel convention: accomplice packets are left
// untouched, spec §4.3) but, with probability Prob, delivers a
// correct replica's outgoing packet together with a second copy whose
// content is wrapped in forkedContent, both to that packet's single
// recipient, simulating a fork. Packets are forked one recipient at a
// time after broadcast expansion; copies are not split across disjoint
// halves of the recipients. Used for scenario S4.
type EquivocationAttacker struct {
	byzantine map[simcore.ReplicaID]struct{}
	prob      float64
	rng       *simcore.RNG
}

// NewEquivocationAttacker builds the equivocation attacker. byzantine
// lists the accomplice ids left untouched; prob is the chance, per
// eligible packet, that it is forked.
func NewEquivocationAttacker(byzantine []simcore.ReplicaID, prob float64) func(AttackerContext) *EquivocationAttacker {
	return func(ctx AttackerContext) *EquivocationAttacker {
		m := make(map[simcore.ReplicaID]struct{}, len(byzantine))
		for _, id := range byzantine {
			m[id] = struct{}{}
		}
		return &EquivocationAttacker{byzantine: m, prob: prob, rng: ctx.RNG}
	}
}

func (a *EquivocationAttacker) Attack(batch []Packet) []Packet {
	out := make([]Packet, 0, len(batch))
	for _, p := range batch {
		if _, ok := a.byzantine[p.Src]; ok {
			out = append(out, p)
			continue
		}
		if p.Dst != simcore.Broadcast && a.rng.Bool(a.prob) {
			forked := p.Clone()
			forked.Content = forkedContent{original: p.Content}
			out = append(out, p, forked)
			continue
		}
		out = append(out, p)
	}
	return out
}

func (*EquivocationAttacker) OnTimer(interface{}) {}

// forkedContent wraps a duplicated payload so a protocol can recognize
// it came from a fork rather than a legitimate resend; protocols that
// don't care can unwrap and treat it identically to the original.
type forkedContent struct {
	original interface{}
}

// Unwrap returns the wrapped content, satisfying protocols that want
// to treat forked and original content the same way.
func (f forkedContent) Unwrap() interface{} { return f.original }

// ClockSkewAttacker attaches a growing extra delay to packets sent by
// a chosen subset of replicas, simulating divergent local clocks
// without ever dropping or reordering safety-relevant content. Used
// for scenario S5: this should never cause an unsafe decision, only
// slow ones (possibly to RunTimeout).
type ClockSkewAttacker struct {
	skewed map[simcore.ReplicaID]struct{}
	rate   float64 // extra delay added per virtual second elapsed
	clock  ClockFunc
}

// NewClockSkewAttacker builds an attacker that inflates delay for
// packets from the given replicas by rate * current_clock seconds.
func NewClockSkewAttacker(skewed []simcore.ReplicaID, rate float64) func(AttackerContext) *ClockSkewAttacker {
	return func(ctx AttackerContext) *ClockSkewAttacker {
		m := make(map[simcore.ReplicaID]struct{}, len(skewed))
		for _, id := range skewed {
			m[id] = struct{}{}
		}
		return &ClockSkewAttacker{skewed: m, rate: rate, clock: ctx.Clock}
	}
}

func (a *ClockSkewAttacker) Attack(batch []Packet) []Packet {
	out := make([]Packet, len(batch))
	for i, p := range batch {
		if _, ok := a.skewed[p.Src]; ok {
			p.ExtraDelay += a.rate * a.clock()
		}
		out[i] = p
	}
	return out
}

func (*ClockSkewAttacker) OnTimer(interface{}) {}

// PartitionAttacker splits replicas into two disjoint sets and, while
// the partition is active, adds ExtraDelay to any packet crossing
// between sets. After Lifetime virtual seconds have elapsed (tracked
// via a self-registered timer) the partition heals and packets flow
// unmodified. Used for scenario S2.
type PartitionAttacker struct {
	setOf    map[simcore.ReplicaID]int
	extra    float64
	lifetime float64
	healed   bool
}

type partitionHealTimer struct{}

// NewPartitionAttacker builds a network-split attacker. setA and setB
// must be disjoint; extraDelay is added to any inter-set packet while
// the partition holds; lifetime is the virtual-time duration of the
// partition.
func NewPartitionAttacker(setA, setB []simcore.ReplicaID, extraDelay, lifetime float64) func(AttackerContext) *PartitionAttacker {
	return func(ctx AttackerContext) *PartitionAttacker {
		m := make(map[simcore.ReplicaID]int, len(setA)+len(setB))
		for _, id := range setA {
			m[id] = 1
		}
		for _, id := range setB {
			m[id] = 2
		}
		a := &PartitionAttacker{setOf: m, extra: extraDelay, lifetime: lifetime}
		ctx.RegisterTimer(partitionHealTimer{}, lifetime)
		return a
	}
}

func (a *PartitionAttacker) Attack(batch []Packet) []Packet {
	if a.healed {
		return batch
	}
	out := make([]Packet, len(batch))
	for i, p := range batch {
		if p.Dst != simcore.Broadcast && a.setOf[p.Src] != 0 && a.setOf[p.Dst] != 0 && a.setOf[p.Src] != a.setOf[p.Dst] {
			p.ExtraDelay += a.extra
		}
		out[i] = p
	}
	return out
}

func (a *PartitionAttacker) OnTimer(meta interface{}) {
	if _, ok := meta.(partitionHealTimer); ok {
		a.healed = true
	}
}
