package simnet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jabolina/bft-sim/pkg/simcore"
)

// ErrUnknownRecipient is the non-fatal error recorded when a packet
// names a src/dst outside the replica pool (spec §7
// UnknownRecipient). The packet is dropped, a diagnostic counter is
// incremented, and the run continues.
var ErrUnknownRecipient = errors.New("simnet: packet names an unknown replica id")

// DeliverFunc is invoked once per scheduled delivery event; the
// caller (the run controller) is responsible for turning it into an
// Event on the Scheduler addressed to the right replica.
type DeliverFunc func(deliverAt float64, p Packet)

// Transport is the virtual network: it expands broadcasts, passes the
// resulting batch through the attacker exactly once per tick, samples
// delay, and hands every accepted packet to DeliverFunc for
// scheduling (spec §4.2).
type Transport struct {
	delay    DelayModel
	rng      *simcore.RNG
	attacker Attacker
	replicas map[simcore.ReplicaID]struct{}
	deliver  DeliverFunc
	clockFn  ClockFunc
	log      LogFunc

	delivered int
	dropped   int
}

// NewTransport builds a transport over the given replica pool. replicas
// lists every valid non-broadcast id in the current run.
func NewTransport(delay DelayModel, rng *simcore.RNG, attacker Attacker, replicas []simcore.ReplicaID, clockFn ClockFunc, log LogFunc, deliver DeliverFunc) *Transport {
	set := make(map[simcore.ReplicaID]struct{}, len(replicas))
	for _, id := range replicas {
		set[id] = struct{}{}
	}
	if attacker == nil {
		attacker = &IdentityAttacker{}
	}
	return &Transport{
		delay:    delay,
		rng:      rng,
		attacker: attacker,
		replicas: set,
		deliver:  deliver,
		clockFn:  clockFn,
		log:      log,
	}
}

// DeliveredCount returns the number of packets actually scheduled for
// delivery so far this run (the delivered-message-count of spec §3).
func (t *Transport) DeliveredCount() int { return t.delivered }

// DroppedCount returns the diagnostic drop counter (malformed
// src/dst), kept separate from DeliveredCount per spec §4.2.
func (t *Transport) DroppedCount() int { return t.dropped }

// Send accepts one batch of packets emitted by a single replica
// dispatch (all of the sends that one on_message/on_timer call
// issued). It does not block: every accepted packet is scheduled via
// DeliverFunc before Send returns.
func (t *Transport) Send(batch []Packet) error {
	expanded := make([]Packet, 0, len(batch))
	var firstErr error
	for _, p := range batch {
		if _, ok := t.replicas[p.Src]; !ok {
			t.dropped++
			t.warn(p, ErrUnknownRecipient)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: src=%v", ErrUnknownRecipient, p.Src)
			}
			continue
		}
		if p.Dst == simcore.Broadcast {
			recipients := make([]simcore.ReplicaID, 0, len(t.replicas))
			for id := range t.replicas {
				if id != p.Src {
					recipients = append(recipients, id)
				}
			}
			// Map iteration order is randomized per process; sort so
			// broadcast fan-out -- and therefore the insertion sequence
			// each recipient's packet gets (event.go's scheduler
			// tiebreak) and the order delay.Sample draws from the RNG --
			// is a deterministic function of the configuration alone
			// (spec §8 invariant 4).
			sort.Slice(recipients, func(i, j int) bool { return recipients[i] < recipients[j] })
			for _, id := range recipients {
				cp := p
				cp.Dst = id
				expanded = append(expanded, cp)
			}
			continue
		}
		if _, ok := t.replicas[p.Dst]; !ok {
			t.dropped++
			t.warn(p, ErrUnknownRecipient)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: dst=%v", ErrUnknownRecipient, p.Dst)
			}
			continue
		}
		expanded = append(expanded, p)
	}

	accepted := t.attacker.Attack(expanded)
	now := t.clockFn()
	for _, p := range accepted {
		if _, ok := t.replicas[p.Src]; !ok {
			// An attacker-injected packet with a spoofed/unknown src is
			// still permitted (spec §9 open question: kept permissive).
		}
		if _, ok := t.replicas[p.Dst]; !ok {
			t.dropped++
			t.warn(p, ErrUnknownRecipient)
			continue
		}
		delay := t.delay.Sample(t.rng)
		deliverAt := now + delay + p.ExtraDelay
		t.delivered++
		t.deliver(deliverAt, p)
	}
	return firstErr
}

func (t *Transport) warn(p Packet, err error) {
	if t.log == nil {
		return
	}
	t.log("warn", map[string]interface{}{
		"src": p.Src,
		"dst": p.Dst,
	}, err.Error())
}
