package simnet

import "github.com/jabolina/bft-sim/pkg/simcore"

// Packet is the value a replica hands to the transport and a replica
// receives on delivery. Content is an opaque, by-value message: each
// protocol module defines its own tagged variant for it (spec §9
// design note), and attacker-injected content that a protocol does not
// recognize should deserialize to that protocol's own Malformed
// variant rather than panic.
type Packet struct {
	Src     simcore.ReplicaID
	Dst     simcore.ReplicaID // simcore.Broadcast expands to all other replicas
	Content interface{}

	// ExtraDelay is additional non-negative delay attached by an
	// attacker on top of the sampled network delay.
	ExtraDelay float64
}

// Clone returns a value copy of the packet. The attacker contract
// passes packets by value across the attack() boundary (spec §4.3),
// so mutating a packet obtained from attack()'s return value never
// aliases the transport's own in-flight copy.
func (p Packet) Clone() Packet {
	return p
}
