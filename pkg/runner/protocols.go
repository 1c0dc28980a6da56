package runner

import (
	"errors"
	"fmt"

	"github.com/jabolina/bft-sim/pkg/protocol/babble"
	"github.com/jabolina/bft-sim/pkg/protocol/pbft"
	"github.com/jabolina/bft-sim/pkg/replica"
)

// ErrUnsupportedProtocol is returned when a configuration names a
// protocol tag spec §6.1 lists but this repo has no loaded
// replica.Constructor for.
var ErrUnsupportedProtocol = errors.New("runner: unsupported protocol")

// protocols maps a configuration's protocol tag to the constructor
// that loads it, mirroring the teacher's tag-keyed dispatch in
// protocol.go (there, ProtocolGenerator picks between byzantine and
// unicast strategies by a similar string switch).
var protocols = map[string]replica.Constructor{
	"pbft":          pbft.New,
	"ssb-babble":    babble.New,
	"libp2p-babble": babble.New,
}

// LoadProtocol resolves a configuration's protocol tag to a
// constructor, or ErrUnsupportedProtocol if this build doesn't carry
// one.
func LoadProtocol(tag string) (replica.Constructor, error) {
	ctor, ok := protocols[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, tag)
	}
	return ctor, nil
}
