package harness

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxActors caps the registry. Checks iterate all registered actors, so the
// set stays small by construction.
const MaxActors = 64

var (
	ErrActorCapacity = errors.New("harness: actor capacity exceeded")
	ErrNoActors      = errors.New("harness: no actors registered")
	ErrUnknownActor  = errors.New("harness: unknown actor")
)

// ActorSet holds the simulated caller identities and tracks which one is
// active. Actors carry real secp256k1 keys so signature-based approvals can
// be exercised end to end. Single active writer, no locking.
type ActorSet struct {
	addrs   []common.Address
	keys    map[common.Address]*ecdsa.PrivateKey
	indices map[common.Address]int
	active  int
	counter uint64
}

func NewActorSet() *ActorSet {
	return &ActorSet{
		keys:    make(map[common.Address]*ecdsa.PrivateKey),
		indices: make(map[common.Address]int),
		active:  -1,
	}
}

// NewActor derives a deterministic key, registers its address, and returns
// it. The first registered actor becomes active.
func (s *ActorSet) NewActor() (common.Address, error) {
	if len(s.addrs) >= MaxActors {
		return common.Address{}, ErrActorCapacity
	}
	var key *ecdsa.PrivateKey
	for {
		s.counter++
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], s.counter)
		k, err := crypto.ToECDSA(crypto.Keccak256([]byte("actor"), ctr[:]))
		if err == nil {
			key = k
			break
		}
		// keccak output outside the curve order, try the next counter
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)
	s.indices[addr] = len(s.addrs)
	s.addrs = append(s.addrs, addr)
	s.keys[addr] = key
	if s.active < 0 {
		s.active = 0
	}
	return addr, nil
}

// Active returns the currently selected actor.
func (s *ActorSet) Active() (common.Address, error) {
	if s.active < 0 {
		return common.Address{}, ErrNoActors
	}
	return s.addrs[s.active], nil
}

// Select makes the given registered actor active.
func (s *ActorSet) Select(addr common.Address) error {
	i, ok := s.indices[addr]
	if !ok {
		return ErrUnknownActor
	}
	s.active = i
	return nil
}

// Key returns the actor's signing key, or nil if the actor is unknown.
func (s *ActorSet) Key(addr common.Address) *ecdsa.PrivateKey {
	return s.keys[addr]
}

// Addrs returns a snapshot of the registered actors in registration order.
func (s *ActorSet) Addrs() []common.Address {
	out := make([]common.Address, len(s.addrs))
	copy(out, s.addrs)
	return out
}

func (s *ActorSet) Len() int { return len(s.addrs) }
