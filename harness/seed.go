package harness

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Sample derives a pseudo-random 256-bit value from the acting actor and the
// vault's current supply/assets totals. The seed moves as state evolves, and
// the same state with the same actor and tag always reproduces the same
// value, which keeps shrunk counterexamples replayable. The tag decorrelates
// samples drawn by different checks in the same state.
func Sample(actor common.Address, totalSupply, totalAssets *U256, tag string) *U256 {
	s := totalSupply.Bytes32()
	a := totalAssets.Bytes32()
	h := crypto.Keccak256Hash(actor.Bytes(), s[:], a[:], []byte(tag))
	out := new(U256)
	out.SetBytes32(h[:])
	return out
}
