package harness

import (
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"
)

var (
	u256Max       = new(U256).Not(new(U256))
	sampleCeiling = uint256.MustFromBig(uint128.Max.Big())
)

// U256Max returns the largest representable value, the "unbounded" marker
// used by maxDeposit/maxMint.
func U256Max() *U256 {
	return u256Max.Clone()
}

// SampleCeiling returns the 128-bit safety cap applied to raw samples before
// domain bounding. Keeping operands at or below 2^128-1 keeps products of two
// samples inside 256-bit arithmetic. This is a sampling guard, not a vault
// cap: maxDeposit/maxMint stay unbounded.
func SampleCeiling() *U256 {
	return sampleCeiling.Clone()
}

// Bound deterministically maps x into the closed range [0, max]. When max is
// the full 256-bit maximum any value is already valid and x is returned
// unchanged. The mapping is a pure function of (x, max): replaying the same
// inputs reproduces the same bounded value.
func Bound(x, max *U256) *U256 {
	if max.Eq(u256Max) {
		return x.Clone()
	}
	m := new(U256).AddUint64(max, 1)
	return new(U256).Mod(x, m)
}

// MinU256 returns the smaller argument as a fresh value.
func MinU256(a, b *U256) *U256 {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}
