package fast

import "github.com/ret2basic/erc4626-invariants/harness"

// mulDiv with EVM revert-on-overflow semantics: the x*y product must fit in
// 256 bits, matching the checked fixed-point math vaults use on chain.

func mulDivDown(x, y, d *U256) (*U256, error) {
	if d.IsZero() {
		return nil, harness.ErrNoAssets
	}
	p := new(U256)
	if _, overflow := p.MulOverflow(x, y); overflow {
		return nil, harness.ErrOverflow
	}
	return p.Div(p, d), nil
}

func mulDivUp(x, y, d *U256) (*U256, error) {
	if d.IsZero() {
		return nil, harness.ErrNoAssets
	}
	p := new(U256)
	if _, overflow := p.MulOverflow(x, y); overflow {
		return nil, harness.ErrOverflow
	}
	var rem U256
	rem.Mod(p, d)
	p.Div(p, d)
	if !rem.IsZero() {
		p.AddUint64(p, 1)
	}
	return p, nil
}
