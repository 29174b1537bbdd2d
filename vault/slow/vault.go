// Package slow is the simplified reference vault. It mirrors the fast
// vault's observable behavior with the most literal implementation available:
// math/big arithmetic, an inline share ledger, explicit floor/ceil steps. It
// exists to be diffed against, not to be efficient, and deliberately omits
// the signature-based approval entry point.
package slow

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/ret2basic/erc4626-invariants/harness"
	"github.com/ret2basic/erc4626-invariants/token"
)

type U256 = uint256.Int

var _ harness.Vault = (*Vault)(nil)

var wordLimit = new(big.Int).Lsh(big.NewInt(1), 256) // 2^256

type Vault struct {
	addr  common.Address
	asset *token.Token

	supply     *big.Int
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func New(asset *token.Token, symbol string) *Vault {
	addr := common.BytesToAddress(crypto.Keccak256([]byte("vault"), asset.Address().Bytes(), []byte(symbol))[12:])
	return &Vault{
		addr:       addr,
		asset:      asset,
		supply:     new(big.Int),
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (v *Vault) Asset() *token.Token    { return v.asset }
func (v *Vault) Address() common.Address { return v.addr }

func (v *Vault) TotalAssets() *U256 { return v.asset.BalanceOf(v.addr) }

func (v *Vault) TotalSupply() *U256 { return fromBig(v.supply) }

func (v *Vault) BalanceOf(owner common.Address) *U256 {
	if b, ok := v.balances[owner]; ok {
		return fromBig(b)
	}
	return new(U256)
}

func (v *Vault) Allowance(owner, spender common.Address) *U256 {
	if m, ok := v.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return fromBig(a)
		}
	}
	return new(U256)
}

// convert computes x*num/den with the requested rounding, replicating the
// fast vault's failure cases: zero denominator and products that leave
// 256-bit range.
func convert(x, num, den *big.Int, roundUp bool) (*U256, error) {
	if den.Sign() == 0 {
		return nil, harness.ErrNoAssets
	}
	p := new(big.Int).Mul(x, num)
	if p.Cmp(wordLimit) >= 0 {
		return nil, harness.ErrOverflow
	}
	q, r := new(big.Int).QuoRem(p, den, new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return fromBig(q), nil
}

func (v *Vault) ConvertToShares(assets *U256) (*U256, error) {
	if v.supply.Sign() == 0 {
		return assets.Clone(), nil
	}
	return convert(assets.ToBig(), v.supply, v.TotalAssets().ToBig(), false)
}

func (v *Vault) ConvertToAssets(shares *U256) (*U256, error) {
	if v.supply.Sign() == 0 {
		return shares.Clone(), nil
	}
	return convert(shares.ToBig(), v.TotalAssets().ToBig(), v.supply, false)
}

func (v *Vault) PreviewDeposit(assets *U256) (*U256, error) {
	return v.ConvertToShares(assets)
}

func (v *Vault) PreviewMint(shares *U256) (*U256, error) {
	if v.supply.Sign() == 0 {
		return shares.Clone(), nil
	}
	return convert(shares.ToBig(), v.TotalAssets().ToBig(), v.supply, true)
}

func (v *Vault) PreviewWithdraw(assets *U256) (*U256, error) {
	if v.supply.Sign() == 0 {
		return assets.Clone(), nil
	}
	return convert(assets.ToBig(), v.supply, v.TotalAssets().ToBig(), true)
}

func (v *Vault) PreviewRedeem(shares *U256) (*U256, error) {
	return v.ConvertToAssets(shares)
}

func (v *Vault) MaxDeposit(common.Address) *U256 { return harness.U256Max() }
func (v *Vault) MaxMint(common.Address) *U256    { return harness.U256Max() }

func (v *Vault) MaxWithdraw(owner common.Address) *U256 {
	out, err := v.ConvertToAssets(v.BalanceOf(owner))
	if err != nil {
		return new(U256)
	}
	return out
}

func (v *Vault) MaxRedeem(owner common.Address) *U256 { return v.BalanceOf(owner) }

func (v *Vault) Deposit(caller, receiver common.Address, assets *U256) (*U256, error) {
	shares, err := v.PreviewDeposit(assets)
	if err != nil {
		return nil, err
	}
	if shares.IsZero() {
		return nil, harness.ErrZeroShares
	}
	if err := v.asset.TransferFrom(v.addr, caller, v.addr, assets); err != nil {
		return nil, fmt.Errorf("pull assets: %w", err)
	}
	if err := v.mintShares(receiver, shares); err != nil {
		return nil, err
	}
	return shares, nil
}

func (v *Vault) Mint(caller, receiver common.Address, shares *U256) (*U256, error) {
	assets, err := v.PreviewMint(shares)
	if err != nil {
		return nil, err
	}
	if err := v.asset.TransferFrom(v.addr, caller, v.addr, assets); err != nil {
		return nil, fmt.Errorf("pull assets: %w", err)
	}
	if err := v.mintShares(receiver, shares); err != nil {
		return nil, err
	}
	return assets, nil
}

func (v *Vault) Withdraw(caller, receiver, owner common.Address, assets *U256) (*U256, error) {
	shares, err := v.PreviewWithdraw(assets)
	if err != nil {
		return nil, err
	}
	if caller != owner {
		if err := v.spendAllowance(owner, caller, shares); err != nil {
			return nil, err
		}
	}
	if err := v.burnShares(owner, shares); err != nil {
		return nil, err
	}
	if err := v.asset.Transfer(v.addr, receiver, assets); err != nil {
		return nil, err
	}
	return shares, nil
}

func (v *Vault) Redeem(caller, receiver, owner common.Address, shares *U256) (*U256, error) {
	assets, err := v.PreviewRedeem(shares)
	if err != nil {
		return nil, err
	}
	if assets.IsZero() {
		return nil, harness.ErrZeroAssets
	}
	if caller != owner {
		if err := v.spendAllowance(owner, caller, shares); err != nil {
			return nil, err
		}
	}
	if err := v.burnShares(owner, shares); err != nil {
		return nil, err
	}
	if err := v.asset.Transfer(v.addr, receiver, assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func (v *Vault) Approve(owner, spender common.Address, amount *U256) {
	m, ok := v.allowances[owner]
	if !ok {
		m = make(map[common.Address]*big.Int)
		v.allowances[owner] = m
	}
	m[spender] = amount.ToBig()
}

func (v *Vault) Transfer(from, to common.Address, amount *U256) error {
	a := amount.ToBig()
	if err := v.debit(from, a); err != nil {
		return err
	}
	v.credit(to, a)
	return nil
}

func (v *Vault) TransferFrom(caller, from, to common.Address, amount *U256) error {
	if err := v.spendAllowance(from, caller, amount); err != nil {
		return err
	}
	return v.Transfer(from, to, amount)
}

func (v *Vault) mintShares(to common.Address, shares *U256) error {
	next := new(big.Int).Add(v.supply, shares.ToBig())
	if next.Cmp(wordLimit) >= 0 {
		return token.ErrOverflow
	}
	v.supply = next
	v.credit(to, shares.ToBig())
	return nil
}

func (v *Vault) burnShares(from common.Address, shares *U256) error {
	s := shares.ToBig()
	if err := v.debit(from, s); err != nil {
		return err
	}
	v.supply.Sub(v.supply, s)
	return nil
}

func (v *Vault) spendAllowance(owner, spender common.Address, amount *U256) error {
	allowed := v.Allowance(owner, spender)
	if allowed.Eq(harness.U256Max()) {
		return nil
	}
	if allowed.Lt(amount) {
		return token.ErrInsufficientAllowance
	}
	v.Approve(owner, spender, allowed.Sub(allowed, amount))
	return nil
}

func (v *Vault) credit(to common.Address, amount *big.Int) {
	b, ok := v.balances[to]
	if !ok {
		b = new(big.Int)
		v.balances[to] = b
	}
	b.Add(b, amount)
}

func (v *Vault) debit(from common.Address, amount *big.Int) error {
	b, ok := v.balances[from]
	if !ok || b.Cmp(amount) < 0 {
		return token.ErrInsufficientBalance
	}
	b.Sub(b, amount)
	return nil
}

func fromBig(x *big.Int) *U256 {
	out, _ := uint256.FromBig(x)
	return out
}
