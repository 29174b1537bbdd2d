// Package fast is the production-grade vault: uint256 share accounting with
// full-precision mulDiv and explicit rounding direction, plus signature-based
// approval on its share token.
package fast

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/ret2basic/erc4626-invariants/harness"
	"github.com/ret2basic/erc4626-invariants/token"
)

type U256 = uint256.Int

var (
	_ harness.Vault     = (*Vault)(nil)
	_ harness.Permitter = (*Vault)(nil)
)

// Vault issues shares against a pooled underlying token. Share decimals
// mirror the underlying's. totalAssets is the live underlying balance of the
// vault address, so donations move the exchange rate.
type Vault struct {
	addr   common.Address
	asset  *token.Token
	shares *token.Token
}

func New(asset *token.Token, name, symbol string) *Vault {
	addr := common.BytesToAddress(crypto.Keccak256([]byte("vault"), asset.Address().Bytes(), []byte(symbol))[12:])
	return &Vault{
		addr:   addr,
		asset:  asset,
		shares: token.New(name, symbol, asset.Decimals(), addr),
	}
}

func (v *Vault) Asset() *token.Token    { return v.asset }
func (v *Vault) Address() common.Address { return v.addr }

func (v *Vault) TotalAssets() *U256 {
	return v.asset.BalanceOf(v.addr)
}

func (v *Vault) TotalSupply() *U256 { return v.shares.TotalSupply() }

func (v *Vault) BalanceOf(owner common.Address) *U256 { return v.shares.BalanceOf(owner) }

func (v *Vault) Allowance(owner, spender common.Address) *U256 {
	return v.shares.Allowance(owner, spender)
}

func (v *Vault) ConvertToShares(assets *U256) (*U256, error) {
	supply := v.TotalSupply()
	if supply.IsZero() {
		return assets.Clone(), nil
	}
	ta := v.TotalAssets()
	if ta.IsZero() {
		return nil, harness.ErrNoAssets
	}
	return mulDivDown(assets, supply, ta)
}

func (v *Vault) ConvertToAssets(shares *U256) (*U256, error) {
	supply := v.TotalSupply()
	if supply.IsZero() {
		return shares.Clone(), nil
	}
	return mulDivDown(shares, v.TotalAssets(), supply)
}

func (v *Vault) PreviewDeposit(assets *U256) (*U256, error) {
	return v.ConvertToShares(assets)
}

func (v *Vault) PreviewMint(shares *U256) (*U256, error) {
	supply := v.TotalSupply()
	if supply.IsZero() {
		return shares.Clone(), nil
	}
	return mulDivUp(shares, v.TotalAssets(), supply)
}

func (v *Vault) PreviewWithdraw(assets *U256) (*U256, error) {
	supply := v.TotalSupply()
	if supply.IsZero() {
		return assets.Clone(), nil
	}
	ta := v.TotalAssets()
	if ta.IsZero() {
		return nil, harness.ErrNoAssets
	}
	return mulDivUp(assets, supply, ta)
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

func (v *Vault) MaxRedeem(owner common.Address) *U256 {
	return v.BalanceOf(owner)
}

// Deposit pulls assets from the caller and mints shares to the receiver.
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
	if err := v.shares.Mint(receiver, shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// Mint pulls the previewed asset cost from the caller and mints exactly the
// requested shares to the receiver.
func (v *Vault) Mint(caller, receiver common.Address, shares *U256) (*U256, error) {
	assets, err := v.PreviewMint(shares)
	if err != nil {
		return nil, err
	}
	if err := v.asset.TransferFrom(v.addr, caller, v.addr, assets); err != nil {
		return nil, fmt.Errorf("pull assets: %w", err)
	}
	if err := v.shares.Mint(receiver, shares); err != nil {
		return nil, err
	}
	return assets, nil
}

// Withdraw burns the previewed share cost from the owner and sends assets to
// the receiver. A caller other than the owner spends share allowance.
func (v *Vault) Withdraw(caller, receiver, owner common.Address, assets *U256) (*U256, error) {
	shares, err := v.PreviewWithdraw(assets)
	if err != nil {
		return nil, err
	}
	if caller != owner {
		if err := v.shares.SpendAllowance(owner, caller, shares); err != nil {
			return nil, err
		}
	}
	if err := v.shares.Burn(owner, shares); err != nil {
		return nil, err
	}
	if err := v.asset.Transfer(v.addr, receiver, assets); err != nil {
		return nil, err
	}
	return shares, nil
}

// Redeem burns the owner's shares and sends the previewed assets to the
// receiver. A caller other than the owner spends share allowance.
func (v *Vault) Redeem(caller, receiver, owner common.Address, shares *U256) (*U256, error) {
	assets, err := v.PreviewRedeem(shares)
	if err != nil {
		return nil, err
	}
	if assets.IsZero() {
		return nil, harness.ErrZeroAssets
	}
	if caller != owner {
		if err := v.shares.SpendAllowance(owner, caller, shares); err != nil {
			return nil, err
		}
	}
	if err := v.shares.Burn(owner, shares); err != nil {
		return nil, err
	}
	if err := v.asset.Transfer(v.addr, receiver, assets); err != nil {
		return nil, err
	}
	return assets, nil
}

func (v *Vault) Approve(owner, spender common.Address, amount *U256) {
	v.shares.Approve(owner, spender, amount)
}

func (v *Vault) Transfer(from, to common.Address, amount *U256) error {
	return v.shares.Transfer(from, to, amount)
}

func (v *Vault) TransferFrom(caller, from, to common.Address, amount *U256) error {
	return v.shares.TransferFrom(caller, from, to, amount)
}

func (v *Vault) Nonce(owner common.Address) uint64 { return v.shares.Nonce(owner) }

func (v *Vault) PermitDigest(owner, spender common.Address, value *U256, nonce, deadline uint64) common.Hash {
	return v.shares.PermitDigest(owner, spender, value, nonce, deadline)
}

func (v *Vault) Permit(owner, spender common.Address, value *U256, deadline uint64, sig []byte) error {
	return v.shares.Permit(owner, spender, value, deadline, sig)
}
