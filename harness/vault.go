package harness

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/ret2basic/erc4626-invariants/token"
)

type U256 = uint256.Int

// Failure modes of the vault surface the engine filters on. Implementations
// must return these (possibly wrapped) rather than private equivalents.
var (
	// ErrNoAssets: share/asset conversion with nonzero supply but zero assets.
	ErrNoAssets = errors.New("vault: nonzero supply with zero assets")
	// ErrZeroShares: a deposit that would mint zero shares.
	ErrZeroShares = errors.New("vault: deposit would mint zero shares")
	// ErrZeroAssets: a redeem that would return zero assets.
	ErrZeroAssets = errors.New("vault: redeem would return zero assets")
	// ErrOverflow: an intermediate product left 256-bit range.
	ErrOverflow = errors.New("vault: arithmetic overflow")
)

// Vault is the capability surface of the system under test. The engine
// depends only on this behavioral contract, never on a concrete
// implementation's internals. Mutating calls take the caller identity as an
// explicit first argument.
//
// Accessors return fresh values; callers may mutate results freely.
type Vault interface {
	Asset() *token.Token
	Address() common.Address

	TotalAssets() *U256
	TotalSupply() *U256
	BalanceOf(owner common.Address) *U256
	Allowance(owner, spender common.Address) *U256

	ConvertToShares(assets *U256) (*U256, error)
	ConvertToAssets(shares *U256) (*U256, error)

	PreviewDeposit(assets *U256) (*U256, error)
	PreviewMint(shares *U256) (*U256, error)
	PreviewWithdraw(assets *U256) (*U256, error)
	PreviewRedeem(shares *U256) (*U256, error)

	MaxDeposit(owner common.Address) *U256
	MaxMint(owner common.Address) *U256
	MaxWithdraw(owner common.Address) *U256
	MaxRedeem(owner common.Address) *U256

	Deposit(caller, receiver common.Address, assets *U256) (*U256, error)
	Mint(caller, receiver common.Address, shares *U256) (*U256, error)
	Withdraw(caller, receiver, owner common.Address, assets *U256) (*U256, error)
	Redeem(caller, receiver, owner common.Address, shares *U256) (*U256, error)

	Approve(owner, spender common.Address, amount *U256)
	Transfer(from, to common.Address, amount *U256) error
	TransferFrom(caller, from, to common.Address, amount *U256) error
}

// Permitter is the optional signature-based approval surface over the vault's
// share token. Vaults are not required to implement it; the permit target
// skips vaults that don't.
type Permitter interface {
	Nonce(owner common.Address) uint64
	PermitDigest(owner, spender common.Address, value *U256, nonce, deadline uint64) common.Hash
	Permit(owner, spender common.Address, value *U256, deadline uint64, sig []byte) error
}
