package harness_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ret2basic/erc4626-invariants/harness"
)

func TestTargetSurface(t *testing.T) {
	h := newTestHarness(t, "fast")
	targets := h.Targets()
	want := []string{"deposit", "mint", "withdraw", "redeem", "transfer", "approve", "transferFrom", "permit"}
	require.Len(t, targets, len(want))
	for i, name := range want {
		require.Equal(t, name, targets[i].Name)
		require.NotNil(t, targets[i].Run)
	}
}

// Every target must accept arbitrary raw words without spurious failure.
func TestTargetsAcceptArbitraryInput(t *testing.T) {
	for _, variant := range []string{"fast", "slow"} {
		t.Run(variant, func(t *testing.T) {
			h := newTestHarness(t, variant)
			addrs := h.Actors().Addrs()
			raws := []*uint256.Int{
				uint256.NewInt(0),
				uint256.NewInt(1),
				uint256.NewInt(1_000_000),
				harness.U256Max(),
				harness.SampleCeiling(),
			}
			for _, raw := range raws {
				for i, tgt := range h.Targets() {
					actor := addrs[i%len(addrs)]
					require.NoError(t, h.Actors().Select(actor))
					require.NoError(t, tgt.Run(actor, raw.Clone()), "target %s raw %s", tgt.Name, raw.Hex())
				}
			}
		})
	}
}

func TestDepositTargetFundsAndDeposits(t *testing.T) {
	h := newTestHarness(t, "fast")
	actor := addrOf(t, h)
	v := h.Vault()

	require.NoError(t, h.Deposit(actor, actor, uint256.NewInt(1_000_000)))
	require.Equal(t, uint256.NewInt(1_000_000), v.TotalAssets())
	require.Equal(t, uint256.NewInt(1_000_000), v.BalanceOf(actor))
	// the actor keeps no residual underlying from the self-funding step
	require.True(t, v.Asset().BalanceOf(actor).IsZero())
}

func TestWithdrawTargetBoundsToPosition(t *testing.T) {
	h := newTestHarness(t, "fast")
	actor := addrOf(t, h)
	v := h.Vault()
	require.NoError(t, h.Deposit(actor, actor, uint256.NewInt(1000)))

	// raw far above the position; the target must bound, not fail
	require.NoError(t, h.Withdraw(actor, actor, harness.U256Max()))
	require.False(t, v.TotalAssets().Gt(uint256.NewInt(1000)))
}

func TestRedeemTargetEmptiesPosition(t *testing.T) {
	h := newTestHarness(t, "fast")
	actor := addrOf(t, h)
	v := h.Vault()
	require.NoError(t, h.Deposit(actor, actor, uint256.NewInt(1000)))

	shares := v.BalanceOf(actor)
	require.False(t, shares.IsZero())
	// raw that bounds exactly onto the full balance
	require.NoError(t, h.Redeem(actor, actor, new(uint256.Int).Sub(shares, uint256.NewInt(1))))
	require.True(t, v.BalanceOf(actor).Lt(shares))
}

func TestShareTransferTargets(t *testing.T) {
	h := newTestHarness(t, "fast")
	addrs := h.Actors().Addrs()
	a, b, c := addrs[0], addrs[1], addrs[2]
	v := h.Vault()
	require.NoError(t, h.Deposit(a, a, uint256.NewInt(1000)))

	// raw 399 is within [0, balance], so it is used as-is
	require.NoError(t, h.TransferShares(a, b, uint256.NewInt(399)))
	require.Equal(t, uint256.NewInt(399), v.BalanceOf(b))

	require.NoError(t, h.ApproveShares(a, c, uint256.NewInt(50)))
	require.Equal(t, uint256.NewInt(50), v.Allowance(a, c))

	require.NoError(t, h.TransferSharesFrom(c, a, b, uint256.NewInt(29)))
	require.True(t, v.Allowance(a, c).Lt(uint256.NewInt(51)))
}

func TestPermitTarget(t *testing.T) {
	h := newTestHarness(t, "fast")
	addrs := h.Actors().Addrs()
	owner, spender := addrs[0], addrs[1]

	require.NoError(t, h.Permit(owner, spender, uint256.NewInt(777)))
	require.Equal(t, uint256.NewInt(777), h.Vault().Allowance(owner, spender))
}

func TestPermitTargetSkipsVaultWithoutPermit(t *testing.T) {
	h := newTestHarness(t, "slow")
	addrs := h.Actors().Addrs()

	_, ok := h.Vault().(harness.Permitter)
	require.False(t, ok, "the reference vault deliberately lacks permit")
	require.NoError(t, h.Permit(addrs[0], addrs[1], uint256.NewInt(1)))
	require.True(t, h.Vault().Allowance(addrs[0], addrs[1]).IsZero())
}

func TestPermitTargetUnknownOwner(t *testing.T) {
	h := newTestHarness(t, "fast")
	other := addrOf(t, h)
	outsider := common.HexToAddress("0xdeadbeef")

	err := h.Permit(outsider, other, uint256.NewInt(1))
	require.ErrorIs(t, err, harness.ErrUnknownActor)
}
