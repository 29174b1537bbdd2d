package harness_test

import (
	"errors"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ret2basic/erc4626-invariants/harness"
	"github.com/ret2basic/erc4626-invariants/vault/fast"
	"github.com/ret2basic/erc4626-invariants/vault/slow"
)

func quietLogger() log.Logger {
	return log.NewLogger(log.LogfmtHandlerWithLevel(io.Discard, log.LevelCrit))
}

func newTestHarness(t *testing.T, variant string) *harness.Harness {
	t.Helper()
	actors := harness.NewActorSet()
	for i := 0; i < 3; i++ {
		_, err := actors.NewActor()
		require.NoError(t, err)
	}
	assets := harness.NewAssetSet()
	id := assets.NewAsset(18)
	tok, err := assets.Get(id)
	require.NoError(t, err)

	var v harness.Vault
	switch variant {
	case "fast":
		v = fast.New(tok, "Vault Shares", "vSHARE")
	case "slow":
		v = slow.New(tok, "vSHARE")
	default:
		t.Fatalf("unknown variant %q", variant)
	}
	h, err := harness.New(v, actors, assets, id, quietLogger())
	require.NoError(t, err)
	return h
}

func TestCatalogShape(t *testing.T) {
	h := newTestHarness(t, "fast")
	catalog := h.Invariants()
	require.Len(t, catalog, 18)

	seen := map[int]bool{}
	for i, inv := range catalog {
		require.Equal(t, i+1, inv.ID, "catalog must be ordered by ID")
		require.False(t, seen[inv.ID])
		seen[inv.ID] = true
		require.NotEmpty(t, inv.Tag)
		require.NotNil(t, inv.Check)
		// only the four oracle checks mutate
		require.Equal(t, inv.ID >= 15, inv.Mutates, "invariant %d", inv.ID)
	}
}

func TestCatalogOnFreshVault(t *testing.T) {
	for _, variant := range []string{"fast", "slow"} {
		t.Run(variant, func(t *testing.T) {
			h := newTestHarness(t, variant)
			for _, inv := range h.Invariants() {
				err := inv.Check()
				if err != nil && !errors.Is(err, harness.ErrSkip) {
					t.Fatalf("invariant %02d on empty vault: %v", inv.ID, err)
				}
			}
		})
	}
}

func TestCatalogAfterDeposits(t *testing.T) {
	for _, variant := range []string{"fast", "slow"} {
		t.Run(variant, func(t *testing.T) {
			h := newTestHarness(t, variant)
			addrs := h.Actors().Addrs()
			for i, a := range addrs {
				require.NoError(t, h.Deposit(a, a, uint256.NewInt(uint64(1_000_000*(i+1)))))
			}
			for _, inv := range h.Invariants() {
				err := inv.Check()
				if err != nil && !errors.Is(err, harness.ErrSkip) {
					t.Fatalf("invariant %02d after deposits: %v", inv.ID, err)
				}
			}
		})
	}
}

// A vault drained of its underlying while shares remain outstanding is the
// degenerate state: share->asset conversion dependent checks must skip, the
// rest must still pass.
func TestDegenerateStateSkips(t *testing.T) {
	h := newTestHarness(t, "fast")
	v := h.Vault()
	actor := addrOf(t, h)
	require.NoError(t, h.Deposit(actor, actor, uint256.NewInt(1000)))

	// drain the vault's underlying without touching shares
	require.NoError(t, v.Asset().Transfer(v.Address(), actor, v.TotalAssets()))
	require.True(t, v.TotalAssets().IsZero())
	require.False(t, v.TotalSupply().IsZero())

	mustSkip := map[int]bool{2: true, 3: true, 5: true, 13: true, 15: true, 17: true, 18: true}
	for _, inv := range h.Invariants() {
		err := inv.Check()
		if mustSkip[inv.ID] {
			require.ErrorIs(t, err, harness.ErrSkip, "invariant %02d must skip in the degenerate state", inv.ID)
			continue
		}
		if err != nil && !errors.Is(err, harness.ErrSkip) {
			t.Fatalf("invariant %02d in degenerate state: %v", inv.ID, err)
		}
	}
}

func TestOracleChecksMutateOnlyThroughVault(t *testing.T) {
	h := newTestHarness(t, "fast")
	actorsBefore := h.Actors().Addrs()

	for _, inv := range h.Invariants() {
		if !inv.Mutates {
			continue
		}
		err := inv.Check()
		if err != nil && !errors.Is(err, harness.ErrSkip) {
			t.Fatalf("oracle check %02d: %v", inv.ID, err)
		}
	}
	require.Equal(t, actorsBefore, h.Actors().Addrs(), "oracle checks must not touch the actor registry")
	// invariant 01 must still hold after the oracle mutations
	require.NoError(t, h.Invariants()[0].Check())
}

func TestReadOnlyChecksDoNotMutate(t *testing.T) {
	h := newTestHarness(t, "fast")
	actor := addrOf(t, h)
	require.NoError(t, h.Deposit(actor, actor, uint256.NewInt(123456)))

	v := h.Vault()
	supply := v.TotalSupply()
	assets := v.TotalAssets()
	for _, inv := range h.Invariants() {
		if inv.Mutates {
			continue
		}
		err := inv.Check()
		if err != nil && !errors.Is(err, harness.ErrSkip) {
			t.Fatalf("invariant %02d: %v", inv.ID, err)
		}
		require.Equal(t, supply, v.TotalSupply(), "invariant %02d mutated supply", inv.ID)
		require.Equal(t, assets, v.TotalAssets(), "invariant %02d mutated assets", inv.ID)
	}
}

// Caller-independence checks select other actors mid-check; the originally
// active actor must be restored.
func TestCallerIndependenceRestoresActiveActor(t *testing.T) {
	h := newTestHarness(t, "fast")
	addrs := h.Actors().Addrs()
	require.NoError(t, h.Actors().Select(addrs[2]))

	for _, inv := range h.Invariants() {
		if inv.ID != 13 && inv.ID != 14 {
			continue
		}
		err := inv.Check()
		if err != nil && !errors.Is(err, harness.ErrSkip) {
			t.Fatalf("invariant %02d: %v", inv.ID, err)
		}
		active, err := h.Actors().Active()
		require.NoError(t, err)
		require.Equal(t, addrs[2], active, "invariant %02d left a different actor selected", inv.ID)
	}
}

// cappedVault is a deliberately broken vault: it caps maxDeposit, violating
// invariant 06.
type cappedVault struct {
	*fast.Vault
}

func (c *cappedVault) MaxDeposit(common.Address) *uint256.Int {
	return uint256.NewInt(1000)
}

// A vault that caps maxDeposit breaks invariant 06 and the violation carries
// the tag and the observed values.
func TestCappedVaultIsCaught(t *testing.T) {
	actors := harness.NewActorSet()
	_, err := actors.NewActor()
	require.NoError(t, err)
	assets := harness.NewAssetSet()
	id := assets.NewAsset(18)
	tok, err := assets.Get(id)
	require.NoError(t, err)

	h, err := harness.New(&cappedVault{Vault: fast.New(tok, "Vault Shares", "vSHARE")}, actors, assets, id, quietLogger())
	require.NoError(t, err)

	var found *harness.Violation
	for _, inv := range h.Invariants() {
		if err := inv.Check(); err != nil && errors.As(err, &found) {
			break
		}
	}
	require.NotNil(t, found)
	require.Equal(t, 6, found.ID)
	require.Equal(t, harness.TagMaxDepositUnbounded, found.Tag)
	require.Equal(t, uint256.NewInt(1000), found.Got)
}

func addrOf(t *testing.T, h *harness.Harness) common.Address {
	t.Helper()
	addrs := h.Actors().Addrs()
	require.NotEmpty(t, addrs)
	return addrs[0]
}
