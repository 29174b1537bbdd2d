package test

import (
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ret2basic/erc4626-invariants/harness"
	"github.com/ret2basic/erc4626-invariants/vault/fast"
	"github.com/ret2basic/erc4626-invariants/vault/slow"
)

const campaignActors = 4

func quietLogger() log.Logger {
	return log.NewLogger(log.LogfmtHandlerWithLevel(io.Discard, log.LevelCrit))
}

// newCampaign builds a fully wired harness around a fresh vault of the given
// variant. Actor derivation is deterministic, so campaigns built for
// different variants see identical actor sets.
func newCampaign(t require.TestingT, variant string, decimals uint8) *harness.Harness {
	actors := harness.NewActorSet()
	for i := 0; i < campaignActors; i++ {
		_, err := actors.NewActor()
		require.NoError(t, err)
	}
	assets := harness.NewAssetSet()
	id := assets.NewAsset(decimals)
	tok, err := assets.Get(id)
	require.NoError(t, err)

	var v harness.Vault
	switch variant {
	case "fast":
		v = fast.New(tok, "Vault Shares", "vSHARE")
	case "slow":
		v = slow.New(tok, "vSHARE")
	}
	require.NotNil(t, v)
	h, err := harness.New(v, actors, assets, id, quietLogger())
	require.NoError(t, err)
	return h
}

// keccak-chain word source, the same sequencing the campaign runner uses.
type rand struct {
	state [32]byte
}

func newRand(seed uint64) *rand {
	r := &rand{}
	binary.BigEndian.PutUint64(r.state[24:], seed)
	return r
}

func (r *rand) next() *uint256.Int {
	copy(r.state[:], crypto.Keccak256(r.state[:]))
	out := new(uint256.Int)
	out.SetBytes32(r.state[:])
	return out
}

// runStep selects an actor, runs one target, and returns the target name.
// maxTarget limits which prefix of the target table is drawn from.
func runStep(t *testing.T, h *harness.Harness, rng *rand, maxTarget int) string {
	t.Helper()
	addrs := h.Actors().Addrs()
	actor := addrs[rng.next().Uint64()%uint64(len(addrs))]
	require.NoError(t, h.Actors().Select(actor))
	targets := h.Targets()[:maxTarget]
	tgt := targets[rng.next().Uint64()%uint64(len(targets))]
	raw := rng.next()
	require.NoError(t, tgt.Run(actor, raw), "target %s", tgt.Name)
	return tgt.Name
}

// sweepCatalog runs every invariant and fails the test on a violation or a
// fatal error. Returns the number of precondition skips.
func sweepCatalog(t *testing.T, h *harness.Harness) int {
	t.Helper()
	skips := 0
	for _, inv := range h.Invariants() {
		err := inv.Check()
		switch {
		case err == nil:
		case errors.Is(err, harness.ErrSkip):
			skips++
		default:
			t.Fatalf("invariant %02d: %v", inv.ID, err)
		}
	}
	return skips
}
