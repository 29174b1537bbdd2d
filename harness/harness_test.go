package harness_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ret2basic/erc4626-invariants/harness"
	"github.com/ret2basic/erc4626-invariants/vault/fast"
)

func TestNewRejectsMismatchedAsset(t *testing.T) {
	actors := harness.NewActorSet()
	_, err := actors.NewActor()
	require.NoError(t, err)

	assets := harness.NewAssetSet()
	id := assets.NewAsset(18)
	other := assets.NewAsset(6)
	tok, err := assets.Get(id)
	require.NoError(t, err)

	v := fast.New(tok, "Vault Shares", "vSHARE")

	_, err = harness.New(v, actors, assets, other, quietLogger())
	require.Error(t, err, "vault collateral must match the registered asset")

	h, err := harness.New(v, actors, assets, id, quietLogger())
	require.NoError(t, err)
	require.Equal(t, id, h.Underlying())
}

func TestNewRejectsUnknownAsset(t *testing.T) {
	actors := harness.NewActorSet()
	assets := harness.NewAssetSet()
	id := assets.NewAsset(18)
	tok, err := assets.Get(id)
	require.NoError(t, err)

	_, err = harness.New(fast.New(tok, "Vault Shares", "vSHARE"), actors, assets, harness.AssetID(9), quietLogger())
	require.ErrorIs(t, err, harness.ErrUnknownAsset)
}
