package harness

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestSampleDeterminism(t *testing.T) {
	actor := common.HexToAddress("0xaaaa")
	supply := uint256.NewInt(100)
	assets := uint256.NewInt(200)

	a := Sample(actor, supply, assets, "tag")
	b := Sample(actor, supply, assets, "tag")
	require.Equal(t, a, b, "same state and actor must reproduce the same sample")
}

func TestSampleVariesWithState(t *testing.T) {
	actor := common.HexToAddress("0xaaaa")
	base := Sample(actor, uint256.NewInt(100), uint256.NewInt(200), "tag")

	require.NotEqual(t, base, Sample(common.HexToAddress("0xbbbb"), uint256.NewInt(100), uint256.NewInt(200), "tag"))
	require.NotEqual(t, base, Sample(actor, uint256.NewInt(101), uint256.NewInt(200), "tag"))
	require.NotEqual(t, base, Sample(actor, uint256.NewInt(100), uint256.NewInt(201), "tag"))
	require.NotEqual(t, base, Sample(actor, uint256.NewInt(100), uint256.NewInt(200), "other"))
}
