package harness

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ret2basic/erc4626-invariants/token"
)

var ErrUnknownAsset = errors.New("harness: unknown asset")

// AssetID is an opaque handle into the asset registry.
type AssetID int

// AssetSet owns the underlying fungible assets used as vault collateral.
// Vaults hold references to tokens, never ownership.
type AssetSet struct {
	assets []*token.Token
}

func NewAssetSet() *AssetSet {
	return &AssetSet{}
}

// NewAsset creates and registers a fungible asset with the given decimal
// precision. Token addresses are derived from the registry index so repeated
// setups are reproducible.
func (s *AssetSet) NewAsset(decimals uint8) AssetID {
	id := AssetID(len(s.assets))
	addr := common.BytesToAddress(crypto.Keccak256([]byte("asset"), []byte{byte(id), decimals})[12:])
	t := token.New(
		fmt.Sprintf("Mock Token %d", id),
		fmt.Sprintf("MT%d", id),
		decimals,
		addr,
	)
	s.assets = append(s.assets, t)
	return id
}

// Get resolves an asset handle.
func (s *AssetSet) Get(id AssetID) (*token.Token, error) {
	if id < 0 || int(id) >= len(s.assets) {
		return nil, ErrUnknownAsset
	}
	return s.assets[id], nil
}

// Mint credits amount of the asset to the recipient. No approval side
// effects; approvals are an explicit separate step.
func (s *AssetSet) Mint(id AssetID, to common.Address, amount *U256) error {
	t, err := s.Get(id)
	if err != nil {
		return err
	}
	return t.Mint(to, amount)
}

func (s *AssetSet) Len() int { return len(s.assets) }
