// Package harness is a stateful invariant-verification engine for vault
// contracts following the deposit/mint/withdraw/redeem share-accounting
// standard. It drives operations against a Vault through a set of simulated
// actors and exposes a fixed catalog of accounting invariants an external
// fuzzing campaign can check after every operation.
package harness

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// ErrSkip marks a precondition skip: the current state makes the check's
// assertion ill-defined, so the check returns without asserting. Skips are
// not passes; campaigns should log them so filtered branches stay auditable.
var ErrSkip = errors.New("harness: check preconditions not met")

// Violation is an invariant finding. It is fatal to the current trace: the
// campaign reports the tag with the concrete sampled values and attempts to
// shrink the input sequence.
type Violation struct {
	ID      int
	Tag     string
	Actor   common.Address
	Sampled *U256
	Want    *U256
	Got     *U256
	Detail  string
}

func (v *Violation) Error() string {
	msg := fmt.Sprintf("invariant %02d violated: %s", v.ID, v.Tag)
	if v.Actor != (common.Address{}) {
		msg += fmt.Sprintf(" actor=%s", v.Actor.Hex())
	}
	if v.Sampled != nil {
		msg += fmt.Sprintf(" sampled=%s", v.Sampled.Hex())
	}
	if v.Want != nil {
		msg += fmt.Sprintf(" want=%s", v.Want.Hex())
	}
	if v.Got != nil {
		msg += fmt.Sprintf(" got=%s", v.Got.Hex())
	}
	if v.Detail != "" {
		msg += " (" + v.Detail + ")"
	}
	return msg
}

// Harness wires the actor and asset registries to one vault under test.
type Harness struct {
	actors     *ActorSet
	assets     *AssetSet
	underlying AssetID
	vault      Vault
	log        log.Logger
}

// New builds a harness around an already-constructed vault. The underlying
// asset id must resolve to the vault's collateral token within the registry.
func New(v Vault, actors *ActorSet, assets *AssetSet, underlying AssetID, logger log.Logger) (*Harness, error) {
	tok, err := assets.Get(underlying)
	if err != nil {
		return nil, err
	}
	if tok.Address() != v.Asset().Address() {
		return nil, fmt.Errorf("harness: vault collateral %s is not registry asset %d", v.Asset().Address(), underlying)
	}
	return &Harness{
		actors:     actors,
		assets:     assets,
		underlying: underlying,
		vault:      v,
		log:        logger,
	}, nil
}

func (h *Harness) Vault() Vault        { return h.vault }
func (h *Harness) Actors() *ActorSet   { return h.actors }
func (h *Harness) Assets() *AssetSet   { return h.assets }
func (h *Harness) Underlying() AssetID { return h.underlying }

// degenerate reports the zero-asset, nonzero-share state in which
// share->asset conversion is ill-defined. Checks that depend on it skip
// rather than assert.
func (h *Harness) degenerate() bool {
	return !h.vault.TotalSupply().IsZero() && h.vault.TotalAssets().IsZero()
}

// sample draws a state-derived pseudo-random value for the active actor and
// applies the 128-bit safety ceiling.
func (h *Harness) sample(tag string) (*U256, error) {
	actor, err := h.actors.Active()
	if err != nil {
		return nil, err
	}
	raw := Sample(actor, h.vault.TotalSupply(), h.vault.TotalAssets(), tag)
	return Bound(raw, SampleCeiling()), nil
}

func skipf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSkip, fmt.Sprintf(format, args...))
}

// guard runs fn and converts a panic into an error, for "never fails" checks.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}
