package harness

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// permitDeadline is far enough in the logical future that campaign-issued
// permits never expire.
const permitDeadline = ^uint64(0)

// Target is one state-mutating operation the campaign may invoke. Run bounds
// the raw fuzzer word into valid sub-values itself, so arbitrary input never
// produces a spurious failure. A nil result covers both "executed" and
// "benignly skipped"; errors are genuine harness or ledger failures.
type Target struct {
	Name string
	Run  func(actor common.Address, raw *U256) error
}

// Targets returns the statically enumerated target surface. The campaign is
// expected to treat this table as fixed; there is no runtime discovery.
func (h *Harness) Targets() []Target {
	return []Target{
		{"deposit", func(actor common.Address, raw *U256) error {
			return h.Deposit(actor, h.pickActor(raw, "receiver"), Bound(raw, SampleCeiling()))
		}},
		{"mint", func(actor common.Address, raw *U256) error {
			return h.Mint(actor, h.pickActor(raw, "receiver"), Bound(raw, SampleCeiling()))
		}},
		{"withdraw", func(actor common.Address, raw *U256) error {
			return h.Withdraw(actor, h.pickActor(raw, "receiver"), raw)
		}},
		{"redeem", func(actor common.Address, raw *U256) error {
			return h.Redeem(actor, h.pickActor(raw, "receiver"), raw)
		}},
		{"transfer", func(actor common.Address, raw *U256) error {
			return h.TransferShares(actor, h.pickActor(raw, "to"), raw)
		}},
		{"approve", func(actor common.Address, raw *U256) error {
			return h.ApproveShares(actor, h.pickActor(raw, "spender"), Bound(raw, SampleCeiling()))
		}},
		{"transferFrom", func(actor common.Address, raw *U256) error {
			return h.TransferSharesFrom(actor, h.pickActor(raw, "from"), h.pickActor(raw, "to"), raw)
		}},
		{"permit", func(actor common.Address, raw *U256) error {
			return h.Permit(actor, h.pickActor(raw, "spender"), Bound(raw, SampleCeiling()))
		}},
	}
}

// pickActor maps a raw word onto a registered actor. Different salts give
// independent picks from the same word.
func (h *Harness) pickActor(raw *U256, salt string) common.Address {
	addrs := h.actors.Addrs()
	if len(addrs) == 0 {
		return common.Address{}
	}
	w := raw.Bytes32()
	d := new(U256)
	d.SetBytes(crypto.Keccak256(w[:], []byte(salt)))
	return addrs[d.Uint64()%uint64(len(addrs))]
}

// Deposit funds the actor with the requested assets, approves the vault, and
// deposits to the receiver. Degenerate or zero-share states are a no-op.
func (h *Harness) Deposit(actor, receiver common.Address, assets *U256) error {
	if assets.IsZero() || h.degenerate() {
		return nil
	}
	tok := h.vault.Asset()
	if err := tok.Mint(actor, assets); err != nil {
		return fmt.Errorf("fund deposit: %w", err)
	}
	tok.Approve(actor, h.vault.Address(), assets)
	if _, err := h.vault.Deposit(actor, receiver, assets); err != nil {
		if errors.Is(err, ErrZeroShares) || errors.Is(err, ErrOverflow) {
			h.log.Debug("deposit target skipped", "reason", err)
			return nil
		}
		return err
	}
	return nil
}

// Mint previews the asset cost of the requested shares, funds and approves
// exactly that much, and mints to the receiver.
func (h *Harness) Mint(actor, receiver common.Address, shares *U256) error {
	if shares.IsZero() || h.degenerate() {
		return nil
	}
	cost, err := h.vault.PreviewMint(shares)
	if err != nil {
		h.log.Debug("mint target skipped", "reason", err)
		return nil
	}
	tok := h.vault.Asset()
	if err := tok.Mint(actor, cost); err != nil {
		return fmt.Errorf("fund mint: %w", err)
	}
	tok.Approve(actor, h.vault.Address(), cost)
	if _, err := h.vault.Mint(actor, receiver, shares); err != nil {
		return err
	}
	return nil
}

// Withdraw bounds the raw word by the actor's withdrawable maximum and
// withdraws to the receiver.
func (h *Harness) Withdraw(actor, receiver common.Address, raw *U256) error {
	if h.degenerate() {
		return nil
	}
	assets := Bound(raw, h.vault.MaxWithdraw(actor))
	if assets.IsZero() {
		return nil
	}
	if _, err := h.vault.Withdraw(actor, receiver, actor, assets); err != nil {
		if errors.Is(err, ErrOverflow) {
			h.log.Debug("withdraw target skipped", "reason", err)
			return nil
		}
		return err
	}
	return nil
}

// Redeem bounds the raw word by the actor's redeemable maximum and redeems to
// the receiver.
func (h *Harness) Redeem(actor, receiver common.Address, raw *U256) error {
	if h.degenerate() {
		return nil
	}
	shares := Bound(raw, h.vault.MaxRedeem(actor))
	if shares.IsZero() {
		return nil
	}
	if _, err := h.vault.Redeem(actor, receiver, actor, shares); err != nil {
		if errors.Is(err, ErrZeroAssets) || errors.Is(err, ErrOverflow) {
			h.log.Debug("redeem target skipped", "reason", err)
			return nil
		}
		return err
	}
	return nil
}

// TransferShares moves a bounded amount of the actor's shares.
func (h *Harness) TransferShares(actor, to common.Address, raw *U256) error {
	amount := Bound(raw, h.vault.BalanceOf(actor))
	if amount.IsZero() {
		return nil
	}
	return h.vault.Transfer(actor, to, amount)
}

// ApproveShares grants the spender a share allowance.
func (h *Harness) ApproveShares(actor, spender common.Address, amount *U256) error {
	h.vault.Approve(actor, spender, amount)
	return nil
}

// TransferSharesFrom spends the actor's allowance over from's shares. The
// amount is bounded by both the allowance and from's balance.
func (h *Harness) TransferSharesFrom(actor, from, to common.Address, raw *U256) error {
	limit := MinU256(h.vault.Allowance(from, actor), h.vault.BalanceOf(from))
	amount := Bound(raw, limit)
	if amount.IsZero() {
		return nil
	}
	return h.vault.TransferFrom(actor, from, to, amount)
}

// Permit signs a share approval with the actor's registered key and submits
// it. Vaults without signature-based approval are skipped.
func (h *Harness) Permit(owner, spender common.Address, value *U256) error {
	p, ok := h.vault.(Permitter)
	if !ok {
		h.log.Debug("permit target skipped", "reason", "vault has no permit entry point")
		return nil
	}
	key := h.actors.Key(owner)
	if key == nil {
		return ErrUnknownActor
	}
	digest := p.PermitDigest(owner, spender, value, p.Nonce(owner), permitDeadline)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return fmt.Errorf("sign permit: %w", err)
	}
	return p.Permit(owner, spender, value, permitDeadline, sig)
}
