package harness

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// The invariant catalog. Checks 01-14 are read-only; the four oracle checks
// 15-18 execute a real operation through the same target surface the campaign
// uses and compare the outcome against its preview. The catalog is fixed at
// 18 entries; adding or removing one means updating the table and its tests
// together.

// Stable literal tags reported on violation.
const (
	TagTotalAssetsMatchesBalance = "totalAssets does not match underlying balance"
	TagPreviewDepositConvert     = "previewDeposit deviates from convertToShares"
	TagPreviewRedeemConvert      = "previewRedeem deviates from convertToAssets"
	TagPreviewMintRoundsUp       = "previewMint rounds against the vault"
	TagPreviewWithdrawRoundsUp   = "previewWithdraw rounds against the vault"
	TagMaxDepositUnbounded       = "maxDeposit is capped"
	TagMaxMintUnbounded          = "maxMint is capped"
	TagMaxWithdrawConvert        = "maxWithdraw deviates from convertToAssets(balanceOf)"
	TagMaxRedeemBalance          = "maxRedeem deviates from balanceOf"
	TagAssetNeverFails           = "asset() failed"
	TagTotalAssetsNeverFails     = "totalAssets() failed"
	TagMaxAccessorsNeverFail     = "max accessor failed"
	TagConvertSharesCallerFree   = "convertToShares depends on caller"
	TagConvertAssetsCallerFree   = "convertToAssets depends on caller"
	TagDepositNoOverPromise      = "deposit returned fewer shares than previewDeposit"
	TagMintNoUnderPromise        = "mint consumed more assets than previewMint"
	TagWithdrawNoOverBurn        = "withdraw burned more shares than previewWithdraw"
	TagRedeemNoUnderReturn       = "redeem returned fewer assets than previewRedeem"
)

// Invariant is one cataloged check. Check returns nil on pass, an error
// wrapping ErrSkip on a precondition skip, a *Violation on a finding, and any
// other error on a fatal setup failure.
type Invariant struct {
	ID      int
	Tag     string
	Mutates bool
	Check   func() error
}

// Invariants returns the fixed 18-entry catalog.
func (h *Harness) Invariants() []Invariant {
	return []Invariant{
		{1, TagTotalAssetsMatchesBalance, false, h.checkTotalAssetsMatchesBalance},
		{2, TagPreviewDepositConvert, false, h.checkPreviewDepositMatchesConvert},
		{3, TagPreviewRedeemConvert, false, h.checkPreviewRedeemMatchesConvert},
		{4, TagPreviewMintRoundsUp, false, h.checkPreviewMintRoundsUp},
		{5, TagPreviewWithdrawRoundsUp, false, h.checkPreviewWithdrawRoundsUp},
		{6, TagMaxDepositUnbounded, false, h.checkMaxDepositUnbounded},
		{7, TagMaxMintUnbounded, false, h.checkMaxMintUnbounded},
		{8, TagMaxWithdrawConvert, false, h.checkMaxWithdrawMatchesConvert},
		{9, TagMaxRedeemBalance, false, h.checkMaxRedeemMatchesBalance},
		{10, TagAssetNeverFails, false, h.checkAssetNeverFails},
		{11, TagTotalAssetsNeverFails, false, h.checkTotalAssetsNeverFails},
		{12, TagMaxAccessorsNeverFail, false, h.checkMaxAccessorsNeverFail},
		{13, TagConvertSharesCallerFree, false, h.checkConvertToSharesCallerIndependent},
		{14, TagConvertAssetsCallerFree, false, h.checkConvertToAssetsCallerIndependent},
		{15, TagDepositNoOverPromise, true, h.checkDepositAgainstPreview},
		{16, TagMintNoUnderPromise, true, h.checkMintAgainstPreview},
		{17, TagWithdrawNoOverBurn, true, h.checkWithdrawAgainstPreview},
		{18, TagRedeemNoUnderReturn, true, h.checkRedeemAgainstPreview},
	}
}

// 01: totalAssets() equals the vault's balance of its underlying asset.
func (h *Harness) checkTotalAssetsMatchesBalance() error {
	got := h.vault.TotalAssets()
	want := h.vault.Asset().BalanceOf(h.vault.Address())
	if !got.Eq(want) {
		return &Violation{ID: 1, Tag: TagTotalAssetsMatchesBalance, Want: want, Got: got}
	}
	return nil
}

// 02: previewDeposit(a) equals convertToShares(a).
func (h *Harness) checkPreviewDepositMatchesConvert() error {
	if h.degenerate() {
		return skipf("zero assets with nonzero supply")
	}
	a, err := h.sample("preview-deposit")
	if err != nil {
		return err
	}
	pd, perr := h.vault.PreviewDeposit(a)
	cs, cerr := h.vault.ConvertToShares(a)
	if perr != nil || cerr != nil {
		// both failing the same way is consistent behavior, not a finding
		if (perr == nil) != (cerr == nil) {
			return &Violation{ID: 2, Tag: TagPreviewDepositConvert, Sampled: a,
				Detail: fmt.Sprintf("failure mismatch: previewDeposit=%v convertToShares=%v", perr, cerr)}
		}
		return skipf("both conversions failed: %v", perr)
	}
	if !pd.Eq(cs) {
		return &Violation{ID: 2, Tag: TagPreviewDepositConvert, Sampled: a, Want: cs, Got: pd}
	}
	return nil
}

// 03: previewRedeem(s) equals convertToAssets(s).
func (h *Harness) checkPreviewRedeemMatchesConvert() error {
	if h.degenerate() {
		return skipf("zero assets with nonzero supply")
	}
	s, err := h.sample("preview-redeem")
	if err != nil {
		return err
	}
	pr, perr := h.vault.PreviewRedeem(s)
	ca, cerr := h.vault.ConvertToAssets(s)
	if perr != nil || cerr != nil {
		if (perr == nil) != (cerr == nil) {
			return &Violation{ID: 3, Tag: TagPreviewRedeemConvert, Sampled: s,
				Detail: fmt.Sprintf("failure mismatch: previewRedeem=%v convertToAssets=%v", perr, cerr)}
		}
		return skipf("both conversions failed: %v", perr)
	}
	if !pr.Eq(ca) {
		return &Violation{ID: 3, Tag: TagPreviewRedeemConvert, Sampled: s, Want: ca, Got: pr}
	}
	return nil
}

// 04: previewMint(s) >= convertToAssets(s), rounding in the vault's favor.
func (h *Harness) checkPreviewMintRoundsUp() error {
	s, err := h.sample("preview-mint")
	if err != nil {
		return err
	}
	pm, err := h.vault.PreviewMint(s)
	if err != nil {
		return skipf("previewMint failed: %v", err)
	}
	ca, err := h.vault.ConvertToAssets(s)
	if err != nil {
		return skipf("convertToAssets failed: %v", err)
	}
	if pm.Lt(ca) {
		return &Violation{ID: 4, Tag: TagPreviewMintRoundsUp, Sampled: s, Want: ca, Got: pm}
	}
	return nil
}

// 05: previewWithdraw(a) >= convertToShares(a), rounding in the vault's favor.
func (h *Harness) checkPreviewWithdrawRoundsUp() error {
	if h.degenerate() {
		return skipf("zero assets with nonzero supply")
	}
	a, err := h.sample("preview-withdraw")
	if err != nil {
		return err
	}
	pw, err := h.vault.PreviewWithdraw(a)
	if err != nil {
		return skipf("previewWithdraw failed: %v", err)
	}
	cs, err := h.vault.ConvertToShares(a)
	if err != nil {
		return skipf("convertToShares failed: %v", err)
	}
	if pw.Lt(cs) {
		return &Violation{ID: 5, Tag: TagPreviewWithdrawRoundsUp, Sampled: a, Want: cs, Got: pw}
	}
	return nil
}

// 06: maxDeposit is the unbounded maximum for every registered actor.
func (h *Harness) checkMaxDepositUnbounded() error {
	for _, addr := range h.actors.Addrs() {
		if got := h.vault.MaxDeposit(addr); !got.Eq(u256Max) {
			return &Violation{ID: 6, Tag: TagMaxDepositUnbounded, Actor: addr, Want: U256Max(), Got: got}
		}
	}
	return nil
}

// 07: maxMint is the unbounded maximum for every registered actor.
func (h *Harness) checkMaxMintUnbounded() error {
	for _, addr := range h.actors.Addrs() {
		if got := h.vault.MaxMint(addr); !got.Eq(u256Max) {
			return &Violation{ID: 7, Tag: TagMaxMintUnbounded, Actor: addr, Want: U256Max(), Got: got}
		}
	}
	return nil
}

// 08: maxWithdraw(owner) equals convertToAssets(balanceOf(owner)).
func (h *Harness) checkMaxWithdrawMatchesConvert() error {
	for _, addr := range h.actors.Addrs() {
		want, err := h.vault.ConvertToAssets(h.vault.BalanceOf(addr))
		if err != nil {
			return skipf("convertToAssets failed for %s: %v", addr, err)
		}
		if got := h.vault.MaxWithdraw(addr); !got.Eq(want) {
			return &Violation{ID: 8, Tag: TagMaxWithdrawConvert, Actor: addr, Want: want, Got: got}
		}
	}
	return nil
}

// 09: maxRedeem(owner) equals balanceOf(owner).
func (h *Harness) checkMaxRedeemMatchesBalance() error {
	for _, addr := range h.actors.Addrs() {
		want := h.vault.BalanceOf(addr)
		if got := h.vault.MaxRedeem(addr); !got.Eq(want) {
			return &Violation{ID: 9, Tag: TagMaxRedeemBalance, Actor: addr, Want: want, Got: got}
		}
	}
	return nil
}

// 10: asset() never fails.
func (h *Harness) checkAssetNeverFails() error {
	if err := guard(func() {
		if h.vault.Asset() == nil {
			panic("nil asset")
		}
	}); err != nil {
		return &Violation{ID: 10, Tag: TagAssetNeverFails, Detail: err.Error()}
	}
	return nil
}

// 11: totalAssets() never fails.
func (h *Harness) checkTotalAssetsNeverFails() error {
	if err := guard(func() {
		if h.vault.TotalAssets() == nil {
			panic("nil totalAssets")
		}
	}); err != nil {
		return &Violation{ID: 11, Tag: TagTotalAssetsNeverFails, Detail: err.Error()}
	}
	return nil
}

// 12: the four max accessors never fail, for any caller.
func (h *Harness) checkMaxAccessorsNeverFail() error {
	for _, addr := range h.actors.Addrs() {
		addr := addr
		if err := guard(func() {
			_ = h.vault.MaxDeposit(addr)
			_ = h.vault.MaxMint(addr)
			_ = h.vault.MaxWithdraw(addr)
			_ = h.vault.MaxRedeem(addr)
		}); err != nil {
			return &Violation{ID: 12, Tag: TagMaxAccessorsNeverFail, Actor: addr, Detail: err.Error()}
		}
	}
	return nil
}

// 13: convertToShares is identical regardless of caller identity. The check
// evaluates the conversion with every registered actor selected in turn and
// restores the originally active actor, leaving the registry net-unchanged.
func (h *Harness) checkConvertToSharesCallerIndependent() error {
	if h.degenerate() {
		return skipf("zero assets with nonzero supply")
	}
	return h.checkCallerIndependent(13, TagConvertSharesCallerFree, "convert-shares-caller", h.vault.ConvertToShares)
}

// 14: convertToAssets is identical regardless of caller identity.
func (h *Harness) checkConvertToAssetsCallerIndependent() error {
	return h.checkCallerIndependent(14, TagConvertAssetsCallerFree, "convert-assets-caller", h.vault.ConvertToAssets)
}

func (h *Harness) checkCallerIndependent(id int, tag, sampleTag string, convert func(*U256) (*U256, error)) error {
	original, err := h.actors.Active()
	if err != nil {
		return err
	}
	defer func() { _ = h.actors.Select(original) }()

	x, err := h.sample(sampleTag)
	if err != nil {
		return err
	}
	var base *U256
	for _, addr := range h.actors.Addrs() {
		if err := h.actors.Select(addr); err != nil {
			return err
		}
		r, err := convert(x)
		if err != nil {
			return skipf("conversion failed as %s: %v", addr, err)
		}
		if base == nil {
			base = r
			continue
		}
		if !r.Eq(base) {
			return &Violation{ID: id, Tag: tag, Actor: addr, Sampled: x, Want: base, Got: r}
		}
	}
	return nil
}

// 15: actual shares returned by a real deposit are >= previewDeposit.
// Mutates: mints the sampled assets to the active actor, approves the vault,
// and deposits them for the actor's own account.
func (h *Harness) checkDepositAgainstPreview() error {
	actor, err := h.actors.Active()
	if err != nil {
		return err
	}
	if h.degenerate() {
		return skipf("zero assets with nonzero supply")
	}
	a, err := h.sample("oracle-deposit")
	if err != nil {
		return err
	}
	if a.IsZero() {
		return skipf("zero sample")
	}
	want, err := h.vault.PreviewDeposit(a)
	if err != nil {
		return skipf("previewDeposit failed: %v", err)
	}
	if want.IsZero() {
		return skipf("zero preview")
	}
	tok := h.vault.Asset()
	if err := tok.Mint(actor, a); err != nil {
		return err
	}
	tok.Approve(actor, h.vault.Address(), a)
	got, err := h.vault.Deposit(actor, actor, a)
	if err != nil {
		return &Violation{ID: 15, Tag: TagDepositNoOverPromise, Actor: actor, Sampled: a, Want: want, Detail: "deposit failed: " + err.Error()}
	}
	if got.Lt(want) {
		return &Violation{ID: 15, Tag: TagDepositNoOverPromise, Actor: actor, Sampled: a, Want: want, Got: got}
	}
	return nil
}

// 16: actual assets consumed by a real mint are <= previewMint.
// Mutates: mints the previewed asset cost to the active actor, approves the
// vault, and mints the sampled shares for the actor's own account.
func (h *Harness) checkMintAgainstPreview() error {
	actor, err := h.actors.Active()
	if err != nil {
		return err
	}
	s, err := h.sample("oracle-mint")
	if err != nil {
		return err
	}
	// keep the share supply clear of the representable maximum
	s = Bound(s, MinU256(SampleCeiling(), new(U256).Sub(u256Max, h.vault.TotalSupply())))
	if s.IsZero() {
		return skipf("zero sample")
	}
	want, err := h.vault.PreviewMint(s)
	if err != nil {
		return skipf("previewMint failed: %v", err)
	}
	if want.IsZero() {
		return skipf("zero preview")
	}
	tok := h.vault.Asset()
	if err := tok.Mint(actor, want); err != nil {
		return err
	}
	tok.Approve(actor, h.vault.Address(), want)
	got, err := h.vault.Mint(actor, actor, s)
	if err != nil {
		return &Violation{ID: 16, Tag: TagMintNoUnderPromise, Actor: actor, Sampled: s, Want: want, Detail: "mint failed: " + err.Error()}
	}
	if got.Gt(want) {
		return &Violation{ID: 16, Tag: TagMintNoUnderPromise, Actor: actor, Sampled: s, Want: want, Got: got}
	}
	return nil
}

// 17: actual shares burned by a real withdraw are <= previewWithdraw.
// Mutates: deposits a sampled position for the active actor first, then
// withdraws an amount re-bounded against the observed maxWithdraw.
func (h *Harness) checkWithdrawAgainstPreview() error {
	actor, err := h.actors.Active()
	if err != nil {
		return err
	}
	if h.degenerate() {
		return skipf("zero assets with nonzero supply")
	}
	if err := h.seedPosition(actor, "oracle-withdraw-fund"); err != nil {
		return err
	}
	raw, err := h.sample("oracle-withdraw")
	if err != nil {
		return err
	}
	a := Bound(raw, h.vault.MaxWithdraw(actor))
	if a.IsZero() {
		return skipf("zero withdrawable amount")
	}
	want, err := h.vault.PreviewWithdraw(a)
	if err != nil {
		return skipf("previewWithdraw failed: %v", err)
	}
	if want.IsZero() {
		return skipf("zero preview")
	}
	got, err := h.vault.Withdraw(actor, actor, actor, a)
	if err != nil {
		return &Violation{ID: 17, Tag: TagWithdrawNoOverBurn, Actor: actor, Sampled: a, Want: want, Detail: "withdraw failed: " + err.Error()}
	}
	if got.Gt(want) {
		return &Violation{ID: 17, Tag: TagWithdrawNoOverBurn, Actor: actor, Sampled: a, Want: want, Got: got}
	}
	return nil
}

// 18: actual assets returned by a real redeem are >= previewRedeem.
// Mutates: deposits a sampled position for the active actor first, then
// redeems shares re-bounded against the observed maxRedeem.
func (h *Harness) checkRedeemAgainstPreview() error {
	actor, err := h.actors.Active()
	if err != nil {
		return err
	}
	if h.degenerate() {
		return skipf("zero assets with nonzero supply")
	}
	if err := h.seedPosition(actor, "oracle-redeem-fund"); err != nil {
		return err
	}
	raw, err := h.sample("oracle-redeem")
	if err != nil {
		return err
	}
	s := Bound(raw, h.vault.MaxRedeem(actor))
	if s.IsZero() {
		return skipf("zero redeemable amount")
	}
	want, err := h.vault.PreviewRedeem(s)
	if err != nil {
		return skipf("previewRedeem failed: %v", err)
	}
	if want.IsZero() {
		return skipf("zero preview")
	}
	got, err := h.vault.Redeem(actor, actor, actor, s)
	if err != nil {
		return &Violation{ID: 18, Tag: TagRedeemNoUnderReturn, Actor: actor, Sampled: s, Want: want, Detail: "redeem failed: " + err.Error()}
	}
	if got.Lt(want) {
		return &Violation{ID: 18, Tag: TagRedeemNoUnderReturn, Actor: actor, Sampled: s, Want: want, Got: got}
	}
	return nil
}

// seedPosition gives the actor a withdrawable position by depositing a
// sampled amount. A position that cannot be created (zero preview) is fine;
// the caller re-bounds against the observed maximum afterwards.
func (h *Harness) seedPosition(actor common.Address, tag string) error {
	a, err := h.sample(tag)
	if err != nil {
		return err
	}
	if a.IsZero() {
		return nil
	}
	ps, err := h.vault.PreviewDeposit(a)
	if err != nil || ps.IsZero() {
		return nil
	}
	tok := h.vault.Asset()
	if err := tok.Mint(actor, a); err != nil {
		return err
	}
	tok.Approve(actor, h.vault.Address(), a)
	_, err = h.vault.Deposit(actor, actor, a)
	return err
}
