// Package token implements an in-memory fungible token ledger used as vault
// collateral and as the vault's own share ledger. Calls take the caller
// identity as an explicit argument instead of relying on ambient state.
package token

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

type U256 = uint256.Int

var (
	ErrOverflow              = errors.New("token: total supply overflow")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrPermitExpired         = errors.New("token: permit deadline expired")
	ErrInvalidSigner         = errors.New("token: invalid permit signer")
)

var permitTypehash = crypto.Keccak256Hash(
	[]byte("Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)"))

var domainTypehash = crypto.Keccak256Hash(
	[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

type Token struct {
	addr     common.Address
	name     string
	symbol   string
	decimals uint8

	totalSupply U256
	balances    map[common.Address]*U256
	allowances  map[common.Address]map[common.Address]*U256

	nonces          map[common.Address]uint64
	domainSeparator common.Hash

	// logical clock permit deadlines are compared against
	clock uint64
}

func New(name, symbol string, decimals uint8, addr common.Address) *Token {
	t := &Token{
		addr:       addr,
		name:       name,
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*U256),
		allowances: make(map[common.Address]map[common.Address]*U256),
		nonces:     make(map[common.Address]uint64),
	}
	t.domainSeparator = crypto.Keccak256Hash(
		domainTypehash[:],
		crypto.Keccak256([]byte(name)),
		crypto.Keccak256([]byte("1")),
		asWord(uint256.NewInt(1)),
		addrWord(addr),
	)
	return t
}

func (t *Token) Address() common.Address { return t.addr }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

func (t *Token) TotalSupply() *U256 {
	return t.totalSupply.Clone()
}

func (t *Token) BalanceOf(owner common.Address) *U256 {
	if b, ok := t.balances[owner]; ok {
		return b.Clone()
	}
	return new(U256)
}

func (t *Token) Allowance(owner, spender common.Address) *U256 {
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a.Clone()
		}
	}
	return new(U256)
}

func (t *Token) Nonce(owner common.Address) uint64 {
	return t.nonces[owner]
}

func (t *Token) DomainSeparator() common.Hash { return t.domainSeparator }

// AdvanceClock moves the logical clock forward. Permits with a deadline below
// the clock are rejected.
func (t *Token) AdvanceClock(n uint64) { t.clock += n }

// Mint credits amount to the recipient, growing total supply.
func (t *Token) Mint(to common.Address, amount *U256) error {
	var supply U256
	if _, overflow := supply.AddOverflow(&t.totalSupply, amount); overflow {
		return ErrOverflow
	}
	t.totalSupply = supply
	t.credit(to, amount)
	return nil
}

// Burn removes amount from the owner's balance and total supply.
func (t *Token) Burn(from common.Address, amount *U256) error {
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.totalSupply.Sub(&t.totalSupply, amount)
	return nil
}

// Transfer moves amount from the caller to the recipient.
func (t *Token) Transfer(from, to common.Address, amount *U256) error {
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.credit(to, amount)
	return nil
}

// Approve sets spender's allowance over the owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *U256) {
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]*U256)
		t.allowances[owner] = m
	}
	m[spender] = amount.Clone()
}

// TransferFrom moves amount from the owner to the recipient, spending the
// caller's allowance.
func (t *Token) TransferFrom(caller, from, to common.Address, amount *U256) error {
	if err := t.SpendAllowance(from, caller, amount); err != nil {
		return err
	}
	return t.Transfer(from, to, amount)
}

// SpendAllowance consumes amount of spender's allowance over the owner's
// balance. A max-uint256 allowance is treated as infinite and not decremented.
func (t *Token) SpendAllowance(owner, spender common.Address, amount *U256) error {
	allowed := t.Allowance(owner, spender)
	if isMax(allowed) {
		return nil
	}
	if allowed.Lt(amount) {
		return ErrInsufficientAllowance
	}
	t.Approve(owner, spender, allowed.Sub(allowed, amount))
	return nil
}

// PermitDigest computes the EIP-712 style digest a permit signature commits to.
func (t *Token) PermitDigest(owner, spender common.Address, value *U256, nonce, deadline uint64) common.Hash {
	structHash := crypto.Keccak256(
		permitTypehash[:],
		addrWord(owner),
		addrWord(spender),
		asWord(value),
		asWord(uint256.NewInt(nonce)),
		asWord(uint256.NewInt(deadline)),
	)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, t.domainSeparator[:], structHash)
}

// Permit applies a signature-based approval: owner grants spender an
// allowance of value without being the caller. The signature is a 65-byte
// [R || S || V] secp256k1 signature over PermitDigest at the owner's current
// nonce. A successful permit consumes the nonce.
func (t *Token) Permit(owner, spender common.Address, value *U256, deadline uint64, sig []byte) error {
	if deadline < t.clock {
		return ErrPermitExpired
	}
	digest := t.PermitDigest(owner, spender, value, t.nonces[owner], deadline)
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return ErrInvalidSigner
	}
	if crypto.PubkeyToAddress(*pub) != owner {
		return ErrInvalidSigner
	}
	t.nonces[owner]++
	t.Approve(owner, spender, value)
	return nil
}

func (t *Token) credit(to common.Address, amount *U256) {
	b, ok := t.balances[to]
	if !ok {
		b = new(U256)
		t.balances[to] = b
	}
	// cannot overflow: balances are bounded by total supply
	b.Add(b, amount)
}

func (t *Token) debit(from common.Address, amount *U256) error {
	b, ok := t.balances[from]
	if !ok || b.Lt(amount) {
		return ErrInsufficientBalance
	}
	b.Sub(b, amount)
	return nil
}

func isMax(x *U256) bool {
	var max U256
	max.Not(new(U256))
	return x.Eq(&max)
}

func asWord(x *U256) []byte {
	w := x.Bytes32()
	return w[:]
}

func addrWord(a common.Address) []byte {
	var w [32]byte
	copy(w[12:], a.Bytes())
	return w[:]
}
