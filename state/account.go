package state

import (
	"fmt"
	"math/big"

	"github.com/vocdoni/zk-rollup-sequencer/crypto/eddsa"
)

// Account is an account leaf: its key, live balance and tree position.
type Account struct {
	PublicKey eddsa.PublicKey
	Balance   *big.Int
	Position  uint64
}

// Copy returns a deep copy of the account.
func (a *Account) Copy() *Account {
	return &Account{
		PublicKey: a.PublicKey.Copy(),
		Balance:   new(big.Int).Set(a.Balance),
		Position:  a.Position,
	}
}

// AccountBook maps account keys, H2(x, y), to accounts. Accounts are stored
// in position order and never removed.
type AccountBook struct {
	positions map[string]uint64
	accounts  []*Account
}

// NewAccountBook returns an empty book.
func NewAccountBook() *AccountBook {
	return &AccountBook{positions: make(map[string]uint64)}
}

// Add records a new account at the next position. The position must match
// the one the account tree assigned to its leaf.
func (b *AccountBook) Add(key *big.Int, pk eddsa.PublicKey, balance *big.Int, position uint64) (*Account, error) {
	if position != uint64(len(b.accounts)) {
		return nil, fmt.Errorf("account position %d, expected %d", position, len(b.accounts))
	}
	acc := &Account{PublicKey: pk.Copy(), Balance: new(big.Int).Set(balance), Position: position}
	// a repeated key points to its latest leaf; earlier leaves stay in the
	// tree but can only be reached by position
	b.positions[key.String()] = position
	b.accounts = append(b.accounts, acc)
	return acc, nil
}

// Contains reports whether key is registered.
func (b *AccountBook) Contains(key *big.Int) bool {
	_, ok := b.positions[key.String()]
	return ok
}

// Lookup returns the account registered under key.
func (b *AccountBook) Lookup(key *big.Int) (*Account, bool) {
	pos, ok := b.positions[key.String()]
	if !ok {
		return nil, false
	}
	return b.accounts[pos], true
}

// At returns the account at position.
func (b *AccountBook) At(position uint64) (*Account, bool) {
	if position >= uint64(len(b.accounts)) {
		return nil, false
	}
	return b.accounts[position], true
}

// Len returns the number of accounts.
func (b *AccountBook) Len() int {
	return len(b.accounts)
}

// TotalBalance returns the sum of every account balance.
func (b *AccountBook) TotalBalance() *big.Int {
	total := new(big.Int)
	for _, acc := range b.accounts {
		total.Add(total, acc.Balance)
	}
	return total
}
