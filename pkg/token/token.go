// Package token is the fungible token primitive the program mints and moves
// balances through. Balances and the total supply live in the account store
// so token changes commit atomically with the instruction that caused them.
package token

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/compto-com/comptoken-program/pkg/core/types"
	"github.com/compto-com/comptoken-program/pkg/store"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSupplyOverflow    = errors.New("mint would overflow total supply")
)

var supplyKey = []byte("token:supply")

func balanceKey(owner types.Pubkey) []byte {
	return []byte(fmt.Sprintf("token:balance:%x", owner[:]))
}

// Balance returns owner's balance. Unknown accounts hold zero.
func Balance(txn *store.Txn, owner types.Pubkey) (types.Amount, error) {
	return getAmount(txn, balanceKey(owner))
}

// Supply returns the total number of tokens minted.
func Supply(txn *store.Txn) (types.Amount, error) {
	return getAmount(txn, supplyKey)
}

// Mint creates amount new tokens in to's account.
func Mint(txn *store.Txn, to types.Pubkey, amount types.Amount) error {
	if amount == 0 {
		return nil
	}
	supply, err := Supply(txn)
	if err != nil {
		return err
	}
	if supply+amount < supply {
		return ErrSupplyOverflow
	}
	balance, err := Balance(txn, to)
	if err != nil {
		return err
	}
	if err := setAmount(txn, supplyKey, supply+amount); err != nil {
		return err
	}
	return setAmount(txn, balanceKey(to), balance+amount)
}

// Transfer moves amount tokens from one account to another.
func Transfer(txn *store.Txn, from, to types.Pubkey, amount types.Amount) error {
	if amount == 0 || from == to {
		return nil
	}
	fromBalance, err := Balance(txn, from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, fromBalance, amount)
	}
	toBalance, err := Balance(txn, to)
	if err != nil {
		return err
	}
	if err := setAmount(txn, balanceKey(from), fromBalance-amount); err != nil {
		return err
	}
	return setAmount(txn, balanceKey(to), toBalance+amount)
}

func getAmount(txn *store.Txn, key []byte) (types.Amount, error) {
	val, err := txn.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("token: corrupt amount at %s", key)
	}
	return types.Amount(binary.LittleEndian.Uint64(val)), nil
}

func setAmount(txn *store.Txn, key []byte, amount types.Amount) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(amount))
	return txn.Set(key, buf[:])
}
