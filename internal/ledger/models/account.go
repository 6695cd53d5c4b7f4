package models

import (
	id "custodia/pkg/domain"
)

// Account is a point-in-time view of one address: its balance and its
// enforcement state. Accounts exist implicitly from the first balance write
// and are never deleted; a zero balance is a valid steady state.
//
// Invariant: FrozenAmount <= Balance at the end of every successful call.
// A forced operation may transiently exceed it mid-call but must repair it
// before returning.
type Account struct {
	Address      id.Address `json:"address"`
	Balance      id.Amount  `json:"balance"`
	Frozen       bool       `json:"frozen"`
	FrozenAmount id.Amount  `json:"frozen_amount"`
}

// ActiveBalance is the portion of the balance free to move:
// max(0, balance - frozen_amount).
func (a Account) ActiveBalance() id.Amount {
	return ActiveBalance(a.Balance, a.FrozenAmount)
}

// ActiveBalance computes the spendable balance, flooring at zero.
func ActiveBalance(balance, frozen id.Amount) id.Amount {
	return balance.SaturatingSub(frozen)
}
