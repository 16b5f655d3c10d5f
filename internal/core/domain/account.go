package domain

import "strings"

// Account is one of the addresses derived from the wallet secret.
type Account struct {
	Address         string
	DerivationIndex int
}

// Accounts is the ordered, fixed-size list of derived addresses as it is
// persisted under AccountsKey.
type Accounts []string

func (a Accounts) IsEmpty() bool {
	return len(a) <= 0
}

// At returns the account at the given index or ErrInvalidAccountIndex.
func (a Accounts) At(index int) (Account, error) {
	if index < 0 || index >= len(a) {
		return Account{}, ErrInvalidAccountIndex
	}
	return Account{a[index], index}, nil
}

// IndexOf returns the position of the address in the list, comparing
// addresses case insensitively, or -1.
func (a Accounts) IndexOf(address string) int {
	for i, addr := range a {
		if strings.EqualFold(addr, address) {
			return i
		}
	}
	return -1
}
