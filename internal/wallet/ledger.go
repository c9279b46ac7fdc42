package wallet

import "github.com/shopspring/decimal"

// BalanceOf sums the signed amounts of a wallet's entries. This is the
// single definition of a wallet balance; the cached column on the
// wallet row must always equal it.
func BalanceOf(entries []LedgerEntry) decimal.Decimal {
	balance := decimal.Zero
	for _, entry := range entries {
		balance = balance.Add(entry.SignedAmount())
	}
	return balance
}
