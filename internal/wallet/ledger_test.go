package wallet

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBalanceOfSignsEntriesByType(t *testing.T) {
	walletID := uuid.New()
	entries := []LedgerEntry{
		{WalletID: walletID, Type: EntryCharge, Amount: decimal.NewFromInt(50)},
		{WalletID: walletID, Type: EntryCharge, Amount: decimal.NewFromInt(30)},
		{WalletID: walletID, Type: EntryPayment, Amount: decimal.NewFromInt(80)},
	}

	assert.True(t, BalanceOf(entries).IsZero())
	assert.True(t, BalanceOf(nil).IsZero())
	assert.True(t, BalanceOf(entries[:2]).Equal(decimal.NewFromInt(80)))
}

// The cached balance must track the signed entry sum through any legal
// sequence of charges and settlements.
func TestLedgerInvariantHoldsForAnySequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var entries []LedgerEntry
		balance := decimal.Zero

		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "settle") && balance.IsPositive() {
				entries = append(entries, LedgerEntry{Type: EntryPayment, Amount: balance})
				balance = decimal.Zero
			} else {
				amount := decimal.NewFromFloat(rapid.Float64Range(0.01, 500).Draw(t, "amount")).Round(2)
				entries = append(entries, LedgerEntry{Type: EntryCharge, Amount: amount})
				balance = balance.Add(amount)
			}

			derived := BalanceOf(entries)
			if !derived.Equal(balance) {
				t.Fatalf("balance diverged after %d entries: cached %s, derived %s", len(entries), balance, derived)
			}
			if derived.IsNegative() {
				t.Fatalf("balance went negative: %s", derived)
			}
		}
	})
}
