package corebank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodayRowCreatesFromPriorClose(t *testing.T) {
	tl := newTestLedger(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")
	tl.openAccount(t, "CUST0001", "110101000", true, NewMoney("5000.00"), Zero)

	row, err := tl.Balances.TodayRow(BalanceKindAccount, "CUST0001")
	require.NoError(t, err)
	assert.True(t, row.OpeningBal.Equal(NewMoney("5000.00")))
	assert.True(t, row.ClosingBal.Equal(NewMoney("5000.00")))

	// Idempotent on a second call — same row, not a second zeroed one.
	row2, err := tl.Balances.TodayRow(BalanceKindAccount, "CUST0001")
	require.NoError(t, err)
	assert.True(t, row2.OpeningBal.Equal(row.OpeningBal))
}

func TestUpdateForPostingInvariant(t *testing.T) {
	tl := newTestLedger(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")
	tl.openAccount(t, "CUST0001", "110101000", true, NewMoney("5000.00"), Zero)

	row, err := tl.Balances.UpdateForPosting(BalanceKindAccount, "CUST0001", Debit, NewMoney("1000.00"))
	require.NoError(t, err)
	// Property 2: closingBal = openingBal + crSummation - drSummation.
	assert.True(t, row.ClosingBal.Equal(row.OpeningBal.Add(row.CrSummation).Sub(row.DrSummation)))
	assert.True(t, row.ClosingBal.Equal(NewMoney("4000.00")))

	row2, err := tl.Balances.UpdateForPosting(BalanceKindAccount, "CUST0001", Credit, NewMoney("500.00"))
	require.NoError(t, err)
	assert.True(t, row2.ClosingBal.Equal(NewMoney("4500.00")))
	assert.True(t, row2.ClosingBal.Equal(row2.OpeningBal.Add(row2.CrSummation).Sub(row2.DrSummation)))
}

func TestLatestByAccountThreeTierFallback(t *testing.T) {
	tl := newTestLedger(t)
	tl.Clock.Set(mustDate(t, "2024-01-20"), "setup")

	// Tier 3: brand new account, no rows anywhere -> zero.
	row, err := tl.Balances.LatestByAccount("CUST9999", mustDate(t, "2024-01-19"))
	require.NoError(t, err)
	assert.True(t, row.ClosingBal.IsZero())

	// Tier 2: a row exists further back than systemDate-1.
	require.NoError(t, tl.Storage.PutBalanceRow(BalanceKindAccount, BalanceRow{
		Key: "CUST0001", TranDate: mustDate(t, "2024-01-10"),
		ClosingBal: NewMoney("100.00"),
	}))
	row2, err := tl.Balances.LatestByAccount("CUST0001", mustDate(t, "2024-01-19"))
	require.NoError(t, err)
	assert.True(t, row2.ClosingBal.Equal(NewMoney("100.00")))

	// Tier 1: a row exists exactly at systemDate-1, takes precedence.
	require.NoError(t, tl.Storage.PutBalanceRow(BalanceKindAccount, BalanceRow{
		Key: "CUST0001", TranDate: mustDate(t, "2024-01-19"),
		ClosingBal: NewMoney("250.00"),
	}))
	row3, err := tl.Balances.LatestByAccount("CUST0001", mustDate(t, "2024-01-19"))
	require.NoError(t, err)
	assert.True(t, row3.ClosingBal.Equal(NewMoney("250.00")))
}
