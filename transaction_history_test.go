package corebank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionHistoryRecordAndForAccount(t *testing.T) {
	tl := newTestLedger(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")

	leg := Leg{
		TranID: "T20240115000001000-1", LineNo: 1,
		TranDate: mustDate(t, "2024-01-15"), ValueDate: mustDate(t, "2024-01-15"),
		AccountNo: "CUST0001", DrCrFlag: Debit, LcyAmount: NewMoney("100.00"),
		Narration: "test leg", TranStatus: LegVerified,
	}
	require.NoError(t, tl.History.Record(leg, NewMoney("4900.00"), mustDate(t, "2024-01-15")))

	rows, err := tl.History.ForAccount("CUST0001")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, leg.TranID, rows[0].TranID)
	assert.True(t, rows[0].BalanceAfter.Equal(NewMoney("4900.00")))
	assert.Equal(t, "test leg", rows[0].Narration)

	none, err := tl.History.ForAccount("CUST9999")
	require.NoError(t, err)
	assert.Empty(t, none)
}
