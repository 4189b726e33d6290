package corebank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRegistryResolveNotFound(t *testing.T) {
	tl := newTestLedger(t)
	_, err := tl.Registry.Resolve("NOPE0001")
	require.Error(t, err)
	le, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, le.Kind)
	assert.False(t, tl.Registry.Exists("NOPE0001"))
}

func TestAccountRegistryResolveAndCacheInvalidation(t *testing.T) {
	tl := newTestLedger(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")
	tl.openAccount(t, "CUST0001", "110101000", true, Zero, Zero)

	info, err := tl.Registry.Resolve("CUST0001")
	require.NoError(t, err)
	assert.Equal(t, AccountActive, info.Status)
	assert.True(t, tl.Registry.Exists("CUST0001"))

	require.NoError(t, tl.Registry.SetStatus("CUST0001", AccountInactive))
	info2, err := tl.Registry.Resolve("CUST0001")
	require.NoError(t, err)
	assert.Equal(t, AccountInactive, info2.Status, "cache must invalidate on status change")
}

func TestAccountInfoClassify(t *testing.T) {
	tl := newTestLedger(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")
	tl.openAccount(t, "OFFC0001", "210101000", false, Zero, Zero)

	info, err := tl.Registry.Resolve("OFFC0001")
	require.NoError(t, err)
	assert.Equal(t, GLAsset, info.Classify())
}

// TestOfficeAccountSeqCapAt99 is the boundary behavior: "Office
// account number sequence at 99 refuses the 100th account".
func TestOfficeAccountSeqCapAt99(t *testing.T) {
	tl := newTestLedger(t)
	for i := 0; i < 99; i++ {
		no, err := tl.Registry.NextOfficeAccountNo("210101000")
		require.NoError(t, err)
		assert.Len(t, no, 12) // "9" + 9-char GL + 2-digit seq
	}
	_, err := tl.Registry.NextOfficeAccountNo("210101000")
	require.Error(t, err)
	le, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, KindBusinessRule, le.Kind)
	assert.Equal(t, CodeAccountSeqExhausted, le.Code)
}

func TestOpenRejectsLoanLimitOnNonAssetGL(t *testing.T) {
	tl := newTestLedger(t)
	err := tl.Registry.Open(Account{
		AccountNo: "CUST0099",
		GLNum:     "110101000", // liability, not asset
		LoanLimit: NewMoney("1000.00"),
		Status:    AccountActive,
	})
	require.Error(t, err)
	le, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, KindBusinessRule, le.Kind)
}
