package corebank

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFinancialReportsGenerateWritesTrialBalanceAndBalanceSheet(t *testing.T) {
	tl := newTestLedger(t)
	tl.seedBasicChart(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")
	tl.openAccount(t, "CUST0001", "110101000", true, NewMoney("5000.00"), Zero)
	tl.openAccount(t, "OFFC0001", "110102000", false, Zero, Zero)

	base, _, err := tl.Engine.Create(mustDate(t, "2024-01-15"), "x", []LegInput{
		{AccountNo: "CUST0001", Flag: Debit, Currency: "USD", LcyAmount: NewMoney("1000.00")},
		{AccountNo: "OFFC0001", Flag: Credit, Currency: "USD", LcyAmount: NewMoney("1000.00")},
	}, "tester")
	require.NoError(t, err)
	_, err = tl.Engine.Post(base, "tester")
	require.NoError(t, err)

	_, err = tl.EOD.RunJob(JobAccountBalanceUpdate, "eodop")
	require.NoError(t, err)
	_, err = tl.EOD.RunJob(JobInterestAccrualTrans, "eodop")
	require.NoError(t, err)
	_, err = tl.EOD.RunJob(JobInterestAccrualGLMovements, "eodop")
	require.NoError(t, err)
	_, err = tl.EOD.RunJob(JobGLMovementUpdate, "eodop")
	require.NoError(t, err)
	_, err = tl.EOD.RunJob(JobGLBalanceUpdate, "eodop")
	require.NoError(t, err)

	n, err := tl.Reports.Generate(mustDate(t, "2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dayDir := filepath.Join(tl.Reports.OutDir(), "20240115")
	csvPath := filepath.Join(dayDir, "TrialBalance_20240115.csv")
	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4) // header + 2 GL rows + TOTAL
	assert.Equal(t, []string{"GL_Code", "GL_Name", "Opening_Bal", "DR_Summation", "CR_Summation", "Closing_Bal"}, records[0])
	assert.Equal(t, "TOTAL", records[len(records)-1][0])
	assert.Equal(t, records[len(records)-1][3], records[len(records)-1][4], "trial balance DR total must equal CR total")

	xlsxPath := filepath.Join(dayDir, "BalanceSheet_20240115.xlsx")
	xf, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer xf.Close()
	liabTitle, err := xf.GetCellValue("Balance Sheet", "A2")
	require.NoError(t, err)
	assert.Equal(t, "LIABILITIES", liabTitle)
	assetTitle, err := xf.GetCellValue("Balance Sheet", "E2")
	require.NoError(t, err)
	assert.Equal(t, "ASSETS", assetTitle)
}

func TestFinancialReportsFailsOnImbalance(t *testing.T) {
	tl := newTestLedger(t)
	tl.seedBasicChart(t)
	tl.Clock.Set(mustDate(t, "2024-01-15"), "setup")
	tl.openAccount(t, "CUST0001", "110101000", true, NewMoney("5000.00"), Zero)

	require.NoError(t, tl.Storage.PutBalanceRow(BalanceKindGL, BalanceRow{
		Key: "110101000", TranDate: mustDate(t, "2024-01-15"),
		DrSummation: NewMoney("50.00"), CrSummation: Zero, ClosingBal: NewMoney("-50.00"),
	}))

	_, err := tl.Reports.Generate(mustDate(t, "2024-01-15"))
	require.Error(t, err)
	le, ok := AsLedgerError(err)
	require.True(t, ok)
	assert.Equal(t, CodeTrialBalanceImbalanced, le.Code)
}

func TestSideClassifiesGLsForBalanceSheetLayout(t *testing.T) {
	assert.Equal(t, "liability", side("110101000"))
	assert.Equal(t, "asset", side("210101000"))
	assert.Equal(t, "liability", side("140101000")) // interest expenditure
	assert.Equal(t, "asset", side("240101000"))     // interest income
}
