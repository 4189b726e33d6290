package corebank

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testLedger bundles every component the scenario tests in this
// package wire together, mirroring engine.go's Ledger but built
// directly against a temp-file bbolt database per test, matching the
// teacher's defer-os.Remove(dbFile) convention (example_test.go).
type testLedger struct {
	Storage  *Storage
	Clock    *SystemClock
	Registry *AccountRegistry
	MD       *MasterData
	Balances *BalanceStore
	Query    *BalanceQuery
	COA      *ChartOfAccounts
	History  *TransactionHistory
	Events   *EventStore
	Engine   *TransactionEngine
	Accrual  *InterestAccrual
	Reports  *FinancialReports
	EOD      *EODPipeline
	BOD      *BODProcessor
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	storage, err := NewStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	clock := NewSystemClock()
	coa := NewChartOfAccounts()
	registry := NewAccountRegistry(storage)
	md := NewMasterData()
	balances := NewBalanceStore(storage, clock)
	query := NewBalanceQuery(storage, clock, registry, balances)
	history := NewTransactionHistory(storage)
	events := NewEventStore(storage)
	engine := NewTransactionEngine(storage, clock, registry, balances, query, coa, history, events)
	accrual := NewInterestAccrual(storage, clock, registry, balances, md)
	reports := NewFinancialReports(storage, coa, registry, md, filepath.Join(t.TempDir(), "reports"))
	eod := NewEODPipeline(storage, clock, registry, balances, coa, md, accrual, reports, events, nil)
	bod := NewBODProcessor(storage, clock, registry, balances, query, coa, history, events, nil)

	return &testLedger{
		Storage: storage, Clock: clock, Registry: registry, MD: md,
		Balances: balances, Query: query, COA: coa, History: history, Events: events,
		Engine: engine, Accrual: accrual, Reports: reports, EOD: eod, BOD: bod,
	}
}

// seedBasicChart loads the handful of GLs the scenario tests below
// exercise: a customer liability leaf, an office liability leaf (both
// from E1-E3), an asset/loan leaf, and the four interest leaves.
func (tl *testLedger) seedBasicChart(t *testing.T) {
	t.Helper()
	require.NoError(t, tl.COA.Load([]GLSetup{
		{GLNum: "110101000", Name: "Customer Savings", LayerID: 4},
		{GLNum: "110102000", Name: "Branch Suspense", LayerID: 4},
		{GLNum: "210101000", Name: "Customer Loan", LayerID: 4},
		{GLNum: "210201000", Name: "Overdraft Current Account", LayerID: 4, IsOverdraft: true},
		{GLNum: "140101000", Name: "Interest Expenditure", LayerID: 4, IsOverdraft: true},
		{GLNum: "240101000", Name: "Interest Income", LayerID: 4},
		{GLNum: "130101000", Name: "Interest Payable", LayerID: 4},
		{GLNum: "230101000", Name: "Interest Receivable", LayerID: 4},
	}))
}

func (tl *testLedger) openAccount(t *testing.T, accountNo, glNum string, isCustomer bool, opening Money, loanLimit Money) {
	t.Helper()
	require.NoError(t, tl.Registry.Open(Account{
		AccountNo:   accountNo,
		GLNum:       glNum,
		IsCustomer:  isCustomer,
		Status:      AccountActive,
		OpeningDate: tl.mustNow(t),
		LoanLimit:   loanLimit,
	}))
	if !opening.IsZero() {
		// Seed an opening balance row on the day before system date so
		// §4.7's 3-tier fallback has a prior-day row to find. OpeningBal
		// is set directly to the desired prior-day closing balance
		// (Cr/Dr left at zero) so the sign convention doesn't matter —
		// this just primes "yesterday's close", not a real posting.
		prior := tl.mustNow(t).AddDate(0, 0, -1)
		require.NoError(t, tl.Storage.PutBalanceRow(BalanceKindAccount, BalanceRow{
			Key: accountNo, TranDate: prior,
			OpeningBal: opening, ClosingBal: opening,
			CurrentBalance: opening, AvailableBalance: opening, LastUpdated: prior,
		}))
	}
}

func (tl *testLedger) mustNow(t *testing.T) time.Time {
	t.Helper()
	d, err := tl.Clock.Now()
	require.NoError(t, err)
	return d
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}
